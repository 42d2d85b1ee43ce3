package models

import "time"

// LinkedAccount binds an external identity to a user. Token fields are
// opaque provider blobs and are never interpreted.
type LinkedAccount struct {
	ID                string    `json:"id" gorm:"primaryKey"`
	UserID            string    `json:"user_id" gorm:"not null;index"`
	Type              string    `json:"type"`
	Provider          string    `json:"provider" gorm:"not null;uniqueIndex:idx_provider_account"`
	ProviderAccountID string    `json:"provider_account_id" gorm:"not null;uniqueIndex:idx_provider_account"`
	RefreshToken      *string   `json:"refresh_token,omitempty"`
	AccessToken       *string   `json:"access_token,omitempty"`
	ExpiresAt         *int64    `json:"expires_at"`
	TokenType         *string   `json:"token_type"`
	Scope             *string   `json:"scope"`
	IDToken           *string   `json:"id_token,omitempty"`
	SessionState      *string   `json:"session_state,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

type Session struct {
	ID           string    `json:"id" gorm:"primaryKey"`
	SessionToken string    `json:"session_token" gorm:"uniqueIndex;not null"`
	UserID       string    `json:"user_id" gorm:"not null;index"`
	Expires      time.Time `json:"expires" gorm:"not null;index"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Expired reports whether the session is past its expiry at now.
func (s *Session) Expired(now time.Time) bool {
	return !s.Expires.After(now)
}

type VerificationToken struct {
	Identifier string    `json:"identifier" gorm:"primaryKey"`
	Token      string    `json:"token" gorm:"primaryKey"`
	Expires    time.Time `json:"expires" gorm:"not null;index"`
}

func (t *VerificationToken) Expired(now time.Time) bool {
	return !t.Expires.After(now)
}

// AppSession is the request-scoped session with a resolved role.
type AppSession struct {
	SessionToken string      `json:"-"`
	User         SessionUser `json:"user"`
	Expires      time.Time   `json:"expires"`
}

type SessionUser struct {
	ID     string     `json:"id"`
	Email  string     `json:"email"`
	Name   *string    `json:"name"`
	Image  *string    `json:"image"`
	Role   UserRole   `json:"role"`
	Status UserStatus `json:"status"`
}
