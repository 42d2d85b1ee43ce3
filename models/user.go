package models

import (
	"time"
)

type UserRole string

const (
	RoleViewer      UserRole = "VIEWER"
	RoleContributor UserRole = "CONTRIBUTOR"
	RoleAuthor      UserRole = "AUTHOR"
	RoleEditor      UserRole = "EDITOR"
	RoleAdmin       UserRole = "ADMIN"
	RoleSuperAdmin  UserRole = "SUPER_ADMIN"
)

// roleRank orders roles by privilege, SUPER_ADMIN highest.
var roleRank = map[UserRole]int{
	RoleViewer:      1,
	RoleContributor: 2,
	RoleAuthor:      3,
	RoleEditor:      4,
	RoleAdmin:       5,
	RoleSuperAdmin:  6,
}

// Valid reports whether r is one of the known roles.
func (r UserRole) Valid() bool {
	_, ok := roleRank[r]
	return ok
}

// AtLeast reports whether r carries at least the privilege of other.
// Unknown roles rank below VIEWER.
func (r UserRole) AtLeast(other UserRole) bool {
	return roleRank[r] >= roleRank[other]
}

// IsAdmin reports whether r is ADMIN or SUPER_ADMIN.
func (r UserRole) IsAdmin() bool {
	return r == RoleAdmin || r == RoleSuperAdmin
}

// ResolveRole is the single place a missing role gets its default.
func ResolveRole(r UserRole) UserRole {
	if r == "" {
		return RoleViewer
	}
	return r
}

type UserStatus string

const (
	StatusActive    UserStatus = "ACTIVE"
	StatusInactive  UserStatus = "INACTIVE"
	StatusPending   UserStatus = "PENDING"
	StatusSuspended UserStatus = "SUSPENDED"
)

func (s UserStatus) Valid() bool {
	switch s {
	case StatusActive, StatusInactive, StatusPending, StatusSuspended:
		return true
	}
	return false
}

// CanSignIn reports whether sessions of a user in this status resolve.
func (s UserStatus) CanSignIn() bool {
	return s != StatusSuspended && s != StatusInactive
}

// ResolveStatus defaults a missing status to ACTIVE.
func ResolveStatus(s UserStatus) UserStatus {
	if s == "" {
		return StatusActive
	}
	return s
}

type User struct {
	ID            string            `json:"id" gorm:"primaryKey"`
	Email         string            `json:"email" gorm:"uniqueIndex;not null"`
	Name          *string           `json:"name"`
	Image         *string           `json:"image"`
	Role          UserRole          `json:"role" gorm:"not null"`
	Status        UserStatus        `json:"status" gorm:"not null"`
	EmailVerified EmailVerification `json:"email_verified" gorm:"embedded;embeddedPrefix:email_verified_"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

// AdapterUser is the user shape handed to the session layer. EmailVerified
// is Date-or-null: an explicitly declined verification reads as nil, the same
// as one never attempted. Callers that need the distinction use User.
type AdapterUser struct {
	ID            string     `json:"id"`
	Email         string     `json:"email"`
	Name          *string    `json:"name"`
	Image         *string    `json:"image"`
	Role          UserRole   `json:"role"`
	Status        UserStatus `json:"status"`
	EmailVerified *time.Time `json:"emailVerified"`
}

// ToAdapterUser converts the stored record to the provider-facing shape.
// EmailVerified collapses to a timestamp or nil there, so a declined
// verification reads the same as one never attempted.
func (u *User) ToAdapterUser() *AdapterUser {
	if u == nil {
		return nil
	}
	return &AdapterUser{
		ID:            u.ID,
		Email:         u.Email,
		Name:          u.Name,
		Image:         u.Image,
		Role:          u.Role,
		Status:        u.Status,
		EmailVerified: u.EmailVerified.Timestamp(),
	}
}

// NewUserInput is what the session provider supplies on first sign-in.
// EmailVerified accepts a bool, a time, a string or numeric timestamp, or nil.
type NewUserInput struct {
	Email         string  `json:"email"`
	Name          *string `json:"name"`
	Image         *string `json:"image"`
	EmailVerified any     `json:"emailVerified"`
}

// UserPatch is a sparse update. Only fields with Set == true are written, so
// a role patched to "" is kept as "" rather than replaced by a default.
type UserPatch struct {
	ID            string                   `json:"id"`
	Email         Field[string]            `json:"email"`
	Name          Field[*string]           `json:"name"`
	Image         Field[*string]           `json:"image"`
	Role          Field[UserRole]          `json:"role"`
	Status        Field[UserStatus]        `json:"status"`
	EmailVerified Field[EmailVerification] `json:"-"`
}

// Empty reports whether the patch carries no field.
func (p UserPatch) Empty() bool {
	return !p.Email.Set && !p.Name.Set && !p.Image.Set && !p.Role.Set && !p.Status.Set && !p.EmailVerified.Set
}

type UserListParams struct {
	Search string     `form:"search"`
	Role   UserRole   `form:"role"`
	Status UserStatus `form:"status"`
	Page   int        `form:"page,default=1"`
	Limit  int        `form:"limit,default=20"`
}

type UserPage struct {
	Users []User `json:"users"`
	Total int64  `json:"total"`
	Page  int    `json:"page"`
	Limit int    `json:"limit"`
}
