package models

import (
	"time"
)

type CommentStatus string

const (
	CommentPending  CommentStatus = "PENDING"
	CommentApproved CommentStatus = "APPROVED"
	CommentRejected CommentStatus = "REJECTED"
	CommentSpam     CommentStatus = "SPAM"
)

func (s CommentStatus) Valid() bool {
	switch s {
	case CommentPending, CommentApproved, CommentRejected, CommentSpam:
		return true
	}
	return false
}

// Comment is a comment on a post. ParentID nil is top level; replies nest
// one level only.
type Comment struct {
	ID         string        `json:"id" gorm:"primaryKey"`
	Content    string        `json:"content" gorm:"type:text;not null"`
	AuthorID   *string       `json:"author_id" gorm:"index"`
	Author     *User         `json:"author,omitempty" gorm:"foreignKey:AuthorID"`
	GuestName  *string       `json:"guest_name,omitempty"`
	GuestEmail *string       `json:"-"`
	PostID     string        `json:"post_id" gorm:"not null;index"`
	ParentID   *string       `json:"parent_id" gorm:"index"`
	Replies    []Comment     `json:"replies,omitempty" gorm:"foreignKey:ParentID"`
	Status     CommentStatus `json:"status" gorm:"not null;index"`
	Version    int           `json:"version" gorm:"not null;default:1"`
	CreatedAt  time.Time     `json:"created_at"`
	UpdatedAt  time.Time     `json:"updated_at"`
}

// ContactEmail is the address notifications about this comment go to, or
// "" when the author is unknown or has no address.
func (c *Comment) ContactEmail() string {
	if c.Author != nil && c.Author.Email != "" {
		return c.Author.Email
	}
	if c.AuthorID == nil && c.GuestEmail != nil {
		return *c.GuestEmail
	}
	return ""
}

// DisplayName is the author's name for templates.
func (c *Comment) DisplayName() string {
	if c.Author != nil && c.Author.Name != nil && *c.Author.Name != "" {
		return *c.Author.Name
	}
	if c.GuestName != nil && *c.GuestName != "" {
		return *c.GuestName
	}
	return "Anonymous"
}

// CommentTransition is one entry of the append-only moderation log.
type CommentTransition struct {
	ID        uint          `json:"id" gorm:"primaryKey"`
	CommentID string        `json:"comment_id" gorm:"not null;index"`
	From      CommentStatus `json:"from" gorm:"column:from_status;not null"`
	To        CommentStatus `json:"to" gorm:"column:to_status;not null"`
	ActorID   string        `json:"actor_id" gorm:"not null"`
	Reason    *string       `json:"reason,omitempty" gorm:"type:text"`
	CreatedAt time.Time     `json:"created_at"`
}

type SubmitCommentInput struct {
	Content    string
	PostID     string
	AuthorID   *string
	ParentID   *string
	GuestName  *string
	GuestEmail *string
}

// CommentListParams filters a comment listing. Status "" means all for admin
// readers; public readers are always limited to APPROVED.
type CommentListParams struct {
	Status   CommentStatus `form:"status"`
	Search   string        `form:"search"`
	PostID   string        `form:"post_id"`
	Threaded bool          `form:"threaded"`
	Page     int           `form:"page,default=1"`
	Limit    int           `form:"limit,default=10"`
}

type CommentPage struct {
	Comments []Comment `json:"comments"`
	Total    int64     `json:"total"`
	Page     int       `json:"page"`
	Limit    int       `json:"limit"`
}
