package models

import (
	"time"
)

// Post is the blog post a comment targets. Authoring lives elsewhere; here it
// is only looked up.
type Post struct {
	ID        string    `json:"id" gorm:"primaryKey"`
	AuthorID  *string   `json:"author_id"`
	Slug      string    `json:"slug" gorm:"uniqueIndex;not null"`
	Title     string    `json:"title" gorm:"not null"`
	Published bool      `json:"published" gorm:"not null;default:false"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
