package models

import (
	"time"

	"gorm.io/gorm"
)

// Post is a document on one board. BoardType selects the collection the post
// belongs to; Comments is the embedded mirror of the post's comment records.
type Post struct {
	ID        string        `gorm:"primaryKey;size:36" json:"_id"`
	BoardType string        `gorm:"size:32;index;not null" json:"type"`
	Title     string        `gorm:"size:255;not null" json:"title"`
	Content   string        `gorm:"type:text;not null" json:"content"`
	URL       string        `gorm:"size:1024" json:"url,omitempty"`
	Thumbnail string        `gorm:"size:1024" json:"thumbnail,omitempty"`
	Image     string        `gorm:"size:1024" json:"image,omitempty"`
	Files     []string      `gorm:"serializer:json;type:text" json:"files"`
	Comments  []CommentNode `gorm:"serializer:json;type:text" json:"comments"`
	Views     int64         `gorm:"not null;default:0" json:"views"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// BeforeSave keeps list columns from being persisted as JSON null.
func (p *Post) BeforeSave(tx *gorm.DB) error {
	p.normalize()
	return nil
}

// AfterFind gives rows written by older deployments the same shape as new ones.
func (p *Post) AfterFind(tx *gorm.DB) error {
	p.normalize()
	return nil
}

func (p *Post) normalize() {
	if p.Files == nil {
		p.Files = []string{}
	}
	if p.Comments == nil {
		p.Comments = []CommentNode{}
	}
}

// HasFiles reports whether the post carries at least one attachment.
func (p *Post) HasFiles() bool {
	return len(p.Files) > 0
}

// PostSummary is one row of a paginated board listing.
type PostSummary struct {
	ID        string    `json:"_id"`
	No        int       `json:"no"`
	Title     string    `json:"title"`
	Thumbnail string    `json:"thumbnail,omitempty"`
	Views     int64     `json:"views"`
	HasFiles  bool      `json:"has_files"`
	CreatedAt time.Time `json:"created_at"`
}

// PostPage is a page of a board listing.
type PostPage struct {
	Posts       []PostSummary `json:"posts"`
	Total       int64         `json:"total"`
	TotalPages  int           `json:"total_pages"`
	CurrentPage int           `json:"current_page"`
}
