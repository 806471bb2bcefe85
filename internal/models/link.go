package models

import (
	"time"
)

// Link is a public shareable link pointing at exactly one file.
type Link struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`

	Slug   string `gorm:"uniqueIndex;not null" json:"slug"`
	FileID uint   `gorm:"index;not null" json:"file_id"`
	File   File   `json:"file"`

	ExpiresAt    *time.Time `gorm:"index" json:"expires_at,omitempty"`
	PasswordHash *string    `json:"-"`
	IsActive     bool       `gorm:"default:true" json:"is_active"`

	ViewCount    int        `gorm:"default:0" json:"view_count"`
	LastAccessed *time.Time `json:"last_accessed,omitempty"`
}

// IsExpired reports whether the link is past its expiry date.
func (l *Link) IsExpired() bool {
	if l.ExpiresAt == nil {
		return false
	}
	return time.Now().After(*l.ExpiresAt)
}

// HasPassword reports whether the link is password protected.
func (l *Link) HasPassword() bool {
	return l.PasswordHash != nil && *l.PasswordHash != ""
}

// FullURL returns the public shareable URL for the link.
func (l *Link) FullURL(baseURL string) string {
	return baseURL + "/r/" + l.Slug
}

// AccessLog records a single access to a shared link.
type AccessLog struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`

	LinkID    uint   `gorm:"index;not null" json:"link_id"`
	IPAddress string `json:"ip_address"`
	UserAgent string `json:"user_agent"`
	Referrer  string `json:"referrer"`
}
