package models

import (
	"strings"
	"time"
)

// Website is a publishable collection of files served under /site/<slug>.
type Website struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	UserID uint `gorm:"index;not null" json:"user_id"`
	User   User `json:"-"`

	Name        string `gorm:"not null" json:"name"`
	Slug        string `gorm:"uniqueIndex;not null" json:"slug"`
	Description string `json:"description"`

	IsPublished  bool    `gorm:"default:false" json:"is_published"`
	IsPublic     bool    `gorm:"default:true" json:"is_public"`
	PasswordHash *string `json:"-"`

	ViewCount int `gorm:"default:0" json:"view_count"`
}

// HasPassword reports whether the website is password protected.
func (w *Website) HasPassword() bool {
	return w.PasswordHash != nil && *w.PasswordHash != ""
}

// URL returns the public URL for the website.
func (w *Website) URL(baseURL string) string {
	return baseURL + "/site/" + w.Slug
}

// WebsiteFile places one file at a virtual path inside a website.
type WebsiteFile struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`

	WebsiteID uint `gorm:"index;not null" json:"website_id"`
	FileID    uint `gorm:"index;not null" json:"file_id"`
	File      File `json:"file"`

	// VirtualPath is the forward-slash path the file occupies within the
	// site's logical root, independent of physical storage location.
	VirtualPath string `gorm:"not null" json:"virtual_path"`
	IsIndex     bool   `gorm:"default:false" json:"is_index"`
}

// AtRoot reports whether the file sits at the site's logical root.
func (wf *WebsiteFile) AtRoot() bool {
	return !strings.Contains(wf.VirtualPath, "/") || wf.VirtualPath == wf.File.OriginalName
}

// VirtualDir returns the directory portion of the virtual path, empty for
// root-level files.
func (wf *WebsiteFile) VirtualDir() string {
	normalized := strings.ReplaceAll(wf.VirtualPath, "\\", "/")
	segs := strings.Split(normalized, "/")
	if len(segs) < 2 {
		return ""
	}
	var dirs []string
	for _, seg := range segs[:len(segs)-1] {
		if seg != "" {
			dirs = append(dirs, seg)
		}
	}
	return strings.Join(dirs, "/")
}
