package models

import (
	"strings"
	"time"
)

// User is a registered account that owns files and websites.
type User struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`

	Email        string `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash string `json:"-"`
	FullName     string `gorm:"not null" json:"full_name"`

	LastLogin *time.Time `json:"last_login,omitempty"`
	IsActive  bool       `gorm:"default:true" json:"is_active"`
	IsAdmin   bool       `gorm:"default:false" json:"-"`
	IsPremium bool       `gorm:"default:false" json:"is_premium"`

	StorageUsed int64 `gorm:"default:0" json:"storage_used"`
	MaxStorage  int64 `gorm:"default:1073741824" json:"max_storage"` // 1GB default
}

// Username derives a short display name from the full name or email prefix.
func (u *User) Username() string {
	if u.FullName != "" {
		return strings.Fields(u.FullName)[0]
	}
	if i := strings.Index(u.Email, "@"); i > 0 {
		return u.Email[:i]
	}
	return u.Email
}

// CanUpload reports whether size more bytes fit within the user's quota.
func (u *User) CanUpload(size int64) bool {
	return u.StorageUsed+size <= u.MaxStorage
}

// UserFile associates a user with a file they uploaded.
type UserFile struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`

	UserID uint `gorm:"index;not null" json:"user_id"`
	FileID uint `gorm:"index;not null" json:"file_id"`
	File   File `json:"file"`
}
