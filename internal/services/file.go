package services

import (
	"errors"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/filelinkpro/filelink/internal/database"
	"github.com/filelinkpro/filelink/internal/models"
	"github.com/filelinkpro/filelink/internal/storage"
)

var (
	ErrFileNotFound  = errors.New("file not found")
	ErrFileTooLarge  = errors.New("file exceeds size limit")
	ErrQuotaExceeded = errors.New("storage quota exceeded")
)

// FileService handles uploads of directly shared files.
type FileService struct {
	store       storage.Storage
	links       *LinkService
	maxFileSize int64
}

// NewFileService creates a new file service instance.
func NewFileService(store storage.Storage, links *LinkService, maxFileSize int64) *FileService {
	return &FileService{store: store, links: links, maxFileSize: maxFileSize}
}

// GenerateStoredName builds an opaque storage key: time-based prefix, random
// suffix, original extension. Uniqueness is probabilistic, not guaranteed;
// the unique index on stored_name backstops it.
func GenerateStoredName(originalName string) string {
	suffix := strings.ReplaceAll(uuid.New().String(), "-", "")[:16]
	ext := strings.ToLower(filepath.Ext(originalName))
	return time.Now().UTC().Format("20060102_150405") + "_" + suffix + ext
}

// SanitizeFilename strips path components and unsafe characters from an
// uploaded filename, leaving ASCII letters, digits, dot, dash and underscore.
func SanitizeFilename(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.' || r == '-' || r == '_':
			b.WriteRune(r)
		case r == ' ':
			b.WriteByte('_')
		}
	}
	return strings.Trim(b.String(), "._-")
}

// SaveShared stores an uploaded file under sharedfiles/<owner> and creates
// the file record, share link and (for logged-in users) ownership row in one
// transaction. The written bytes are removed again if any row fails.
func (s *FileService) SaveShared(fh *multipart.FileHeader, user *models.User, uploadIP, password string, expiryDays int) (*models.File, *models.Link, error) {
	if fh.Size > s.maxFileSize {
		return nil, nil, ErrFileTooLarge
	}
	if user != nil && !user.CanUpload(fh.Size) {
		return nil, nil, ErrQuotaExceeded
	}

	originalName := SanitizeFilename(fh.Filename)
	if originalName == "" {
		originalName = "unnamed_file"
	}
	storedName := GenerateStoredName(originalName)

	owner := "anonymous"
	if user != nil {
		owner = user.Username()
	}

	src, err := fh.Open()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open uploaded file: %w", err)
	}
	defer src.Close()

	if err := s.store.Save(storage.CategoryShared, owner, storedName, src); err != nil {
		return nil, nil, err
	}

	mimeType := fh.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	file := &models.File{
		OriginalName: originalName,
		StoredName:   storedName,
		FileSize:     fh.Size,
		MimeType:     mimeType,
		UploadIP:     uploadIP,
	}

	var link *models.Link
	err = database.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(file).Error; err != nil {
			return fmt.Errorf("failed to create file record: %w", err)
		}

		var err error
		link, err = s.links.CreateLink(tx, file.ID, password, expiryDays)
		if err != nil {
			return err
		}

		if user != nil {
			uf := &models.UserFile{UserID: user.ID, FileID: file.ID}
			if err := tx.Create(uf).Error; err != nil {
				return fmt.Errorf("failed to create ownership record: %w", err)
			}
			if err := tx.Model(user).
				Update("storage_used", gorm.Expr("storage_used + ?", fh.Size)).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if delErr := s.store.Delete(storedName); delErr != nil {
			log.Printf("Warning: failed to remove file after rollback: %v", delErr)
		}
		return nil, nil, err
	}

	return file, link, nil
}

// GetOwnedFile returns a file owned by user, or ErrFileNotFound when the
// file does not exist or belongs to someone else (admins see everything).
func (s *FileService) GetOwnedFile(user *models.User, fileID uint) (*models.File, error) {
	var file models.File
	if err := database.DB.First(&file, fileID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrFileNotFound
		}
		return nil, err
	}

	if !user.IsAdmin {
		var count int64
		if err := database.DB.Model(&models.UserFile{}).
			Where("user_id = ? AND file_id = ?", user.ID, file.ID).
			Count(&count).Error; err != nil {
			return nil, err
		}
		if count == 0 {
			return nil, ErrFileNotFound
		}
	}
	return &file, nil
}

// DeleteFile removes a file record together with every dependent row (links,
// access logs, ownership, website placements) in one transaction, then the
// bytes on storage.
func (s *FileService) DeleteFile(file *models.File) error {
	sizeDelta := file.FileSize

	err := database.DB.Transaction(func(tx *gorm.DB) error {
		var links []models.Link
		if err := tx.Where("file_id = ?", file.ID).Find(&links).Error; err != nil {
			return err
		}
		for _, link := range links {
			if err := tx.Where("link_id = ?", link.ID).Delete(&models.AccessLog{}).Error; err != nil {
				return err
			}
		}
		if err := tx.Where("file_id = ?", file.ID).Delete(&models.Link{}).Error; err != nil {
			return err
		}
		if err := tx.Where("file_id = ?", file.ID).Delete(&models.WebsiteFile{}).Error; err != nil {
			return err
		}

		var owners []models.UserFile
		if err := tx.Where("file_id = ?", file.ID).Find(&owners).Error; err != nil {
			return err
		}
		for _, uf := range owners {
			if err := tx.Model(&models.User{}).Where("id = ?", uf.UserID).
				Update("storage_used", gorm.Expr("MAX(storage_used - ?, 0)", sizeDelta)).Error; err != nil {
				return err
			}
		}
		if err := tx.Where("file_id = ?", file.ID).Delete(&models.UserFile{}).Error; err != nil {
			return err
		}

		return tx.Delete(file).Error
	})
	if err != nil {
		return err
	}

	if err := s.store.Delete(file.StoredName); err != nil {
		log.Printf("Warning: failed to delete stored file %s: %v", file.StoredName, err)
	}
	return nil
}

// Open returns a reader over a file's bytes.
func (s *FileService) Open(file *models.File) (io.ReadCloser, error) {
	return s.store.Open(file.StoredName)
}
