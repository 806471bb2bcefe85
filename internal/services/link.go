package services

import (
	"crypto/rand"
	"errors"
	"fmt"
	"log"
	"math/big"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/filelinkpro/filelink/internal/database"
	"github.com/filelinkpro/filelink/internal/models"
	"github.com/filelinkpro/filelink/internal/storage"
)

var (
	ErrLinkNotFound     = errors.New("link not found")
	ErrLinkExpired      = errors.New("link has expired")
	ErrLinkInactive     = errors.New("link is inactive")
	ErrInvalidPassword  = errors.New("invalid password")
	ErrPasswordRequired = errors.New("password required")
)

const slugAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// DefaultSlugLength is the length of generated share-link slugs.
const DefaultSlugLength = 8

// LinkService manages shareable links.
type LinkService struct {
	store           storage.Storage
	enableAnalytics bool
}

// NewLinkService creates a new link service instance.
func NewLinkService(store storage.Storage, enableAnalytics bool) *LinkService {
	return &LinkService{store: store, enableAnalytics: enableAnalytics}
}

// GenerateSlug draws random slugs from the 62-character alphanumeric alphabet
// until one not already registered is produced. Collisions are astronomically
// unlikely at this alphabet size, but the uniqueness check is still required.
func (s *LinkService) GenerateSlug(db *gorm.DB, length int) (string, error) {
	for {
		slug, err := randomSlug(length)
		if err != nil {
			return "", err
		}
		var count int64
		if err := db.Model(&models.Link{}).Where("slug = ?", slug).Count(&count).Error; err != nil {
			return "", err
		}
		if count == 0 {
			return slug, nil
		}
	}
}

func randomSlug(length int) (string, error) {
	b := make([]byte, length)
	max := big.NewInt(int64(len(slugAlphabet)))
	for i := range b {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("failed to generate slug: %w", err)
		}
		b[i] = slugAlphabet[n.Int64()]
	}
	return string(b), nil
}

// CreateLink registers a new shareable link for a stored file. Runs inside
// the caller's transaction; a slug uniqueness violation on insert triggers
// regeneration rather than failing.
func (s *LinkService) CreateLink(tx *gorm.DB, fileID uint, password string, expiryDays int) (*models.Link, error) {
	var link *models.Link
	for attempt := 0; attempt < 3; attempt++ {
		slug, err := s.GenerateSlug(tx, DefaultSlugLength)
		if err != nil {
			return nil, err
		}

		link = &models.Link{
			Slug:     slug,
			FileID:   fileID,
			IsActive: true,
		}

		if password != "" {
			hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
			if err != nil {
				return nil, fmt.Errorf("failed to hash password: %w", err)
			}
			hashStr := string(hash)
			link.PasswordHash = &hashStr
		}

		if expiryDays > 0 {
			expiry := time.Now().AddDate(0, 0, expiryDays)
			link.ExpiresAt = &expiry
		}

		err = tx.Create(link).Error
		if err == nil {
			return link, nil
		}
		if !errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, fmt.Errorf("failed to create link: %w", err)
		}
		// Another request claimed the slug between check and insert; retry.
	}
	return nil, errors.New("failed to create link: slug collisions exhausted retries")
}

// GetBySlug retrieves an active link by slug with its file preloaded.
func (s *LinkService) GetBySlug(slug string) (*models.Link, error) {
	var link models.Link
	err := database.DB.Preload("File").
		Where("slug = ? AND is_active = ?", slug, true).
		First(&link).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrLinkNotFound
		}
		return nil, err
	}
	return &link, nil
}

// CheckAccess validates expiry and password state for a link. Expiry is
// checked before the password so an expired link reports expiry regardless
// of password correctness. A link with no password always passes the
// password check.
func (s *LinkService) CheckAccess(link *models.Link, password string) error {
	if !link.IsActive {
		return ErrLinkInactive
	}
	if link.IsExpired() {
		return ErrLinkExpired
	}
	if !link.HasPassword() {
		return nil
	}
	if password == "" {
		return ErrPasswordRequired
	}
	if err := bcrypt.CompareHashAndPassword([]byte(*link.PasswordHash), []byte(password)); err != nil {
		return ErrInvalidPassword
	}
	return nil
}

// RecordView increments the view counter and stamps last-accessed. Callers
// must invoke it at most once per logical view. When analytics are enabled
// an access log row is written alongside.
func (s *LinkService) RecordView(link *models.Link, ip, userAgent, referrer string) error {
	return database.DB.Transaction(func(tx *gorm.DB) error {
		now := time.Now()
		link.ViewCount++
		link.LastAccessed = &now
		if err := tx.Model(link).Updates(map[string]interface{}{
			"view_count":    link.ViewCount,
			"last_accessed": now,
		}).Error; err != nil {
			return err
		}
		if s.enableAnalytics {
			entry := &models.AccessLog{
				LinkID:    link.ID,
				IPAddress: ip,
				UserAgent: userAgent,
				Referrer:  referrer,
			}
			if err := tx.Create(entry).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// UpdateLink changes password, expiry or active state on a link. A nil
// pointer leaves the field untouched; an empty password or zero expiry
// clears protection.
func (s *LinkService) UpdateLink(link *models.Link, password *string, expiryDays *int, active *bool) error {
	updates := make(map[string]interface{})

	if password != nil {
		if *password == "" {
			updates["password_hash"] = nil
		} else {
			hash, err := bcrypt.GenerateFromPassword([]byte(*password), bcrypt.DefaultCost)
			if err != nil {
				return fmt.Errorf("failed to hash password: %w", err)
			}
			updates["password_hash"] = string(hash)
		}
	}

	if expiryDays != nil {
		if *expiryDays <= 0 {
			updates["expires_at"] = nil
		} else {
			updates["expires_at"] = time.Now().AddDate(0, 0, *expiryDays)
		}
	}

	if active != nil {
		updates["is_active"] = *active
	}

	if len(updates) == 0 {
		return nil
	}
	if err := database.DB.Model(link).Updates(updates).Error; err != nil {
		return fmt.Errorf("failed to update link: %w", err)
	}
	return nil
}

// DeleteLink removes a link and its access logs. The stored file is removed
// too when no other link or website references it.
func (s *LinkService) DeleteLink(link *models.Link) error {
	var orphanedStoredName string
	err := database.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("link_id = ?", link.ID).Delete(&models.AccessLog{}).Error; err != nil {
			return err
		}
		if err := tx.Delete(link).Error; err != nil {
			return err
		}

		orphaned, err := fileIsOrphaned(tx, link.FileID)
		if err != nil {
			return err
		}
		if orphaned {
			var file models.File
			if err := tx.First(&file, link.FileID).Error; err != nil {
				return err
			}
			orphanedStoredName = file.StoredName
			if err := tx.Where("file_id = ?", link.FileID).Delete(&models.UserFile{}).Error; err != nil {
				return err
			}
			if err := tx.Delete(&file).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	if orphanedStoredName != "" {
		if err := s.store.Delete(orphanedStoredName); err != nil {
			log.Printf("Warning: failed to delete stored file %s: %v", orphanedStoredName, err)
		}
	}
	return nil
}

// fileIsOrphaned reports whether no link or website file references fileID.
func fileIsOrphaned(tx *gorm.DB, fileID uint) (bool, error) {
	var links, siteFiles int64
	if err := tx.Model(&models.Link{}).Where("file_id = ?", fileID).Count(&links).Error; err != nil {
		return false, err
	}
	if err := tx.Model(&models.WebsiteFile{}).Where("file_id = ?", fileID).Count(&siteFiles).Error; err != nil {
		return false, err
	}
	return links == 0 && siteFiles == 0, nil
}

// CleanupExpired deletes links past their expiry date along with any file
// bytes left without a referencing link or website.
func (s *LinkService) CleanupExpired() error {
	var expired []models.Link
	if err := database.DB.Where("expires_at IS NOT NULL AND expires_at <= ?", time.Now()).
		Find(&expired).Error; err != nil {
		return err
	}

	for i := range expired {
		if err := s.DeleteLink(&expired[i]); err != nil {
			log.Printf("Warning: failed to clean up expired link %s: %v", expired[i].Slug, err)
		}
	}
	return nil
}
