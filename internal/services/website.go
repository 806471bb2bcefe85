package services

import (
	"errors"
	"fmt"
	"log"
	"mime/multipart"
	"regexp"
	"strings"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/filelinkpro/filelink/internal/database"
	"github.com/filelinkpro/filelink/internal/models"
	"github.com/filelinkpro/filelink/internal/storage"
)

var (
	ErrWebsiteNotFound = errors.New("website not found")
	ErrNotOwner        = errors.New("not the website owner")
	ErrNameRequired    = errors.New("website name is required")
	ErrNoIndexFile     = errors.New("website has no index file")
	ErrNoFiles         = errors.New("website has no files")
	ErrTooManyFiles    = errors.New("file count limit reached")
)

// Entry-point candidates. The index set takes priority over the homepage set;
// within the index set a root-level file beats one in a subdirectory.
var (
	indexNames    = map[string]bool{"index.html": true, "index.htm": true}
	homepageNames = map[string]bool{"default.html": true, "default.htm": true, "home.html": true, "home.htm": true}
)

var nonSlugChars = regexp.MustCompile(`[^\w\s-]`)
var slugSeparators = regexp.MustCompile(`[-\s]+`)

// WebsiteService manages website entities and their file collections.
type WebsiteService struct {
	store        storage.Storage
	maxFileSize  int64
	freeMaxFiles int
	freeStorage  int64
}

// NewWebsiteService creates a new website service instance.
func NewWebsiteService(store storage.Storage, maxFileSize int64, freeMaxFiles int, freeStorage int64) *WebsiteService {
	return &WebsiteService{
		store:        store,
		maxFileSize:  maxFileSize,
		freeMaxFiles: freeMaxFiles,
		freeStorage:  freeStorage,
	}
}

// GenerateSiteSlug derives a URL-safe slug from a human name, suffixing -1,
// -2, ... until unique.
func GenerateSiteSlug(db *gorm.DB, name string) (string, error) {
	slug := strings.ToLower(name)
	slug = nonSlugChars.ReplaceAllString(slug, "")
	slug = slugSeparators.ReplaceAllString(slug, "-")
	slug = strings.Trim(slug, "-")
	if slug == "" {
		slug = "site"
	}

	base := slug
	if len(base) > 45 {
		base = base[:45]
	}
	slug = base
	for counter := 1; ; counter++ {
		var count int64
		if err := db.Model(&models.Website{}).Where("slug = ?", slug).Count(&count).Error; err != nil {
			return "", err
		}
		if count == 0 {
			return slug, nil
		}
		slug = fmt.Sprintf("%s-%d", base, counter)
	}
}

// CreateWebsite creates an unpublished website owned by user.
func (s *WebsiteService) CreateWebsite(user *models.User, name, description string, public bool, password string) (*models.Website, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrNameRequired
	}

	var website *models.Website
	err := database.DB.Transaction(func(tx *gorm.DB) error {
		slug, err := GenerateSiteSlug(tx, name)
		if err != nil {
			return err
		}

		website = &models.Website{
			UserID:      user.ID,
			Name:        name,
			Slug:        slug,
			Description: description,
			IsPublic:    public,
			IsPublished: false,
		}

		if password != "" {
			hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
			if err != nil {
				return fmt.Errorf("failed to hash password: %w", err)
			}
			hashStr := string(hash)
			website.PasswordHash = &hashStr
		}

		return tx.Create(website).Error
	})
	if err != nil {
		return nil, err
	}
	return website, nil
}

// GetBySlug returns a published website by slug.
func (s *WebsiteService) GetBySlug(slug string) (*models.Website, error) {
	var website models.Website
	err := database.DB.Preload("User").
		Where("slug = ? AND is_published = ?", slug, true).
		First(&website).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrWebsiteNotFound
		}
		return nil, err
	}
	return &website, nil
}

// GetOwned returns a website by ID, enforcing ownership (admins bypass).
func (s *WebsiteService) GetOwned(user *models.User, websiteID uint) (*models.Website, error) {
	var website models.Website
	if err := database.DB.First(&website, websiteID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrWebsiteNotFound
		}
		return nil, err
	}
	if website.UserID != user.ID && !user.IsAdmin {
		return nil, ErrNotOwner
	}
	return &website, nil
}

// ListByOwner returns all websites owned by user, most recently updated first.
func (s *WebsiteService) ListByOwner(user *models.User) ([]models.Website, error) {
	var websites []models.Website
	err := database.DB.Where("user_id = ?", user.ID).
		Order("updated_at DESC").
		Find(&websites).Error
	return websites, err
}

// sanitizeSegment keeps ASCII letters, digits, dot, dash and underscore in a
// path segment; spaces become underscores, everything else is dropped.
func sanitizeSegment(seg string) string {
	var b strings.Builder
	for _, r := range seg {
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

// SanitizeVirtualPath normalizes an uploaded relative path into a safe
// forward-slash virtual path. Empty and traversal segments are stripped so
// the result can never escape the site's logical root. Returns folder path
// and base filename; the filename is empty when nothing safe remains.
func SanitizeVirtualPath(raw string) (folder, filename string) {
	normalized := strings.ReplaceAll(raw, "\\", "/")
	parts := strings.Split(normalized, "/")

	var segs []string
	for _, p := range parts {
		if p == "" || p == "." || p == ".." {
			continue
		}
		if clean := sanitizeSegment(p); clean != "" && clean != ".." {
			segs = append(segs, clean)
		}
	}
	if len(segs) == 0 {
		return "", ""
	}
	return strings.Join(segs[:len(segs)-1], "/"), segs[len(segs)-1]
}

// UploadResult summarizes one batch of website file uploads.
type UploadResult struct {
	Uploaded   int  `json:"uploaded"`
	Skipped    int  `json:"skipped"`
	IndexFound bool `json:"index_found"`
}

// AddFiles ingests a batch of uploads into a website. Browsers uploading a
// directory prefix every filename with the folder name, so a common
// top-level folder is stripped to keep references like css/style.css
// resolvable. All rows for the batch commit or roll back together.
func (s *WebsiteService) AddFiles(user *models.User, website *models.Website, uploads []*multipart.FileHeader) (*UploadResult, error) {
	if len(uploads) == 0 {
		return nil, ErrNoFiles
	}

	if !user.IsPremium {
		var current int64
		if err := database.DB.Model(&models.WebsiteFile{}).
			Where("website_id = ?", website.ID).Count(&current).Error; err != nil {
			return nil, err
		}
		if int(current)+len(uploads) > s.freeMaxFiles {
			return nil, ErrTooManyFiles
		}
		var total int64
		for _, fh := range uploads {
			total += fh.Size
		}
		if user.StorageUsed+total > s.freeStorage {
			return nil, ErrQuotaExceeded
		}
	}

	// Detect a consistent root prefix (first multi-segment name wins).
	rootPrefix := ""
	for _, fh := range uploads {
		normalized := strings.ReplaceAll(fh.Filename, "\\", "/")
		parts := splitNonEmpty(normalized)
		if len(parts) > 1 {
			rootPrefix = parts[0]
			break
		}
	}

	result := &UploadResult{}
	var savedNames []string

	err := database.DB.Transaction(func(tx *gorm.DB) error {
		for _, fh := range uploads {
			raw := strings.ReplaceAll(fh.Filename, "\\", "/")
			parts := splitNonEmpty(raw)
			if len(parts) > 1 && rootPrefix != "" && parts[0] == rootPrefix {
				parts = parts[1:]
			}

			folder, base := SanitizeVirtualPath(strings.Join(parts, "/"))
			if base == "" {
				result.Skipped++
				continue
			}
			if fh.Size > s.maxFileSize {
				result.Skipped++
				continue
			}

			virtualPath := base
			if folder != "" {
				virtualPath = folder + "/" + base
			}

			storedName := GenerateStoredName(base)
			src, err := fh.Open()
			if err != nil {
				return fmt.Errorf("failed to open uploaded file: %w", err)
			}
			saveErr := s.store.Save(storage.CategoryWebsite, user.Username(), storedName, src)
			src.Close()
			if saveErr != nil {
				return saveErr
			}
			savedNames = append(savedNames, storedName)

			mimeType := fh.Header.Get("Content-Type")
			if mimeType == "" {
				mimeType = "application/octet-stream"
			}

			file := &models.File{
				OriginalName: base,
				StoredName:   storedName,
				FileSize:     fh.Size,
				MimeType:     mimeType,
			}
			if err := tx.Create(file).Error; err != nil {
				return fmt.Errorf("failed to create file record: %w", err)
			}
			if err := tx.Create(&models.UserFile{UserID: user.ID, FileID: file.ID}).Error; err != nil {
				return err
			}

			isIndex, err := s.markIndexOnUpload(tx, website, base, folder)
			if err != nil {
				return err
			}
			if isIndex {
				result.IndexFound = true
			}

			wf := &models.WebsiteFile{
				WebsiteID:   website.ID,
				FileID:      file.ID,
				VirtualPath: virtualPath,
				IsIndex:     isIndex,
			}
			if err := tx.Create(wf).Error; err != nil {
				return err
			}

			if err := tx.Model(&models.User{}).Where("id = ?", user.ID).
				Update("storage_used", gorm.Expr("storage_used + ?", fh.Size)).Error; err != nil {
				return err
			}

			result.Uploaded++
		}
		return nil
	})
	if err != nil {
		for _, name := range savedNames {
			if delErr := s.store.Delete(name); delErr != nil {
				log.Printf("Warning: failed to remove file after rollback: %v", delErr)
			}
		}
		return nil, err
	}

	return result, nil
}

// markIndexOnUpload applies the historical upload-time index marking: an
// index.html/index.htm becomes the index when none exists, or always when it
// lands at root (unmarking the previous holder); the homepage set only when
// no index exists. FixIndex is the canonical re-scan and may settle
// differently; this path is kept for compatibility with existing sites.
func (s *WebsiteService) markIndexOnUpload(tx *gorm.DB, website *models.Website, base, folder string) (bool, error) {
	lower := strings.ToLower(base)

	var existing models.WebsiteFile
	hasExisting := true
	err := tx.Where("website_id = ? AND is_index = ?", website.ID, true).First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		hasExisting = false
	} else if err != nil {
		return false, err
	}

	if indexNames[lower] {
		if !hasExisting {
			return true, nil
		}
		if folder == "" {
			// A root-level index always takes over.
			if err := tx.Model(&existing).Update("is_index", false).Error; err != nil {
				return false, err
			}
			return true, nil
		}
		return false, nil
	}

	if homepageNames[lower] && !hasExisting {
		return true, nil
	}
	return false, nil
}

// FixIndex re-evaluates the entry point for a website from scratch: the
// first root-level index.html/index.htm in creation order wins, then the
// first such file anywhere, then the first root-level homepage candidate.
// Any previously stored flag is ignored, which makes the operation
// idempotent. Returns whether an index was assigned.
func (s *WebsiteService) FixIndex(website *models.Website) (bool, error) {
	found := false
	err := database.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.WebsiteFile{}).
			Where("website_id = ?", website.ID).
			Update("is_index", false).Error; err != nil {
			return err
		}

		var files []models.WebsiteFile
		if err := tx.Preload("File").
			Where("website_id = ?", website.ID).
			Order("id ASC").
			Find(&files).Error; err != nil {
			return err
		}

		var rootIndex, anyIndex, rootHomepage *models.WebsiteFile
		for i := range files {
			wf := &files[i]
			lower := strings.ToLower(wf.File.OriginalName)
			switch {
			case indexNames[lower]:
				if wf.AtRoot() {
					if rootIndex == nil {
						rootIndex = wf
					}
				} else if anyIndex == nil {
					anyIndex = wf
				}
			case homepageNames[lower]:
				if wf.AtRoot() && rootHomepage == nil {
					rootHomepage = wf
				}
			}
		}

		winner := rootIndex
		if winner == nil {
			winner = anyIndex
		}
		if winner == nil {
			winner = rootHomepage
		}
		if winner == nil {
			return nil
		}

		found = true
		return tx.Model(winner).Update("is_index", true).Error
	})
	return found, err
}

// CleanupDuplicates removes website files sharing the same (lowercased
// original filename, virtual path) pair, keeping the later creation order.
// Index detection re-runs when anything was removed, since the removed row
// might have held the flag.
func (s *WebsiteService) CleanupDuplicates(website *models.Website) (int, error) {
	removed := 0
	err := database.DB.Transaction(func(tx *gorm.DB) error {
		var files []models.WebsiteFile
		if err := tx.Preload("File").
			Where("website_id = ?", website.ID).
			Order("id ASC").
			Find(&files).Error; err != nil {
			return err
		}

		type dupKey struct {
			name string
			path string
		}
		seen := make(map[dupKey]*models.WebsiteFile)
		for i := range files {
			wf := &files[i]
			key := dupKey{strings.ToLower(wf.File.OriginalName), wf.VirtualPath}
			prev, ok := seen[key]
			if !ok {
				seen[key] = wf
				continue
			}
			// Keep the row with the higher creation order.
			victim := prev
			if wf.ID < prev.ID {
				victim = wf
			} else {
				seen[key] = wf
			}
			if err := tx.Delete(victim).Error; err != nil {
				return err
			}
			removed++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	if removed > 0 {
		if _, err := s.FixIndex(website); err != nil {
			return removed, err
		}
	}
	return removed, nil
}

// TogglePublish flips the published flag. Publishing requires at least one
// file and a designated index file.
func (s *WebsiteService) TogglePublish(website *models.Website) error {
	if !website.IsPublished {
		var fileCount, indexCount int64
		if err := database.DB.Model(&models.WebsiteFile{}).
			Where("website_id = ?", website.ID).Count(&fileCount).Error; err != nil {
			return err
		}
		if fileCount == 0 {
			return ErrNoFiles
		}
		if err := database.DB.Model(&models.WebsiteFile{}).
			Where("website_id = ? AND is_index = ?", website.ID, true).
			Count(&indexCount).Error; err != nil {
			return err
		}
		if indexCount == 0 {
			return ErrNoIndexFile
		}
	}

	website.IsPublished = !website.IsPublished
	return database.DB.Model(website).Update("is_published", website.IsPublished).Error
}

// CheckPassword verifies a website password. Sites without one always pass.
func (s *WebsiteService) CheckPassword(website *models.Website, password string) bool {
	if !website.HasPassword() {
		return true
	}
	return bcrypt.CompareHashAndPassword([]byte(*website.PasswordHash), []byte(password)) == nil
}

// RecordView increments the website view counter.
func (s *WebsiteService) RecordView(website *models.Website) error {
	website.ViewCount++
	return database.DB.Model(website).
		Update("view_count", gorm.Expr("view_count + 1")).Error
}

// DeleteWebsite removes the website and its file placements in one
// transaction. Files left without any other reference are removed too,
// including their bytes.
func (s *WebsiteService) DeleteWebsite(website *models.Website) error {
	var orphanedNames []string
	err := database.DB.Transaction(func(tx *gorm.DB) error {
		var files []models.WebsiteFile
		if err := tx.Preload("File").
			Where("website_id = ?", website.ID).
			Find(&files).Error; err != nil {
			return err
		}

		if err := tx.Where("website_id = ?", website.ID).Delete(&models.WebsiteFile{}).Error; err != nil {
			return err
		}

		for i := range files {
			orphaned, err := fileIsOrphaned(tx, files[i].FileID)
			if err != nil {
				return err
			}
			if !orphaned {
				continue
			}
			if err := tx.Model(&models.User{}).Where("id = ?", website.UserID).
				Update("storage_used", gorm.Expr("MAX(storage_used - ?, 0)", files[i].File.FileSize)).Error; err != nil {
				return err
			}
			if err := tx.Where("file_id = ?", files[i].FileID).Delete(&models.UserFile{}).Error; err != nil {
				return err
			}
			if err := tx.Delete(&models.File{}, files[i].FileID).Error; err != nil {
				return err
			}
			orphanedNames = append(orphanedNames, files[i].File.StoredName)
		}

		return tx.Delete(website).Error
	})
	if err != nil {
		return err
	}

	for _, name := range orphanedNames {
		if err := s.store.Delete(name); err != nil {
			log.Printf("Warning: failed to delete stored file %s: %v", name, err)
		}
	}
	return nil
}

func splitNonEmpty(path string) []string {
	var parts []string
	for _, p := range strings.Split(path, "/") {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return parts
}
