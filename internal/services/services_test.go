package services

import (
	"bytes"
	"mime/multipart"
	"path/filepath"
	"testing"

	"github.com/filelinkpro/filelink/internal/database"
	"github.com/filelinkpro/filelink/internal/models"
	"github.com/filelinkpro/filelink/internal/storage"
)

// setupDB opens a temporary SQLite database for testing.
func setupDB(t *testing.T) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	if err := database.Initialize(dbPath); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	t.Cleanup(func() { database.Close() })
}

// setupStorage creates a local storage backend in a temp directory.
func setupStorage(t *testing.T) *storage.LocalStorage {
	t.Helper()
	store, err := storage.NewLocalStorage(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalStorage: %v", err)
	}
	return store
}

// createUser inserts a test user.
func createUser(t *testing.T, email string, premium bool) *models.User {
	t.Helper()
	user := &models.User{
		Email:      email,
		FullName:   "Test User",
		IsActive:   true,
		IsPremium:  premium,
		MaxStorage: 1 << 30,
	}
	if err := database.DB.Create(user).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}
	return user
}

// createWebsite inserts a test website for user.
func createWebsite(t *testing.T, user *models.User, slug string) *models.Website {
	t.Helper()
	site := &models.Website{
		UserID:      user.ID,
		Name:        slug,
		Slug:        slug,
		IsPublic:    true,
		IsPublished: true,
	}
	if err := database.DB.Create(site).Error; err != nil {
		t.Fatalf("create website: %v", err)
	}
	site.User = *user
	return site
}

// addSiteFile inserts a file placed at virtualPath inside site.
func addSiteFile(t *testing.T, site *models.Website, originalName, virtualPath string) *models.WebsiteFile {
	t.Helper()
	file := &models.File{
		OriginalName: originalName,
		StoredName:   GenerateStoredName(originalName),
		FileSize:     int64(len(originalName)),
		MimeType:     "text/html",
	}
	if err := database.DB.Create(file).Error; err != nil {
		t.Fatalf("create file: %v", err)
	}
	wf := &models.WebsiteFile{
		WebsiteID:   site.ID,
		FileID:      file.ID,
		VirtualPath: virtualPath,
	}
	if err := database.DB.Create(wf).Error; err != nil {
		t.Fatalf("create website file: %v", err)
	}
	wf.File = *file
	return wf
}

// makeUploads builds multipart file headers from (filename, content) pairs,
// the way a browser directory upload delivers them.
func makeUploads(t *testing.T, files [][2]string) []*multipart.FileHeader {
	t.Helper()
	var buf bytes.Buffer
	wr := multipart.NewWriter(&buf)
	for _, f := range files {
		fw, err := wr.CreateFormFile("files[]", f[0])
		if err != nil {
			t.Fatalf("CreateFormFile: %v", err)
		}
		if _, err := fw.Write([]byte(f[1])); err != nil {
			t.Fatalf("write form file: %v", err)
		}
	}
	if err := wr.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}

	form, err := multipart.NewReader(&buf, wr.Boundary()).ReadForm(32 << 20)
	if err != nil {
		t.Fatalf("ReadForm: %v", err)
	}
	t.Cleanup(func() { form.RemoveAll() })
	return form.File["files[]"]
}

// indexedPaths returns the virtual paths currently flagged as index for site.
func indexedPaths(t *testing.T, site *models.Website) []string {
	t.Helper()
	var flagged []models.WebsiteFile
	if err := database.DB.Where("website_id = ? AND is_index = ?", site.ID, true).
		Order("id ASC").Find(&flagged).Error; err != nil {
		t.Fatalf("query flagged files: %v", err)
	}
	var paths []string
	for _, wf := range flagged {
		paths = append(paths, wf.VirtualPath)
	}
	return paths
}
