package services

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"path"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"gorm.io/gorm"

	"github.com/filelinkpro/filelink/internal/database"
	"github.com/filelinkpro/filelink/internal/models"
	"github.com/filelinkpro/filelink/internal/storage"
)

var ErrAssetNotFound = errors.New("asset not found")

// SiteRenderer locates website assets and renders entry-point markup.
type SiteRenderer struct {
	store storage.Storage
}

// NewSiteRenderer creates a new site renderer.
func NewSiteRenderer(store storage.Storage) *SiteRenderer {
	return &SiteRenderer{store: store}
}

// EntryPoint returns the website file designated as index. When no flag is
// set, the first index.html/index.htm is marked on the fly so later requests
// skip the scan. ErrAssetNotFound means the site has no usable entry point
// and the caller should fall back to a listing.
func (r *SiteRenderer) EntryPoint(website *models.Website) (*models.WebsiteFile, error) {
	var wf models.WebsiteFile
	err := database.DB.Preload("File").
		Where("website_id = ? AND is_index = ?", website.ID, true).
		Order("id ASC").
		First(&wf).Error
	if err == nil {
		return &wf, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	// No marked index; auto-detect among index.html/index.htm.
	err = database.DB.Preload("File").
		Joins("JOIN files ON files.id = website_files.file_id").
		Where("website_files.website_id = ?", website.ID).
		Where("LOWER(files.original_name) IN ?", []string{"index.html", "index.htm"}).
		Order("website_files.id ASC").
		First(&wf).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAssetNotFound
		}
		return nil, err
	}

	if err := database.DB.Model(&wf).Update("is_index", true).Error; err != nil {
		return nil, err
	}
	return &wf, nil
}

// ResolveAsset maps a site-relative path to its website file. Exact match on
// the stored virtual path wins; a bare-filename match keeps legacy links that
// reference only a filename working.
func (r *SiteRenderer) ResolveAsset(website *models.Website, virtualPath string) (*models.WebsiteFile, error) {
	normalized := strings.ReplaceAll(virtualPath, "\\", "/")

	var wf models.WebsiteFile
	err := database.DB.Preload("File").
		Where("website_id = ? AND virtual_path = ?", website.ID, normalized).
		First(&wf).Error
	if err == nil {
		return &wf, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	err = database.DB.Preload("File").
		Joins("JOIN files ON files.id = website_files.file_id").
		Where("website_files.website_id = ?", website.ID).
		Where("files.original_name = ?", path.Base(normalized)).
		First(&wf).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAssetNotFound
		}
		return nil, err
	}
	return &wf, nil
}

// AssetMimeType picks the content type for serving an asset: the stored hint
// first, then the extension, then octet-stream.
func AssetMimeType(file *models.File) string {
	if file.MimeType != "" && file.MimeType != "application/octet-stream" {
		return file.MimeType
	}
	if t := mime.TypeByExtension(path.Ext(file.OriginalName)); t != "" {
		return t
	}
	if file.MimeType != "" {
		return file.MimeType
	}
	return "application/octet-stream"
}

// OpenAsset returns a reader over an asset's bytes.
func (r *SiteRenderer) OpenAsset(wf *models.WebsiteFile) (io.ReadCloser, error) {
	rc, err := r.store.Open(wf.File.StoredName)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrAssetNotFound
		}
		return nil, err
	}
	return rc, nil
}

// MountPoint computes the URL prefix under which the site's sub-assets
// resolve, derived from the entry file's virtual directory.
func MountPoint(slug string, entry *models.WebsiteFile) string {
	base := "/site/" + slug + "/assets/"
	if dir := entry.VirtualDir(); dir != "" {
		base += dir + "/"
	}
	return base
}

// decodeText interprets raw bytes as UTF-8, falling back to Latin-1 when the
// bytes are not valid UTF-8. Latin-1 maps every byte to a codepoint, so the
// decode never fails outright.
func decodeText(raw []byte) string {
	if utf8.Valid(raw) {
		return string(raw)
	}
	decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(raw)
	if err != nil {
		return string(raw)
	}
	return string(decoded)
}

// injectBaseTag splices a <base> tag immediately after the opening head tag.
// The search is case-insensitive; everything not inserted keeps its original
// bytes and casing. With no head tag, a minimal head wrapper is prepended and
// the rest of the document is left untouched.
func injectBaseTag(content, baseURL string) string {
	baseTag := fmt.Sprintf("<base href=%q>", baseURL)

	lower := strings.ToLower(content)
	headPos := strings.Index(lower, "<head")
	if headPos == -1 {
		return "<head>" + baseTag + "</head>" + content
	}

	gtPos := strings.Index(content[headPos:], ">")
	if gtPos == -1 {
		return baseTag + content
	}
	splice := headPos + gtPos + 1
	return content[:splice] + baseTag + content[splice:]
}

// RenderEntryPoint reads the entry file and returns its markup with the base
// tag spliced in so every relative URL resolves through the asset endpoint.
// Branding for non-premium owners is appended by the watermark injector.
func (r *SiteRenderer) RenderEntryPoint(website *models.Website, entry *models.WebsiteFile) (string, error) {
	rc, err := r.OpenAsset(entry)
	if err != nil {
		return "", err
	}
	defer rc.Close()

	raw, err := io.ReadAll(rc)
	if err != nil {
		return "", fmt.Errorf("failed to read entry file: %w", err)
	}

	content := decodeText(raw)
	content = injectBaseTag(content, MountPoint(website.Slug, entry))
	content = InjectWatermark(content, &website.User)
	return content, nil
}
