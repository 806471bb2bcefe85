package models

import (
	"path/filepath"
	"strings"
	"time"
)

// File represents the bytes of one uploaded file on storage.
type File struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`

	OriginalName string `gorm:"not null" json:"original_name"` // Original uploaded filename
	StoredName   string `gorm:"uniqueIndex;not null" json:"-"` // Opaque storage key
	FileSize     int64  `gorm:"not null" json:"file_size"`     // Size in bytes
	MimeType     string `json:"mime_type"`                     // MIME type hint from upload
	UploadIP     string `json:"-"`                             // Uploader address (optional)
}

// mimeExtensions maps common MIME types to an extension for files whose
// original name carries none.
var mimeExtensions = map[string]string{
	"image/png":              "png",
	"image/jpeg":             "jpg",
	"image/jpg":              "jpg",
	"image/gif":              "gif",
	"image/bmp":              "bmp",
	"image/svg+xml":          "svg",
	"image/webp":             "webp",
	"text/html":              "html",
	"text/css":               "css",
	"text/javascript":        "js",
	"application/javascript": "js",
	"application/json":       "json",
	"application/xml":        "xml",
	"text/xml":               "xml",
	"text/plain":             "txt",
	"application/pdf":        "pdf",
	"audio/mpeg":             "mp3",
	"audio/wav":              "wav",
	"audio/ogg":              "ogg",
	"audio/mp4":              "m4a",
	"video/mp4":              "mp4",
	"video/webm":             "webm",
	"video/ogg":              "ogg",
	"video/avi":              "avi",
	"video/quicktime":        "mov",
}

// Extension returns the lowercase file extension without the dot, falling
// back to MIME type detection when the filename has none.
func (f *File) Extension() string {
	if ext := filepath.Ext(f.OriginalName); ext != "" {
		return strings.ToLower(strings.TrimPrefix(ext, "."))
	}
	if f.MimeType != "" {
		return mimeExtensions[strings.ToLower(f.MimeType)]
	}
	return ""
}

var previewTypes = map[string]string{
	"html": "html", "htm": "html",
	"css": "text", "js": "text", "json": "text", "xml": "text", "txt": "text",
	"md": "text", "py": "text", "java": "text", "cpp": "text", "c": "text",
	"h": "text", "cs": "text", "php": "text", "rb": "text", "go": "text", "rs": "text",
	"jpg": "image", "jpeg": "image", "png": "image", "gif": "image",
	"bmp": "image", "svg": "image", "webp": "image",
	"pdf": "pdf",
	"mp3": "audio", "wav": "audio", "ogg": "audio", "m4a": "audio",
	"mp4": "video", "webm": "video", "avi": "video", "mov": "video",
}

// IsPreviewable reports whether the file can be rendered inline on the
// share page instead of forcing a download.
func (f *File) IsPreviewable() bool {
	_, ok := previewTypes[f.Extension()]
	return ok
}

// PreviewType classifies the file for the share page preview pane.
func (f *File) PreviewType() string {
	if t, ok := previewTypes[f.Extension()]; ok {
		return t
	}
	return "unsupported"
}
