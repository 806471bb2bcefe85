package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/filelinkpro/filelink/internal/database"
	mw "github.com/filelinkpro/filelink/internal/middleware"
	"github.com/filelinkpro/filelink/internal/models"
	"github.com/filelinkpro/filelink/internal/services"
)

// APIHandler serves the JSON API.
type APIHandler struct {
	files *services.FileService
	links *services.LinkService
	users *services.UserService

	maxUploadSize int64
}

// NewAPIHandler creates a new API handler.
func NewAPIHandler(files *services.FileService, links *services.LinkService, users *services.UserService, maxUploadSize int64) *APIHandler {
	return &APIHandler{
		files:         files,
		links:         links,
		users:         users,
		maxUploadSize: maxUploadSize,
	}
}

// ErrorResponse represents an error response body.
type ErrorResponse struct {
	Error string `json:"error"`
}

func respondJSON(w http.ResponseWriter, data interface{}, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, message string, status int) {
	respondJSON(w, ErrorResponse{Error: message}, status)
}

// respondInternal logs the detailed error and returns a generic body.
func respondInternal(w http.ResponseWriter, err error) {
	log.Printf("internal error: %v", err)
	respondError(w, "Internal server error", http.StatusInternalServerError)
}

// UploadResponse is returned after a successful upload.
type UploadResponse struct {
	File     *models.File `json:"file"`
	Slug     string       `json:"slug"`
	ShareURL string       `json:"share_url"`
}

// Health responds to liveness checks.
func (h *APIHandler) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, map[string]string{"status": "ok"}, http.StatusOK)
}

// Stats reports platform-wide counters.
func (h *APIHandler) Stats(w http.ResponseWriter, r *http.Request) {
	var files, links, websites int64
	if err := database.DB.Model(&models.File{}).Count(&files).Error; err != nil {
		respondInternal(w, err)
		return
	}
	if err := database.DB.Model(&models.Link{}).Count(&links).Error; err != nil {
		respondInternal(w, err)
		return
	}
	if err := database.DB.Model(&models.Website{}).Where("is_published = ?", true).Count(&websites).Error; err != nil {
		respondInternal(w, err)
		return
	}
	respondJSON(w, map[string]int64{
		"files":              files,
		"links":              links,
		"published_websites": websites,
	}, http.StatusOK)
}

// Upload accepts a multipart upload and returns the generated share link.
// Optional form fields: password, expiry_days.
func (h *APIHandler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		respondError(w, "Failed to parse form", http.StatusBadRequest)
		return
	}

	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		respondError(w, "File is required", http.StatusBadRequest)
		return
	}
	defer file.Close()

	password := r.FormValue("password")
	expiryDays := 0
	if v := r.FormValue("expiry_days"); v != "" {
		d, err := parsePositiveInt(v)
		if err != nil {
			respondError(w, "Invalid expiry_days", http.StatusBadRequest)
			return
		}
		expiryDays = d
	}

	user := mw.UserFromContext(r.Context())
	saved, link, err := h.files.SaveShared(fileHeader, user, clientIP(r), password, expiryDays)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrFileTooLarge):
			respondError(w, "File exceeds the size limit", http.StatusRequestEntityTooLarge)
		case errors.Is(err, services.ErrQuotaExceeded):
			respondError(w, "Storage quota exceeded", http.StatusForbidden)
		default:
			respondInternal(w, err)
		}
		return
	}

	respondJSON(w, UploadResponse{
		File:     saved,
		Slug:     link.Slug,
		ShareURL: link.FullURL(baseURL(r)),
	}, http.StatusCreated)
}

// LinkInfo returns metadata for a link by slug.
func (h *APIHandler) LinkInfo(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")

	link, err := h.links.GetBySlug(slug)
	if err != nil {
		if errors.Is(err, services.ErrLinkNotFound) {
			respondError(w, "Link not found", http.StatusNotFound)
			return
		}
		respondInternal(w, err)
		return
	}

	respondJSON(w, map[string]interface{}{
		"slug":          link.Slug,
		"original_name": link.File.OriginalName,
		"file_size":     link.File.FileSize,
		"mime_type":     link.File.MimeType,
		"created_at":    link.CreatedAt,
		"expires_at":    link.ExpiresAt,
		"has_password":  link.HasPassword(),
		"view_count":    link.ViewCount,
	}, http.StatusOK)
}

// DeleteLink removes a link. The caller must own the underlying file or be
// an admin.
func (h *APIHandler) DeleteLink(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	user := mw.UserFromContext(r.Context())

	link, err := h.links.GetBySlug(slug)
	if err != nil {
		if errors.Is(err, services.ErrLinkNotFound) {
			respondError(w, "Link not found", http.StatusNotFound)
			return
		}
		respondInternal(w, err)
		return
	}

	if _, err := h.files.GetOwnedFile(user, link.FileID); err != nil {
		if errors.Is(err, services.ErrFileNotFound) {
			respondError(w, "Link not found", http.StatusNotFound)
			return
		}
		respondInternal(w, err)
		return
	}

	if err := h.links.DeleteLink(link); err != nil {
		respondInternal(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AnalyticsSummary summarizes access logs for a link.
type AnalyticsSummary struct {
	Slug         string     `json:"slug"`
	ViewCount    int        `json:"view_count"`
	LastAccessed *time.Time `json:"last_accessed,omitempty"`
	RecentAccess []struct {
		CreatedAt time.Time `json:"created_at"`
		IPAddress string    `json:"ip_address"`
		UserAgent string    `json:"user_agent"`
		Referrer  string    `json:"referrer"`
	} `json:"recent_access"`
}

// LinkAnalytics returns the view counter plus recent access log rows.
func (h *APIHandler) LinkAnalytics(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	user := mw.UserFromContext(r.Context())

	link, err := h.links.GetBySlug(slug)
	if err != nil {
		if errors.Is(err, services.ErrLinkNotFound) {
			respondError(w, "Link not found", http.StatusNotFound)
			return
		}
		respondInternal(w, err)
		return
	}

	if _, err := h.files.GetOwnedFile(user, link.FileID); err != nil {
		if errors.Is(err, services.ErrFileNotFound) {
			respondError(w, "Link not found", http.StatusNotFound)
			return
		}
		respondInternal(w, err)
		return
	}

	var logs []models.AccessLog
	if err := database.DB.Where("link_id = ?", link.ID).
		Order("created_at DESC").
		Limit(50).
		Find(&logs).Error; err != nil {
		respondInternal(w, err)
		return
	}

	summary := AnalyticsSummary{
		Slug:         link.Slug,
		ViewCount:    link.ViewCount,
		LastAccessed: link.LastAccessed,
	}
	for _, entry := range logs {
		summary.RecentAccess = append(summary.RecentAccess, struct {
			CreatedAt time.Time `json:"created_at"`
			IPAddress string    `json:"ip_address"`
			UserAgent string    `json:"user_agent"`
			Referrer  string    `json:"referrer"`
		}{entry.CreatedAt, entry.IPAddress, entry.UserAgent, entry.Referrer})
	}

	respondJSON(w, summary, http.StatusOK)
}

// Helper functions

func parsePositiveInt(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, errors.New("value must not be negative")
	}
	return n, nil
}

func clientIP(r *http.Request) string {
	return r.RemoteAddr
}

func baseURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
		scheme = "https"
	}
	return scheme + "://" + r.Host
}
