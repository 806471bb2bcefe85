package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	mw "github.com/filelinkpro/filelink/internal/middleware"
	"github.com/filelinkpro/filelink/internal/models"
	"github.com/filelinkpro/filelink/internal/services"
)

// WebsiteHandler serves website management endpoints (owner-only).
type WebsiteHandler struct {
	websites *services.WebsiteService

	maxUploadSize int64
}

// NewWebsiteHandler creates a new website handler.
func NewWebsiteHandler(websites *services.WebsiteService, maxUploadSize int64) *WebsiteHandler {
	return &WebsiteHandler{websites: websites, maxUploadSize: maxUploadSize}
}

func (h *WebsiteHandler) ownedWebsite(w http.ResponseWriter, r *http.Request) *models.Website {
	user := mw.UserFromContext(r.Context())

	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 32)
	if err != nil {
		respondError(w, "Invalid website ID", http.StatusBadRequest)
		return nil
	}

	website, err := h.websites.GetOwned(user, uint(id))
	if err != nil {
		switch {
		case errors.Is(err, services.ErrWebsiteNotFound):
			respondError(w, "Website not found", http.StatusNotFound)
		case errors.Is(err, services.ErrNotOwner):
			respondError(w, "You do not have permission to manage this website", http.StatusForbidden)
		default:
			respondInternal(w, err)
		}
		return nil
	}
	return website
}

// Create makes a new unpublished website.
func (h *WebsiteHandler) Create(w http.ResponseWriter, r *http.Request) {
	user := mw.UserFromContext(r.Context())

	if err := r.ParseForm(); err != nil {
		respondError(w, "Failed to parse form", http.StatusBadRequest)
		return
	}

	website, err := h.websites.CreateWebsite(
		user,
		r.FormValue("name"),
		r.FormValue("description"),
		r.FormValue("is_public") != "false",
		r.FormValue("password"),
	)
	if err != nil {
		if errors.Is(err, services.ErrNameRequired) {
			respondError(w, "Website name is required", http.StatusBadRequest)
			return
		}
		respondInternal(w, err)
		return
	}
	respondJSON(w, website, http.StatusCreated)
}

// List returns the caller's websites.
func (h *WebsiteHandler) List(w http.ResponseWriter, r *http.Request) {
	user := mw.UserFromContext(r.Context())

	websites, err := h.websites.ListByOwner(user)
	if err != nil {
		respondInternal(w, err)
		return
	}
	respondJSON(w, websites, http.StatusOK)
}

// Upload ingests a batch of files into a website. Files arrive under the
// "files[]" multipart field; browser directory uploads keep their relative
// paths in the filenames.
func (h *WebsiteHandler) Upload(w http.ResponseWriter, r *http.Request) {
	website := h.ownedWebsite(w, r)
	if website == nil {
		return
	}
	user := mw.UserFromContext(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		respondError(w, "Failed to parse form", http.StatusBadRequest)
		return
	}

	uploads := r.MultipartForm.File["files[]"]
	if len(uploads) == 0 {
		uploads = r.MultipartForm.File["files"]
	}

	result, err := h.websites.AddFiles(user, website, uploads)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrNoFiles):
			respondError(w, "No files selected", http.StatusBadRequest)
		case errors.Is(err, services.ErrTooManyFiles):
			respondError(w, "Free plan file limit reached", http.StatusForbidden)
		case errors.Is(err, services.ErrQuotaExceeded):
			respondError(w, "Free plan storage limit reached", http.StatusForbidden)
		default:
			respondInternal(w, err)
		}
		return
	}
	respondJSON(w, result, http.StatusOK)
}

// Publish toggles the published flag.
func (h *WebsiteHandler) Publish(w http.ResponseWriter, r *http.Request) {
	website := h.ownedWebsite(w, r)
	if website == nil {
		return
	}

	if err := h.websites.TogglePublish(website); err != nil {
		switch {
		case errors.Is(err, services.ErrNoFiles):
			respondError(w, "Upload files before publishing", http.StatusBadRequest)
		case errors.Is(err, services.ErrNoIndexFile):
			respondError(w, "Upload an index.html file to publish", http.StatusBadRequest)
		default:
			respondInternal(w, err)
		}
		return
	}
	respondJSON(w, website, http.StatusOK)
}

// FixIndex re-runs entry point detection from scratch.
func (h *WebsiteHandler) FixIndex(w http.ResponseWriter, r *http.Request) {
	website := h.ownedWebsite(w, r)
	if website == nil {
		return
	}

	found, err := h.websites.FixIndex(website)
	if err != nil {
		respondInternal(w, err)
		return
	}
	respondJSON(w, map[string]bool{"index_found": found}, http.StatusOK)
}

// CleanupDuplicates removes duplicate file placements.
func (h *WebsiteHandler) CleanupDuplicates(w http.ResponseWriter, r *http.Request) {
	website := h.ownedWebsite(w, r)
	if website == nil {
		return
	}

	removed, err := h.websites.CleanupDuplicates(website)
	if err != nil {
		respondInternal(w, err)
		return
	}
	respondJSON(w, map[string]int{"duplicates_removed": removed}, http.StatusOK)
}

// Delete removes a website and its file placements.
func (h *WebsiteHandler) Delete(w http.ResponseWriter, r *http.Request) {
	website := h.ownedWebsite(w, r)
	if website == nil {
		return
	}

	if err := h.websites.DeleteWebsite(website); err != nil {
		respondInternal(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
