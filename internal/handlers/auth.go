package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	mw "github.com/filelinkpro/filelink/internal/middleware"
	"github.com/filelinkpro/filelink/internal/services"
)

// AuthHandler serves account registration, login and dashboard endpoints.
type AuthHandler struct {
	users    *services.UserService
	sessions *mw.Sessions
}

// NewAuthHandler creates a new auth handler.
func NewAuthHandler(users *services.UserService, sessions *mw.Sessions) *AuthHandler {
	return &AuthHandler{users: users, sessions: sessions}
}

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Register creates an account and opens a session.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if len(req.Password) < 8 {
		respondError(w, "Password must be at least 8 characters", http.StatusBadRequest)
		return
	}

	user, err := h.users.Register(req.Email, req.Password, req.FullName)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrEmailTaken):
			respondError(w, "Email already registered", http.StatusConflict)
		case errors.Is(err, services.ErrInvalidCredentials):
			respondError(w, "Email, password and full name are required", http.StatusBadRequest)
		default:
			respondInternal(w, err)
		}
		return
	}

	token, err := h.sessions.IssueToken(user)
	if err != nil {
		respondInternal(w, err)
		return
	}
	h.sessions.SetSession(w, token)
	respondJSON(w, user, http.StatusCreated)
}

// Login verifies credentials and opens a session.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	user, err := h.users.Authenticate(req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrInvalidCredentials):
			respondError(w, "Invalid email or password", http.StatusUnauthorized)
		case errors.Is(err, services.ErrAccountDisabled):
			respondError(w, "Account is disabled", http.StatusForbidden)
		default:
			respondInternal(w, err)
		}
		return
	}

	token, err := h.sessions.IssueToken(user)
	if err != nil {
		respondInternal(w, err)
		return
	}
	h.sessions.SetSession(w, token)
	respondJSON(w, user, http.StatusOK)
}

// Logout clears the session cookie.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.sessions.ClearSession(w)
	w.WriteHeader(http.StatusNoContent)
}

// Me returns the authenticated user's profile.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user := mw.UserFromContext(r.Context())
	respondJSON(w, user, http.StatusOK)
}

// Dashboard returns per-account usage counters.
func (h *AuthHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	user := mw.UserFromContext(r.Context())

	stats, err := h.users.Dashboard(user)
	if err != nil {
		respondInternal(w, err)
		return
	}
	respondJSON(w, stats, http.StatusOK)
}

// RecalculateStorage recomputes the caller's storage usage from records.
func (h *AuthHandler) RecalculateStorage(w http.ResponseWriter, r *http.Request) {
	user := mw.UserFromContext(r.Context())

	total, err := h.users.RecalculateStorage(user)
	if err != nil {
		respondInternal(w, err)
		return
	}
	respondJSON(w, map[string]int64{"storage_used": total}, http.StatusOK)
}
