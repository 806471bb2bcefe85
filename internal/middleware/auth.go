package middleware

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/filelinkpro/filelink/internal/models"
	"github.com/filelinkpro/filelink/internal/services"
)

// SessionCookie is the name of the session token cookie.
const SessionCookie = "filelink_session"

type contextKey string

const userContextKey contextKey = "user"

// Sessions issues and validates JWT session tokens and resolves them to
// users on each request, replacing ambient session state with an explicit
// request-scoped user reference.
type Sessions struct {
	secret   []byte
	lifetime time.Duration
	users    *services.UserService
}

// NewSessions creates a session manager.
func NewSessions(secret string, lifetimeDays int, users *services.UserService) *Sessions {
	return &Sessions{
		secret:   []byte(secret),
		lifetime: time.Duration(lifetimeDays) * 24 * time.Hour,
		users:    users,
	}
}

// IssueToken signs a session token for a user.
func (s *Sessions) IssueToken(user *models.User) (string, error) {
	claims := jwt.RegisteredClaims{
		Subject:   jwtSubject(user.ID),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(s.lifetime)),
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		Issuer:    "filelink",
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// SetSession writes the session cookie on a response.
func (s *Sessions) SetSession(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int(s.lifetime.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearSession expires the session cookie.
func (s *Sessions) ClearSession(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
}

// resolve parses the token from cookie or Authorization header and loads the
// user. Returns nil on any failure; callers decide whether that is fatal.
func (s *Sessions) resolve(r *http.Request) *models.User {
	var raw string
	if c, err := r.Cookie(SessionCookie); err == nil {
		raw = c.Value
	}
	if raw == "" {
		if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
			raw = strings.TrimPrefix(h, "Bearer ")
		}
	}
	if raw == "" {
		return nil
	}

	token, err := jwt.ParseWithClaims(raw, &jwt.RegisteredClaims{}, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return nil
	}

	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok {
		return nil
	}
	id := parseSubject(claims.Subject)
	if id == 0 {
		return nil
	}

	user, err := s.users.GetByID(id)
	if err != nil {
		return nil
	}
	return user
}

// WithUser attaches the authenticated user to the request context when a
// valid session is present; requests without one pass through untouched.
func (s *Sessions) WithUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if user := s.resolve(r); user != nil {
			r = r.WithContext(context.WithValue(r.Context(), userContextKey, user))
		}
		next.ServeHTTP(w, r)
	})
}

// RequireUser rejects requests without a valid session.
func (s *Sessions) RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := s.resolve(r)
		if user == nil {
			http.Error(w, "Authentication required", http.StatusUnauthorized)
			return
		}
		ctx := context.WithValue(r.Context(), userContextKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// UserFromContext returns the authenticated user, or nil when anonymous.
func UserFromContext(ctx context.Context) *models.User {
	user, _ := ctx.Value(userContextKey).(*models.User)
	return user
}

func jwtSubject(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}

func parseSubject(sub string) uint {
	id, err := strconv.ParseUint(sub, 10, 32)
	if err != nil {
		return 0
	}
	return uint(id)
}
