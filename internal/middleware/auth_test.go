package middleware

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/filelinkpro/filelink/internal/database"
	"github.com/filelinkpro/filelink/internal/models"
	"github.com/filelinkpro/filelink/internal/services"
)

func setupSessions(t *testing.T) (*Sessions, *models.User) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	if err := database.Initialize(dbPath); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	user := &models.User{Email: "mw@example.com", FullName: "Mid Ware", IsActive: true}
	if err := database.DB.Create(user).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}
	return NewSessions("test-secret", 7, services.NewUserService()), user
}

func echoUser(t *testing.T, got **models.User) http.Handler {
	t.Helper()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*got = UserFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})
}

func TestRequireUser_CookieRoundTrip(t *testing.T) {
	sessions, user := setupSessions(t)

	token, err := sessions.IssueToken(user)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}

	var resolved *models.User
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookie, Value: token})
	rec := httptest.NewRecorder()
	sessions.RequireUser(echoUser(t, &resolved)).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if resolved == nil || resolved.ID != user.ID {
		t.Errorf("resolved user = %+v, want id %d", resolved, user.ID)
	}
}

func TestRequireUser_BearerHeader(t *testing.T) {
	sessions, user := setupSessions(t)

	token, err := sessions.IssueToken(user)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}

	var resolved *models.User
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	sessions.RequireUser(echoUser(t, &resolved)).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK || resolved == nil {
		t.Errorf("status = %d, resolved = %v", rec.Code, resolved)
	}
}

func TestRequireUser_RejectsMissingAndForgedTokens(t *testing.T) {
	sessions, user := setupSessions(t)

	var resolved *models.User
	handler := sessions.RequireUser(echoUser(t, &resolved))

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("no token: status = %d, want 401", rec.Code)
	}

	// A token signed with another secret must not validate.
	forged, err := NewSessions("other-secret", 7, services.NewUserService()).IssueToken(user)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	req = httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookie, Value: forged})
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("forged token: status = %d, want 401", rec.Code)
	}
}

func TestWithUser_AnonymousPassesThrough(t *testing.T) {
	sessions, _ := setupSessions(t)

	var resolved *models.User
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	sessions.WithUser(echoUser(t, &resolved)).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
	if resolved != nil {
		t.Errorf("anonymous request resolved to user %+v", resolved)
	}
}

func TestWithUser_DisabledAccountIgnored(t *testing.T) {
	sessions, user := setupSessions(t)

	token, err := sessions.IssueToken(user)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	if err := database.DB.Model(user).Update("is_active", false).Error; err != nil {
		t.Fatalf("disable: %v", err)
	}

	var resolved *models.User
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookie, Value: token})
	rec := httptest.NewRecorder()
	sessions.WithUser(echoUser(t, &resolved)).ServeHTTP(rec, req)

	if resolved != nil {
		t.Error("disabled account still resolved from a live token")
	}
}
