package identity

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/carelane/carelane/internal/domain"
)

type userRepo struct {
	users map[string]*domain.User
}

func (r *userRepo) GetUser(_ context.Context, userID string) (*domain.User, error) {
	return r.users[userID], nil
}

func (r *userRepo) UpsertUser(_ context.Context, user *domain.User) error {
	if r.users == nil {
		r.users = make(map[string]*domain.User)
	}
	r.users[user.UserID] = user
	return nil
}

func (r *userRepo) UpdateLastSeen(context.Context, string, time.Time) error { return nil }
func (r *userRepo) SaveCallRecord(context.Context, *domain.CallRecord) error {
	return nil
}
func (r *userRepo) ListCallRecords(context.Context, string, int) ([]*domain.CallRecord, error) {
	return nil, nil
}
func (r *userRepo) Ping(context.Context) error { return nil }
func (r *userRepo) Close() error               { return nil }

func TestMiddlewareCreatesIdentity(t *testing.T) {
	repo := &userRepo{}
	var seenUserID, seenUsername string
	handler := Middleware(repo, true)(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		seenUserID = UserIDFromContext(r.Context())
		seenUsername = UsernameFromContext(r.Context())
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/profile", nil))

	if !isValidAnonID(seenUserID) {
		t.Errorf("Expected valid anonymous id in context, got %q", seenUserID)
	}
	if seenUsername == "" {
		t.Error("Expected username in context")
	}
	if repo.users[seenUserID] == nil {
		t.Error("Expected user persisted on first visit")
	}

	cookies := w.Result().Cookies()
	var found bool
	for _, c := range cookies {
		if c.Name == AnonCookieName && c.Value == seenUserID {
			found = true
			if !c.HttpOnly {
				t.Error("Expected HttpOnly identity cookie")
			}
		}
	}
	if !found {
		t.Error("Expected identity cookie set")
	}
}

func TestMiddlewareReusesCookie(t *testing.T) {
	repo := &userRepo{}
	var seenUserID string
	handler := Middleware(repo, true)(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		seenUserID = UserIDFromContext(r.Context())
	}))

	const existing = "anon_0123456789abcdef0123456789abcdef"
	req := httptest.NewRequest(http.MethodGet, "/api/profile", nil)
	req.AddCookie(&http.Cookie{Name: AnonCookieName, Value: existing})
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if seenUserID != existing {
		t.Errorf("Expected existing identity reused, got %q", seenUserID)
	}
}

func TestMiddlewareRejectsForgedCookie(t *testing.T) {
	repo := &userRepo{}
	var seenUserID string
	handler := Middleware(repo, true)(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		seenUserID = UserIDFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/profile", nil)
	req.AddCookie(&http.Cookie{Name: AnonCookieName, Value: "anon_../../etc/passwd"})
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if seenUserID == "anon_../../etc/passwd" {
		t.Error("Expected malformed cookie replaced with a fresh identity")
	}
	if !isValidAnonID(seenUserID) {
		t.Errorf("Expected fresh valid identity, got %q", seenUserID)
	}
}

func TestMiddlewareExtractsSessionID(t *testing.T) {
	repo := &userRepo{}
	var seenSessionID string
	handler := Middleware(repo, true)(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		seenSessionID = SessionIDFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/call/initiate", nil)
	req.Header.Set(SessionHeaderName, "tab-42")
	handler.ServeHTTP(httptest.NewRecorder(), req)
	if seenSessionID != "tab-42" {
		t.Errorf("Expected header session id in context, got %q", seenSessionID)
	}

	// Query parameter works for surfaces that cannot set headers.
	req = httptest.NewRequest(http.MethodGet, "/ws?session_id=tab-7", nil)
	handler.ServeHTTP(httptest.NewRecorder(), req)
	if seenSessionID != "tab-7" {
		t.Errorf("Expected query session id in context, got %q", seenSessionID)
	}

	// No hint at all falls back to the shared default.
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/profile", nil))
	if seenSessionID != DefaultSessionIDValue {
		t.Errorf("Expected default session id, got %q", seenSessionID)
	}
}

func TestDeriveUsername(t *testing.T) {
	if got := deriveUsername("anon_0123456789abcdef0123456789abcdef"); got != "patient-89abcdef" {
		t.Errorf("Unexpected derived username: %q", got)
	}
	if got := deriveUsername("short"); got != "patient" {
		t.Errorf("Expected plain fallback for short ids, got %q", got)
	}
}

func TestSanitizeSessionID(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", DefaultSessionIDValue},
		{"tab-1", "tab-1"},
		{"  tab-1  ", "tab-1"},
		{"bad session!", DefaultSessionIDValue},
	}
	for _, tt := range tests {
		if got := sanitizeSessionID(tt.in); got != tt.want {
			t.Errorf("sanitizeSessionID(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
