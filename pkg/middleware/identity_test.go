package middleware

import (
	"database/sql"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ridgeline/intranet/pkg/auth"
	"github.com/ridgeline/intranet/pkg/contextkeys"
	"github.com/ridgeline/intranet/pkg/observability"
	"github.com/ridgeline/intranet/pkg/wiki"
)

func setupTestAuth(t *testing.T, adminEmails ...string) *auth.Service {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`
		CREATE TABLE users (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			email TEXT NOT NULL UNIQUE,
			name TEXT NOT NULL,
			image TEXT NOT NULL DEFAULT '',
			role TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL
		);
	`)
	if err != nil {
		t.Fatalf("Failed to create test schema: %v", err)
	}

	logger := observability.NewLogger(observability.ErrorLevel, io.Discard)
	return auth.NewService(db, adminEmails, logger)
}

func captureUser(captured **wiki.User) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*captured = UserFrom(r)
		w.WriteHeader(http.StatusOK)
	})
}

func TestIdentityMiddlewareResolvesUser(t *testing.T) {
	svc := setupTestAuth(t, "admin@example.com")
	logger := observability.NewLogger(observability.ErrorLevel, io.Discard)
	m := NewIdentityMiddleware(svc, logger, false)

	var got *wiki.User
	handler := m.Handler(captureUser(&got))

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set(HeaderEmail, "Admin@Example.com")
	req.Header.Set(HeaderName, "Site Admin")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, got)
	assert.Equal(t, "admin@example.com", got.Email)
	assert.Equal(t, wiki.RoleAdmin, got.Role)
}

func TestIdentityMiddlewareMissingEmail(t *testing.T) {
	svc := setupTestAuth(t)
	logger := observability.NewLogger(observability.ErrorLevel, io.Discard)

	var got *wiki.User
	handler := NewIdentityMiddleware(svc, logger, false).Handler(captureUser(&got))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Optional mode lets the request through with no user set.
	handler = NewIdentityMiddleware(svc, logger, true).Handler(captureUser(&got))
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, got)
}

func TestRequireAdmin(t *testing.T) {
	var got *wiki.User
	handler := RequireAdmin(captureUser(&got))

	// No user at all.
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Staff user.
	req := httptest.NewRequest("GET", "/", nil)
	req = req.WithContext(contextkeys.WithUser(req.Context(), &wiki.User{ID: 1, Role: wiki.RoleStaff}))
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// Admin user.
	req = httptest.NewRequest("GET", "/", nil)
	req = req.WithContext(contextkeys.WithUser(req.Context(), &wiki.User{ID: 1, Role: wiki.RoleAdmin}))
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequestID(t *testing.T) {
	var captured string
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = observability.GetRequestID(r.Context())
	}))

	// Generated when absent.
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))
	assert.NotEmpty(t, captured)
	assert.Equal(t, captured, rec.Header().Get("X-Request-ID"))

	// Caller-supplied ids are kept.
	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("X-Request-ID", "req-123")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, "req-123", captured)
	assert.Equal(t, "req-123", rec.Header().Get("X-Request-ID"))
}
