// Package middleware provides the HTTP middleware chain: request IDs,
// identity resolution, and request logging.
package middleware

import (
	"net/http"

	"github.com/ridgeline/intranet/pkg/auth"
	"github.com/ridgeline/intranet/pkg/contextkeys"
	"github.com/ridgeline/intranet/pkg/httputil"
	"github.com/ridgeline/intranet/pkg/observability"
	"github.com/ridgeline/intranet/pkg/wiki"
)

// Identity header names set by the authenticating reverse proxy.
const (
	HeaderEmail   = "X-Auth-Email"
	HeaderName    = "X-Auth-Name"
	HeaderPicture = "X-Auth-Picture"
)

// IdentityMiddleware resolves the proxy-supplied identity headers into a
// persisted user and stores it on the request context.
type IdentityMiddleware struct {
	service *auth.Service
	logger  *observability.Logger
	// optional allows unauthenticated requests through with no user set.
	optional bool
}

// NewIdentityMiddleware creates an identity middleware.
func NewIdentityMiddleware(service *auth.Service, logger *observability.Logger, optional bool) *IdentityMiddleware {
	return &IdentityMiddleware{
		service:  service,
		logger:   logger,
		optional: optional,
	}
}

// Handler wraps an HTTP handler with identity resolution.
func (m *IdentityMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		email := r.Header.Get(HeaderEmail)
		if email == "" {
			if m.optional {
				next.ServeHTTP(w, r)
				return
			}
			httputil.WriteUnauthorized(w, "missing identity")
			return
		}

		user, err := m.service.Resolve(r.Context(), email, r.Header.Get(HeaderName), r.Header.Get(HeaderPicture))
		if err != nil {
			m.logger.WithError(err).Error("failed to resolve identity")
			httputil.WriteInternalError(w, err)
			return
		}

		ctx := contextkeys.WithUser(r.Context(), user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// UserFrom extracts the resolved user from the request, or nil.
func UserFrom(r *http.Request) *wiki.User {
	return contextkeys.UserFrom(r.Context())
}

// RequireAdmin rejects requests whose resolved user is not an admin.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := UserFrom(r)
		if user == nil {
			httputil.WriteUnauthorized(w, "authentication required")
			return
		}
		if !user.IsAdmin() {
			httputil.WriteForbidden(w, "admin role required")
			return
		}
		next.ServeHTTP(w, r)
	})
}
