// Package contextkeys defines the typed context keys shared between
// middleware and handlers, avoiding import cycles between the two.
package contextkeys

import (
	"context"

	"github.com/ridgeline/intranet/pkg/wiki"
)

// Key is the type used for all context keys in this package.
type Key string

const (
	// UserKey holds the authenticated *wiki.User for the request.
	UserKey Key = "user"
)

// WithUser returns a context carrying the authenticated user.
func WithUser(ctx context.Context, user *wiki.User) context.Context {
	return context.WithValue(ctx, UserKey, user)
}

// UserFrom extracts the authenticated user, or nil when unauthenticated.
func UserFrom(ctx context.Context) *wiki.User {
	user, ok := ctx.Value(UserKey).(*wiki.User)
	if !ok {
		return nil
	}
	return user
}
