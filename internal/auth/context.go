package auth

import (
	"context"

	"github.com/starford/linkshelf/internal/models"
)

type (
	userCtxKey    struct{}
	sessionCtxKey struct{}
)

// WithUser returns a context carrying the authenticated user.
func WithUser(ctx context.Context, u *models.User) context.Context {
	return context.WithValue(ctx, userCtxKey{}, u)
}

// UserFromContext returns the authenticated user, or nil.
func UserFromContext(ctx context.Context) *models.User {
	u, _ := ctx.Value(userCtxKey{}).(*models.User)
	return u
}

// WithSession returns a context carrying the session the user authenticated with.
func WithSession(ctx context.Context, s *models.Session) context.Context {
	return context.WithValue(ctx, sessionCtxKey{}, s)
}

// SessionFromContext returns the caller's session, or nil.
func SessionFromContext(ctx context.Context) *models.Session {
	s, _ := ctx.Value(sessionCtxKey{}).(*models.Session)
	return s
}
