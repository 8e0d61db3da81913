// Package api implements the linkshelf HTTP surface using chi.
package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/starford/linkshelf/internal/apperr"
	"github.com/starford/linkshelf/internal/auth"
	"github.com/starford/linkshelf/internal/logger"
	"github.com/starford/linkshelf/internal/models"
)

// Authenticator resolves a session token.
type Authenticator interface {
	CurrentUser(ctx context.Context, token string) (*models.User, *models.Session, error)
}

// tokenFromRequest reads the session token from the Authorization header or the cookie.
func tokenFromRequest(r *http.Request, cookieName string) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	if c, err := r.Cookie(cookieName); err == nil {
		return c.Value
	}
	return ""
}

// LoadSession attaches the caller's user and session to the request context
// when the token is valid. It never rejects a request.
func LoadSession(a Authenticator, cookieName string, log logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := tokenFromRequest(r, cookieName)
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}
			u, sess, err := a.CurrentUser(r.Context(), token)
			if err != nil {
				switch {
				case auth.Expired(err):
					log.Debug("session expired", logger.String("path", r.URL.Path))
				case errors.Is(err, apperr.ErrUnauthenticated):
					log.Debug("session rejected", logger.String("path", r.URL.Path), logger.Error(err))
				default:
					log.Warn("session lookup failed", logger.Error(err))
				}
				next.ServeHTTP(w, r)
				return
			}
			ctx := auth.WithSession(auth.WithUser(r.Context(), u), sess)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireUser rejects requests without a session with 401.
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if auth.UserFromContext(r.Context()) == nil {
			writeJSON(w, http.StatusUnauthorized, errorBody("unauthenticated"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

