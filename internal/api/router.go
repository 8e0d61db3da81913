package api

import (
	"context"
	"net/http"
	"net/netip"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/starford/linkshelf/internal/auth"
	"github.com/starford/linkshelf/internal/bookmarks"
	"github.com/starford/linkshelf/internal/logger"
)

// Deps are the collaborators the router wires together.
type Deps struct {
	Auth      *auth.Service
	Bookmarks *bookmarks.Service

	// Events serves GET /api/events; nil disables the route.
	Events http.Handler

	// Ready is the readiness probe, typically the database ping.
	Ready func(context.Context) error

	// TrustedProxies are the peers allowed to set the client address through
	// forwarding headers. Empty means RemoteAddr is always the client.
	TrustedProxies []netip.Prefix

	Cookie      CookieConfig
	Origin      string
	Development bool
	LoginLimit  RateLimitConfig
	Log         logger.Logger
}

// NewRouter creates a chi router with all pages, auth routes and API routes mounted.
func NewRouter(d Deps) chi.Router {
	h := NewHandler(d.Bookmarks, d.Log)
	sh := &SessionHandler{
		auth:        d.Auth,
		bookmarks:   d.Bookmarks,
		cookie:      d.Cookie,
		origin:      d.Origin,
		development: d.Development,
		log:         d.Log,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(TrustedRealIP(d.TrustedProxies))
	r.Use(middleware.Recoverer)
	r.Use(RequestLog(d.Log))

	r.Get("/health/live", live(time.Now()))
	r.Get("/health/ready", ready(d.Ready))

	r.Group(func(r chi.Router) {
		r.Use(LoadSession(d.Auth, d.Cookie.Name, d.Log))

		// Session gate.
		r.Get("/", sh.Home)
		r.Get("/login", sh.Login)

		// Login flow.
		r.With(RateLimit(d.LoginLimit)).Post("/auth/login", sh.RequestCode)
		r.Get("/auth/callback", sh.Callback)
		r.Get(ErrorPath, sh.CodeError)
		r.Post("/auth/signout", sh.SignOut)

		r.Route("/api", func(r chi.Router) {
			r.Use(RequireUser)

			r.Get("/me", h.Me)
			r.Get("/bookmarks", h.ListBookmarks)
			r.Post("/bookmarks", h.CreateBookmark)
			r.Put("/bookmarks/{id}", h.UpdateBookmark)
			r.Delete("/bookmarks/{id}", h.DeleteBookmark)
			r.Get("/categories", h.Categories)

			if d.Events != nil {
				r.Get("/events", d.Events.ServeHTTP)
			}
		})
	})

	return r
}
