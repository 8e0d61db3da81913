package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/starford/linkshelf/internal/apperr"
	"github.com/starford/linkshelf/internal/auth"
	"github.com/starford/linkshelf/internal/bookmarks"
	"github.com/starford/linkshelf/internal/logger"
)

// ErrorPath is where a failed code exchange lands.
const ErrorPath = "/auth/auth-code-error"

// CookieConfig describes the session cookie.
type CookieConfig struct {
	Name   string
	Secure bool
}

// SessionHandler serves the session gate and the login flow.
type SessionHandler struct {
	auth        *auth.Service
	bookmarks   *bookmarks.Service
	cookie      CookieConfig
	origin      string
	development bool
	log         logger.Logger
}

// Home handles GET /. Without a session it redirects to /login; otherwise it
// returns the initial state: the user, their bookmarks newest first, and
// their categories.
func (h *SessionHandler) Home(w http.ResponseWriter, r *http.Request) {
	u := auth.UserFromContext(r.Context())
	if u == nil {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}
	items, err := h.bookmarks.List(r.Context(), u.ID, "")
	if err != nil {
		writeError(w, h.log, "load bookmarks", err)
		return
	}
	cats, err := h.bookmarks.Categories(r.Context(), u.ID)
	if err != nil {
		writeError(w, h.log, "load categories", err)
		return
	}
	if cats == nil {
		cats = []string{}
	}
	writeJSON(w, http.StatusOK, HomeResponse{User: u, Bookmarks: toDTOs(items), Categories: cats})
}

// Login handles GET /login. A caller who already has a session goes back to /.
func (h *SessionHandler) Login(w http.ResponseWriter, r *http.Request) {
	if auth.UserFromContext(r.Context()) != nil {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	writeJSON(w, http.StatusOK, LoginPage{
		Message:  "sign in with a one-time link",
		Request:  "POST /auth/login {\"email\": \"...\"}",
		Callback: "GET /auth/callback?code=...",
	})
}

// RequestCode handles POST /auth/login.
//
//	@Summary		Issue a one-time login link
//	@Tags			auth
//	@Accept			json
//	@Produce		json
//	@Param			body	body		LoginRequest	true	"Account email"
//	@Success		202		{object}	LoginResponse
//	@Failure		400		{object}	errResponse
//	@Failure		429		{object}	errResponse
//	@Router			/auth/login [post]
func (h *SessionHandler) RequestCode(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 4<<10)
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON"))
		return
	}
	lc, err := h.auth.RequestCode(r.Context(), req.Email)
	if err != nil {
		writeError(w, h.log, "request login code", err)
		return
	}

	link := h.origin + "/auth/callback?code=" + url.QueryEscape(lc.Code)
	// Delivery is the log line; there is no mail transport.
	h.log.Info("login link issued",
		logger.String("email", lc.User.Email),
		logger.String("link", link),
		logger.Duration("valid_for", time.Until(lc.ExpiresAt).Round(time.Second)),
	)

	resp := LoginResponse{Email: lc.User.Email, ExpiresAt: lc.ExpiresAt}
	if h.development {
		resp.Link = link
	}
	writeJSON(w, http.StatusAccepted, resp)
}

// Callback handles GET /auth/callback?code=...&next=/.
func (h *SessionHandler) Callback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	next := safeNext(q.Get("next"))

	token, sess, err := h.auth.Exchange(r.Context(), q.Get("code"))
	if err != nil {
		if !errors.Is(err, apperr.ErrInvalidCode) {
			h.log.Error("code exchange failed", logger.Error(err))
		}
		http.Redirect(w, r, ErrorPath, http.StatusTemporaryRedirect)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     h.cookie.Name,
		Value:    token,
		Path:     "/",
		Expires:  sess.ExpiresAt,
		HttpOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	})

	target := next
	if fwd := r.Header.Get("X-Forwarded-Host"); fwd != "" && !h.development {
		target = "https://" + fwd + next
	}
	http.Redirect(w, r, target, http.StatusTemporaryRedirect)
}

// CodeError handles GET /auth/auth-code-error.
func (h *SessionHandler) CodeError(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusBadRequest, errorBody("login link is invalid or has expired"))
}

// SignOut handles POST /auth/signout.
func (h *SessionHandler) SignOut(w http.ResponseWriter, r *http.Request) {
	if token := tokenFromRequest(r, h.cookie.Name); token != "" {
		if err := h.auth.SignOut(r.Context(), token); err != nil {
			h.log.Warn("sign out failed", logger.Error(err))
		}
	}
	http.SetCookie(w, &http.Cookie{
		Name:     h.cookie.Name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, "/login", http.StatusMovedPermanently)
}

// safeNext keeps redirects on this origin: next must be an absolute local path.
func safeNext(next string) string {
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return "/"
	}
	return next
}
