package api

import (
	"time"

	"github.com/starford/linkshelf/internal/models"
	"github.com/starford/linkshelf/internal/present"
)

// BookmarkRequest is the request body for creating or editing a bookmark.
type BookmarkRequest struct {
	Title    string `json:"title" example:"Go" validate:"required"`
	URL      string `json:"url" example:"go.dev" validate:"required"`
	Category string `json:"category,omitempty" example:"Dev"`
}

// BookmarkDTO is a bookmark with its presentation hints.
type BookmarkDTO struct {
	models.Bookmark
	present.Hints
}

func toDTO(b models.Bookmark) BookmarkDTO {
	return BookmarkDTO{Bookmark: b, Hints: present.For(b)}
}

func toDTOs(items []models.Bookmark) []BookmarkDTO {
	out := make([]BookmarkDTO, 0, len(items))
	for _, b := range items {
		out = append(out, toDTO(b))
	}
	return out
}

// BookmarkListResponse wraps a bookmark listing.
type BookmarkListResponse struct {
	Bookmarks []BookmarkDTO `json:"bookmarks" validate:"required"`
	Total     int           `json:"total" example:"42" validate:"required"`
}

// CategoriesResponse lists the caller's categories.
type CategoriesResponse struct {
	Categories []string `json:"categories" validate:"required"`
}

// SessionDTO describes the active session.
type SessionDTO struct {
	ID        string    `json:"id"`
	ExpiresAt time.Time `json:"expires_at"`
}

// MeResponse is returned by GET /api/me.
type MeResponse struct {
	User    *models.User `json:"user"`
	Session SessionDTO   `json:"session"`
}

// HomeResponse is the initial state handed to a freshly loaded view.
type HomeResponse struct {
	User       *models.User  `json:"user"`
	Bookmarks  []BookmarkDTO `json:"bookmarks"`
	Categories []string      `json:"categories"`
}

// LoginRequest is the request body for POST /auth/login.
type LoginRequest struct {
	Email string `json:"email" example:"me@example.com" validate:"required"`
}

// LoginResponse acknowledges a login code request. Link is only set in development.
type LoginResponse struct {
	Email     string    `json:"email"`
	ExpiresAt time.Time `json:"expires_at"`
	Link      string    `json:"link,omitempty"`
}

// LoginPage describes how to sign in.
type LoginPage struct {
	Message  string `json:"message"`
	Request  string `json:"request"`
	Callback string `json:"callback"`
}
