// Package models defines the domain types for linkshelf.
package models

import "time"

// DefaultCategory is stored when a bookmark is saved without a category.
const DefaultCategory = "Uncategorized"

// Bookmark is a saved link owned by exactly one user.
type Bookmark struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	URL       string    `json:"url"`
	Category  string    `json:"category"`
	CreatedAt time.Time `json:"created_at"`
	OwnerID   string    `json:"user_id"`
}

// User is an account identified by email.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

// Session is an authenticated login. ID doubles as the token's jti.
type Session struct {
	ID        string
	UserID    string
	ExpiresAt time.Time
}
