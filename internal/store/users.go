package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/starford/linkshelf/internal/apperr"
	"github.com/starford/linkshelf/internal/models"
)

// EnsureUser returns the user registered under email, creating it on first use.
// Emails are compared case-insensitively.
func (db *DB) EnsureUser(ctx context.Context, email string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, apperr.ErrInvalidInput
	}
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO users (id, email, created_at) VALUES (?, ?, ?)
		ON CONFLICT(email) DO NOTHING
	`, uuid.NewString(), email, time.Now().UTC())
	if err != nil {
		return nil, fmt.Errorf("store: ensure user: %w", err)
	}
	return db.UserByEmail(ctx, email)
}

// UserByEmail looks a user up by email.
func (db *DB) UserByEmail(ctx context.Context, email string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	row := db.conn.QueryRowContext(ctx, `SELECT id, email, created_at FROM users WHERE email = ?`, email)
	return scanUser(row)
}

// User looks a user up by id.
func (db *DB) User(ctx context.Context, id string) (*models.User, error) {
	row := db.conn.QueryRowContext(ctx, `SELECT id, email, created_at FROM users WHERE id = ?`, id)
	return scanUser(row)
}

func scanUser(row *sql.Row) (*models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.Email, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: get user: %w", err)
	}
	return &u, nil
}
