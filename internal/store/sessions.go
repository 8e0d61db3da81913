package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/starford/linkshelf/internal/apperr"
	"github.com/starford/linkshelf/internal/models"
)

// CreateSession records an active session.
func (db *DB) CreateSession(ctx context.Context, s models.Session) error {
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO sessions (id, user_id, expires_at) VALUES (?, ?, ?)
	`, s.ID, s.UserID, s.ExpiresAt.UTC())
	if err != nil {
		return fmt.Errorf("store: create session: %w", err)
	}
	return nil
}

// Session returns the session with id. Missing sessions yield apperr.ErrNotFound;
// expiry is left to the caller.
func (db *DB) Session(ctx context.Context, id string) (*models.Session, error) {
	var s models.Session
	err := db.conn.QueryRowContext(ctx, `
		SELECT id, user_id, expires_at FROM sessions WHERE id = ?
	`, id).Scan(&s.ID, &s.UserID, &s.ExpiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: get session: %w", err)
	}
	return &s, nil
}

// DeleteSession revokes a session. Deleting an unknown session is not an error.
func (db *DB) DeleteSession(ctx context.Context, id string) error {
	if _, err := db.conn.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("store: delete session: %w", err)
	}
	return nil
}

// PruneSessions deletes sessions that expired before now.
func (db *DB) PruneSessions(ctx context.Context, now time.Time) (int64, error) {
	res, err := db.conn.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at < ?`, now.UTC())
	if err != nil {
		return 0, fmt.Errorf("store: prune sessions: %w", err)
	}
	return res.RowsAffected()
}
