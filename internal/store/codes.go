package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/starford/linkshelf/internal/apperr"
)

// CreateLoginCode stores the hash of a single-use login code.
func (db *DB) CreateLoginCode(ctx context.Context, codeHash, userID string, expiresAt time.Time) error {
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO login_codes (code_hash, user_id, expires_at) VALUES (?, ?, ?)
	`, codeHash, userID, expiresAt.UTC())
	if err != nil {
		return fmt.Errorf("store: create login code: %w", err)
	}
	return nil
}

// ConsumeLoginCode marks the code as used and returns its user id.
// Unknown, already used, and expired codes all yield apperr.ErrInvalidCode.
// A single statement claims the code, so concurrent exchanges of the same code
// see exactly one winner.
func (db *DB) ConsumeLoginCode(ctx context.Context, codeHash string, now time.Time) (string, error) {
	var userID string
	err := db.conn.QueryRowContext(ctx, `
		UPDATE login_codes SET used_at = ?
		WHERE code_hash = ? AND used_at IS NULL AND expires_at > ?
		RETURNING user_id
	`, now.UTC(), codeHash, now.UTC()).Scan(&userID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", apperr.ErrInvalidCode
	}
	if err != nil {
		return "", fmt.Errorf("store: consume login code: %w", err)
	}
	return userID, nil
}

// PruneLoginCodes deletes codes that expired before now.
func (db *DB) PruneLoginCodes(ctx context.Context, now time.Time) (int64, error) {
	res, err := db.conn.ExecContext(ctx, `DELETE FROM login_codes WHERE expires_at < ?`, now.UTC())
	if err != nil {
		return 0, fmt.Errorf("store: prune login codes: %w", err)
	}
	return res.RowsAffected()
}
