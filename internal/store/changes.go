package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/starford/linkshelf/internal/models"
)

// LatestChangeSeq returns the highest changelog sequence number, or 0 when empty.
func (db *DB) LatestChangeSeq(ctx context.Context) (int64, error) {
	var seq sql.NullInt64
	if err := db.conn.QueryRowContext(ctx, `SELECT MAX(seq) FROM bookmark_changes`).Scan(&seq); err != nil {
		return 0, fmt.Errorf("store: latest change seq: %w", err)
	}
	return seq.Int64, nil
}

// ChangesSince returns up to limit changelog entries with seq > after, in seq order.
func (db *DB) ChangesSince(ctx context.Context, after int64, limit int) ([]models.Change, error) {
	if limit <= 0 {
		limit = 500
	}
	rows, err := db.conn.QueryContext(ctx, `
		SELECT seq, kind, bookmark_id, owner_id, title, url, category, created_at, changed_at
		FROM bookmark_changes
		WHERE seq > ?
		ORDER BY seq
		LIMIT ?
	`, after, limit)
	if err != nil {
		return nil, fmt.Errorf("store: changes since: %w", err)
	}
	defer rows.Close()

	var out []models.Change
	for rows.Next() {
		var (
			c                    models.Change
			kind                 string
			title, url, category sql.NullString
			createdAt            sql.NullTime
		)
		if err := rows.Scan(&c.Seq, &kind, &c.BookmarkID, &c.OwnerID, &title, &url, &category, &createdAt, &c.ChangedAt); err != nil {
			return nil, fmt.Errorf("store: scan change: %w", err)
		}
		c.Kind = models.ChangeKind(kind)
		if c.Kind != models.ChangeDeleted {
			c.Record = &models.Bookmark{
				ID:        c.BookmarkID,
				Title:     title.String,
				URL:       url.String,
				Category:  category.String,
				CreatedAt: createdAt.Time,
				OwnerID:   c.OwnerID,
			}
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// PruneChanges deletes changelog entries older than retention.
func (db *DB) PruneChanges(ctx context.Context, retention time.Duration) (int64, error) {
	modifier := fmt.Sprintf("-%d seconds", int64(retention.Seconds()))
	res, err := db.conn.ExecContext(ctx, `
		DELETE FROM bookmark_changes WHERE changed_at < datetime('now', ?)
	`, modifier)
	if err != nil {
		return 0, fmt.Errorf("store: prune changes: %w", err)
	}
	return res.RowsAffected()
}
