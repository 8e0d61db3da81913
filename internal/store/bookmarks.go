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

// BookmarkFields are the user-editable columns of a bookmark.
type BookmarkFields struct {
	Title    string
	URL      string
	Category string
}

const bookmarkColumns = `id, owner_id, title, url, category, created_at`

// CreateBookmark inserts a bookmark for ownerID and returns the stored row.
func (db *DB) CreateBookmark(ctx context.Context, ownerID string, f BookmarkFields, createdAt time.Time) (*models.Bookmark, error) {
	res, err := db.conn.ExecContext(ctx, `
		INSERT INTO bookmarks (owner_id, title, url, category, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, ownerID, f.Title, f.URL, f.Category, createdAt.UTC())
	if err != nil {
		return nil, fmt.Errorf("store: create bookmark: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("store: create bookmark: %w", err)
	}
	return db.GetBookmark(ctx, ownerID, id)
}

// UpdateBookmark rewrites title, url and category of a bookmark owned by ownerID.
// A bookmark that does not exist or belongs to someone else yields apperr.ErrNotFound.
func (db *DB) UpdateBookmark(ctx context.Context, ownerID string, id int64, f BookmarkFields) (*models.Bookmark, error) {
	res, err := db.conn.ExecContext(ctx, `
		UPDATE bookmarks SET title = ?, url = ?, category = ?
		WHERE id = ? AND owner_id = ?
	`, f.Title, f.URL, f.Category, id, ownerID)
	if err != nil {
		return nil, fmt.Errorf("store: update bookmark: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, apperr.ErrNotFound
	}
	return db.GetBookmark(ctx, ownerID, id)
}

// DeleteBookmark removes a bookmark owned by ownerID.
func (db *DB) DeleteBookmark(ctx context.Context, ownerID string, id int64) error {
	res, err := db.conn.ExecContext(ctx, `DELETE FROM bookmarks WHERE id = ? AND owner_id = ?`, id, ownerID)
	if err != nil {
		return fmt.Errorf("store: delete bookmark: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

// GetBookmark returns a single bookmark owned by ownerID.
func (db *DB) GetBookmark(ctx context.Context, ownerID string, id int64) (*models.Bookmark, error) {
	row := db.conn.QueryRowContext(ctx, `SELECT `+bookmarkColumns+` FROM bookmarks WHERE id = ? AND owner_id = ?`, id, ownerID)
	b, err := scanBookmark(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: get bookmark: %w", err)
	}
	return b, nil
}

// ListBookmarks returns ownerID's bookmarks newest first. An empty category lists all.
func (db *DB) ListBookmarks(ctx context.Context, ownerID, category string) ([]models.Bookmark, error) {
	query := `SELECT ` + bookmarkColumns + ` FROM bookmarks WHERE owner_id = ?`
	args := []any{ownerID}
	if category != "" {
		query += ` AND category = ?`
		args = append(args, category)
	}
	query += ` ORDER BY created_at DESC, id DESC`

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: list bookmarks: %w", err)
	}
	defer rows.Close()

	out := []models.Bookmark{}
	for rows.Next() {
		b, err := scanBookmark(rows)
		if err != nil {
			return nil, fmt.Errorf("store: list bookmarks: %w", err)
		}
		out = append(out, *b)
	}
	return out, rows.Err()
}

// Categories returns the distinct categories used by ownerID, sorted.
func (db *DB) Categories(ctx context.Context, ownerID string) ([]string, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT DISTINCT category FROM bookmarks WHERE owner_id = ? ORDER BY category
	`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("store: categories: %w", err)
	}
	defer rows.Close()

	out := []string{}
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanBookmark(s scanner) (*models.Bookmark, error) {
	var b models.Bookmark
	if err := s.Scan(&b.ID, &b.OwnerID, &b.Title, &b.URL, &b.Category, &b.CreatedAt); err != nil {
		return nil, err
	}
	return &b, nil
}
