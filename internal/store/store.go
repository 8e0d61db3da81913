package store

import (
	"context"
	"time"

	"github.com/starford/linkshelf/internal/models"
)

// BookmarkStore defines the owner-scoped bookmark operations.
// Consumers should depend on this interface rather than the concrete *DB type
// to facilitate testing with mocks.
type BookmarkStore interface {
	CreateBookmark(ctx context.Context, ownerID string, f BookmarkFields, createdAt time.Time) (*models.Bookmark, error)
	UpdateBookmark(ctx context.Context, ownerID string, id int64, f BookmarkFields) (*models.Bookmark, error)
	DeleteBookmark(ctx context.Context, ownerID string, id int64) error
	GetBookmark(ctx context.Context, ownerID string, id int64) (*models.Bookmark, error)
	ListBookmarks(ctx context.Context, ownerID, category string) ([]models.Bookmark, error)
	Categories(ctx context.Context, ownerID string) ([]string, error)
}

// Verify *DB satisfies BookmarkStore at compile time.
var _ BookmarkStore = (*DB)(nil)
