// Package session tracks active login sessions so that signed tokens can be revoked.
package session

import (
	"context"

	"github.com/starford/linkshelf/internal/models"
	"github.com/starford/linkshelf/internal/store"
)

// Store is the registry of active sessions.
//
// Get returns apperr.ErrNotFound for sessions that were never created or were deleted.
type Store interface {
	Create(ctx context.Context, s models.Session) error
	Get(ctx context.Context, id string) (*models.Session, error)
	Delete(ctx context.Context, id string) error
}

// SQLStore keeps sessions in the application database.
type SQLStore struct {
	db *store.DB
}

// NewSQLStore returns a Store backed by db.
func NewSQLStore(db *store.DB) *SQLStore {
	return &SQLStore{db: db}
}

func (s *SQLStore) Create(ctx context.Context, sess models.Session) error {
	return s.db.CreateSession(ctx, sess)
}

func (s *SQLStore) Get(ctx context.Context, id string) (*models.Session, error) {
	return s.db.Session(ctx, id)
}

func (s *SQLStore) Delete(ctx context.Context, id string) error {
	return s.db.DeleteSession(ctx, id)
}

var (
	_ Store = (*SQLStore)(nil)
	_ Store = (*RedisStore)(nil)
)
