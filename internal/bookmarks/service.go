// Package bookmarks is the mutation gateway and list loader for bookmark records.
//
// Writes never touch any client-held state: callers observe their own changes
// through the change feed like every other subscriber.
package bookmarks

import (
	"context"
	"fmt"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/linkshelf/internal/apperr"
	"github.com/starford/linkshelf/internal/models"
	"github.com/starford/linkshelf/internal/store"
)

// AllCategories is the filter value that disables category filtering.
const AllCategories = "All"

// Input is a create or edit submission.
type Input struct {
	Title    string `json:"title"`
	URL      string `json:"url"`
	Category string `json:"category"`
}

// Validate checks that title and url are present after trimming.
func (in Input) Validate() error {
	title := strings.TrimSpace(in.Title)
	url := strings.TrimSpace(in.URL)
	return validation.Errors{
		"title": validation.Validate(title, validation.Required),
		"url":   validation.Validate(url, validation.Required),
	}.Filter()
}

func (in Input) fields() store.BookmarkFields {
	return store.BookmarkFields{
		Title:    strings.TrimSpace(in.Title),
		URL:      NormalizeURL(strings.TrimSpace(in.URL)),
		Category: NormalizeCategory(in.Category),
	}
}

// Service coordinates owner-scoped bookmark operations.
type Service struct {
	store store.BookmarkStore
	now   func() time.Time
}

// NewService creates a new bookmark service.
func NewService(s store.BookmarkStore) *Service {
	return &Service{store: s, now: time.Now}
}

// Create validates and normalizes in, then stores it for ownerID.
func (s *Service) Create(ctx context.Context, ownerID string, in Input) (*models.Bookmark, error) {
	if err := in.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", apperr.ErrInvalidInput, err)
	}
	return s.store.CreateBookmark(ctx, ownerID, in.fields(), s.now())
}

// Update validates and normalizes in, then rewrites bookmark id.
func (s *Service) Update(ctx context.Context, ownerID string, id int64, in Input) (*models.Bookmark, error) {
	if err := in.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", apperr.ErrInvalidInput, err)
	}
	return s.store.UpdateBookmark(ctx, ownerID, id, in.fields())
}

// Delete removes bookmark id.
func (s *Service) Delete(ctx context.Context, ownerID string, id int64) error {
	return s.store.DeleteBookmark(ctx, ownerID, id)
}

// Get returns one bookmark.
func (s *Service) Get(ctx context.Context, ownerID string, id int64) (*models.Bookmark, error) {
	return s.store.GetBookmark(ctx, ownerID, id)
}

// List returns ownerID's bookmarks newest first. An empty category or AllCategories lists everything.
func (s *Service) List(ctx context.Context, ownerID, category string) ([]models.Bookmark, error) {
	category = strings.TrimSpace(category)
	if category == AllCategories {
		category = ""
	}
	return s.store.ListBookmarks(ctx, ownerID, category)
}

// Categories returns the distinct categories ownerID has used.
func (s *Service) Categories(ctx context.Context, ownerID string) ([]string, error) {
	return s.store.Categories(ctx, ownerID)
}
