// Package testutil provides shared test helpers for setting up databases and accounts.
package testutil

import (
	"context"
	"os"
	"testing"

	"github.com/starford/linkshelf/internal/models"
	"github.com/starford/linkshelf/internal/store"
)

// TestDB creates a temporary SQLite database that is automatically cleaned up.
func TestDB(t *testing.T) *store.DB {
	t.Helper()
	dbFile, err := os.CreateTemp(t.TempDir(), "linkshelf-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()

	db, err := store.Open(context.Background(), dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestUser registers email in db and returns the account.
func TestUser(t *testing.T, db *store.DB, email string) *models.User {
	t.Helper()
	u, err := db.EnsureUser(context.Background(), email)
	if err != nil {
		t.Fatalf("EnsureUser(%s): %v", email, err)
	}
	return u
}
