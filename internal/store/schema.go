// Package store provides the SQLite-backed, owner-scoped bookmark store, its
// changelog, and the account tables used by authentication.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"

	"github.com/starford/linkshelf/internal/store/migrations"
)

// goose keeps its base FS and dialect in package globals.
var migrateMu sync.Mutex

// DB wraps a sql.DB with store-specific operations.
type DB struct {
	conn *sql.DB
	path string
}

// Open opens (or creates) the SQLite database and applies pending migrations.
func Open(ctx context.Context, path string) (*DB, error) {
	conn, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("store: open db: %w", err)
	}
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}
	if err := migrate(ctx, conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("store: migrate: %w", err)
	}
	return &DB{conn: conn, path: path}, nil
}

func migrate(ctx context.Context, conn *sql.DB) error {
	migrateMu.Lock()
	defer migrateMu.Unlock()

	goose.SetBaseFS(migrations.FS)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect("sqlite3"); err != nil {
		return err
	}
	return goose.UpContext(ctx, conn, ".")
}

// Path returns the database file path the store was opened with.
func (db *DB) Path() string {
	return db.path
}

// Ping checks the connection is usable.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}
