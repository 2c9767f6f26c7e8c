// Package sqlite implements the repository interfaces using SQLite as the storage backend.
//
// WHY modernc.org/sqlite?
// It is a pure Go translation of SQLite: no CGo, no C compiler, and ":memory:"
// databases make repository tests as fast as unit tests.
//
// ONE CONNECTION:
// The pool is capped at a single connection. Every read-modify-write
// (daily-limit check + insert, uniqueness check + insert) therefore runs
// serialized, and an in-memory database is shared by every query instead of
// each pooled connection getting its own empty copy.
// A consequence: never start a query while a *sql.Rows is still open.
//
// SCHEMA:
// Tables are created by golang-migrate from the embedded migrations/ folder.
// Timestamps are INTEGER Unix milliseconds so range queries compare numbers,
// not driver-formatted strings.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/sakif/village-gacha/internal/repository"

	// Registers the "sqlite" driver with database/sql.
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// DB owns the sql.DB handle and hands out one repository per table.
// Each repository is a thin struct over the same handle, so they share the
// single connection.
type DB struct {
	conn *sql.DB
}

func (db *DB) Users() *UserDB             { return &UserDB{conn: db.conn} }
func (db *DB) Draws() *GachaDB            { return &GachaDB{conn: db.conn} }
func (db *DB) Collections() *CollectionDB { return &CollectionDB{conn: db.conn} }
func (db *DB) Memories() *MemoryDB        { return &MemoryDB{conn: db.conn} }

// New opens (or creates) the database at dbPath and migrates it to the latest
// schema. Safe to call on every start: an up-to-date database is left alone.
//
// dbPath examples:
//   - "data/gacha.db" → file-based database (persistent)
//   - ":memory:"      → in-memory database (tests)
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}
	conn.SetMaxOpenConns(1)
	conn.SetConnMaxLifetime(0)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := conn.Exec(p); err != nil {
			conn.Close()
			return nil, fmt.Errorf("sqlite: %s: %w", p, err)
		}
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// Close closes the database handle.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping is used by the health check.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// migrate applies every pending migration from the embedded folder.
//
// The migrate driver is built on the existing handle (WithInstance) rather
// than a URL: a second connection to ":memory:" would open a different,
// empty database. For the same reason m.Close() is never called, because
// it would close db.conn too.
func (db *DB) migrate() error {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("creating migration source: %w", err)
	}
	defer source.Close()

	driver, err := migratesqlite.WithInstance(db.conn, &migratesqlite.Config{})
	if err != nil {
		return fmt.Errorf("creating migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("creating migrator: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("applying migrations: %w", err)
	}
	return nil
}

// toMillis and fromMillis convert between time.Time and the INTEGER columns.
func toMillis(t time.Time) int64 {
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

// isUniqueViolation reports whether err is a UNIQUE failure on the given
// column, e.g. "users.username". SQLite names the column in the message:
// "UNIQUE constraint failed: users.username".
func isUniqueViolation(err error, column string) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") && strings.Contains(msg, column)
}

// clampList applies the list defaults shared by every paginated query.
func clampList(opts repository.ListOptions) (limit, offset int) {
	limit = opts.Limit
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	offset = max(opts.Offset, 0)
	return limit, offset
}
