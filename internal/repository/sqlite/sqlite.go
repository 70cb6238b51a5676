// Package sqlite implements the repository interfaces using SQLite as the storage backend.
//
// One database file holds everything the blog persists: posts, accounts,
// sessions, profiles, counters, and the file bucket. Each concern gets its
// own small handle type (PostDB, AccountDB, ...) so that method names like
// Create and GetByID do not collide on a single struct. All handles share
// the same *sql.DB.
//
// WHY modernc.org/sqlite?
// It is a pure Go translation of SQLite: no C compiler, no CGo, and
// cross-compilation keeps working.
//
// ONE CONNECTION:
// The pool is capped at a single connection. SQLite allows one writer at a
// time anyway, and with one connection every statement (and every
// transaction) is serialized in-process. That is what makes the like toggle's
// read-modify-write safe against concurrent requests, and it keeps ":memory:"
// databases coherent (each new connection would otherwise get its own empty
// in-memory database).
package sqlite

import (
	"database/sql"
	"errors"
	"fmt"

	msqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// DB wraps a sql.DB connection pool and hands out per-entity repositories.
type DB struct {
	conn *sql.DB
}

// New creates a new SQLite database connection and runs migrations.
//
// dbPath examples:
//   - "data/blog.db"  → file-based database (persistent)
//   - ":memory:"      → in-memory database (tests)
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}
	conn.SetMaxOpenConns(1)

	// sql.Open does not connect. Ping forces a real connection so a bad path
	// fails here instead of on the first request.
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	// WAL lets readers proceed while a write is in progress.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}

	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: enabling foreign keys: %w", err)
	}

	db := &DB{conn: conn}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// Close closes the database connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Posts returns the post repository.
func (db *DB) Posts() *PostDB { return &PostDB{conn: db.conn} }

// Accounts returns the account repository.
func (db *DB) Accounts() *AccountDB { return &AccountDB{conn: db.conn} }

// Sessions returns the session repository.
func (db *DB) Sessions() *SessionDB { return &SessionDB{conn: db.conn} }

// Profiles returns the profile repository.
func (db *DB) Profiles() *ProfileDB { return &ProfileDB{conn: db.conn} }

// Stats returns the counter repository.
func (db *DB) Stats() *StatsDB { return &StatsDB{conn: db.conn} }

// Files returns the object store for the named bucket.
func (db *DB) Files(bucket string) *FileDB { return &FileDB{conn: db.conn, bucket: bucket} }

// migrate creates every table. CREATE ... IF NOT EXISTS keeps it idempotent,
// so it runs on every start.
func (db *DB) migrate() error {
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS accounts (
			id            TEXT PRIMARY KEY,
			email         TEXT NOT NULL UNIQUE,
			name          TEXT NOT NULL DEFAULT '',
			password_hash TEXT NOT NULL DEFAULT '',
			github_id     INTEGER UNIQUE,
			created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
	`)
	if err != nil {
		return fmt.Errorf("creating accounts table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS sessions (
			id         TEXT PRIMARY KEY,
			user_id    TEXT NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			expires_at DATETIME NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_sessions_user_id ON sessions(user_id);
	`)
	if err != nil {
		return fmt.Errorf("creating sessions table: %w", err)
	}

	// Profiles deliberately carry no foreign key to accounts: they are
	// documents in their own collection and may outlive a deleted account.
	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS profiles (
			id         TEXT PRIMARY KEY,
			user_id    TEXT NOT NULL,
			name       TEXT NOT NULL DEFAULT '',
			email      TEXT NOT NULL DEFAULT '',
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_profiles_user_id ON profiles(user_id);
	`)
	if err != nil {
		return fmt.Errorf("creating profiles table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS posts (
			id             TEXT PRIMARY KEY,
			title          TEXT NOT NULL,
			content        TEXT NOT NULL DEFAULT '',
			content_id     TEXT NOT NULL DEFAULT '',
			featured_image TEXT NOT NULL DEFAULT '',
			status         TEXT NOT NULL DEFAULT 'active',
			user_id        TEXT NOT NULL,
			category       TEXT NOT NULL,
			like_count     INTEGER NOT NULL DEFAULT 0,
			liked_by       TEXT NOT NULL DEFAULT '[]',
			views          INTEGER NOT NULL DEFAULT 0,
			read_time      INTEGER NOT NULL DEFAULT 1,
			created_at     DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at     DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_posts_status_created ON posts(status, created_at);
		CREATE INDEX IF NOT EXISTS idx_posts_user_id ON posts(user_id);
		CREATE INDEX IF NOT EXISTS idx_posts_category ON posts(category);
	`)
	if err != nil {
		return fmt.Errorf("creating posts table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS stats (
			id    TEXT PRIMARY KEY,
			value INTEGER NOT NULL DEFAULT 0
		);
	`)
	if err != nil {
		return fmt.Errorf("creating stats table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS files (
			id         TEXT PRIMARY KEY,
			bucket     TEXT NOT NULL,
			name       TEXT NOT NULL,
			mime_type  TEXT NOT NULL,
			owner_id   TEXT NOT NULL DEFAULT '',
			size       INTEGER NOT NULL,
			public     INTEGER NOT NULL DEFAULT 0,
			data       BLOB NOT NULL,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_files_bucket ON files(bucket, created_at);
	`)
	if err != nil {
		return fmt.Errorf("creating files table: %w", err)
	}

	return nil
}

// isConstraintViolation reports whether err is a UNIQUE or PRIMARY KEY
// violation. Repositories translate these into apperror.Conflict.
func isConstraintViolation(err error) bool {
	var se *msqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	// Extended result codes keep the primary code in the low byte.
	return se.Code()&0xff == sqlite3.SQLITE_CONSTRAINT
}

// rowsAffected turns a zero-row UPDATE/DELETE into a not-found signal.
func rowsAffected(result sql.Result) (bool, error) {
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	return n > 0, nil
}
