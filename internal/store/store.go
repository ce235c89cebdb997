// Package store provides SQLite persistence for the dashboard entities.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/starford/estatehub/internal/apperr"
	"github.com/starford/estatehub/internal/models"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS projects (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	owner       TEXT NOT NULL,
	name        TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	location    TEXT NOT NULL DEFAULT '',
	created_at  DATETIME NOT NULL,
	updated_at  DATETIME NOT NULL,
	deleted_at  DATETIME
);

CREATE TABLE IF NOT EXISTS properties (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	project_id  INTEGER NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
	title       TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	price       INTEGER NOT NULL DEFAULT 0,
	currency    TEXT NOT NULL DEFAULT '',
	area_sqm    REAL NOT NULL DEFAULT 0,
	bedrooms    INTEGER NOT NULL DEFAULT 0,
	bathrooms   INTEGER NOT NULL DEFAULT 0,
	created_at  DATETIME NOT NULL,
	updated_at  DATETIME NOT NULL,
	deleted_at  DATETIME
);

CREATE TABLE IF NOT EXISTS case_studies (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	project_id  INTEGER NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
	title       TEXT NOT NULL,
	content     TEXT NOT NULL DEFAULT '',
	audience    TEXT NOT NULL DEFAULT '',
	created_at  DATETIME NOT NULL,
	updated_at  DATETIME NOT NULL,
	deleted_at  DATETIME
);

CREATE TABLE IF NOT EXISTS posts (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	case_study_id INTEGER NOT NULL REFERENCES case_studies(id) ON DELETE CASCADE,
	platform      TEXT NOT NULL,
	content       TEXT NOT NULL DEFAULT '',
	locale        TEXT NOT NULL DEFAULT '',
	scheduled_at  DATETIME,
	published     INTEGER NOT NULL DEFAULT 0,
	created_at    DATETIME NOT NULL,
	updated_at    DATETIME NOT NULL,
	deleted_at    DATETIME
);

CREATE TABLE IF NOT EXISTS images (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	post_id    INTEGER NOT NULL REFERENCES posts(id) ON DELETE CASCADE,
	name       TEXT NOT NULL,
	filename   TEXT NOT NULL,
	size       INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL,
	UNIQUE(post_id, filename)
);

CREATE TABLE IF NOT EXISTS stream_tokens (
	token      TEXT PRIMARY KEY,
	owner      TEXT NOT NULL,
	kind       TEXT NOT NULL,
	payload    TEXT NOT NULL,
	expires_at DATETIME NOT NULL,
	created_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_projects_owner ON projects(owner, deleted_at);
CREATE INDEX IF NOT EXISTS idx_properties_project ON properties(project_id);
CREATE INDEX IF NOT EXISTS idx_case_studies_project ON case_studies(project_id);
CREATE INDEX IF NOT EXISTS idx_posts_case_study ON posts(case_study_id);
CREATE INDEX IF NOT EXISTS idx_posts_scheduled ON posts(scheduled_at);
CREATE INDEX IF NOT EXISTS idx_images_post ON images(post_id);
CREATE INDEX IF NOT EXISTS idx_stream_tokens_expiry ON stream_tokens(expires_at);
`

// DB wraps a sql.DB with the dashboard's persistence operations.
type DB struct {
	conn *sql.DB
	now  func() time.Time
}

// Open opens (or creates) the SQLite database and applies the schema.
func Open(dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("store: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("store: apply schema: %w", err)
	}
	return &DB{conn: conn, now: time.Now}, nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping checks the connection; used by the readiness probe.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// inTx runs fn in a transaction, committing only when fn returns nil.
func (db *DB) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit: %w", err)
	}
	return nil
}

func (db *DB) timestamp() time.Time {
	return db.now().UTC().Truncate(time.Millisecond)
}

// Deleted selects rows by soft-delete state.
type Deleted int

const (
	OnlyActive Deleted = iota
	OnlyBinned
	AnyState
)

// ParseDeleted maps the ?deleted= query value.
func ParseDeleted(s string) (Deleted, error) {
	switch s {
	case "", "active":
		return OnlyActive, nil
	case "binned":
		return OnlyBinned, nil
	case "any", "all":
		return AnyState, nil
	}
	return OnlyActive, fmt.Errorf("store: unknown deleted filter %q: %w", s, apperr.ErrValidation)
}

// Filter narrows list queries.
type Filter struct {
	Owner    string
	ParentID int64
	Deleted  Deleted
	Limit    int
	Offset   int
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type scanner interface {
	Scan(dest ...any) error
}

// where accumulates AND-ed conditions.
type where struct {
	conds []string
	args  []any
}

func (w *where) add(cond string, args ...any) {
	w.conds = append(w.conds, cond)
	w.args = append(w.args, args...)
}

func (w *where) deleted(column string, d Deleted) {
	switch d {
	case OnlyActive:
		w.add(column + " IS NULL")
	case OnlyBinned:
		w.add(column + " IS NOT NULL")
	}
}

func (w *where) String() string {
	if len(w.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.conds, " AND ")
}

func limitOffset(limit, offset int) (int, int) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func nullable(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}

func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time.UTC()
	return &t
}

func notFound(kind any, id any) error {
	return fmt.Errorf("store: %v %v: %w", kind, id, apperr.ErrNotFound)
}

// setDeletedAt flips the soft-delete column of one row.
func (db *DB) setDeletedAt(ctx context.Context, table string, kind models.Kind, id int64, at *time.Time) error {
	res, err := db.conn.ExecContext(ctx, `UPDATE `+table+` SET deleted_at = ? WHERE id = ?`, nullable(at), id)
	if err != nil {
		return fmt.Errorf("store: set deleted_at on %s: %w", kind, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return notFound(kind, id)
	}
	return nil
}

// deleteRow removes one row; owned rows follow through ON DELETE CASCADE.
func (db *DB) deleteRow(ctx context.Context, table string, kind models.Kind, id int64) error {
	res, err := db.conn.ExecContext(ctx, `DELETE FROM `+table+` WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("store: delete %s: %w", kind, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return notFound(kind, id)
	}
	return nil
}

func (db *DB) count(ctx context.Context, query string, args ...any) (int, error) {
	var n int
	if err := db.conn.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("store: count: %w", err)
	}
	return n, nil
}
