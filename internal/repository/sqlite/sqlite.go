// Package sqlite implements the repository interfaces on SQLite.
//
// WHY modernc.org/sqlite?
// It is a pure Go translation of SQLite: no CGo, no C compiler, and the bot
// cross-compiles to a single static binary.
//
// TRANSACTIONS:
// Every logical operation runs in one short transaction. Nothing holds a
// transaction open across a network call to Todoist or Discord; the readout
// collects score changes in memory and commits them in a single batch at the
// end of the run.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	// Registers the "sqlite" driver with database/sql.
	_ "modernc.org/sqlite"

	"github.com/sakif/shamebot/internal/logging"
	"github.com/sakif/shamebot/internal/repository"
)

// compile-time check that *DB implements repository.Store
var _ repository.Store = (*DB)(nil)

// TokenSealer encrypts provider tokens before they are written and decrypts
// them after they are read. The default leaves tokens untouched.
type TokenSealer interface {
	Seal(plaintext string) (string, error)
	Open(sealed string) (string, error)
}

type plainSealer struct{}

func (plainSealer) Seal(s string) (string, error) { return s, nil }
func (plainSealer) Open(s string) (string, error) { return s, nil }

// DB wraps a sql.DB and provides the repository methods.
type DB struct {
	conn   *sql.DB
	sealer TokenSealer
	now    func() time.Time
	logger *slog.Logger
}

// Option customises a DB.
type Option func(*DB)

// WithTokenSealer encrypts Todoist tokens at rest.
func WithTokenSealer(s TokenSealer) Option {
	return func(db *DB) {
		if s != nil {
			db.sealer = s
		}
	}
}

// WithLogger receives warnings about rows the store had to skip.
func WithLogger(l *slog.Logger) Option {
	return func(db *DB) {
		if l != nil {
			db.logger = l
		}
	}
}

// New opens the database at dbPath and runs migrations.
//
// dbPath examples:
//   - "data/database.sqlite" → file-based database
//   - ":memory:"             → in-memory database (tests)
//
// ONE CONNECTION:
// SQLite serialises writers anyway, and every ":memory:" connection would be
// a separate empty database. Capping the pool at one connection gives a
// single consistent view and turns concurrent writers into a queue instead of
// SQLITE_BUSY errors.
func New(dbPath string, opts ...Option) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}
	conn.SetMaxOpenConns(1)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}

	// scores.user_id references users.id
	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: enabling foreign keys: %w", err)
	}

	db := &DB{conn: conn, sealer: plainSealer{}, now: time.Now, logger: logging.Discard()}
	for _, opt := range opts {
		opt(db)
	}

	if err := db.migrate(context.Background()); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// Close closes the database.
func (db *DB) Close() error {
	return db.conn.Close()
}

// migration is one schema step. Versions are applied in order, each exactly once.
type migration struct {
	version int
	name    string
	stmts   []string
}

// migrations is the schema history. Append only; never edit a released step.
var migrations = []migration{
	{
		version: 1,
		name:    "create users",
		stmts: []string{
			`CREATE TABLE IF NOT EXISTS users (
				id            TEXT PRIMARY KEY,
				email         TEXT NOT NULL UNIQUE,
				todoist_id    TEXT NOT NULL DEFAULT '',
				todoist_token TEXT NOT NULL DEFAULT '',
				discord_id    TEXT UNIQUE,
				created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
				updated_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
			)`,
			`CREATE INDEX IF NOT EXISTS idx_users_todoist_id ON users(todoist_id)`,
		},
	},
	{
		version: 2,
		name:    "create scores",
		stmts: []string{
			`CREATE TABLE IF NOT EXISTS scores (
				user_id    TEXT PRIMARY KEY REFERENCES users(id) ON DELETE CASCADE,
				streak     INTEGER NOT NULL DEFAULT 0 CHECK (streak >= 0),
				updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
			)`,
		},
	},
}

// migrate applies every migration newer than the recorded schema version.
//
// VERSIONED, NOT IDEMPOTENT-ONLY:
// schema_migrations records which steps have run. Each step runs inside its
// own transaction together with its bookkeeping row, so a crash mid-step
// leaves the database at the previous version rather than half-migrated.
func (db *DB) migrate(ctx context.Context) error {
	_, err := db.conn.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version    INTEGER PRIMARY KEY,
			name       TEXT NOT NULL,
			applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	current, err := db.SchemaVersion(ctx)
	if err != nil {
		return err
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		if err := db.apply(ctx, m); err != nil {
			return fmt.Errorf("migration %d (%s): %w", m.version, m.name, err)
		}
	}
	return nil
}

func (db *DB) apply(ctx context.Context, m migration) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, stmt := range m.stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO schema_migrations (version, name) VALUES (?, ?)`, m.version, m.name,
	); err != nil {
		return err
	}
	return tx.Commit()
}

// SchemaVersion returns the highest applied migration, 0 for a fresh database.
func (db *DB) SchemaVersion(ctx context.Context) (int, error) {
	var version int
	err := db.conn.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(version), 0) FROM schema_migrations`,
	).Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("reading schema version: %w", err)
	}
	return version, nil
}
