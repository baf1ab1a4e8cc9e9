package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// busyTimeoutMS is how long a writer waits for another process holding
// the database lock.
const busyTimeoutMS = 5000

// SQLiteStore implements AuditLog on a local SQLite database. Several
// processes may hold a store on the same file at once.
type SQLiteStore struct {
	db       *sqlx.DB
	redactor *Redactor
	now      func() time.Time
	log      *zap.Logger
}

// Option customizes a SQLiteStore.
type Option func(*SQLiteStore)

// WithRedactor replaces the default redactor.
func WithRedactor(r *Redactor) Option {
	return func(s *SQLiteStore) { s.redactor = r }
}

// WithClock sets the clock used for record timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *SQLiteStore) { s.now = now }
}

// WithLogger sets the logger for store diagnostics.
func WithLogger(log *zap.Logger) Option {
	return func(s *SQLiteStore) { s.log = log }
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath,
// enables WAL mode, and runs any pending schema migrations.
func NewSQLiteStore(dbPath string, opts ...Option) (*SQLiteStore, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o700); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sqlx.Open("sqlite", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	// One connection per process; cross-process writers are serialized
	// by SQLite's own locking and the busy timeout.
	db.SetMaxOpenConns(1)

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &SQLiteStore{
		db:       db,
		redactor: NewRedactor(nil),
		now:      time.Now,
		log:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.runMigrations(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// dsn adds the per-connection pragmas. Transactions begin IMMEDIATE so
// concurrent migrations and appends queue on the write lock instead of
// failing on upgrade.
func dsn(dbPath string) string {
	params := fmt.Sprintf("_pragma=busy_timeout(%d)&_txlock=immediate", busyTimeoutMS)
	if dbPath == ":memory:" {
		return ":memory:?" + params
	}
	return "file:" + filepath.ToSlash(dbPath) + "?" + params
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// runMigrations checks the current schema version and applies any
// outstanding migrations in order. The check and the migrations share
// one write transaction so two processes never apply the same version.
func (s *SQLiteStore) runMigrations(ctx context.Context) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning migration: %w", err)
	}
	defer tx.Rollback()

	currentVersion := 0

	// Check if schema_version table exists.
	var tableCount int
	err = tx.GetContext(ctx,
		&tableCount,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	)
	if err != nil {
		return fmt.Errorf("checking schema_version table: %w", err)
	}

	if tableCount > 0 {
		err = tx.GetContext(ctx, &currentVersion, "SELECT COALESCE(MAX(version), 0) FROM schema_version")
		if err != nil {
			return fmt.Errorf("reading schema version: %w", err)
		}
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		if _, err := tx.ExecContext(ctx, m.sql); err != nil {
			return fmt.Errorf("applying migration v%d: %w", m.version, err)
		}
		s.log.Debug("audit schema migrated", zap.Int("version", m.version))
	}

	return tx.Commit()
}
