package journal

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"log/slog"

	_ "github.com/mattn/go-sqlite3"

	"github.com/roach88/normware/internal/schema"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 0 - Initial schema (pre-migration)
// 1 - Added index on entries.type for filtered traces
const currentSchemaVersion = 1

// Sequencer stamps entries with strictly increasing sequence numbers.
// Implemented by Clock and testutil.DeterministicClock.
type Sequencer interface {
	Next() int64
	Current() int64
}

// IDGenerator produces entry ids.
// Implemented by UUIDv7Generator and FixedGenerator.
type IDGenerator interface {
	Generate() string
}

// Journal is an append-only SQLite log of dispatched actions.
//
// Thread-safety: Append and the read methods are safe for concurrent use.
// The connection pool is limited to one connection, so writes serialize.
type Journal struct {
	db       *sql.DB
	clock    Sequencer
	ids      IDGenerator
	registry *schema.Registry
	logger   *slog.Logger
}

// Option configures a Journal.
type Option func(*Journal)

// WithClock sets the sequencer. By default a Clock resuming after the
// highest stored seq is used.
func WithClock(c Sequencer) Option {
	return func(j *Journal) {
		j.clock = c
	}
}

// WithIDGenerator sets the id generator. Defaults to UUIDv7Generator.
func WithIDGenerator(g IDGenerator) Option {
	return func(j *Journal) {
		j.ids = g
	}
}

// WithRegistry sets the registry used to name schemas in stored bodies.
func WithRegistry(r *schema.Registry) Option {
	return func(j *Journal) {
		j.registry = r
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(j *Journal) {
		j.logger = l
	}
}

// Open creates or opens a journal database at path.
//
// The database is configured with:
//   - WAL mode for concurrent reads during writes
//   - NORMAL synchronous mode (balance durability/performance)
//   - 5-second busy timeout for lock contention
//
// This function is idempotent - safe to call multiple times.
func Open(path string, opts ...Option) (*Journal, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite only supports one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	j := &Journal{db: db}
	for _, opt := range opts {
		opt(j)
	}
	if j.logger == nil {
		j.logger = slog.Default()
	}
	if j.ids == nil {
		j.ids = UUIDv7Generator{}
	}
	if j.clock == nil {
		last, err := j.LastSeq(context.Background())
		if err != nil {
			db.Close()
			return nil, err
		}
		j.clock = NewClockAt(last)
	}
	return j, nil
}

// Close closes the database connection.
func (j *Journal) Close() error {
	if j.db == nil {
		return nil
	}
	return j.db.Close()
}

// DB returns the underlying sql.DB for direct queries.
func (j *Journal) DB() *sql.DB {
	return j.db
}

// applyPragmas sets required SQLite configuration.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	return nil
}

// applySchema creates tables if they don't exist and runs migrations.
func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}
	if err := runMigrations(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// runMigrations applies incremental schema migrations based on user_version.
func runMigrations(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}

	if version < 1 {
		if err := migrateToV1(db); err != nil {
			return err
		}
	}

	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}
	return nil
}

// migrateToV1 adds the type index used by Entries filters.
func migrateToV1(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_entries_type
		ON entries(type, seq)
	`)
	if err != nil {
		return fmt.Errorf("migrate to v1: %w", err)
	}
	return nil
}

// verifyPragma checks that a pragma is set to the expected value.
// Used for testing.
func (j *Journal) verifyPragma(name, expected string) error {
	var value string
	if err := j.db.QueryRow(fmt.Sprintf("PRAGMA %s", name)).Scan(&value); err != nil {
		return fmt.Errorf("failed to query %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}
