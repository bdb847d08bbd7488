package store

import (
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"

	_ "github.com/mattn/go-sqlite3"

	"github.com/roach88/composite/internal/ir"
	"github.com/roach88/composite/internal/querysql"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 0 - Initial schema (pre-migration)
// 1 - Added index on delete_log.flow_token
const currentSchemaVersion = 1

// ErrNotFound is returned by Load when no entity has the requested id.
var ErrNotFound = errors.New("entity not found")

// TypeResolver supplies entity type definitions. The catalog implements it.
type TypeResolver interface {
	EntityType(name string) (ir.EntityTypeDef, bool)
	EntityTypes() []ir.EntityTypeDef
}

// Store provides durable storage for entities and their revisions.
// Uses SQLite with WAL mode for concurrent read access.
type Store struct {
	db       *sql.DB
	types    TypeResolver
	hooks    HookExecutor
	compiler *querysql.SQLCompiler
	logger   *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used for store diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// Open creates or opens a SQLite database at the given path.
// Applies required pragmas and migrations automatically. Entity tables are
// created separately by EnsureSchema.
//
// This function is idempotent - safe to call multiple times.
func Open(path string, types TypeResolver, opts ...Option) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite only supports one writer at a time. Every call made inside a
	// unit of work must use the transaction, never s.db, or it would wait
	// forever for this single connection.
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

	return New(db, types, opts...), nil
}

// New wraps an existing database handle without touching its schema.
// Used with sqlmock in tests and by callers managing their own pool.
func New(db *sql.DB, types TypeResolver, opts ...Option) *Store {
	s := &Store{
		db:       db,
		types:    types,
		compiler: querysql.NewSQLCompiler(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetHooks installs the executor that runs delete hooks. Set after
// construction because hook implementations usually need the store.
func (s *Store) SetHooks(h HookExecutor) {
	s.hooks = h
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// entityType resolves a definition or reports an unknown type.
func (s *Store) entityType(name string) (ir.EntityTypeDef, error) {
	if s.types == nil {
		return ir.EntityTypeDef{}, fmt.Errorf("no entity types configured")
	}
	def, ok := s.types.EntityType(name)
	if !ok {
		return ir.EntityTypeDef{}, fmt.Errorf("unknown entity type %q", name)
	}
	return def, nil
}

// applyPragmas sets required SQLite configuration.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	return nil
}

// applySchema creates store-level tables and runs migrations.
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

// migrateToV1 indexes the delete log by flow token.
func migrateToV1(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_delete_log_flow_token
		ON delete_log(flow_token, seq)
	`)
	if err != nil {
		return fmt.Errorf("migrate to v1: %w", err)
	}
	return nil
}

// verifyPragma checks that a pragma is set to the expected value.
// Used for testing.
func (s *Store) verifyPragma(name, expected string) error {
	var value string
	query := fmt.Sprintf("PRAGMA %s", name)
	if err := s.db.QueryRow(query).Scan(&value); err != nil {
		return fmt.Errorf("failed to query %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}
