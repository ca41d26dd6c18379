// Package storage persists analysis history in SQLite or PostgreSQL.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// DB represents a database connection interface.
type DB interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// Driver names as registered with database/sql.
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

// PoolOptions tunes the connection pool. Zero values keep database/sql defaults.
type PoolOptions struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Store owns the connection and the schema.
type Store struct {
	db     *sql.DB
	driver string
}

// Open connects to driver ("sqlite", "sqlite3" or "postgres") and pings.
func Open(ctx context.Context, driver, dsn string, pool PoolOptions) (*Store, error) {
	name, err := driverName(driver)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(name, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", name, err)
	}

	if name == DriverSQLite && pool.MaxOpenConns == 0 {
		pool.MaxOpenConns = 1
	}
	if pool.MaxOpenConns > 0 {
		db.SetMaxOpenConns(pool.MaxOpenConns)
	}
	if pool.MaxIdleConns > 0 {
		db.SetMaxIdleConns(pool.MaxIdleConns)
	}
	if pool.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(pool.ConnMaxLifetime)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s: %w", name, err)
	}

	return &Store{db: db, driver: name}, nil
}

func driverName(driver string) (string, error) {
	switch driver {
	case "sqlite", DriverSQLite, "":
		return DriverSQLite, nil
	case DriverPostgres, "postgresql":
		return DriverPostgres, nil
	default:
		return "", fmt.Errorf("unsupported database driver %q", driver)
	}
}

// DB returns the underlying handle.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Driver returns the database/sql driver name.
func (s *Store) Driver() string {
	return s.driver
}

// History returns a repository over this store.
func (s *Store) History() *HistoryRepository {
	return NewHistoryRepository(s.db)
}

// Close closes the connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// Migrate creates the history schema if it does not exist.
func (s *Store) Migrate(ctx context.Context) error {
	stmts := sqliteSchema
	if s.driver == DriverPostgres {
		stmts = postgresSchema
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS scan_history (
		id             TEXT PRIMARY KEY,
		user_id        TEXT NOT NULL,
		filename       TEXT NOT NULL,
		weight_kg      REAL NOT NULL,
		extracted_data TEXT NOT NULL,
		model          TEXT NOT NULL DEFAULT '',
		created_at     TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_scan_history_user_time ON scan_history (user_id, created_at DESC)`,
}

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS scan_history (
		id             UUID PRIMARY KEY,
		user_id        TEXT NOT NULL,
		filename       TEXT NOT NULL,
		weight_kg      DOUBLE PRECISION NOT NULL,
		extracted_data JSONB NOT NULL,
		model          TEXT NOT NULL DEFAULT '',
		created_at     TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_scan_history_user_time ON scan_history (user_id, created_at DESC)`,
}
