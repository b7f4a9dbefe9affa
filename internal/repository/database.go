// Package repository persists honeypot sessions and callback deliveries.
package repository

import (
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // PostgreSQL driver
	"go.uber.org/zap"
	_ "modernc.org/sqlite" // SQLite driver
)

//go:embed migrations
var migrationsFS embed.FS

// Supported database types.
const (
	TypeSQLite   = "sqlite"
	TypePostgres = "postgres"
	TypeMemory   = "memory"
)

// Config selects and locates the database.
type Config struct {
	Type string
	Path string // sqlite file
	URL  string // postgres DSN
}

// Open connects to the configured database and runs migrations. For SQLite the
// parent directory of Path is created when missing.
func Open(cfg Config, logger *zap.Logger) (*sqlx.DB, error) {
	var (
		db  *sqlx.DB
		err error
	)
	switch cfg.Type {
	case TypeSQLite:
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
		db, err = sqlx.Connect("sqlite", cfg.Path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
		if err == nil {
			// SQLite allows a single writer.
			db.SetMaxOpenConns(1)
		}
	case TypePostgres:
		db, err = sqlx.Connect("postgres", cfg.URL)
	default:
		return nil, fmt.Errorf("unsupported database type %q", cfg.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", cfg.Type, err)
	}

	if err := MigrateDB(db, cfg.Type, logger); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("Successfully connected to the database", zap.String("type", cfg.Type))
	return db, nil
}

// MigrateDB runs the embedded migrations for dbType.
func MigrateDB(db *sqlx.DB, dbType string, logger *zap.Logger) error {
	var (
		driver database.Driver
		err    error
	)
	switch dbType {
	case TypeSQLite:
		driver, err = sqlite.WithInstance(db.DB, &sqlite.Config{})
	case TypePostgres:
		driver, err = postgres.WithInstance(db.DB, &postgres.Config{})
	default:
		return fmt.Errorf("unsupported database type %q", dbType)
	}
	if err != nil {
		return fmt.Errorf("couldn't get database instance for running migrations: %w", err)
	}

	src, err := iofs.New(migrationsFS, "migrations/"+dbType)
	if err != nil {
		return fmt.Errorf("couldn't open embedded migrations: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "honeypot", driver)
	if err != nil {
		return fmt.Errorf("couldn't create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("couldn't run database migration: %w", err)
	}

	logger.Info("Database migration was run successfully", zap.String("type", dbType))
	return nil
}
