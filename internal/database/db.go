package database

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"gorm.io/gorm"
)

// Config contains database connection options.
type Config struct {
	Driver string
	Path   string // SQLite database path when Driver == sqlite
	DSN    string // Optional DSN override
}

// Open initialises a gorm.DB using the provided configuration.
func Open(cfg Config) (*gorm.DB, error) {
	driver := strings.ToLower(cfg.Driver)
	if driver == "" {
		driver = "sqlite"
	}

	switch driver {
	case "sqlite":
		return openSQLite(cfg)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

var (
	initMu     sync.Mutex
	initHandle *gorm.DB
)

// Init performs process-wide one-time database setup: path discovery, open,
// schema creation, and forward-only migrations. Concurrent callers are
// serialised by a lock and all receive the same handle; repeat calls are
// idempotent and never re-run schema creation against a second connection.
func Init(cfg Config) (*gorm.DB, error) {
	initMu.Lock()
	defer initMu.Unlock()

	if initHandle != nil {
		return initHandle, nil
	}

	if cfg.DSN == "" && cfg.Path != "" {
		cfg.Path = DiscoverPath(cfg.Path)
	}

	db, err := Open(cfg)
	if err != nil {
		return nil, err
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}

	initHandle = db
	return initHandle, nil
}

// ResetInit clears the cached Init handle. Intended for tests.
func ResetInit() {
	initMu.Lock()
	defer initMu.Unlock()
	initHandle = nil
}

// Migrate creates the schema and applies additive column migrations. Safe to
// run on every startup.
func Migrate(db *gorm.DB) error {
	if db == nil {
		return errors.New("nil database handle")
	}

	if err := AutoMigrate(db); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}

	if err := ApplyMigrations(db); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}

	return nil
}
