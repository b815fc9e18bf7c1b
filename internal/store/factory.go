package store

import (
	"context"
	"fmt"
)

// Supported values for OpenConfig.Driver.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// OpenConfig selects and configures a Repository backend.
type OpenConfig struct {
	Driver     string
	SQLitePath string
	Postgres   PostgresConfig
}

// Open returns the Repository selected by cfg.Driver. An empty driver means SQLite.
func Open(ctx context.Context, cfg OpenConfig) (Repository, error) {
	switch cfg.Driver {
	case "", DriverSQLite:
		return NewSQLite(cfg.SQLitePath)
	case DriverPostgres:
		return NewPostgres(ctx, cfg.Postgres)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}
