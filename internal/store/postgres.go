package store

import (
	"context"
	"fmt"

	"github.com/ashureev/projecthub/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresConfig configures the PostgreSQL backend.
type PostgresConfig struct {
	DSN      string
	MaxConns int32
	MinConns int32
}

// PostgresStore implements Repository on a pgx connection pool.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgres connects to PostgreSQL and ensures the schema exists.
func NewPostgres(ctx context.Context, cfg PostgresConfig) (*PostgresStore, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse database config: %w", err)
	}

	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	} else {
		poolCfg.MaxConns = 10
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &PostgresStore{pool: pool}
	if err := s.initSchema(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return s, nil
}

func (s *PostgresStore) initSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS requirements (
			id BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
			title TEXT NOT NULL,
			description TEXT NOT NULL,
			priority TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS bugs (
			id BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
			title TEXT NOT NULL,
			description TEXT NOT NULL,
			severity TEXT NOT NULL,
			steps TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS queries (
			id BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
			title TEXT NOT NULL,
			description TEXT NOT NULL,
			assigned_to TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
	}
	return nil
}

// Ping verifies database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the pool. It never fails.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// InsertRequirement stores a requirement.
func (s *PostgresStore) InsertRequirement(ctx context.Context, req *domain.Requirement) error {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO requirements (title, description, priority) VALUES ($1, $2, $3) RETURNING id, created_at`,
		req.Title, req.Description, req.Priority,
	).Scan(&req.ID, &req.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert requirement: %w", err)
	}
	return nil
}

// InsertBug stores a bug report.
func (s *PostgresStore) InsertBug(ctx context.Context, bug *domain.Bug) error {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO bugs (title, description, severity, steps) VALUES ($1, $2, $3, $4) RETURNING id, created_at`,
		bug.Title, bug.Description, bug.Severity, bug.Steps,
	).Scan(&bug.ID, &bug.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert bug: %w", err)
	}
	return nil
}

// InsertQuery stores a query.
func (s *PostgresStore) InsertQuery(ctx context.Context, q *domain.Query) error {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO queries (title, description, assigned_to) VALUES ($1, $2, $3) RETURNING id, created_at`,
		q.Title, q.Description, q.AssignedTo,
	).Scan(&q.ID, &q.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert query: %w", err)
	}
	return nil
}

// ListRequirements returns every requirement, newest first.
func (s *PostgresStore) ListRequirements(ctx context.Context) ([]domain.Requirement, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, title, description, priority, created_at
		FROM requirements ORDER BY id DESC`)
	if err != nil {
		return nil, fmt.Errorf("query requirements: %w", err)
	}
	items, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Requirement, error) {
		var r domain.Requirement
		err := row.Scan(&r.ID, &r.Title, &r.Description, &r.Priority, &r.CreatedAt)
		return r, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan requirements: %w", err)
	}
	return nonNil(items), nil
}

// ListBugs returns every bug report, newest first.
func (s *PostgresStore) ListBugs(ctx context.Context) ([]domain.Bug, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, title, description, severity, steps, created_at
		FROM bugs ORDER BY id DESC`)
	if err != nil {
		return nil, fmt.Errorf("query bugs: %w", err)
	}
	items, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Bug, error) {
		var b domain.Bug
		err := row.Scan(&b.ID, &b.Title, &b.Description, &b.Severity, &b.Steps, &b.CreatedAt)
		return b, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan bugs: %w", err)
	}
	return nonNil(items), nil
}

// ListQueries returns every query, newest first.
func (s *PostgresStore) ListQueries(ctx context.Context) ([]domain.Query, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, title, description, assigned_to, created_at
		FROM queries ORDER BY id DESC`)
	if err != nil {
		return nil, fmt.Errorf("query queries: %w", err)
	}
	items, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Query, error) {
		var q domain.Query
		err := row.Scan(&q.ID, &q.Title, &q.Description, &q.AssignedTo, &q.CreatedAt)
		return q, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan queries: %w", err)
	}
	return nonNil(items), nil
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}

var _ Repository = (*PostgresStore)(nil)
