package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/ashureev/projecthub/internal/domain"
	"github.com/ashureev/projecthub/internal/shared"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db    *sql.DB
	retry shared.RetryPolicy
	now   func() time.Time
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// WAL lets list requests read while a flow commits.
	dsn := dbPath + "?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{
		db:    db,
		retry: shared.DefaultRetryPolicy(),
		now:   func() time.Time { return time.Now().UTC() },
	}
	if err := store.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS requirements (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		title TEXT NOT NULL,
		description TEXT NOT NULL,
		priority TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS bugs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		title TEXT NOT NULL,
		description TEXT NOT NULL,
		severity TEXT NOT NULL,
		steps TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS queries (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		title TEXT NOT NULL,
		description TEXT NOT NULL,
		assigned_to TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

// insert runs an INSERT with SQLITE_BUSY retries and returns the new row ID.
func (s *SQLiteStore) insert(ctx context.Context, query string, args ...any) (int64, error) {
	var id int64
	err := shared.RetryOnConflict(ctx, s.retry, func() error {
		result, err := s.db.ExecContext(ctx, query, args...)
		if err != nil {
			return err
		}
		id, err = result.LastInsertId()
		return err
	})
	return id, err
}

// InsertRequirement stores a requirement.
func (s *SQLiteStore) InsertRequirement(ctx context.Context, req *domain.Requirement) error {
	createdAt := s.now()
	id, err := s.insert(ctx,
		`INSERT INTO requirements (title, description, priority, created_at) VALUES (?, ?, ?, ?)`,
		req.Title, req.Description, req.Priority, createdAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("insert requirement: %w", err)
	}
	req.ID = id
	req.CreatedAt = time.Unix(createdAt.Unix(), 0).UTC()
	return nil
}

// InsertBug stores a bug report.
func (s *SQLiteStore) InsertBug(ctx context.Context, bug *domain.Bug) error {
	createdAt := s.now()
	id, err := s.insert(ctx,
		`INSERT INTO bugs (title, description, severity, steps, created_at) VALUES (?, ?, ?, ?, ?)`,
		bug.Title, bug.Description, bug.Severity, bug.Steps, createdAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("insert bug: %w", err)
	}
	bug.ID = id
	bug.CreatedAt = time.Unix(createdAt.Unix(), 0).UTC()
	return nil
}

// InsertQuery stores a query.
func (s *SQLiteStore) InsertQuery(ctx context.Context, q *domain.Query) error {
	createdAt := s.now()
	id, err := s.insert(ctx,
		`INSERT INTO queries (title, description, assigned_to, created_at) VALUES (?, ?, ?, ?)`,
		q.Title, q.Description, q.AssignedTo, createdAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("insert query: %w", err)
	}
	q.ID = id
	q.CreatedAt = time.Unix(createdAt.Unix(), 0).UTC()
	return nil
}

// ListRequirements returns every requirement, newest first.
func (s *SQLiteStore) ListRequirements(ctx context.Context) ([]domain.Requirement, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, description, priority, created_at
		FROM requirements ORDER BY id DESC`)
	if err != nil {
		return nil, fmt.Errorf("query requirements: %w", err)
	}
	defer closeRows(rows, "requirements")

	items := make([]domain.Requirement, 0)
	for rows.Next() {
		var r domain.Requirement
		var createdAt int64
		if err := rows.Scan(&r.ID, &r.Title, &r.Description, &r.Priority, &createdAt); err != nil {
			return nil, fmt.Errorf("scan requirement row: %w", err)
		}
		r.CreatedAt = time.Unix(createdAt, 0).UTC()
		items = append(items, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate requirements: %w", err)
	}
	return items, nil
}

// ListBugs returns every bug report, newest first.
func (s *SQLiteStore) ListBugs(ctx context.Context) ([]domain.Bug, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, description, severity, steps, created_at
		FROM bugs ORDER BY id DESC`)
	if err != nil {
		return nil, fmt.Errorf("query bugs: %w", err)
	}
	defer closeRows(rows, "bugs")

	items := make([]domain.Bug, 0)
	for rows.Next() {
		var b domain.Bug
		var createdAt int64
		if err := rows.Scan(&b.ID, &b.Title, &b.Description, &b.Severity, &b.Steps, &createdAt); err != nil {
			return nil, fmt.Errorf("scan bug row: %w", err)
		}
		b.CreatedAt = time.Unix(createdAt, 0).UTC()
		items = append(items, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate bugs: %w", err)
	}
	return items, nil
}

// ListQueries returns every query, newest first.
func (s *SQLiteStore) ListQueries(ctx context.Context) ([]domain.Query, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, description, assigned_to, created_at
		FROM queries ORDER BY id DESC`)
	if err != nil {
		return nil, fmt.Errorf("query queries: %w", err)
	}
	defer closeRows(rows, "queries")

	items := make([]domain.Query, 0)
	for rows.Next() {
		var q domain.Query
		var createdAt int64
		if err := rows.Scan(&q.ID, &q.Title, &q.Description, &q.AssignedTo, &createdAt); err != nil {
			return nil, fmt.Errorf("scan query row: %w", err)
		}
		q.CreatedAt = time.Unix(createdAt, 0).UTC()
		items = append(items, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate queries: %w", err)
	}
	return items, nil
}

func closeRows(rows *sql.Rows, table string) {
	if err := rows.Close(); err != nil {
		slog.Warn("failed to close rows", "table", table, "error", err)
	}
}

var _ Repository = (*SQLiteStore)(nil)
