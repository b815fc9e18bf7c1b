// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"fmt"

	"github.com/ashureev/projecthub/internal/domain"
)

// Repository defines the interface for persisting requirements, bugs and queries.
// Records are append-only; list operations return newest (highest ID) first.
type Repository interface {
	// InsertRequirement stores a requirement and sets its ID and CreatedAt.
	InsertRequirement(ctx context.Context, req *domain.Requirement) error

	// InsertBug stores a bug report and sets its ID and CreatedAt.
	InsertBug(ctx context.Context, bug *domain.Bug) error

	// InsertQuery stores a query and sets its ID and CreatedAt.
	InsertQuery(ctx context.Context, q *domain.Query) error

	// ListRequirements returns every requirement, newest first.
	ListRequirements(ctx context.Context) ([]domain.Requirement, error)

	// ListBugs returns every bug report, newest first.
	ListBugs(ctx context.Context) ([]domain.Bug, error)

	// ListQueries returns every query, newest first.
	ListQueries(ctx context.Context) ([]domain.Query, error)

	// Ping verifies database connectivity and returns an error if the database is unreachable.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}

// ListItems returns the collection named by t from repo. The returned
// value is a non-nil slice of the matching record type.
func ListItems(ctx context.Context, repo Repository, t domain.ItemType) (any, error) {
	switch t {
	case domain.ItemTypeRequirements:
		return repo.ListRequirements(ctx)
	case domain.ItemTypeBugs:
		return repo.ListBugs(ctx)
	case domain.ItemTypeQueries:
		return repo.ListQueries(ctx)
	default:
		return nil, fmt.Errorf("unknown item type %q", t)
	}
}
