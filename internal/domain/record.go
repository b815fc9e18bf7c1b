// Package domain contains core domain types for the ProjectHub assistant.
package domain

import (
	"time"
)

// Requirement is a persisted feature request.
type Requirement struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Priority    string    `json:"priority"`
	CreatedAt   time.Time `json:"created_at"`
}

// Bug is a persisted bug report.
type Bug struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Severity    string    `json:"severity"`
	Steps       string    `json:"steps"`
	CreatedAt   time.Time `json:"created_at"`
}

// Query is a persisted question raised to a team member.
type Query struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	AssignedTo  string    `json:"assigned_to"`
	CreatedAt   time.Time `json:"created_at"`
}
