// Package store persists query runs so answers can be retrieved and audited
// after the fact. Two backends are provided: SQLite for single-host use and
// Postgres for shared deployments.
package store

import (
	"context"

	"github.com/sells-group/bankquery/internal/model"
)

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Status model.RunStatus `json:"status,omitempty"`
	Limit  int             `json:"limit,omitempty"`
	Offset int             `json:"offset,omitempty"`
}

// Store defines the persistence interface for query runs.
type Store interface {
	CreateRun(ctx context.Context, prompt string) (*model.Run, error)
	CompleteRun(ctx context.Context, runID string, record *model.Answer) error
	FailRun(ctx context.Context, runID string) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)

	Migrate(ctx context.Context) error
	Close() error
}
