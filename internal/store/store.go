// Package store persists run history and exported identifiers across
// invocations. The results directory remains the source of truth for
// output data; the store adds queryable history and a durable dedup
// index.
package store

import (
	"context"

	"github.com/reachlab/creator-scout/internal/model"
)

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Kind   model.RunKind   `json:"kind,omitempty"`
	Status model.RunStatus `json:"status,omitempty"`
	Limit  int             `json:"limit,omitempty"`
	Offset int             `json:"offset,omitempty"`
}

// Store defines the persistence interface for run history.
type Store interface {
	// Runs
	CreateRun(ctx context.Context, kind model.RunKind, query, targetLocation string) (*model.Run, error)
	CompleteRun(ctx context.Context, runID string, status model.RunStatus, summary model.RunSummary) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)

	// Failures
	RecordFailure(ctx context.Context, runID string, failure model.FailureRecord) error
	ListFailures(ctx context.Context, runID string) ([]model.FailureRecord, error)

	// Exported-identifier index
	MarkExported(ctx context.Context, runID string, ids []string) error
	ExportedIDs(ctx context.Context) ([]string, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
