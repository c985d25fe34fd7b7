package model

import "time"

// RunKind distinguishes discovery runs from explicit scrape runs.
type RunKind string

const (
	RunKindFind   RunKind = "find"
	RunKindScrape RunKind = "scrape"
)

// RunStatus tracks the lifecycle of a run.
type RunStatus string

const (
	RunStatusRunning     RunStatus = "running"
	RunStatusComplete    RunStatus = "complete"
	RunStatusInterrupted RunStatus = "interrupted"
	RunStatusFailed      RunStatus = "failed"
)

// RunSummary holds the per-run outcome counts reported to the user.
type RunSummary struct {
	Processed int `json:"processed"`
	Succeeded int `json:"succeeded"`
	Skipped   int `json:"skipped"`
}

// Run is a single invocation of the pipeline, persisted for history.
type Run struct {
	ID             string     `json:"id"`
	Kind           RunKind    `json:"kind"`
	Query          string     `json:"query"`
	TargetLocation string     `json:"target_location,omitempty"`
	Status         RunStatus  `json:"status"`
	Summary        RunSummary `json:"summary"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// FailureReasonRetries marks an item dropped after exhausting its retry
// budget. This is a terminal, non-fatal outcome.
const FailureReasonRetries = "skipped_after_retries"

// FailureRecord is the terminal record for an item whose extraction budget
// was exhausted. The item is excluded from all further stages.
type FailureRecord struct {
	ID       string `json:"id"`
	Reason   string `json:"reason"`
	Attempts int    `json:"attempts"`
}
