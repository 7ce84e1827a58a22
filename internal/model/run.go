package model

import "time"

// RunStatus represents the current state of a pipeline run.
type RunStatus string

const (
	RunStatusQueued   RunStatus = "queued"
	RunStatusLoading  RunStatus = "loading"
	RunStatusLinking  RunStatus = "linking"
	RunStatusDeriving RunStatus = "deriving"
	RunStatusWriting  RunStatus = "writing"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// Run represents a single pipeline run for one version.
type Run struct {
	ID        string     `json:"id"`
	Version   Version    `json:"version"`
	Status    RunStatus  `json:"status"`
	Result    *RunResult `json:"result,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// RunResult holds the final outcome of a run.
type RunResult struct {
	ContractsLinked     int            `json:"contracts_linked"`
	DroppedNoAward      int            `json:"dropped_no_award"`
	HighRisk            int            `json:"high_risk"`
	DegradedFields      map[string]int `json:"degraded_fields,omitempty"`
	UnresolvedSuppliers int            `json:"unresolved_suppliers"`
	Phases              []PhaseResult  `json:"phases"`
	OutputPath          string         `json:"output_path"`
	Error               string         `json:"error,omitempty"`
}

// PhaseStatus represents the current state of a pipeline phase.
type PhaseStatus string

const (
	PhaseStatusComplete PhaseStatus = "complete"
	PhaseStatusFailed   PhaseStatus = "failed"
)

// PhaseResult holds the outcome of a pipeline phase.
type PhaseResult struct {
	Name     string         `json:"name"`
	Status   PhaseStatus    `json:"status"`
	Duration int64          `json:"duration_ms"`
	Error    string         `json:"error,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}
