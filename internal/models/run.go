package models

import "time"

// RunStatus represents the state of a batch run.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusSucceeded RunStatus = "succeeded"
	RunStatusFailed    RunStatus = "failed"
)

// Run records one batch execution (sync, simulation, import...). At most one
// run of a kind is running at a time; the partial unique index enforces it.
type Run struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Kind   string    `gorm:"size:50;index;uniqueIndex:idx_runs_one_running,where:status = 'running';not null" json:"kind"`
	Scope  string    `gorm:"size:100" json:"scope,omitempty"`
	Status RunStatus `gorm:"size:20;index;not null" json:"status"`

	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`

	Processed int `json:"processed"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
	// Errors is the JSON encoded list of item errors.
	Errors string `gorm:"type:text" json:"errors,omitempty"`
}

// IsRunning returns true while the run has not finished.
func (r *Run) IsRunning() bool {
	return r.Status == RunStatusRunning
}

// Duration is the elapsed time of a finished run, zero otherwise.
func (r *Run) Duration() time.Duration {
	if r.FinishedAt == nil {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
