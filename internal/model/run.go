package model

import "time"

// RunStatus represents the current state of a question run.
type RunStatus string

const (
	RunStatusQueued   RunStatus = "queued"
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// Run is a persisted record of one question being answered.
type Run struct {
	ID        string     `json:"id"`
	Question  string     `json:"question"`
	Status    RunStatus  `json:"status"`
	Result    *AskResult `json:"result,omitempty"`
	Error     string     `json:"error,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Terminal reports whether the run can no longer change state.
func (r Run) Terminal() bool {
	return r.Status == RunStatusComplete || r.Status == RunStatusFailed
}
