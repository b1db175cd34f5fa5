package model

import "time"

// RunStatus tracks a stored query run through its lifecycle.
type RunStatus string

const (
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// Run is one persisted pipeline invocation.
type Run struct {
	ID        string    `json:"id"`
	Prompt    string    `json:"prompt"`
	Status    RunStatus `json:"status"`
	Record    *Answer   `json:"record,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
