package models

import "time"

// JobStatus represents the state of a generation job
type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobCompleted JobStatus = "completed"
	JobError     JobStatus = "error"
)

// IsTerminal returns true if no further transitions are allowed
func (s JobStatus) IsTerminal() bool {
	return s == JobCompleted || s == JobError
}

// Job tracks an asynchronous puzzle generation by opaque id
type Job struct {
	ID        string    `json:"id"`
	Status    JobStatus `json:"status"`
	Puzzle    *Puzzle   `json:"puzzle"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
