package insight

import (
	"context"
	"errors"
	"time"
)

// ErrJobNotFound is returned when a job ID has no record.
var ErrJobNotFound = errors.New("insight: job not found")

// JobStatus is the lifecycle state of an analysis job.
type JobStatus string

const (
	JobPending    JobStatus = "pending"
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
)

// JobRecord is the persisted view of an analysis job.
type JobRecord struct {
	JobID        string        `json:"jobId"`
	UserID       string        `json:"userId"`
	Status       JobStatus     `json:"status"`
	Stage        Stage         `json:"stage,omitempty"`
	Progress     int           `json:"progress"`
	Bundle       *ReportBundle `json:"bundle,omitempty"`
	ErrorMessage string        `json:"errorMessage,omitempty"`
	CreatedAt    time.Time     `json:"createdAt"`
	UpdatedAt    time.Time     `json:"updatedAt"`
}

// JobStore persists job lifecycle state. The API surface is split the
// same way callers use it: the HTTP layer creates and reads, the worker
// advances.
type JobStore interface {
	CreateJob(ctx context.Context, jobID, userID string) error
	GetJob(ctx context.Context, jobID string) (*JobRecord, error)
	MarkProcessing(ctx context.Context, jobID string) error
	SetProgress(ctx context.Context, jobID string, stage Stage, percent int) error
	MarkCompleted(ctx context.Context, jobID string, bundle *ReportBundle) error
	MarkFailed(ctx context.Context, jobID, message string) error
}
