package database

import (
	"time"

	"github.com/oklog/ulid/v2"
)

// JobStatus represents the status of a job
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// JobType represents the type of job
type JobType string

const (
	JobTypeExport JobType = "export"
	JobTypePrune  JobType = "prune"
)

// Job represents a background export or housekeeping run
type Job struct {
	ID          ulid.ULID  `json:"id"`
	Type        JobType    `json:"type"`
	Status      JobStatus  `json:"status"`
	Progress    int        `json:"progress"`         // 0-100
	CurrentStep string     `json:"currentStep"`      // Human-readable current step
	TotalSteps  int        `json:"totalSteps"`       // Pages to render for exports
	Message     string     `json:"message"`          // Status message
	Error       string     `json:"error,omitempty"`  // Error message if failed
	Result      string     `json:"result,omitempty"` // JSON result data
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
	StartedAt   *time.Time `json:"startedAt,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

// Finished reports whether the job has reached a terminal status
func (j *Job) Finished() bool {
	switch j.Status {
	case JobStatusCompleted, JobStatusFailed, JobStatusCancelled:
		return true
	}
	return false
}

// JobSummary is stored as the result of a completed job
type JobSummary struct {
	PagesRendered int    `json:"pagesRendered"`
	PagesTotal    int    `json:"pagesTotal"`
	BytesWritten  int64  `json:"bytesWritten"`
	Size          string `json:"size"` // BytesWritten for display
	Errors        int    `json:"errors"`
	Details       string `json:"details,omitempty"`
}

func finishedStatuses() []string {
	return []string{string(JobStatusCompleted), string(JobStatusFailed), string(JobStatusCancelled)}
}
