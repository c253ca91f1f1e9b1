package models

import (
	"time"

	"github.com/google/uuid"
)

// JobStatus is the lifecycle state of a queued execution job. Completed
// jobs are deleted rather than kept in a terminal state.
type JobStatus string

const (
	JobPending JobStatus = "pending"
	JobRunning JobStatus = "running"
)

// ExecutionJob is one scheduled or ad hoc request to run a monitor's check
// once. Ticks enqueue and return; workers claim and execute.
type ExecutionJob struct {
	ID         uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	MonitorID  uuid.UUID `json:"monitor_id" gorm:"type:uuid;not null;index"`
	Attempt    int       `json:"attempt" gorm:"default:0"`
	Status     JobStatus `json:"status" gorm:"default:'pending';index:idx_job_runnable"`
	EnqueuedAt time.Time `json:"enqueued_at" gorm:"not null"`

	// RunAfter gates retry backoff: a job is runnable once run_after <= now.
	RunAfter time.Time `json:"run_after" gorm:"not null;index:idx_job_runnable"`

	StartedAt *time.Time `json:"started_at,omitempty"`
}

// TableName specifies the table name for ExecutionJob
func (ExecutionJob) TableName() string {
	return "execution_jobs"
}
