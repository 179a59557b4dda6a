// Package jobs defines background work items and the queue contracts that
// move them between the API and workers.
package jobs

import (
	"context"
	"errors"
	"time"
)

// ErrJobNotFound is returned by a JobStore for an unknown job ID.
var ErrJobNotFound = errors.New("job not found")

// JobType represents the type of job to be executed.
type JobType string

const (
	// JobTypeLoadDataset replaces the transaction dataset from a URI.
	JobTypeLoadDataset JobType = "load_dataset"
)

// JobStatus represents the current status of a job.
type JobStatus string

const (
	// JobStatusPending indicates the job is waiting to be processed.
	JobStatusPending JobStatus = "pending"
	// JobStatusRunning indicates the job is currently being processed.
	JobStatusRunning JobStatus = "running"
	// JobStatusCompleted indicates the job completed successfully.
	JobStatusCompleted JobStatus = "completed"
	// JobStatusFailed indicates the job failed.
	JobStatusFailed JobStatus = "failed"
	// JobStatusRetrying indicates the job failed and is being retried.
	JobStatusRetrying JobStatus = "retrying"
)

// LoadResult is what a finished dataset load reports back.
type LoadResult struct {
	RowsRead    int      `json:"rows_read"`
	RowsLoaded  int      `json:"rows_loaded"`
	RowsSkipped int      `json:"rows_skipped"`
	Errors      []string `json:"errors,omitempty"`
}

// LoadDatasetJob loads a transaction dataset from a gs://, synthetic:// or
// local URI into the active row source.
type LoadDatasetJob struct {
	// JobID is the unique identifier for this job.
	JobID string `json:"job_id"`

	// URI names the dataset to load.
	URI string `json:"uri"`

	Status JobStatus `json:"status"`

	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// Result is set once the load has run.
	Result *LoadResult `json:"result,omitempty"`

	// Error contains error details if the job failed.
	Error string `json:"error,omitempty"`

	RetryCount int `json:"retry_count"`
	MaxRetries int `json:"max_retries"`
}

// Job is a generic interface for all job types.
type Job interface {
	GetID() string
	GetType() JobType
	GetStatus() JobStatus
}

// GetID implements the Job interface.
func (j *LoadDatasetJob) GetID() string {
	return j.JobID
}

// GetType implements the Job interface.
func (j *LoadDatasetJob) GetType() JobType {
	return JobTypeLoadDataset
}

// GetStatus implements the Job interface.
func (j *LoadDatasetJob) GetStatus() JobStatus {
	return j.Status
}

// Publisher enqueues jobs.
type Publisher interface {
	// PublishLoadDataset enqueues a dataset load. It fills in JobID,
	// Status and CreatedAt when they are unset.
	PublishLoadDataset(ctx context.Context, job *LoadDatasetJob) error

	// Close closes the publisher and releases resources.
	Close() error
}

// Consumer runs queued jobs.
type Consumer interface {
	// Start launches workers that call handler for each job.
	Start(ctx context.Context, handler JobHandler) error

	// Stop stops consuming jobs and waits for in-flight jobs to complete.
	Stop(ctx context.Context) error
}

// JobHandler processes a job. A returned error marks the attempt failed and
// may trigger a retry.
type JobHandler func(ctx context.Context, job Job) error

// JobStore keeps job state so the API can report progress.
type JobStore interface {
	// SaveJob saves or updates a job's state.
	SaveJob(ctx context.Context, job *LoadDatasetJob) error

	// GetJob retrieves a job by ID. Unknown IDs yield ErrJobNotFound.
	GetJob(ctx context.Context, jobID string) (*LoadDatasetJob, error)

	// ListJobs returns jobs newest first.
	ListJobs(ctx context.Context, filter JobFilter) ([]*LoadDatasetJob, error)

	// UpdateJobStatus updates the status of a job.
	UpdateJobStatus(ctx context.Context, jobID string, status JobStatus, errorMsg string) error
}

// JobFilter defines filtering criteria for listing jobs.
type JobFilter struct {
	// URI filters jobs by dataset URI.
	URI string

	// Status filters jobs by status.
	Status JobStatus

	// Limit limits the number of results.
	Limit int

	// Offset for pagination.
	Offset int
}
