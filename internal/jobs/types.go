package jobs

import (
	"context"
	"time"
)

// JobType represents the type of job to be executed.
type JobType string

const (
	// JobTypeProcessStatement extracts and verifies an uploaded statement.
	JobTypeProcessStatement JobType = "process_statement"
	// JobTypeRebuildLedger recalculates a user's daily net-worth ledger.
	JobTypeRebuildLedger JobType = "rebuild_ledger"
)

// JobStatus represents the current status of a job.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusRetrying  JobStatus = "retrying"
)

// Meta carries the queue bookkeeping shared by every job type.
type Meta struct {
	JobID string `json:"job_id"`

	Status    JobStatus `json:"status"`
	CreatedAt time.Time `json:"created_at"`

	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// Error contains error details if the job failed.
	Error string `json:"error,omitempty"`

	RetryCount int `json:"retry_count"`
	MaxRetries int `json:"max_retries"`
}

func (m *Meta) GetID() string        { return m.JobID }
func (m *Meta) GetStatus() JobStatus { return m.Status }

// JobMeta exposes the bookkeeping fields to queue implementations.
func (m *Meta) JobMeta() *Meta { return m }

// ProcessStatementJob asks the worker to run the extraction pipeline
// against a stored document.
type ProcessStatementJob struct {
	Meta

	UserID   string `json:"user_id"`
	FileURI  string `json:"file_uri"`
	Filename string `json:"filename"`
	Timezone string `json:"timezone,omitempty"`
}

func (j *ProcessStatementJob) GetType() JobType { return JobTypeProcessStatement }

// Key serializes per document: the same upload is never processed twice
// concurrently, while different documents run in parallel.
func (j *ProcessStatementJob) Key() string { return "statement:" + j.FileURI }

func (j *ProcessStatementJob) Clone() Job {
	c := *j
	return &c
}

// RebuildLedgerJob asks the worker to regenerate a user's daily ledger.
type RebuildLedgerJob struct {
	Meta

	UserID string `json:"user_id"`
}

func (j *RebuildLedgerJob) GetType() JobType { return JobTypeRebuildLedger }

// Key serializes per user: the rebuild replaces every derived row for the
// user, so two rebuilds must never interleave.
func (j *RebuildLedgerJob) Key() string { return "ledger:" + j.UserID }

func (j *RebuildLedgerJob) Clone() Job {
	c := *j
	return &c
}

// Job is the generic interface for all job types.
type Job interface {
	GetID() string
	GetType() JobType
	GetStatus() JobStatus

	// Key groups jobs that must not run concurrently.
	Key() string

	// Clone returns an independent copy for storage snapshots.
	Clone() Job

	// JobMeta exposes the mutable bookkeeping fields.
	JobMeta() *Meta
}

// Publisher defines the interface for publishing jobs to a queue.
// This abstraction allows for different queue implementations (in-memory,
// Cloud Tasks, Pub/Sub).
type Publisher interface {
	PublishProcessStatement(ctx context.Context, job *ProcessStatementJob) error
	PublishRebuildLedger(ctx context.Context, job *RebuildLedgerJob) error

	// Close closes the publisher and releases resources.
	Close() error
}

// Consumer defines the interface for consuming jobs from a queue.
type Consumer interface {
	// Start begins consuming jobs from the queue.
	// The handler function is called for each job received.
	Start(ctx context.Context, handler JobHandler) error

	// Stop stops consuming jobs and waits for in-flight jobs to complete.
	Stop(ctx context.Context) error
}

// JobHandler is a function that processes a job.
// It should return an error if the job failed and should be retried.
type JobHandler func(ctx context.Context, job Job) error

// JobStore defines the interface for storing and retrieving job status.
type JobStore interface {
	// SaveJob saves or updates a job's state.
	SaveJob(ctx context.Context, job Job) error

	// GetJob retrieves a job by ID.
	GetJob(ctx context.Context, jobID string) (Job, error)

	// ListJobs retrieves jobs with optional filtering.
	ListJobs(ctx context.Context, filter JobFilter) ([]Job, error)
}

// JobFilter defines filtering criteria for listing jobs.
type JobFilter struct {
	Type   JobType
	Status JobStatus

	Limit  int
	Offset int
}
