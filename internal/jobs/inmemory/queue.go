package inmemory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/yagudaev/openfinance-sub000/internal/jobs"
)

// Queue is an in-memory implementation of job publisher and consumer.
// It uses Go channels for job distribution and is safe for concurrent use.
// This implementation is suitable for single-instance deployments and
// testing. For production multi-instance deployments, migrate to Cloud
// Tasks or Pub/Sub.
type Queue struct {
	jobChan   chan jobs.Job
	closeChan chan struct{}
	wg        sync.WaitGroup
	mu        sync.RWMutex
	store     jobs.JobStore
	closed    bool

	// keyLocks serializes jobs sharing a Key: a ledger rebuild for a user
	// must never interleave with another rebuild for the same user.
	keyMu    sync.Mutex
	keyLocks map[string]*sync.Mutex

	workerCount int
}

// NewQueue creates a new in-memory job queue.
// bufferSize determines how many jobs can be queued before publishing blocks.
func NewQueue(bufferSize int, store jobs.JobStore) *Queue {
	return &Queue{
		jobChan:     make(chan jobs.Job, bufferSize),
		closeChan:   make(chan struct{}),
		store:       store,
		keyLocks:    make(map[string]*sync.Mutex),
		workerCount: 5,
	}
}

// PublishProcessStatement implements the Publisher interface.
func (q *Queue) PublishProcessStatement(ctx context.Context, job *jobs.ProcessStatementJob) error {
	return q.publish(ctx, job)
}

// PublishRebuildLedger implements the Publisher interface.
func (q *Queue) PublishRebuildLedger(ctx context.Context, job *jobs.RebuildLedgerJob) error {
	return q.publish(ctx, job)
}

func (q *Queue) publish(ctx context.Context, job jobs.Job) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return fmt.Errorf("queue is closed")
	}

	m := job.JobMeta()
	if m.JobID == "" {
		m.JobID = uuid.New().String()
	}
	if m.Status == "" {
		m.Status = jobs.JobStatusPending
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}
	if m.MaxRetries == 0 {
		m.MaxRetries = 3
	}

	if q.store != nil {
		if err := q.store.SaveJob(ctx, job); err != nil {
			return fmt.Errorf("failed to save job: %w", err)
		}
	}

	select {
	case q.jobChan <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-q.closeChan:
		return fmt.Errorf("queue is closed")
	}
}

// Start implements the Consumer interface.
// The handler is called concurrently for each job, up to workerCount
// workers; jobs sharing a Key still run one at a time.
func (q *Queue) Start(ctx context.Context, handler jobs.JobHandler) error {
	q.mu.RLock()
	if q.closed {
		q.mu.RUnlock()
		return fmt.Errorf("queue is closed")
	}
	q.mu.RUnlock()

	for i := 0; i < q.workerCount; i++ {
		q.wg.Add(1)
		go q.worker(ctx, handler)
	}

	return nil
}

func (q *Queue) worker(ctx context.Context, handler jobs.JobHandler) {
	defer q.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-q.closeChan:
			return
		case job := <-q.jobChan:
			if job == nil {
				return
			}

			q.processJob(ctx, job, handler)
		}
	}
}

// processJob executes a single job with retry logic.
func (q *Queue) processJob(ctx context.Context, job jobs.Job, handler jobs.JobHandler) {
	lock := q.lockForKey(job.Key())
	lock.Lock()
	defer lock.Unlock()

	m := job.JobMeta()
	m.Status = jobs.JobStatusRunning
	now := time.Now()
	m.StartedAt = &now

	if q.store != nil {
		_ = q.store.SaveJob(ctx, job)
	}

	err := handler(ctx, job)

	completedAt := time.Now()
	m.CompletedAt = &completedAt

	if err != nil {
		m.Error = err.Error()

		if m.RetryCount < m.MaxRetries {
			m.RetryCount++
			m.Status = jobs.JobStatusRetrying

			// Re-enqueue with linear backoff
			backoff := time.Duration(m.RetryCount) * time.Second
			time.AfterFunc(backoff, func() {
				m.Status = jobs.JobStatusPending
				m.StartedAt = nil
				m.CompletedAt = nil
				_ = q.publish(ctx, job)
			})
		} else {
			m.Status = jobs.JobStatusFailed
		}
	} else {
		m.Status = jobs.JobStatusCompleted
		m.Error = ""
	}

	if q.store != nil {
		_ = q.store.SaveJob(ctx, job)
	}
}

func (q *Queue) lockForKey(key string) *sync.Mutex {
	q.keyMu.Lock()
	defer q.keyMu.Unlock()

	lock, ok := q.keyLocks[key]
	if !ok {
		lock = &sync.Mutex{}
		q.keyLocks[key] = lock
	}
	return lock
}

// Stop implements the Consumer interface.
// It stops the queue and waits for all in-flight jobs to complete.
func (q *Queue) Stop(ctx context.Context) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	close(q.closeChan)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close implements the Publisher interface.
func (q *Queue) Close() error {
	return q.Stop(context.Background())
}

var _ jobs.Publisher = (*Queue)(nil)
var _ jobs.Consumer = (*Queue)(nil)
