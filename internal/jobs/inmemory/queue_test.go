package inmemory

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yagudaev/openfinance-sub000/internal/jobs"
)

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		if cond() {
			return
		}
		select {
		case <-deadline:
			t.Fatal("condition not met in time")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestQueueProcessesJob(t *testing.T) {
	store := NewStore()
	q := NewQueue(10, store)
	defer q.Close()

	var handled atomic.Int32
	require.NoError(t, q.Start(context.Background(), func(ctx context.Context, job jobs.Job) error {
		handled.Add(1)
		return nil
	}))

	job := &jobs.ProcessStatementJob{UserID: "user-1", FileURI: "gs://b/f.pdf"}
	require.NoError(t, q.PublishProcessStatement(context.Background(), job))
	require.NotEmpty(t, job.JobID)

	waitFor(t, func() bool { return handled.Load() == 1 })
	waitFor(t, func() bool {
		saved, err := store.GetJob(context.Background(), job.JobID)
		return err == nil && saved.GetStatus() == jobs.JobStatusCompleted
	})
}

func TestQueueRetriesFailedJob(t *testing.T) {
	store := NewStore()
	q := NewQueue(10, store)
	defer q.Close()

	var attempts atomic.Int32
	require.NoError(t, q.Start(context.Background(), func(ctx context.Context, job jobs.Job) error {
		if attempts.Add(1) < 3 {
			return errors.New("transient")
		}
		return nil
	}))

	job := &jobs.RebuildLedgerJob{UserID: "user-1"}
	job.MaxRetries = 5
	require.NoError(t, q.PublishRebuildLedger(context.Background(), job))

	waitFor(t, func() bool { return attempts.Load() == 3 })
	waitFor(t, func() bool {
		saved, err := store.GetJob(context.Background(), job.JobID)
		return err == nil && saved.GetStatus() == jobs.JobStatusCompleted
	})
}

func TestQueueGivesUpAfterMaxRetries(t *testing.T) {
	store := NewStore()
	q := NewQueue(10, store)
	defer q.Close()

	require.NoError(t, q.Start(context.Background(), func(ctx context.Context, job jobs.Job) error {
		return errors.New("permanent")
	}))

	job := &jobs.RebuildLedgerJob{UserID: "user-1"}
	job.MaxRetries = 1
	require.NoError(t, q.PublishRebuildLedger(context.Background(), job))

	waitFor(t, func() bool {
		saved, err := store.GetJob(context.Background(), job.JobID)
		return err == nil && saved.GetStatus() == jobs.JobStatusFailed
	})
	saved, err := store.GetJob(context.Background(), job.JobID)
	require.NoError(t, err)
	assert.Contains(t, saved.JobMeta().Error, "permanent")
}

func TestQueueSerializesJobsWithSameKey(t *testing.T) {
	q := NewQueue(10, NewStore())
	defer q.Close()

	var mu sync.Mutex
	inFlight := map[string]int{}
	var maxSameKey atomic.Int32

	require.NoError(t, q.Start(context.Background(), func(ctx context.Context, job jobs.Job) error {
		mu.Lock()
		inFlight[job.Key()]++
		if n := int32(inFlight[job.Key()]); n > maxSameKey.Load() {
			maxSameKey.Store(n)
		}
		mu.Unlock()

		time.Sleep(20 * time.Millisecond)

		mu.Lock()
		inFlight[job.Key()]--
		mu.Unlock()
		return nil
	}))

	for i := 0; i < 4; i++ {
		job := &jobs.RebuildLedgerJob{UserID: "user-1"}
		require.NoError(t, q.PublishRebuildLedger(context.Background(), job))
	}

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return maxSameKey.Load() > 0 && inFlight["ledger:user-1"] == 0
	})
	// Give stragglers a chance to overlap before asserting.
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(1), maxSameKey.Load(), "same-key jobs must not run concurrently")
}

func TestQueueRejectsPublishAfterClose(t *testing.T) {
	q := NewQueue(1, nil)
	require.NoError(t, q.Close())

	err := q.PublishProcessStatement(context.Background(), &jobs.ProcessStatementJob{})
	assert.Error(t, err)
}

func TestStoreListJobs(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	a := &jobs.ProcessStatementJob{UserID: "u1", FileURI: "gs://b/a.pdf"}
	a.JobID = "job-a"
	a.Status = jobs.JobStatusCompleted
	b := &jobs.RebuildLedgerJob{UserID: "u1"}
	b.JobID = "job-b"
	b.Status = jobs.JobStatusPending

	require.NoError(t, store.SaveJob(ctx, a))
	require.NoError(t, store.SaveJob(ctx, b))

	all, err := store.ListJobs(ctx, jobs.JobFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	rebuilds, err := store.ListJobs(ctx, jobs.JobFilter{Type: jobs.JobTypeRebuildLedger})
	require.NoError(t, err)
	require.Len(t, rebuilds, 1)
	assert.Equal(t, "job-b", rebuilds[0].GetID())

	completed, err := store.ListJobs(ctx, jobs.JobFilter{Status: jobs.JobStatusCompleted})
	require.NoError(t, err)
	require.Len(t, completed, 1)
	assert.Equal(t, "job-a", completed[0].GetID())
}

func TestStoreSnapshotsAreIsolated(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	job := &jobs.RebuildLedgerJob{UserID: "u1"}
	job.JobID = "job-1"
	job.Status = jobs.JobStatusPending
	require.NoError(t, store.SaveJob(ctx, job))

	job.Status = jobs.JobStatusFailed

	saved, err := store.GetJob(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, jobs.JobStatusPending, saved.GetStatus())
}
