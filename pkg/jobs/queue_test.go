package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestQueueTransientFailureKeepsRetryBudget(t *testing.T) {
	var calls int32
	var lastAttempt int32
	done := make(chan struct{})

	handler := func(_ context.Context, job Job) error {
		n := atomic.AddInt32(&calls, 1)
		atomic.StoreInt32(&lastAttempt, int32(job.Attempt))
		// Contention clears only after several deferrals, well past the
		// one-attempt budget below.
		if n < 5 {
			return Transient(errors.New("scope busy"))
		}
		close(done)
		return nil
	}

	q := NewQueue("test", handler, QueueConfig{
		Workers:    1,
		MaxRetries: 1,
		RetryDelay: time.Millisecond,
		Logger:     zap.NewNop(),
	})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{ID: "job-1", Type: "test"}))

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("job never succeeded")
	}
	assert.EqualValues(t, 5, atomic.LoadInt32(&calls))
	assert.Zero(t, atomic.LoadInt32(&lastAttempt))
}

func TestQueuePermanentFailureConsumesRetries(t *testing.T) {
	var calls int32
	handler := func(context.Context, Job) error {
		atomic.AddInt32(&calls, 1)
		return errors.New("boom")
	}

	q := NewQueue("test", handler, QueueConfig{
		Workers:    1,
		MaxRetries: 1,
		RetryDelay: time.Millisecond,
		Logger:     zap.NewNop(),
	})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{ID: "job-1", Type: "test"}))

	// Initial run plus one retry, then the job is dropped.
	assert.Eventually(t, func() bool {
		return atomic.LoadInt32(&calls) == 2
	}, 2*time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls))
}
