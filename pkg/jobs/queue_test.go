package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type handlerRecorder struct {
	mu       sync.Mutex
	seen     []Job
	failures int
}

func (r *handlerRecorder) handle(ctx context.Context, job Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen = append(r.seen, job)
	if r.failures > 0 {
		r.failures--
		return errors.New("transient failure")
	}
	return nil
}

func (r *handlerRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.seen)
}

func TestQueueProcessesJobs(t *testing.T) {
	recorder := &handlerRecorder{}
	queue := NewQueue("test", recorder.handle, QueueConfig{Workers: 2, BufferSize: 8})
	queue.Start(context.Background())
	defer queue.Stop()

	for i := 0; i < 5; i++ {
		require.NoError(t, queue.Enqueue(Job{ID: "job", Type: "test"}))
	}

	require.Eventually(t, func() bool { return recorder.count() == 5 }, 2*time.Second, 10*time.Millisecond)
}

func TestQueueRetriesFailedJobs(t *testing.T) {
	recorder := &handlerRecorder{failures: 2}
	queue := NewQueue("test", recorder.handle, QueueConfig{
		Workers:    1,
		MaxRetries: 3,
		RetryDelay: 5 * time.Millisecond,
	})
	queue.Start(context.Background())
	defer queue.Stop()

	require.NoError(t, queue.Enqueue(Job{ID: "flaky", Type: "test"}))

	// Two failures then a success: three handler invocations total.
	require.Eventually(t, func() bool { return recorder.count() == 3 }, 2*time.Second, 10*time.Millisecond)

	recorder.mu.Lock()
	defer recorder.mu.Unlock()
	assert.Equal(t, 0, recorder.seen[0].Attempt)
	assert.Equal(t, 2, recorder.seen[2].Attempt)
}

func TestQueueDropsJobAfterMaxRetries(t *testing.T) {
	recorder := &handlerRecorder{failures: 10}
	queue := NewQueue("test", recorder.handle, QueueConfig{
		Workers:    1,
		MaxRetries: 1,
		RetryDelay: 5 * time.Millisecond,
	})
	queue.Start(context.Background())
	defer queue.Stop()

	require.NoError(t, queue.Enqueue(Job{ID: "doomed", Type: "test"}))

	// Initial attempt plus one retry, then the job is dropped.
	require.Eventually(t, func() bool { return recorder.count() == 2 }, 2*time.Second, 10*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 2, recorder.count())
}

func TestQueueRejectsEnqueueBeforeStart(t *testing.T) {
	queue := NewQueue("test", func(ctx context.Context, job Job) error { return nil }, QueueConfig{})
	err := queue.Enqueue(Job{ID: "early"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not started")
}

func TestQueueStopIsIdempotent(t *testing.T) {
	queue := NewQueue("test", func(ctx context.Context, job Job) error { return nil }, QueueConfig{})
	queue.Stop() // never started
	queue.Start(context.Background())
	queue.Stop()
	queue.Stop()
}

func TestQueueStampsEnqueueTime(t *testing.T) {
	done := make(chan Job, 1)
	queue := NewQueue("test", func(ctx context.Context, job Job) error {
		done <- job
		return nil
	}, QueueConfig{Workers: 1})
	queue.Start(context.Background())
	defer queue.Stop()

	require.NoError(t, queue.Enqueue(Job{ID: "stamped"}))
	select {
	case job := <-done:
		assert.False(t, job.Enqueued.IsZero())
	case <-time.After(2 * time.Second):
		t.Fatal("job was not processed")
	}
}
