package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueProcessesJobs(t *testing.T) {
	var processed atomic.Int32
	done := make(chan struct{}, 3)
	q := NewQueue("test", func(_ context.Context, job Job[string]) error {
		processed.Add(1)
		done <- struct{}{}
		return nil
	}, QueueConfig[string]{Workers: 2})
	q.Start(context.Background())
	defer q.Stop()

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, q.Enqueue(Job[string]{ID: id, Payload: id}))
	}
	for i := 0; i < 3; i++ {
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("job not processed")
		}
	}
	assert.Equal(t, int32(3), processed.Load())
}

func TestQueueRetriesThenGivesUp(t *testing.T) {
	var calls atomic.Int32
	gaveUp := make(chan Job[int], 1)
	q := NewQueue("retry", func(_ context.Context, job Job[int]) error {
		calls.Add(1)
		return errors.New("boom")
	}, QueueConfig[int]{
		MaxRetries: 2,
		RetryDelay: time.Millisecond,
		OnGiveUp: func(job Job[int], err error) {
			gaveUp <- job
		},
	})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job[int]{ID: "x", Payload: 7}))
	select {
	case job := <-gaveUp:
		assert.Equal(t, 3, job.Attempt)
		assert.Equal(t, 7, job.Payload)
	case <-time.After(2 * time.Second):
		t.Fatal("job never gave up")
	}
	assert.Equal(t, int32(3), calls.Load())
}

func TestQueueRejectsWhenNotStarted(t *testing.T) {
	q := NewQueue("idle", func(context.Context, Job[int]) error { return nil }, QueueConfig[int]{})
	assert.Error(t, q.Enqueue(Job[int]{ID: "1"}))
}
