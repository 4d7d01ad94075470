package jobs

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestQueueRunsJobs(t *testing.T) {
	ctx := context.Background()
	q := NewQueue(8, zap.NewNop())
	q.Start(ctx, 2)

	var ran atomic.Int32
	done := make(chan struct{})
	for i := 0; i < 5; i++ {
		err := q.Enqueue(ctx, KindCategorize, func(ctx context.Context) error {
			if ran.Add(1) == 5 {
				close(done)
			}
			return nil
		})
		require.NoError(t, err)
	}

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("jobs did not complete")
	}
	q.Stop()
	assert.Equal(t, int32(5), ran.Load())
}

func TestQueueStopWaitsForInFlight(t *testing.T) {
	ctx := context.Background()
	q := NewQueue(1, zap.NewNop())
	q.Start(ctx, 1)

	var finished atomic.Bool
	started := make(chan struct{})
	require.NoError(t, q.Enqueue(ctx, KindUploadMedia, func(ctx context.Context) error {
		close(started)
		time.Sleep(50 * time.Millisecond)
		finished.Store(true)
		return nil
	}))

	<-started
	q.Stop()
	assert.True(t, finished.Load())
}

func TestQueueRejectsAfterStop(t *testing.T) {
	q := NewQueue(1, zap.NewNop())
	q.Start(context.Background(), 1)
	q.Stop()

	err := q.Enqueue(context.Background(), KindEmailIngest, func(ctx context.Context) error { return nil })
	assert.ErrorContains(t, err, "closed")
}

func TestQueueRecoversFromPanic(t *testing.T) {
	ctx := context.Background()
	q := NewQueue(2, zap.NewNop())
	q.Start(ctx, 1)

	require.NoError(t, q.Enqueue(ctx, KindCategorize, func(ctx context.Context) error {
		panic("boom")
	}))

	done := make(chan struct{})
	require.NoError(t, q.Enqueue(ctx, KindCategorize, func(ctx context.Context) error {
		close(done)
		return nil
	}))

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not survive the panic")
	}
	q.Stop()
}
