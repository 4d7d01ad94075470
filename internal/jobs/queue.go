// Package jobs provides the in-process background queue the ingestion
// pipeline offloads its best-effort steps to: media upload, the secondary
// categorization pass, and deferred email-receipt extraction. It is suitable
// for single-instance deployments; a multi-instance deployment would swap in
// a broker-backed queue behind the same interface.
package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	KindUploadMedia = "upload_media"
	KindCategorize  = "categorize"
	KindEmailIngest = "email_ingest"
)

// Job is one unit of deferred work. Run failures are logged, never retried:
// retry policy belongs to the queue layer swapped in for production, not to
// the pipeline itself.
type Job struct {
	ID        string
	Kind      string
	CreatedAt time.Time
	Run       func(ctx context.Context) error
}

// Queue is an in-memory job queue backed by a buffered channel. Safe for
// concurrent use.
type Queue struct {
	jobs      chan Job
	closeChan chan struct{}
	wg        sync.WaitGroup
	mu        sync.RWMutex
	closed    bool
	logger    *zap.Logger
}

func NewQueue(bufferSize int, logger *zap.Logger) *Queue {
	return &Queue{
		jobs:      make(chan Job, bufferSize),
		closeChan: make(chan struct{}),
		logger:    logger,
	}
}

// Enqueue submits a job, blocking when the buffer is full until there is
// room, the context is cancelled, or the queue is closed.
func (q *Queue) Enqueue(ctx context.Context, kind string, run func(ctx context.Context) error) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return fmt.Errorf("queue is closed")
	}

	job := Job{
		ID:        uuid.New().String(),
		Kind:      kind,
		CreatedAt: time.Now(),
		Run:       run,
	}

	select {
	case q.jobs <- job:
		q.logger.Debug("Job enqueued", zap.String("job_id", job.ID), zap.String("kind", kind))
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-q.closeChan:
		return fmt.Errorf("queue is closed")
	}
}

// Start launches the worker goroutines. Workers exit when the queue is
// closed and drained or when ctx is cancelled.
func (q *Queue) Start(ctx context.Context, workers int) {
	for i := 0; i < workers; i++ {
		q.wg.Add(1)
		go func(worker int) {
			defer q.wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case job, ok := <-q.jobs:
					if !ok {
						return
					}
					q.execute(ctx, worker, job)
				}
			}
		}(i)
	}
}

func (q *Queue) execute(ctx context.Context, worker int, job Job) {
	defer func() {
		if r := recover(); r != nil {
			q.logger.Error("Job panicked",
				zap.Int("worker", worker),
				zap.String("job_id", job.ID),
				zap.String("kind", job.Kind),
				zap.Any("panic", r),
			)
		}
	}()

	start := time.Now()
	if err := job.Run(ctx); err != nil {
		q.logger.Error("Job failed",
			zap.Int("worker", worker),
			zap.String("job_id", job.ID),
			zap.String("kind", job.Kind),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err),
		)
		return
	}
	q.logger.Info("Job completed",
		zap.String("job_id", job.ID),
		zap.String("kind", job.Kind),
		zap.Duration("elapsed", time.Since(start)),
	)
}

// Stop closes the queue and waits for in-flight jobs to finish.
func (q *Queue) Stop() {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.closeChan)
		close(q.jobs)
	}
	q.mu.Unlock()
	q.wg.Wait()
}
