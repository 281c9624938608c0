// Package jobs runs queued background work, such as award grants that failed
// inline, with retries and a dead-letter table for jobs that never succeed.
package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/garnizeh/wildspot/internal/models"
	"github.com/garnizeh/wildspot/pkg/repository"
)

// Job statuses as stored in the jobs table.
const (
	StatusQueued  = "queued"
	StatusRunning = "running"
	StatusRetry   = "retry"
	StatusDone    = "done"
	StatusFailed  = "failed"
)

// Handler is the function that processes a job
type Handler func(ctx context.Context, j *models.BackgroundJob) error

// Store is the queue persistence the pool and the queue need.
type Store = repository.JobRepo

// ErrMaxAttempts indicates the job reached max attempts
var ErrMaxAttempts = errors.New("max attempts reached")

// BackoffDuration returns exponential backoff duration for attempt n
func BackoffDuration(attempt int) time.Duration {
	if attempt <= 0 {
		return time.Second
	}
	if attempt > 16 {
		attempt = 16
	}
	d := time.Duration(1<<uint(attempt)) * time.Second
	max := 5 * time.Minute
	if d > max {
		return max
	}
	return d
}

// Queue enqueues jobs with JSON payloads.
type Queue struct {
	store       Store
	maxAttempts int
}

func NewQueue(store Store, maxAttempts int) *Queue {
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	return &Queue{store: store, maxAttempts: maxAttempts}
}

// Enqueue marshals payload and stores a job of type typ due now.
func (q *Queue) Enqueue(ctx context.Context, typ string, payload any, priority int) (int64, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return 0, fmt.Errorf("marshal %s payload: %w", typ, err)
	}
	j := &models.BackgroundJob{Type: typ, Payload: b, Priority: priority, MaxAttempts: q.maxAttempts, ScheduledAt: time.Now()}
	return q.store.EnqueueJob(ctx, j)
}
