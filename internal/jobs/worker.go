package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/garnizeh/wildspot/internal/metrics"
	"github.com/garnizeh/wildspot/internal/models"
)

// Options tunes a WorkerPool. Zero values pick the defaults.
type Options struct {
	Workers      int
	PollInterval time.Duration
	// Backoff computes the delay before retry n. Defaults to BackoffDuration.
	Backoff func(attempt int) time.Duration
	Metrics *metrics.Metrics
}

type WorkerPool struct {
	store    Store
	handlers map[string]Handler
	logger   *slog.Logger
	opts     Options

	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func NewWorkerPool(store Store, handlers map[string]Handler, logger *slog.Logger, opts Options) *WorkerPool {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 500 * time.Millisecond
	}
	if opts.Backoff == nil {
		opts.Backoff = BackoffDuration
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &WorkerPool{store: store, handlers: handlers, logger: logger, opts: opts, stop: make(chan struct{})}
}

// Start launches the worker goroutines
func (p *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < p.opts.Workers; i++ {
		p.wg.Add(1)
		go p.worker(ctx, i)
	}
}

// Stop signals workers to stop and waits for them. It is safe to call more than once.
func (p *WorkerPool) Stop() {
	p.stopOnce.Do(func() { close(p.stop) })
	p.wg.Wait()
}

// Run starts the pool and blocks until ctx is done, then stops it.
func (p *WorkerPool) Run(ctx context.Context) error {
	p.Start(ctx)
	<-ctx.Done()
	p.Stop()
	return nil
}

func (p *WorkerPool) worker(ctx context.Context, id int) {
	defer p.wg.Done()
	for {
		select {
		case <-p.stop:
			p.logger.Debug("worker stopping", "id", id)
			return
		case <-ctx.Done():
			p.logger.Debug("context canceled, worker exiting", "id", id)
			return
		default:
		}

		job, err := p.store.FetchNextJob(ctx)
		if err != nil {
			if ctx.Err() == nil {
				p.logger.Error("fetch job", "err", err)
			}
			p.sleep(ctx, time.Second)
			continue
		}
		if job == nil {
			p.sleep(ctx, p.opts.PollInterval)
			continue
		}
		p.process(ctx, job)
	}
}

// sleep waits for d unless the pool stops or ctx ends first.
func (p *WorkerPool) sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-p.stop:
	case <-ctx.Done():
	}
}

func (p *WorkerPool) process(ctx context.Context, job *models.BackgroundJob) {
	log := p.logger.With("job_id", job.ID, "type", job.Type)

	h, ok := p.handlers[job.Type]
	if !ok {
		job.Status = StatusFailed
		job.LastError = "no handler"
		if err := p.store.MoveToDeadLetter(ctx, job); err != nil {
			log.Error("move to dead letter", "err", err)
		}
		p.opts.Metrics.JobProcessed(job.Type, false)
		return
	}

	err := p.run(ctx, h, job)
	p.opts.Metrics.JobProcessed(job.Type, err == nil)
	if err == nil {
		job.Status = StatusDone
		if upErr := p.store.UpdateJob(ctx, job); upErr != nil {
			log.Error("mark job done", "err", upErr)
		}
		return
	}

	job.Attempts++
	job.LastError = err.Error()
	if job.Attempts >= job.MaxAttempts {
		job.Status = StatusFailed
		log.Warn("job failed permanently", "attempts", job.Attempts, "err", fmt.Errorf("%w: %v", ErrMaxAttempts, err))
		if mvErr := p.store.MoveToDeadLetter(ctx, job); mvErr != nil {
			log.Error("move to dead letter", "err", mvErr)
		}
		return
	}

	t := time.Now().Add(p.opts.Backoff(job.Attempts))
	job.NextTryAt = &t
	job.Status = StatusRetry
	log.Info("job scheduled for retry", "attempts", job.Attempts, "next_try_at", t, "err", err)
	if upErr := p.store.UpdateJob(ctx, job); upErr != nil {
		log.Error("update job for retry", "err", upErr)
	}
}

// run calls h, turning a panic into an error so one bad job cannot kill a worker.
func (p *WorkerPool) run(ctx context.Context, h Handler, job *models.BackgroundJob) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return h(ctx, job)
}
