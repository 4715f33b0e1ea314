package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cuongbtq/file-pipeline/internal/config"
	"github.com/cuongbtq/file-pipeline/internal/job"
)

// Config holds worker configuration
type Config struct {
	Logger           *slog.Logger
	Store            job.Store
	Queue            job.Queue
	Storage          config.StorageConfig
	Concurrency      int
	PopTimeout       time.Duration
	ProgressInterval int64
	ErrorBackoff     time.Duration
}

// Worker consumes job descriptors from the queue and drives each claimed
// job through processing to its terminal state. Per-job errors are recorded
// into the job record and never escape; the loops only exit on shutdown.
type Worker struct {
	logger           *slog.Logger
	store            job.Store
	queue            job.Queue
	storage          config.StorageConfig
	concurrency      int
	popTimeout       time.Duration
	progressInterval int64
	errorBackoff     time.Duration
	wg               sync.WaitGroup
	stopChan         chan struct{}
}

// NewWorker creates a new worker instance
func NewWorker(cfg *Config) *Worker {
	w := &Worker{
		logger:           cfg.Logger,
		store:            cfg.Store,
		queue:            cfg.Queue,
		storage:          cfg.Storage,
		concurrency:      cfg.Concurrency,
		popTimeout:       cfg.PopTimeout,
		progressInterval: cfg.ProgressInterval,
		errorBackoff:     cfg.ErrorBackoff,
		stopChan:         make(chan struct{}),
	}
	if w.concurrency <= 0 {
		w.concurrency = 1
	}
	if w.popTimeout <= 0 {
		w.popTimeout = 30 * time.Second
	}
	if w.progressInterval <= 0 {
		w.progressInterval = 1000
	}
	if w.errorBackoff <= 0 {
		w.errorBackoff = 5 * time.Second
	}
	return w
}

// Start spawns the worker loops and blocks until ctx is canceled. Multiple
// worker processes may run against the same queue; the queue's
// pop-removes-atomically contract is the only coordination between them.
func (w *Worker) Start(ctx context.Context) error {
	w.logger.Info("Starting worker",
		slog.Int("concurrency", w.concurrency),
		slog.Duration("pop_timeout", w.popTimeout),
	)

	for i := 0; i < w.concurrency; i++ {
		w.wg.Add(1)
		go w.loop(ctx, i)
	}

	<-ctx.Done()
	w.logger.Info("Worker context canceled, stopping...")

	return nil
}

// Stop gracefully stops the worker, waiting for in-flight jobs to reach a
// terminal state.
func (w *Worker) Stop() {
	w.logger.Info("Stopping worker...")
	close(w.stopChan)
	w.wg.Wait()
	w.logger.Info("Worker stopped")
}

// loop is one consumer: block on the queue with a bounded wait, claim the
// next descriptor, process it. An empty pop is not an error. Loop-level
// errors (queue or store unreachable) are logged and followed by a pause so
// a failing dependency is not hammered.
func (w *Worker) loop(ctx context.Context, workerNum int) {
	defer w.wg.Done()

	loopName := fmt.Sprintf("worker-%d", workerNum)
	w.logger.Info("Worker loop started",
		slog.String("loop", loopName),
	)

	for {
		select {
		case <-w.stopChan:
			w.logger.Info("Worker loop stopping - stopChan closed",
				slog.String("loop", loopName),
			)
			return
		case <-ctx.Done():
			w.logger.Info("Worker loop stopping - context canceled",
				slog.String("loop", loopName),
			)
			return
		default:
		}

		desc, err := w.queue.BlockingPop(ctx, w.popTimeout)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			w.logger.Error("Failed to pop from queue",
				slog.String("loop", loopName),
				slog.String("error", err.Error()),
			)
			w.pause(ctx)
			continue
		}
		if desc == nil {
			// Queue stayed empty for the whole wait; re-check shutdown.
			continue
		}

		w.handle(ctx, desc)
	}
}

// pause sleeps for the error backoff, bailing early on shutdown.
func (w *Worker) pause(ctx context.Context) {
	timer := time.NewTimer(w.errorBackoff)
	defer timer.Stop()

	select {
	case <-timer.C:
	case <-w.stopChan:
	case <-ctx.Done():
	}
}
