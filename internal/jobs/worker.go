package jobs

import (
	"context"
	"sync"
	"time"

	"github.com/tipo-sto/kbase/internal/logger"
)

// JobProcessor is polled by a Worker on every tick.
type JobProcessor interface {
	ProcessJobs(ctx context.Context) error
}

// Worker calls its processor on a fixed interval until stopped.
type Worker struct {
	processor    JobProcessor
	pollInterval time.Duration
	log          *logger.Logger
	stopChan     chan struct{}
	doneChan     chan struct{}
	stopOnce     sync.Once
}

func NewWorker(processor JobProcessor, pollInterval time.Duration, log *logger.Logger) *Worker {
	if log == nil {
		log = logger.Nop()
	}
	return &Worker{
		processor:    processor,
		pollInterval: pollInterval,
		log:          log,
		stopChan:     make(chan struct{}),
		doneChan:     make(chan struct{}),
	}
}

// Start runs the polling loop and blocks until ctx is done or Stop is called.
func (w *Worker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()
	defer close(w.doneChan)

	w.log.Debug("worker started", "poll_interval", w.pollInterval.String())

	for {
		select {
		case <-ctx.Done():
			w.log.Debug("worker stopped", "reason", "context cancelled")
			return
		case <-w.stopChan:
			w.log.Debug("worker stopped", "reason", "stop signal")
			return
		case <-ticker.C:
			if err := w.processor.ProcessJobs(ctx); err != nil {
				w.log.Warn("processing jobs failed", "error", err)
			}
		}
	}
}

// Stop signals the loop and waits for it to exit. Safe to call more than once.
func (w *Worker) Stop() {
	w.stopOnce.Do(func() { close(w.stopChan) })
	<-w.doneChan
}
