package jobs

import (
	"context"
	"log"
	"time"
)

// Job is a unit of recurring background work.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Worker runs a job on a fixed interval until stopped.
type Worker struct {
	job      Job
	interval time.Duration
	stopChan chan struct{}
	doneChan chan struct{}
}

// NewWorker creates a new Worker instance
func NewWorker(job Job, interval time.Duration) *Worker {
	return &Worker{
		job:      job,
		interval: interval,
		stopChan: make(chan struct{}),
		doneChan: make(chan struct{}),
	}
}

// Start begins the worker's polling loop
func (w *Worker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	defer close(w.doneChan)

	log.Printf("worker %s started with interval %v", w.job.Name(), w.interval)

	for {
		select {
		case <-ctx.Done():
			log.Printf("worker %s stopped: context cancelled", w.job.Name())
			return
		case <-w.stopChan:
			log.Printf("worker %s stopped: stop signal received", w.job.Name())
			return
		case <-ticker.C:
			if err := w.job.Run(ctx); err != nil {
				log.Printf("worker %s: %v", w.job.Name(), err)
			}
		}
	}
}

// Stop gracefully stops the worker
func (w *Worker) Stop() {
	close(w.stopChan)
	<-w.doneChan
	log.Printf("worker %s shutdown complete", w.job.Name())
}
