// Package jobs schedules background work for medragd, currently periodic
// re-ingestion of the corpus.
package jobs

import (
	"context"
	"log"
	"sync"
	"time"
)

type JobProcessor interface {
	ProcessJobs(ctx context.Context) error
}

// Worker runs a processor repeatedly. The next run is scheduled one interval
// after the previous one finishes, so a slow ingest never overlaps itself.
type Worker struct {
	processor  JobProcessor
	interval   time.Duration
	runOnStart bool

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewWorker(processor JobProcessor, interval time.Duration) *Worker {
	return &Worker{
		processor: processor,
		interval:  interval,
		done:      make(chan struct{}),
	}
}

// RunOnStart makes Start process once before waiting for the first interval.
func (w *Worker) RunOnStart() *Worker {
	w.runOnStart = true
	return w
}

// Start blocks until ctx is cancelled or Stop is called.
func (w *Worker) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	w.mu.Lock()
	w.cancel = cancel
	w.mu.Unlock()
	defer cancel()
	defer close(w.done)

	log.Printf("worker: started (interval %s)", w.interval)

	delay := w.interval
	if w.runOnStart {
		delay = 0
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("worker: stopped")
			return
		case <-timer.C:
			w.runOnce(ctx)
			timer.Reset(w.interval)
		}
	}
}

func (w *Worker) runOnce(ctx context.Context) {
	started := time.Now()
	if err := w.processor.ProcessJobs(ctx); err != nil {
		log.Printf("worker: run failed after %s: %v", time.Since(started).Round(time.Millisecond), err)
		return
	}
	log.Printf("worker: run finished in %s", time.Since(started).Round(time.Millisecond))
}

// Stop cancels a running Start and waits for the current run to return.
func (w *Worker) Stop() {
	w.mu.Lock()
	cancel := w.cancel
	w.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-w.done
}
