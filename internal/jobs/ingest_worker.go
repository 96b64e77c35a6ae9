package jobs

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/cloo-solutions/medrag/internal/domain"
	"github.com/cloo-solutions/medrag/internal/service"
	"github.com/cloo-solutions/medrag/internal/telemetry"
)

const (
	// MaxConsecutiveFailures is the number of failed runs after which the
	// failure is reported to error tracking.
	MaxConsecutiveFailures = 3
)

// Ingester runs one ingestion pass over a corpus
type Ingester interface {
	Ingest(ctx context.Context, corpus service.CorpusSource) (*service.IngestReport, error)
}

// IngestWorker re-ingests a corpus every time the worker ticks
type IngestWorker struct {
	ingester Ingester
	corpus   service.CorpusSource
	failures int
	last     *service.IngestReport
}

// NewIngestWorker creates a new IngestWorker instance
func NewIngestWorker(ingester Ingester, corpus service.CorpusSource) *IngestWorker {
	return &IngestWorker{
		ingester: ingester,
		corpus:   corpus,
	}
}

// ProcessJobs implements the JobProcessor interface. A run skipped because
// another process holds the ingestion lock is not a failure.
func (w *IngestWorker) ProcessJobs(ctx context.Context) error {
	ctx, span := telemetry.StartTransaction(ctx, "ingest "+w.corpus.Describe(), "ingest.tick")
	defer span.End()

	report, err := w.ingester.Ingest(ctx, w.corpus)
	if errors.Is(err, domain.ErrIngestionInProgress) {
		log.Printf("ingest: another run holds %s, skipping this tick", w.corpus.Describe())
		return nil
	}
	if err != nil {
		return w.handleFailure(ctx, err)
	}

	w.failures = 0
	w.last = report
	return nil
}

// LastReport returns the report of the most recent successful run
func (w *IngestWorker) LastReport() *service.IngestReport {
	return w.last
}

func (w *IngestWorker) handleFailure(ctx context.Context, runErr error) error {
	w.failures++
	if w.failures >= MaxConsecutiveFailures {
		log.Printf("ingest: %d consecutive failures for %s", w.failures, w.corpus.Describe())
		telemetry.CaptureError(ctx, runErr)
	}
	return fmt.Errorf("ingest of %s failed (attempt %d): %w", w.corpus.Describe(), w.failures, runErr)
}
