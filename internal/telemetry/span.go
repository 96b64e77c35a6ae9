package telemetry

import (
	"context"
	"errors"

	"github.com/getsentry/sentry-go"
)

// Span is a pipeline stage: an ingest run, a retrieval or an answer composition.
type Span struct {
	inner *sentry.Span
}

// StartSpan opens op as a child of the span already in ctx, or as a new
// transaction when there is none.
func StartSpan(ctx context.Context, op string) (context.Context, *Span) {
	var span *sentry.Span
	if parent := sentry.SpanFromContext(ctx); parent != nil {
		span = parent.StartChild(op)
	} else {
		span = sentry.StartSpan(ctx, op, sentry.WithTransactionName(op))
	}
	return span.Context(), &Span{inner: span}
}

// StartTransaction opens a root span, used for background ingestion ticks.
func StartTransaction(ctx context.Context, name, op string) (context.Context, *Span) {
	span := sentry.StartSpan(ctx, op, sentry.WithTransactionName(name), sentry.WithOpName(op))
	return span.Context(), &Span{inner: span}
}

// Tag sets an indexed tag such as the collection or run id. Empty values are
// dropped.
func (s *Span) Tag(key, value string) *Span {
	if s.inner != nil && value != "" {
		s.inner.SetTag(key, value)
	}
	return s
}

// Data attaches unindexed detail such as chunk or source counts.
func (s *Span) Data(key string, value any) *Span {
	if s.inner != nil {
		s.inner.SetData(key, value)
	}
	return s
}

// SetError marks the span failed. Cancellations are recorded on the span but
// not reported as events.
func (s *Span) SetError(err error) {
	if s.inner == nil || err == nil {
		return
	}
	if errors.Is(err, context.Canceled) {
		s.inner.Status = sentry.SpanStatusCanceled
		return
	}
	if errors.Is(err, context.DeadlineExceeded) {
		s.inner.Status = sentry.SpanStatusDeadlineExceeded
	} else {
		s.inner.Status = sentry.SpanStatusInternalError
	}
	hubFor(s.inner.Context()).CaptureException(err)
}

func (s *Span) End() {
	if s.inner != nil {
		s.inner.Finish()
	}
}
