package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/noah-isme/uni-timetable-api/pkg/jobs"
)

type commitmentDeleter interface {
	Delete(ctx context.Context, id string) error
}

// SpanCleanupWorker retries the deletions a failed span rollback could not finish.
type SpanCleanupWorker struct {
	store   commitmentDeleter
	cache   *AvailabilityCache
	metrics *MetricsService
	logger  *zap.Logger
}

// NewSpanCleanupWorker constructs a worker.
func NewSpanCleanupWorker(store commitmentDeleter, cache *AvailabilityCache, metrics *MetricsService, logger *zap.Logger) *SpanCleanupWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SpanCleanupWorker{store: store, cache: cache, metrics: metrics, logger: logger}
}

// Handle processes a span cleanup job. Deleting an already removed member succeeds, so retries replay the whole payload.
func (w *SpanCleanupWorker) Handle(ctx context.Context, job jobs.Job) error {
	payload, ok := job.Payload.(SpanCleanupPayload)
	if !ok {
		return fmt.Errorf("span cleanup job %s: unexpected payload %T", job.ID, job.Payload)
	}

	var remaining []string
	var errs []error
	for _, id := range payload.MemberIDs {
		if err := w.store.Delete(ctx, id); err != nil {
			remaining = append(remaining, id)
			errs = append(errs, fmt.Errorf("delete %s: %w", id, err))
		}
	}
	if payload.AcademicYearID != "" && len(remaining) < len(payload.MemberIDs) {
		w.cache.Invalidate(ctx, payload.AcademicYearID)
	}
	if len(remaining) > 0 {
		return fmt.Errorf("span %s cleanup incomplete, %d members left: %w", payload.SpanID, len(remaining), errors.Join(errs...))
	}

	w.metrics.ObserveSpan(SpanCleanedUp)
	w.logger.Info("span orphans removed", zap.String("span_id", payload.SpanID), zap.Int("members", len(payload.MemberIDs)), zap.Int("attempt", job.Attempt))
	return nil
}

// DeadLetter logs span members no retry could remove; they need manual cleanup.
func (w *SpanCleanupWorker) DeadLetter(job jobs.Job, err error) {
	payload, _ := job.Payload.(SpanCleanupPayload)
	w.metrics.ObserveSpan(SpanCleanupAbandoned)
	w.logger.Error("span orphans require manual cleanup",
		zap.String("job_id", job.ID),
		zap.String("span_id", payload.SpanID),
		zap.Strings("orphaned", payload.MemberIDs),
		zap.Error(err),
	)
}
