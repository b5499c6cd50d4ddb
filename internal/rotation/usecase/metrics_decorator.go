package usecase

import (
	"context"
	"time"

	"github.com/allisson/nostr-signer/internal/metrics"
	rotationDomain "github.com/allisson/nostr-signer/internal/rotation/domain"
)

// rotationUseCaseWithMetrics decorates RotationUseCase with metrics instrumentation.
type rotationUseCaseWithMetrics struct {
	next    RotationUseCase
	metrics metrics.BusinessMetrics
}

// NewRotationUseCaseWithMetrics wraps a RotationUseCase with metrics recording.
func NewRotationUseCaseWithMetrics(useCase RotationUseCase, m metrics.BusinessMetrics) RotationUseCase {
	return &rotationUseCaseWithMetrics{
		next:    useCase,
		metrics: m,
	}
}

// RunBatch records metrics for rotation batches.
func (r *rotationUseCaseWithMetrics) RunBatch(ctx context.Context, limit int) (int, error) {
	start := time.Now()
	updated, err := r.next.RunBatch(ctx, limit)

	status := "success"
	if err != nil {
		status = "error"
	}

	r.metrics.RecordOperation(ctx, "rotation", "batch_run", status)
	r.metrics.RecordDuration(ctx, "rotation", "batch_run", time.Since(start), status)

	return updated, err
}

// ResetState records metrics for rotation state resets.
func (r *rotationUseCaseWithMetrics) ResetState(
	ctx context.Context,
	targetVersion int,
) (*rotationDomain.State, error) {
	start := time.Now()
	state, err := r.next.ResetState(ctx, targetVersion)

	status := "success"
	if err != nil {
		status = "error"
	}

	r.metrics.RecordOperation(ctx, "rotation", "state_reset", status)
	r.metrics.RecordDuration(ctx, "rotation", "state_reset", time.Since(start), status)

	return state, err
}

// Progress records metrics for rotation progress reads.
func (r *rotationUseCaseWithMetrics) Progress(ctx context.Context) (*rotationDomain.State, error) {
	start := time.Now()
	state, err := r.next.Progress(ctx)

	status := "success"
	if err != nil {
		status = "error"
	}

	r.metrics.RecordOperation(ctx, "rotation", "progress_get", status)
	r.metrics.RecordDuration(ctx, "rotation", "progress_get", time.Since(start), status)

	return state, err
}

// Status records metrics for rotation status reports.
func (r *rotationUseCaseWithMetrics) Status(ctx context.Context) (*rotationDomain.Status, error) {
	start := time.Now()
	s, err := r.next.Status(ctx)

	status := "success"
	if err != nil {
		status = "error"
	}

	r.metrics.RecordOperation(ctx, "rotation", "status_get", status)
	r.metrics.RecordDuration(ctx, "rotation", "status_get", time.Since(start), status)

	return s, err
}

// RecryptAll records metrics for full re-encryption runs.
func (r *rotationUseCaseWithMetrics) RecryptAll(ctx context.Context, oldSecret, newSecret string) (int, error) {
	start := time.Now()
	updated, err := r.next.RecryptAll(ctx, oldSecret, newSecret)

	status := "success"
	if err != nil {
		status = "error"
	}

	r.metrics.RecordOperation(ctx, "rotation", "recrypt_all", status)
	r.metrics.RecordDuration(ctx, "rotation", "recrypt_all", time.Since(start), status)

	return updated, err
}
