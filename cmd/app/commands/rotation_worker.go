package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/allisson/nostr-signer/internal/metrics"
	rotationUseCase "github.com/allisson/nostr-signer/internal/rotation/usecase"
)

// Server is a long running server the worker starts next to the rotation loop.
type Server interface {
	Start(ctx context.Context) error
	Shutdown(ctx context.Context) error
}

// RotationWorkerConfig controls the pacing of the rotation worker.
type RotationWorkerConfig struct {
	BatchSize int
	Interval  time.Duration
	// StatusInterval is the minimum time between two key version censuses.
	// A census reads every stored secret. Zero means 24 times Interval.
	StatusInterval  time.Duration
	ShutdownTimeout time.Duration
}

// RunRotationWorker runs a rotation batch every Interval until ctx is canceled.
// Each batch reads at most BatchSize users. The stored key versions are
// counted on the first tick and then at most once per StatusInterval, and
// published to rotationMetrics. Batch failures are logged and retried on the
// next tick. When server is not nil it runs for the lifetime of the worker and
// is shut down on exit.
func RunRotationWorker(
	ctx context.Context,
	rotationUseCase rotationUseCase.RotationUseCase,
	rotationMetrics metrics.RotationMetrics,
	server Server,
	logger *slog.Logger,
	cfg RotationWorkerConfig,
) error {
	if cfg.Interval <= 0 {
		return fmt.Errorf("interval must be positive, got: %s", cfg.Interval)
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	if cfg.StatusInterval <= 0 {
		cfg.StatusInterval = 24 * cfg.Interval
	}

	logger.Info("starting rotation worker",
		slog.Int("batch_size", cfg.BatchSize),
		slog.Duration("interval", cfg.Interval),
		slog.Duration("status_interval", cfg.StatusInterval),
	)

	g, gCtx := errgroup.WithContext(ctx)

	if server != nil {
		g.Go(func() error {
			if err := server.Start(gCtx); err != nil {
				return fmt.Errorf("metrics server error: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gCtx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("metrics server shutdown: %w", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		limiter := rate.NewLimiter(rate.Every(cfg.Interval), 1)
		census := rate.NewLimiter(rate.Every(cfg.StatusInterval), 1)
		for {
			if err := limiter.Wait(gCtx); err != nil {
				logger.Info("rotation worker stopped")
				return nil
			}
			runRotationTick(gCtx, rotationUseCase, rotationMetrics, logger, cfg.BatchSize)
			if gCtx.Err() == nil && census.Allow() {
				runRotationCensus(gCtx, rotationUseCase, rotationMetrics, logger)
			}
		}
	})

	err := g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// runRotationTick runs one bounded batch and logs the persisted progress.
func runRotationTick(
	ctx context.Context,
	rotationUseCase rotationUseCase.RotationUseCase,
	rotationMetrics metrics.RotationMetrics,
	logger *slog.Logger,
	batchSize int,
) {
	updated, err := rotationUseCase.RunBatch(ctx, batchSize)
	if err != nil {
		if ctx.Err() == nil {
			logger.Error("rotation batch failed", slog.Any("error", err))
		}
		return
	}
	rotationMetrics.RecordRewrapped(ctx, updated)

	state, err := rotationUseCase.Progress(ctx)
	if err != nil {
		if ctx.Err() == nil {
			logger.Error("failed to get rotation progress", slog.Any("error", err))
		}
		return
	}

	logger.Info("rotation batch completed",
		slog.Int("updated", updated),
		slog.Int("target_version", state.TargetVersion),
		slog.Int("user_page", state.UserPaged),
		slog.Bool("complete", state.Complete()),
	)
}

// runRotationCensus counts stored key versions and publishes them.
func runRotationCensus(
	ctx context.Context,
	rotationUseCase rotationUseCase.RotationUseCase,
	rotationMetrics metrics.RotationMetrics,
	logger *slog.Logger,
) {
	status, err := rotationUseCase.Status(ctx)
	if err != nil {
		if ctx.Err() == nil {
			logger.Error("failed to get rotation status", slog.Any("error", err))
		}
		return
	}
	rotationMetrics.RecordSnapshot(ctx, metrics.RotationSnapshot{
		ActiveVersion:     status.ActiveVersion,
		VersionCounts:     status.VersionCounts,
		LegacyRecords:     status.LegacyRecords,
		UnreadableRecords: status.UnreadableRecords,
		LastCompletedAt:   status.LastCompletedAt,
	})

	if len(status.RetiredVersionsInUse) > 0 {
		logger.Warn("retired key versions still protect records",
			slog.Any("versions", status.RetiredVersionsInUse),
		)
	}
}
