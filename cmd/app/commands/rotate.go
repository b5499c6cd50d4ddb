package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	rotationUseCase "github.com/allisson/nostr-signer/internal/rotation/usecase"
)

// RunRotate runs one rotation batch of at most limit users, or restarts the
// rotation towards target when reset is set. A zero target means the active
// key version.
func RunRotate(
	ctx context.Context,
	rotationUseCase rotationUseCase.RotationUseCase,
	logger *slog.Logger,
	writer io.Writer,
	limit int,
	reset bool,
	target int,
	format string,
) error {
	if err := validateFormat(format); err != nil {
		return err
	}
	if limit < 0 {
		return fmt.Errorf("limit must not be negative, got: %d", limit)
	}

	if reset {
		state, err := rotationUseCase.ResetState(ctx, target)
		if err != nil {
			return fmt.Errorf("failed to reset rotation state: %w", err)
		}

		logger.Info("rotation state reset", slog.Int("target_version", state.TargetVersion))

		if format == "json" {
			return writeJSON(writer, map[string]any{
				"reset":          true,
				"target_version": state.TargetVersion,
			})
		}
		_, _ = fmt.Fprintf(writer, "Rotation restarted towards key version %d\n", state.TargetVersion)
		return nil
	}

	updated, err := rotationUseCase.RunBatch(ctx, limit)
	if err != nil {
		return fmt.Errorf("failed to run rotation batch: %w", err)
	}

	state, err := rotationUseCase.Progress(ctx)
	if err != nil {
		return fmt.Errorf("failed to get rotation progress: %w", err)
	}

	logger.Info("rotation batch completed",
		slog.Int("updated", updated),
		slog.Int("target_version", state.TargetVersion),
		slog.Bool("complete", state.Complete()),
	)

	if format == "json" {
		return writeJSON(writer, map[string]any{
			"updated":        updated,
			"target_version": state.TargetVersion,
			"user_page":      state.UserPaged,
			"complete":       state.Complete(),
		})
	}

	_, _ = fmt.Fprintf(writer, "Rewrapped %d record(s)\n", updated)
	if state.Complete() {
		_, _ = fmt.Fprintf(writer, "Rotation to key version %d is complete\n", state.TargetVersion)
	} else {
		_, _ = fmt.Fprintf(
			writer,
			"Rotation to key version %d in progress (next user page: %d)\n",
			state.TargetVersion,
			state.UserPaged,
		)
	}
	return nil
}
