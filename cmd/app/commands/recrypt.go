package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	rotationUseCase "github.com/allisson/nostr-signer/internal/rotation/usecase"
)

// RunRecrypt moves every stored value from a key derived from oldKey to an
// envelope at version 1 under a key derived from newKey.
func RunRecrypt(
	ctx context.Context,
	rotationUseCase rotationUseCase.RotationUseCase,
	logger *slog.Logger,
	writer io.Writer,
	oldKey string,
	newKey string,
	format string,
) error {
	if err := validateFormat(format); err != nil {
		return err
	}
	if oldKey == "" || newKey == "" {
		return fmt.Errorf("--old-key and --new-key are required")
	}
	if oldKey == newKey {
		return fmt.Errorf("--old-key and --new-key must differ")
	}

	logger.Info("starting recrypt")

	updated, err := rotationUseCase.RecryptAll(ctx, oldKey, newKey)
	if err != nil {
		return fmt.Errorf("failed to recrypt stored keys: %w", err)
	}

	logger.Info("recrypt completed", slog.Int("updated", updated))

	if format == "json" {
		return writeJSON(writer, map[string]any{"updated": updated})
	}
	_, _ = fmt.Fprintf(writer, "Recrypted %d record(s)\n", updated)
	_, _ = fmt.Fprintln(
		writer,
		"Set the new secret as NOSTR_SIGNER_MASTER_KEY, or as NOSTR_SIGNER_KEY_V1 when it is hex or base64: key material",
	)
	return nil
}
