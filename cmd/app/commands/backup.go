package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	keysDomain "github.com/allisson/nostr-signer/internal/keys/domain"
	keysUseCase "github.com/allisson/nostr-signer/internal/keys/usecase"
)

// RunBackup exports every encrypted nsec as JSON to filePath, or to writer
// when filePath is "-". The file is created with 0600 permissions.
func RunBackup(
	ctx context.Context,
	keyUseCase keysUseCase.KeyUseCase,
	logger *slog.Logger,
	writer io.Writer,
	filePath string,
) error {
	if filePath == "" {
		return fmt.Errorf("--file is required")
	}

	backup, err := keyUseCase.Backup(ctx)
	if err != nil {
		return fmt.Errorf("failed to create backup: %w", err)
	}

	if filePath == "-" {
		return writeJSON(writer, backup)
	}

	file, err := os.OpenFile(filePath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("failed to open backup file: %w", err)
	}
	if err := writeJSON(file, backup); err != nil {
		_ = file.Close()
		return fmt.Errorf("failed to write backup file: %w", err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("failed to close backup file: %w", err)
	}

	logger.Info("backup written",
		slog.String("backup_id", backup.ID.String()),
		slog.String("file", filePath),
		slog.Int("users", len(backup.Users)),
		slog.Bool("blog", backup.Blog != nil),
	)
	_, _ = fmt.Fprintf(writer, "Backup %s written to %s (%d user key(s))\n", backup.ID, filePath, len(backup.Users))
	return nil
}

// RunRestore reads a backup from filePath, or from reader when filePath is
// "-", and writes its entries back to the store.
func RunRestore(
	ctx context.Context,
	keyUseCase keysUseCase.KeyUseCase,
	logger *slog.Logger,
	streams IOTuple,
	filePath string,
) error {
	if filePath == "" {
		return fmt.Errorf("--file is required")
	}

	source := streams.Reader
	if filePath != "-" {
		file, err := os.Open(filePath)
		if err != nil {
			return fmt.Errorf("failed to open backup file: %w", err)
		}
		defer func() {
			_ = file.Close()
		}()
		source = file
	}

	var backup keysDomain.Backup
	if err := json.NewDecoder(source).Decode(&backup); err != nil {
		return fmt.Errorf("failed to parse backup: %w", err)
	}

	restored, err := keyUseCase.Restore(ctx, &backup)
	if err != nil {
		return fmt.Errorf("failed to restore backup: %w", err)
	}

	logger.Info("backup restored",
		slog.String("backup_id", backup.ID.String()),
		slog.Int("restored", restored),
	)
	_, _ = fmt.Fprintf(streams.Writer, "Restored %d key(s) from backup %s\n", restored, backup.ID)
	return nil
}
