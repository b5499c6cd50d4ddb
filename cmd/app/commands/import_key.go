package commands

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"strings"

	keysDomain "github.com/allisson/nostr-signer/internal/keys/domain"
	keysUseCase "github.com/allisson/nostr-signer/internal/keys/usecase"
)

// RunImportKey stores an externally generated key. When input carries neither
// a plaintext nor an encrypted nsec, the plaintext nsec is read from the first
// line of streams.Reader so it never appears in the process arguments.
func RunImportKey(
	ctx context.Context,
	keyUseCase keysUseCase.KeyUseCase,
	logger *slog.Logger,
	streams IOTuple,
	input *keysDomain.ImportKeyInput,
) error {
	if input.Nsec == "" && input.EncryptedNsec == "" {
		nsec, err := readLine(streams)
		if err != nil {
			return fmt.Errorf("failed to read nsec: %w", err)
		}
		input.Nsec = nsec
	}

	npub, err := keyUseCase.ImportKey(ctx, input)
	input.Nsec = ""
	if err != nil {
		return fmt.Errorf("failed to import key: %w", err)
	}

	logger.Info("key imported",
		slog.String("target", string(input.Target)),
		slog.Int64("user_id", input.UserID),
	)
	_, _ = fmt.Fprintf(streams.Writer, "Imported %s key: %s\n", input.Target, npub)
	return nil
}

func readLine(streams IOTuple) (string, error) {
	scanner := bufio.NewScanner(streams.Reader)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return "", err
		}
		return "", fmt.Errorf("no input")
	}
	return strings.TrimSpace(scanner.Text()), nil
}
