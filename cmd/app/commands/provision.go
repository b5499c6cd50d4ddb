package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	keysUseCase "github.com/allisson/nostr-signer/internal/keys/usecase"
)

// RunProvisionUser creates a keypair for the user unless one exists and prints the npub.
func RunProvisionUser(
	ctx context.Context,
	keyUseCase keysUseCase.KeyUseCase,
	logger *slog.Logger,
	writer io.Writer,
	userID int64,
	format string,
) error {
	if err := validateFormat(format); err != nil {
		return err
	}
	if userID < 1 {
		return fmt.Errorf("user-id must be a positive number, got: %d", userID)
	}

	created, err := keyUseCase.EnsureUserKey(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to provision user key: %w", err)
	}

	npub, err := keyUseCase.GetUserNpub(ctx, userID)
	if err != nil {
		return fmt.Errorf("no key for user %d (is the active key version configured?): %w", userID, err)
	}

	logger.Info("user key provisioned",
		slog.Int64("user_id", userID),
		slog.Bool("created", created),
	)
	return outputProvision(writer, format, "user", npub, created)
}

// RunProvisionBlog creates the blog keypair unless one exists and prints the npub.
func RunProvisionBlog(
	ctx context.Context,
	keyUseCase keysUseCase.KeyUseCase,
	logger *slog.Logger,
	writer io.Writer,
	format string,
) error {
	if err := validateFormat(format); err != nil {
		return err
	}

	created, err := keyUseCase.EnsureBlogKey(ctx)
	if err != nil {
		return fmt.Errorf("failed to provision blog key: %w", err)
	}

	npub, err := keyUseCase.GetBlogNpub(ctx)
	if err != nil {
		return fmt.Errorf("no blog key (is the active key version configured?): %w", err)
	}

	logger.Info("blog key provisioned", slog.Bool("created", created))
	return outputProvision(writer, format, "blog", npub, created)
}

func outputProvision(writer io.Writer, format, target, npub string, created bool) error {
	if format == "json" {
		return writeJSON(writer, map[string]any{
			"target":  target,
			"npub":    npub,
			"created": created,
		})
	}
	if created {
		_, _ = fmt.Fprintf(writer, "Created %s key: %s\n", target, npub)
	} else {
		_, _ = fmt.Fprintf(writer, "Existing %s key: %s\n", target, npub)
	}
	return nil
}
