package usecase

import (
	"context"
	"time"

	keysDomain "github.com/allisson/nostr-signer/internal/keys/domain"
	"github.com/allisson/nostr-signer/internal/metrics"
	nostrDomain "github.com/allisson/nostr-signer/internal/nostr/domain"
)

// keyUseCaseWithMetrics decorates KeyUseCase with metrics instrumentation.
type keyUseCaseWithMetrics struct {
	next    KeyUseCase
	metrics metrics.BusinessMetrics
}

// NewKeyUseCaseWithMetrics wraps a KeyUseCase with metrics recording.
func NewKeyUseCaseWithMetrics(useCase KeyUseCase, m metrics.BusinessMetrics) KeyUseCase {
	return &keyUseCaseWithMetrics{
		next:    useCase,
		metrics: m,
	}
}

func (k *keyUseCaseWithMetrics) record(ctx context.Context, operation string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}

	k.metrics.RecordOperation(ctx, "keys", operation, status)
	k.metrics.RecordDuration(ctx, "keys", operation, time.Since(start), status)
}

// EnsureUserKey records metrics for user key provisioning.
func (k *keyUseCaseWithMetrics) EnsureUserKey(ctx context.Context, userID int64) (bool, error) {
	start := time.Now()
	created, err := k.next.EnsureUserKey(ctx, userID)
	k.record(ctx, "user_key_ensure", start, err)
	return created, err
}

// EnsureBlogKey records metrics for blog key provisioning.
func (k *keyUseCaseWithMetrics) EnsureBlogKey(ctx context.Context) (bool, error) {
	start := time.Now()
	created, err := k.next.EnsureBlogKey(ctx)
	k.record(ctx, "blog_key_ensure", start, err)
	return created, err
}

// GetUserNpub records metrics for user npub lookups.
func (k *keyUseCaseWithMetrics) GetUserNpub(ctx context.Context, userID int64) (string, error) {
	start := time.Now()
	npub, err := k.next.GetUserNpub(ctx, userID)
	k.record(ctx, "user_npub_get", start, err)
	return npub, err
}

// GetBlogNpub records metrics for blog npub lookups.
func (k *keyUseCaseWithMetrics) GetBlogNpub(ctx context.Context) (string, error) {
	start := time.Now()
	npub, err := k.next.GetBlogNpub(ctx)
	k.record(ctx, "blog_npub_get", start, err)
	return npub, err
}

// ImportKey records metrics for key imports.
func (k *keyUseCaseWithMetrics) ImportKey(ctx context.Context, input *keysDomain.ImportKeyInput) (string, error) {
	start := time.Now()
	npub, err := k.next.ImportKey(ctx, input)
	k.record(ctx, "key_import", start, err)
	return npub, err
}

// SignEvent records metrics for event signing.
func (k *keyUseCaseWithMetrics) SignEvent(
	ctx context.Context,
	input *keysDomain.SignEventInput,
) (*nostrDomain.Event, error) {
	start := time.Now()
	event, err := k.next.SignEvent(ctx, input)
	k.record(ctx, "event_sign", start, err)
	return event, err
}

// Backup records metrics for backup exports.
func (k *keyUseCaseWithMetrics) Backup(ctx context.Context) (*keysDomain.Backup, error) {
	start := time.Now()
	backup, err := k.next.Backup(ctx)
	k.record(ctx, "backup", start, err)
	return backup, err
}

// Restore records metrics for backup restores.
func (k *keyUseCaseWithMetrics) Restore(ctx context.Context, backup *keysDomain.Backup) (int, error) {
	start := time.Now()
	restored, err := k.next.Restore(ctx, backup)
	k.record(ctx, "restore", start, err)
	return restored, err
}
