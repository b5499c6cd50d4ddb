package domain

import (
	"github.com/allisson/nostr-signer/internal/errors"
)

// Key management errors.
var (
	// ErrUserKeyNotFound indicates the user has no stored key.
	ErrUserKeyNotFound = errors.Wrap(errors.ErrNotFound, "user key not found")

	// ErrBlogKeyNotFound indicates no blog key is stored.
	ErrBlogKeyNotFound = errors.Wrap(errors.ErrNotFound, "blog key not found")

	// ErrOptionNotFound indicates the option row does not exist.
	ErrOptionNotFound = errors.Wrap(errors.ErrNotFound, "option not found")

	// ErrKeyEncryptionUnavailable indicates no active KEK is configured.
	ErrKeyEncryptionUnavailable = errors.Wrap(errors.ErrUnavailable, "key encryption key not configured")

	// ErrNpubMismatch indicates the npub derived from an imported nsec differs from the supplied one.
	ErrNpubMismatch = errors.Wrap(errors.ErrInvalidInput, "npub does not match nsec")

	// ErrInvalidImportedNsec indicates the imported material did not decrypt to an nsec.
	ErrInvalidImportedNsec = errors.Wrap(errors.ErrInvalidInput, "imported key is not an nsec")

	// ErrUnsupportedBackupFormat indicates a backup document written by an unknown format version.
	ErrUnsupportedBackupFormat = errors.Wrap(errors.ErrInvalidInput, "unsupported backup format version")
)
