package domain

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"sync"
)

// KeyringConfig is the raw configuration a Keyring is built from.
//
// Materials maps a KEK version to its configured key material string, already
// resolved from the NOSTR_SIGNER_KEY_V{n} / APP_KEY_V{n} precedence.
type KeyringConfig struct {
	// ActiveVersion is the raw NOSTR_SIGNER_ACTIVE_KEY_VERSION value. Empty means 1.
	ActiveVersion string
	// MaxVersions is how many KEK versions, counting the active one, stay in the allowed set.
	MaxVersions int
	// MasterKey is the legacy master secret. It backs the legacy CBC format and the version 1 fallback.
	MasterKey string
	// Materials maps version to configured key material.
	Materials map[int]string
}

// Keyring resolves KEK versions to 32-byte keys.
//
// All material is decoded once at construction. Decode failures are recorded
// per version and returned from Resolve, so a malformed old version does not
// prevent the process from starting, while a malformed active version makes
// Available report false.
//
// Thread safety: a Keyring is read-only after construction and safe for
// concurrent use until Close is called.
type Keyring struct {
	mu            sync.RWMutex
	activeVersion int
	maxVersions   int
	keys          map[int][]byte
	invalid       map[int]error
	legacyKey     []byte
	masterSecret  []byte
}

// ParseActiveVersion validates a NOSTR_SIGNER_ACTIVE_KEY_VERSION value.
func ParseActiveVersion(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return MinKeyVersion, nil
	}
	version, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not an integer", ErrInvalidActiveVersion, raw)
	}
	if version < MinKeyVersion {
		return 0, fmt.Errorf("%w: must be >= %d, got %d", ErrInvalidActiveVersion, MinKeyVersion, version)
	}
	return version, nil
}

// NewKeyring builds a Keyring from configuration.
//
// Returns ErrInvalidActiveVersion or ErrInvalidMaxVersions for invalid version
// settings. Missing or malformed key material is not an error here; it
// surfaces from Resolve for the affected version.
func NewKeyring(cfg KeyringConfig) (*Keyring, error) {
	active, err := ParseActiveVersion(cfg.ActiveVersion)
	if err != nil {
		return nil, err
	}

	maxVersions := cfg.MaxVersions
	if maxVersions < 1 {
		return nil, fmt.Errorf("%w: must be >= 1, got %d", ErrInvalidMaxVersions, maxVersions)
	}

	k := &Keyring{
		activeVersion: active,
		maxVersions:   maxVersions,
		keys:          make(map[int][]byte),
		invalid:       make(map[int]error),
	}

	for version, material := range cfg.Materials {
		if version < MinKeyVersion || strings.TrimSpace(material) == "" {
			continue
		}
		key, err := DecodeKeyMaterial(material)
		if err != nil {
			k.invalid[version] = fmt.Errorf("version %d: %w", version, err)
			continue
		}
		k.keys[version] = key
	}

	if cfg.MasterKey != "" {
		k.masterSecret = []byte(cfg.MasterKey)
		k.legacyKey = DeriveLegacyKey(cfg.MasterKey)
		if _, ok := k.keys[MinKeyVersion]; !ok {
			if _, bad := k.invalid[MinKeyVersion]; !bad {
				k.keys[MinKeyVersion] = DeriveLegacyKey(cfg.MasterKey)
			}
		}
	}

	return k, nil
}

// ActiveVersion returns the KEK version used for new encryptions and as the rotation target.
func (k *Keyring) ActiveVersion() int {
	return k.activeVersion
}

// MaxVersions returns the configured number of retained versions.
func (k *Keyring) MaxVersions() int {
	return k.maxVersions
}

// Resolve returns the KEK for a version.
//
// The returned slice is owned by the Keyring and must not be modified.
// Returns ErrKeyMaterialNotFound when nothing is configured for the version
// and ErrInvalidKeyMaterial when the configured value could not be decoded.
func (k *Keyring) Resolve(version int) ([]byte, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()

	if version < MinKeyVersion {
		return nil, fmt.Errorf("%w: version %d", ErrKeyMaterialNotFound, version)
	}
	if err, ok := k.invalid[version]; ok {
		return nil, err
	}
	key, ok := k.keys[version]
	if !ok {
		return nil, fmt.Errorf("%w: version %d", ErrKeyMaterialNotFound, version)
	}
	return key, nil
}

// ActiveKey resolves the active version.
func (k *Keyring) ActiveKey() ([]byte, int, error) {
	key, err := k.Resolve(k.activeVersion)
	if err != nil {
		return nil, 0, err
	}
	return key, k.activeVersion, nil
}

// Available reports whether the active KEK resolves.
func (k *Keyring) Available() bool {
	_, err := k.Resolve(k.activeVersion)
	return err == nil
}

// AllowedVersions returns the active version followed by up to MaxVersions-1
// immediately preceding versions, newest first, never below 1.
func (k *Keyring) AllowedVersions() []int {
	lowest := max(MinKeyVersion, k.activeVersion-k.maxVersions+1)
	versions := make([]int, 0, k.activeVersion-lowest+1)
	for v := k.activeVersion; v >= lowest; v-- {
		versions = append(versions, v)
	}
	return versions
}

// IsAllowed reports whether version is in the allowed set.
func (k *Keyring) IsAllowed(version int) bool {
	return slices.Contains(k.AllowedVersions(), version)
}

// ConfiguredVersions returns every version with usable key material, ascending.
func (k *Keyring) ConfiguredVersions() []int {
	k.mu.RLock()
	defer k.mu.RUnlock()

	versions := make([]int, 0, len(k.keys))
	for v := range k.keys {
		versions = append(versions, v)
	}
	slices.Sort(versions)
	return versions
}

// LegacyKey returns SHA-256 of the master secret for the legacy CBC format.
func (k *Keyring) LegacyKey() ([]byte, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()

	if k.legacyKey == nil {
		return nil, ErrMasterKeyNotSet
	}
	return k.legacyKey, nil
}

// MasterSecret returns the raw master secret bytes. The slice is owned by the
// Keyring and must not be modified.
func (k *Keyring) MasterSecret() ([]byte, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()

	if k.masterSecret == nil {
		return nil, ErrMasterKeyNotSet
	}
	return k.masterSecret, nil
}

// Close zeroes all key material held by the keyring.
func (k *Keyring) Close() {
	k.mu.Lock()
	defer k.mu.Unlock()

	for v, key := range k.keys {
		Zero(key)
		delete(k.keys, v)
	}
	Zero(k.legacyKey)
	Zero(k.masterSecret)
	k.legacyKey = nil
	k.masterSecret = nil
}
