// Package domain defines the persisted progress of a KEK rotation and the
// status report derived from it.
package domain

import (
	"encoding/json"
	"time"

	"github.com/allisson/nostr-signer/internal/errors"
)

// Option names used to persist rotation progress.
const (
	OptionRotationState  = "nostr_signer_rotation_state"
	OptionRotationLastOK = "nostr_signer_rotation_last_ok"
)

// DefaultBatchSize is the number of users rewrapped per batch when no positive limit is given.
const DefaultBatchSize = 200

// ErrInvalidTargetVersion indicates a reset was requested for a version below 1.
var ErrInvalidTargetVersion = errors.Wrap(errors.ErrInvalidInput, "invalid rotation target version")

// State is the resumable progress of a rotation towards TargetVersion.
// UserPaged is the 1-based page of users the next batch reads.
type State struct {
	TargetVersion int  `json:"target_version"`
	UserPaged     int  `json:"user_paged"`
	DoneUsers     bool `json:"done_users"`
	DoneOptions   bool `json:"done_options"`
}

// NewState returns a fresh state for a rotation towards target.
func NewState(target int) *State {
	return &State{TargetVersion: target, UserPaged: 1}
}

// Complete reports whether both the user and the option passes finished.
func (s *State) Complete() bool {
	return s.DoneUsers && s.DoneOptions
}

// Offset returns the row offset of the current user page.
func (s *State) Offset(limit int) int {
	return (s.UserPaged - 1) * limit
}

// Encode serializes the state for storage.
func (s *State) Encode() (string, error) {
	b, err := json.Marshal(s)
	if err != nil {
		return "", errors.Wrap(err, "failed to encode rotation state")
	}
	return string(b), nil
}

// DecodeState parses a stored state. Empty or unreadable values decode to a
// zero state, whose target never matches a valid version, so the next batch
// starts over.
func DecodeState(value string) *State {
	var s State
	if value == "" || json.Unmarshal([]byte(value), &s) != nil {
		return &State{UserPaged: 1}
	}
	if s.UserPaged < 1 {
		s.UserPaged = 1
	}
	return &s
}

// Status is an operator view of rotation progress and of the key versions in use.
type Status struct {
	State           State
	LastCompletedAt *time.Time
	KeyAvailable    bool
	ActiveVersion   int
	AllowedVersions []int
	// VersionCounts maps KEK version to the number of stored envelopes using it.
	VersionCounts map[int]int
	// LegacyRecords counts stored values still in the legacy CBC format.
	LegacyRecords int
	// UnreadableRecords counts stored values shaped like envelopes that fail to parse.
	UnreadableRecords int
	// RetiredVersionsInUse lists versions outside the allowed window that still protect records.
	RetiredVersionsInUse []int
}

// UpToDate reports whether every stored value is an envelope under the active version.
func (s *Status) UpToDate() bool {
	for version, count := range s.VersionCounts {
		if version != s.ActiveVersion && count > 0 {
			return false
		}
	}
	return s.LegacyRecords == 0
}
