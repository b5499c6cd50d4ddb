// Package domain defines the Nostr types exchanged with the signer.
package domain

import (
	"strings"

	"github.com/allisson/nostr-signer/internal/errors"
)

// Bech32 prefixes of Nostr keys.
const (
	NsecPrefix = "nsec"
	NpubPrefix = "npub"
)

// KindTextNote is the default event kind when a request does not name one.
const KindTextNote = 1

// Nostr errors.
var (
	// ErrInvalidNsec indicates a value that is not a bech32 nsec.
	ErrInvalidNsec = errors.Wrap(errors.ErrInvalidInput, "invalid nsec")

)

// KeyPair is a freshly generated Nostr identity. Nsec must be encrypted before
// it is stored and zeroed by the caller where possible.
type KeyPair struct {
	Npub string
	Nsec string
}

// Event is a NIP-01 event.
type Event struct {
	ID        string     `json:"id"`
	PubKey    string     `json:"pubkey"`
	CreatedAt int64      `json:"created_at"`
	Kind      int        `json:"kind"`
	Tags      [][]string `json:"tags"`
	Content   string     `json:"content"`
	Sig       string     `json:"sig"`
}

// HasTag reports whether the event carries a tag with the given name and value.
func (e *Event) HasTag(name, value string) bool {
	for _, tag := range e.Tags {
		if len(tag) >= 2 && tag[0] == name && tag[1] == value {
			return true
		}
	}
	return false
}

// LooksLikeNsec reports whether s has the nsec prefix.
func LooksLikeNsec(s string) bool {
	return strings.HasPrefix(s, NsecPrefix)
}
