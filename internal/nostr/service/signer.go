// Package service wraps github.com/nbd-wtf/go-nostr for key generation and event signing.
package service

import (
	"fmt"

	"github.com/nbd-wtf/go-nostr"
	"github.com/nbd-wtf/go-nostr/nip19"

	nostrDomain "github.com/allisson/nostr-signer/internal/nostr/domain"
)

// Signer generates Nostr keys and signs events with a bech32 nsec.
type Signer interface {
	GenerateKeyPair() (*nostrDomain.KeyPair, error)
	DeriveNpub(nsec string) (string, error)
	SignEvent(event *nostrDomain.Event, nsec string) (*nostrDomain.Event, error)
}

type nostrSigner struct{}

// NewSigner creates a Signer backed by go-nostr.
func NewSigner() Signer {
	return &nostrSigner{}
}

func (s *nostrSigner) GenerateKeyPair() (*nostrDomain.KeyPair, error) {
	skHex := nostr.GeneratePrivateKey()
	pkHex, err := nostr.GetPublicKey(skHex)
	if err != nil {
		return nil, fmt.Errorf("failed to derive public key: %w", err)
	}

	nsec, err := nip19.EncodePrivateKey(skHex)
	if err != nil {
		return nil, fmt.Errorf("failed to encode nsec: %w", err)
	}
	npub, err := nip19.EncodePublicKey(pkHex)
	if err != nil {
		return nil, fmt.Errorf("failed to encode npub: %w", err)
	}

	return &nostrDomain.KeyPair{Npub: npub, Nsec: nsec}, nil
}

func (s *nostrSigner) DeriveNpub(nsec string) (string, error) {
	skHex, err := decodeNsec(nsec)
	if err != nil {
		return "", err
	}
	pkHex, err := nostr.GetPublicKey(skHex)
	if err != nil {
		return "", fmt.Errorf("%w: %v", nostrDomain.ErrInvalidNsec, err)
	}
	return nip19.EncodePublicKey(pkHex)
}

// SignEvent fills PubKey, ID and Sig. The input event is not modified.
func (s *nostrSigner) SignEvent(event *nostrDomain.Event, nsec string) (*nostrDomain.Event, error) {
	skHex, err := decodeNsec(nsec)
	if err != nil {
		return nil, err
	}

	ev := toNostrEvent(event)
	if err := ev.Sign(skHex); err != nil {
		return nil, fmt.Errorf("failed to sign event: %w", err)
	}
	return fromNostrEvent(&ev), nil
}

func decodeNsec(nsec string) (string, error) {
	prefix, value, err := nip19.Decode(nsec)
	if err != nil || prefix != nostrDomain.NsecPrefix {
		return "", nostrDomain.ErrInvalidNsec
	}
	skHex, ok := value.(string)
	if !ok {
		return "", nostrDomain.ErrInvalidNsec
	}
	return skHex, nil
}

func toNostrEvent(event *nostrDomain.Event) nostr.Event {
	tags := make(nostr.Tags, 0, len(event.Tags))
	for _, tag := range event.Tags {
		tags = append(tags, nostr.Tag(append([]string(nil), tag...)))
	}
	return nostr.Event{
		CreatedAt: nostr.Timestamp(event.CreatedAt),
		Kind:      event.Kind,
		Tags:      tags,
		Content:   event.Content,
	}
}

func fromNostrEvent(ev *nostr.Event) *nostrDomain.Event {
	tags := make([][]string, 0, len(ev.Tags))
	for _, tag := range ev.Tags {
		tags = append(tags, []string(tag))
	}
	return &nostrDomain.Event{
		ID:        ev.ID,
		PubKey:    ev.PubKey,
		CreatedAt: int64(ev.CreatedAt),
		Kind:      ev.Kind,
		Tags:      tags,
		Content:   ev.Content,
		Sig:       ev.Sig,
	}
}
