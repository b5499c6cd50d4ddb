// Package domain defines the stored key records and the inputs of key management operations.
package domain

import (
	"time"
)

// Option names used in the options table.
const (
	OptionBlogNpub          = "nostr_blog_npub"
	OptionBlogEncryptedNsec = "nostr_blog_encrypted_nsec"
)

// KeyType selects which identity an operation acts on.
type KeyType string

const (
	KeyTypeUser KeyType = "user"
	KeyTypeBlog KeyType = "blog"
)

// UserKey is a user's Nostr identity. EncryptedNsec holds an envelope (or a
// legacy CBC value written before envelopes existed).
type UserKey struct {
	UserID        int64
	Npub          string
	EncryptedNsec string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// BlogKey is the site-wide Nostr identity stored in the options table.
type BlogKey struct {
	Npub          string `json:"npub"`
	EncryptedNsec string `json:"encrypted_nsec"`
}
