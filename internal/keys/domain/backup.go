package domain

import (
	"time"

	"github.com/google/uuid"
)

// BackupFormatVersion is the version of the Backup JSON document.
const BackupFormatVersion = 1

// Backup is an export of every stored encrypted nsec. It never contains plaintext keys.
type Backup struct {
	ID            uuid.UUID       `json:"id"`
	FormatVersion int             `json:"format_version"`
	KeyVersion    int             `json:"key_version"`
	CreatedAt     time.Time       `json:"created_at"`
	Blog          *BlogKey        `json:"blog,omitempty"`
	Users         []BackupUserKey `json:"users"`
}

// BackupUserKey is a user entry of a Backup.
type BackupUserKey struct {
	UserID        int64  `json:"user_id"`
	Npub          string `json:"npub"`
	EncryptedNsec string `json:"encrypted_nsec"`
}
