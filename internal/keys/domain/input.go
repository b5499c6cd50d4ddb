package domain

import (
	validation "github.com/jellydator/validation"

	customValidation "github.com/allisson/nostr-signer/internal/validation"
)

// ImportKeyInput carries an externally generated nsec. The nsec arrives either
// in plaintext (Nsec) or as a legacy CBC value (EncryptedNsec) sealed under a
// key derived from SessionToken.
type ImportKeyInput struct {
	Target        KeyType
	UserID        int64
	Npub          string
	Nsec          string
	EncryptedNsec string
	SessionToken  string
}

// Validate checks if the import input is valid.
func (i *ImportKeyInput) Validate() error {
	err := validation.ValidateStruct(i,
		validation.Field(&i.Target,
			validation.Required,
			validation.In(KeyTypeUser, KeyTypeBlog),
		),
		validation.Field(&i.UserID,
			validation.When(i.Target == KeyTypeUser, validation.Required, validation.Min(int64(1))),
		),
		validation.Field(&i.Npub,
			validation.Required,
			customValidation.Npub,
		),
		validation.Field(&i.Nsec,
			validation.When(i.EncryptedNsec == "", validation.Required),
			customValidation.Nsec,
		),
		validation.Field(&i.EncryptedNsec,
			validation.When(i.Nsec != "", validation.Empty),
			customValidation.CBCCiphertext,
		),
		validation.Field(&i.SessionToken,
			validation.When(i.EncryptedNsec != "", validation.Required, customValidation.NotBlank, customValidation.NoWhitespace),
		),
	)
	return customValidation.WrapValidationError(err)
}

// SignEventInput describes an event to sign. Kind and CreatedAt default to a
// text note created now when nil.
type SignEventInput struct {
	KeyType   KeyType
	UserID    int64
	Kind      *int
	CreatedAt *int64
	Tags      [][]string
	Content   string
}

// Validate checks if the sign input is valid.
func (i *SignEventInput) Validate() error {
	err := validation.ValidateStruct(i,
		validation.Field(&i.KeyType,
			validation.Required,
			validation.In(KeyTypeUser, KeyTypeBlog),
		),
		validation.Field(&i.UserID,
			validation.When(i.KeyType == KeyTypeUser, validation.Required, validation.Min(int64(1))),
		),
		validation.Field(&i.Kind,
			validation.Min(0),
		),
		validation.Field(&i.Tags,
			validation.Each(validation.Required),
		),
	)
	return customValidation.WrapValidationError(err)
}
