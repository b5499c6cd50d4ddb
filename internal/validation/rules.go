// Package validation provides custom validation rules for the application.
package validation

import (
	"regexp"
	"strings"

	validation "github.com/jellydator/validation"

	apperrors "github.com/allisson/nostr-signer/internal/errors"
)

var (
	// Lowercase bech32 keys: prefix, separator and 58 data characters.
	npubRegex = regexp.MustCompile(`^npub1[02-9ac-hj-np-z]{58}$`)
	nsecRegex = regexp.MustCompile(`^nsec1[02-9ac-hj-np-z]{58}$`)
)

// WrapValidationError wraps validation errors as domain ErrInvalidInput
func WrapValidationError(err error) error {
	if err == nil {
		return nil
	}
	return apperrors.Wrap(apperrors.ErrInvalidInput, err.Error())
}

// Npub validates a bech32 encoded Nostr public key.
var Npub = validation.NewStringRuleWithError(
	func(s string) bool {
		return npubRegex.MatchString(s)
	},
	validation.NewError("validation_npub_format", "must be a bech32 npub"),
)

// Nsec validates a bech32 encoded Nostr private key.
var Nsec = validation.NewStringRuleWithError(
	func(s string) bool {
		return nsecRegex.MatchString(s)
	},
	validation.NewError("validation_nsec_format", "must be a bech32 nsec"),
)

// NoWhitespace validates that string doesn't contain leading/trailing whitespace
var NoWhitespace = validation.NewStringRuleWithError(
	func(s string) bool {
		return s == strings.TrimSpace(s)
	},
	validation.NewError("validation_no_whitespace", "must not contain leading or trailing whitespace"),
)

// NotBlank validates that a string is not empty after trimming whitespace
var NotBlank = validation.NewStringRuleWithError(
	func(s string) bool {
		return strings.TrimSpace(s) != ""
	},
	validation.NewError("validation_not_blank", "must not be blank"),
)
