package domain

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// Envelope is the two-tier ciphertext record stored for every protected nsec.
//
// The payload is sealed under a per-record random DEK (data layer: DataNonce,
// DataTag, Ciphertext), and the DEK is sealed under a versioned KEK (wrap layer:
// WrapNonce, WrapTag, WrappedDek). Rotating the KEK only replaces KeyVersion and
// the wrap layer; the data layer is never touched.
//
// The serialized form is base64(JSON) with single-letter keys:
//
//	{"v":1,"kv":2,"di":"...","dt":"...","ct":"...","wi":"...","wt":"...","wk":"..."}
//
// All byte fields are standard base64 inside the JSON document.
type Envelope struct {
	Version    int
	KeyVersion int
	DataNonce  []byte
	DataTag    []byte
	Ciphertext []byte
	WrapNonce  []byte
	WrapTag    []byte
	WrappedDek []byte
}

// envelopeJSON fixes the wire field names and order.
type envelopeJSON struct {
	V  int    `json:"v"`
	KV int    `json:"kv"`
	DI string `json:"di"`
	DT string `json:"dt"`
	CT string `json:"ct"`
	WI string `json:"wi"`
	WT string `json:"wt"`
	WK string `json:"wk"`
}

var envelopeFields = []string{"v", "kv", "di", "dt", "ct", "wi", "wt", "wk"}

// Encode serializes the envelope to its stored string form.
func (e *Envelope) Encode() (string, error) {
	b, err := json.Marshal(envelopeJSON{
		V:  e.Version,
		KV: e.KeyVersion,
		DI: base64.StdEncoding.EncodeToString(e.DataNonce),
		DT: base64.StdEncoding.EncodeToString(e.DataTag),
		CT: base64.StdEncoding.EncodeToString(e.Ciphertext),
		WI: base64.StdEncoding.EncodeToString(e.WrapNonce),
		WT: base64.StdEncoding.EncodeToString(e.WrapTag),
		WK: base64.StdEncoding.EncodeToString(e.WrappedDek),
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal envelope: %w", err)
	}
	return base64.StdEncoding.EncodeToString(b), nil
}

// Clone returns a deep copy of the envelope.
func (e *Envelope) Clone() *Envelope {
	return &Envelope{
		Version:    e.Version,
		KeyVersion: e.KeyVersion,
		DataNonce:  cloneBytes(e.DataNonce),
		DataTag:    cloneBytes(e.DataTag),
		Ciphertext: cloneBytes(e.Ciphertext),
		WrapNonce:  cloneBytes(e.WrapNonce),
		WrapTag:    cloneBytes(e.WrapTag),
		WrappedDek: cloneBytes(e.WrappedDek),
	}
}

// DecodeEnvelope parses a stored ciphertext string.
//
// It returns ErrNotEnvelope when the input is not recognizably an envelope
// (outer base64 fails, the JSON is invalid or not an object, or any of the
// eight keys is missing); callers treat that as "try the legacy format".
// It returns ErrMalformedEnvelope when the shape is right but a value has the
// wrong JSON type or a byte field is not valid base64. The "v" field is not
// checked here; see Envelope.Version.
func DecodeEnvelope(s string) (*Envelope, error) {
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, ErrNotEnvelope
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		return nil, ErrNotEnvelope
	}
	for _, name := range envelopeFields {
		if _, ok := fields[name]; !ok {
			return nil, ErrNotEnvelope
		}
	}

	var doc envelopeJSON
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}

	env := &Envelope{Version: doc.V, KeyVersion: doc.KV}
	targets := []struct {
		name  string
		value string
		dst   *[]byte
	}{
		{"di", doc.DI, &env.DataNonce},
		{"dt", doc.DT, &env.DataTag},
		{"ct", doc.CT, &env.Ciphertext},
		{"wi", doc.WI, &env.WrapNonce},
		{"wt", doc.WT, &env.WrapTag},
		{"wk", doc.WK, &env.WrappedDek},
	}
	for _, t := range targets {
		b, err := base64.StdEncoding.DecodeString(t.value)
		if err != nil {
			return nil, fmt.Errorf("%w: field %s is not valid base64", ErrMalformedEnvelope, t.name)
		}
		*t.dst = b
	}

	return env, nil
}

// PeekKeyVersion returns the KEK version recorded in a stored envelope.
func PeekKeyVersion(s string) (int, error) {
	env, err := DecodeEnvelope(s)
	if err != nil {
		return 0, err
	}
	return env.KeyVersion, nil
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
