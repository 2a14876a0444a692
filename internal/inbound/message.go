// Package inbound turns provider webhook payloads into a single message shape.
// Adding a provider means adding a Normalizer; nothing downstream changes.
package inbound

import (
	"errors"
	"net/http"
)

var (
	// ErrIgnored marks payloads that carry nothing to answer: status
	// callbacks, non-text messages, missing sender or body
	ErrIgnored = errors.New("payload ignored")
	// ErrSignatureMismatch is returned when a payload signature does not verify
	ErrSignatureMismatch = errors.New("signature mismatch")
)

// Message is the provider-independent form of an inbound text
type Message struct {
	Channel string
	// Address is the sender in canonical "+<digits>" form
	Address    string
	Text       string
	ExternalID string
}

// Normalizer extracts a Message from a raw webhook body
type Normalizer interface {
	Channel() string
	// Normalize returns an error wrapping ErrIgnored for unusable payloads
	Normalize(payload []byte) (Message, error)
}

// SignatureVerifier is implemented by normalizers that can authenticate a payload
type SignatureVerifier interface {
	VerifySignature(r *http.Request, body []byte) error
}
