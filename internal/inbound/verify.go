package inbound

import (
	"crypto/subtle"
	"errors"
	"strconv"
)

var (
	// ErrVerificationRejected covers both an unset secret and a wrong token,
	// so callers cannot tell which one happened
	ErrVerificationRejected = errors.New("verification rejected")
	// ErrInvalidChallenge is returned when the token matched but the challenge is not an integer
	ErrInvalidChallenge = errors.New("challenge is not an integer")
)

// Verifier answers the webhook subscription handshake
type Verifier struct {
	secret string
}

// NewVerifier creates a verifier for the configured verify token
func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: secret}
}

// Verify returns the challenge as an integer when token matches the secret.
// An empty mode is accepted; any other mode than "subscribe" is rejected.
func (v *Verifier) Verify(mode, challenge, token string) (int64, error) {
	if v.secret == "" {
		return 0, ErrVerificationRejected
	}
	if mode != "" && mode != "subscribe" {
		return 0, ErrVerificationRejected
	}
	if subtle.ConstantTimeCompare([]byte(token), []byte(v.secret)) != 1 {
		return 0, ErrVerificationRejected
	}

	n, err := strconv.ParseInt(challenge, 10, 64)
	if err != nil {
		return 0, ErrInvalidChallenge
	}
	return n, nil
}
