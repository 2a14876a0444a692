package outbound

import (
	"context"
	"errors"
)

// ErrNotConfigured is wrapped by providers whose credentials are missing
var ErrNotConfigured = errors.New("provider not configured")

// Provider sends plain text to a WhatsApp address over one transport
type Provider interface {
	// Name is the channel name, e.g. "meta" or "twilio"
	Name() string
	// MaxLength is the per-message body limit in characters, 0 for none
	MaxLength() int
	// FormatAddress turns a canonical "+<digits>" address into the provider's form
	FormatAddress(address string) string
	// Configured returns an error wrapping ErrNotConfigured when credentials are missing
	Configured() error
	// SendText sends one message and returns the provider's message id
	SendText(ctx context.Context, to, text string) (string, error)
}

// Splitter is implemented by providers that measure MaxLength in something
// other than runes
type Splitter interface {
	Split(text string) []string
}
