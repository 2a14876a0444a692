package inbound

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"whatsapp-assistant/backend/internal/phone"

	"github.com/twilio/twilio-go/client"
)

// TwilioNormalizer reads Twilio's form-encoded WhatsApp webhooks
type TwilioNormalizer struct {
	validator  *client.RequestValidator
	webhookURL string
}

// NewTwilioNormalizer creates the adapter. Signatures are only checked when
// both the auth token and the public webhook URL are known, because Twilio
// signs the exact URL it called.
func NewTwilioNormalizer(authToken, webhookURL string) *TwilioNormalizer {
	n := &TwilioNormalizer{webhookURL: webhookURL}
	if authToken != "" && webhookURL != "" {
		v := client.NewRequestValidator(authToken)
		n.validator = &v
	}
	return n
}

func (n *TwilioNormalizer) Channel() string { return "twilio" }

func (n *TwilioNormalizer) Normalize(payload []byte) (Message, error) {
	form, err := url.ParseQuery(string(payload))
	if err != nil {
		return Message{}, fmt.Errorf("%w: invalid form: %v", ErrIgnored, err)
	}

	address, ok := phone.Canonical(form.Get("From"))
	if !ok {
		return Message{}, fmt.Errorf("%w: missing sender", ErrIgnored)
	}
	body := form.Get("Body")
	if strings.TrimSpace(body) == "" {
		return Message{}, fmt.Errorf("%w: empty body", ErrIgnored)
	}

	return Message{
		Channel:    n.Channel(),
		Address:    address,
		Text:       body,
		ExternalID: form.Get("MessageSid"),
	}, nil
}

// VerifySignature checks X-Twilio-Signature against the configured webhook URL
func (n *TwilioNormalizer) VerifySignature(r *http.Request, body []byte) error {
	if n.validator == nil {
		return nil
	}

	form, err := url.ParseQuery(string(body))
	if err != nil {
		return ErrSignatureMismatch
	}
	params := make(map[string]string, len(form))
	for k := range form {
		params[k] = form.Get(k)
	}

	if !n.validator.Validate(n.webhookURL, params, r.Header.Get("X-Twilio-Signature")) {
		return ErrSignatureMismatch
	}
	return nil
}
