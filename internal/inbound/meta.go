package inbound

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"whatsapp-assistant/backend/internal/phone"
)

type metaWebhook struct {
	Object string `json:"object"`
	Entry  []struct {
		ID      string `json:"id"`
		Changes []struct {
			Field string `json:"field"`
			Value struct {
				MessagingProduct string `json:"messaging_product"`
				Messages         []struct {
					ID        string `json:"id"`
					From      string `json:"from"`
					Timestamp string `json:"timestamp"`
					Type      string `json:"type"`
					Text      *struct {
						Body string `json:"body"`
					} `json:"text,omitempty"`
				} `json:"messages,omitempty"`
				Statuses []json.RawMessage `json:"statuses,omitempty"`
			} `json:"value"`
		} `json:"changes"`
	} `json:"entry"`
}

// MetaNormalizer reads WhatsApp Cloud API webhooks
type MetaNormalizer struct {
	appSecret string
}

// NewMetaNormalizer creates the adapter. With an app secret set, payloads
// must carry a valid X-Hub-Signature-256 header.
func NewMetaNormalizer(appSecret string) *MetaNormalizer {
	return &MetaNormalizer{appSecret: appSecret}
}

func (n *MetaNormalizer) Channel() string { return "meta" }

// Normalize takes the first message of the first change of the first entry
func (n *MetaNormalizer) Normalize(payload []byte) (Message, error) {
	var hook metaWebhook
	if err := json.Unmarshal(payload, &hook); err != nil {
		return Message{}, fmt.Errorf("%w: invalid json: %v", ErrIgnored, err)
	}
	if len(hook.Entry) == 0 || len(hook.Entry[0].Changes) == 0 {
		return Message{}, fmt.Errorf("%w: no entry", ErrIgnored)
	}

	value := hook.Entry[0].Changes[0].Value
	if len(value.Messages) == 0 {
		if len(value.Statuses) > 0 {
			return Message{}, fmt.Errorf("%w: status callback", ErrIgnored)
		}
		return Message{}, fmt.Errorf("%w: no message", ErrIgnored)
	}

	m := value.Messages[0]
	if m.Type != "" && m.Type != "text" {
		return Message{}, fmt.Errorf("%w: %s message", ErrIgnored, m.Type)
	}
	address, ok := phone.Canonical(m.From)
	if !ok {
		return Message{}, fmt.Errorf("%w: missing sender", ErrIgnored)
	}
	if m.Text == nil || strings.TrimSpace(m.Text.Body) == "" {
		return Message{}, fmt.Errorf("%w: empty body", ErrIgnored)
	}

	return Message{
		Channel:    n.Channel(),
		Address:    address,
		Text:       m.Text.Body,
		ExternalID: m.ID,
	}, nil
}

// VerifySignature checks X-Hub-Signature-256; without an app secret every payload passes
func (n *MetaNormalizer) VerifySignature(r *http.Request, body []byte) error {
	if n.appSecret == "" {
		return nil
	}

	signature := r.Header.Get("X-Hub-Signature-256")
	provided, ok := strings.CutPrefix(signature, "sha256=")
	if !ok {
		return ErrSignatureMismatch
	}

	mac := hmac.New(sha256.New, []byte(n.appSecret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(expected), []byte(provided)) {
		return ErrSignatureMismatch
	}
	return nil
}
