package outbound

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"whatsapp-assistant/backend/internal/phone"
)

// MetaMaxLength is the Cloud API limit for a text body
const MetaMaxLength = 4096

// MetaConfig holds the Cloud API credentials
type MetaConfig struct {
	AccessToken   string
	PhoneNumberID string
	GraphURL      string
	APIVersion    string
}

// MetaProvider sends through the WhatsApp Cloud API
type MetaProvider struct {
	cfg    MetaConfig
	client *http.Client
}

// NewMetaProvider creates the provider; a nil client uses http.DefaultClient
func NewMetaProvider(cfg MetaConfig, client *http.Client) *MetaProvider {
	if client == nil {
		client = http.DefaultClient
	}
	if cfg.GraphURL == "" {
		cfg.GraphURL = "https://graph.facebook.com"
	}
	if cfg.APIVersion == "" {
		cfg.APIVersion = "v20.0"
	}
	return &MetaProvider{cfg: cfg, client: client}
}

func (p *MetaProvider) Name() string { return "meta" }

func (p *MetaProvider) MaxLength() int { return MetaMaxLength }

// FormatAddress returns bare digits, which is what the Cloud API expects
func (p *MetaProvider) FormatAddress(address string) string {
	return phone.Digits(address)
}

func (p *MetaProvider) Configured() error {
	if p.cfg.AccessToken == "" || p.cfg.PhoneNumberID == "" {
		return fmt.Errorf("meta: META_ACCESS_TOKEN and META_PHONE_NUMBER_ID are required: %w", ErrNotConfigured)
	}
	return nil
}

type metaTextMessage struct {
	MessagingProduct string `json:"messaging_product"`
	RecipientType    string `json:"recipient_type"`
	To               string `json:"to"`
	Type             string `json:"type"`
	Text             struct {
		Body       string `json:"body"`
		PreviewURL bool   `json:"preview_url"`
	} `json:"text"`
}

type metaSendResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
}

func (p *MetaProvider) SendText(ctx context.Context, to, text string) (string, error) {
	if err := p.Configured(); err != nil {
		return "", err
	}

	msg := metaTextMessage{
		MessagingProduct: "whatsapp",
		RecipientType:    "individual",
		To:               to,
		Type:             "text",
	}
	msg.Text.Body = text

	body, err := json.Marshal(msg)
	if err != nil {
		return "", fmt.Errorf("meta: marshal payload: %w", err)
	}

	url := fmt.Sprintf("%s/%s/%s/messages", strings.TrimRight(p.cfg.GraphURL, "/"), p.cfg.APIVersion, p.cfg.PhoneNumberID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("meta: create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.cfg.AccessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("meta: request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("meta: HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	var out metaSendResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return "", fmt.Errorf("meta: decode response: %w", err)
	}
	if len(out.Messages) == 0 {
		return "", nil
	}
	return out.Messages[0].ID, nil
}
