package outbound

import (
	"context"
	"fmt"
	"strings"

	"whatsapp-assistant/backend/internal/phone"

	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

// TwilioMaxLength is Twilio's body limit for one message, in UTF-16 code units
const TwilioMaxLength = 1600

// MessageCreator is the part of the Twilio REST API the provider uses
type MessageCreator interface {
	CreateMessage(params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error)
}

// TwilioConfig holds the account credentials and sender
type TwilioConfig struct {
	AccountSID string
	AuthToken  string
	From       string
}

// TwilioProvider sends through Twilio's WhatsApp channel
type TwilioProvider struct {
	cfg TwilioConfig
	api MessageCreator
}

// NewTwilioRestAPI builds the twilio-go message API for the given account
func NewTwilioRestAPI(cfg TwilioConfig) MessageCreator {
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: cfg.AccountSID,
		Password: cfg.AuthToken,
	})
	return client.Api
}

// NewTwilioProvider creates the provider
func NewTwilioProvider(cfg TwilioConfig, api MessageCreator) *TwilioProvider {
	if cfg.From == "" {
		cfg.From = "whatsapp:+14155238886"
	}
	if !strings.HasPrefix(cfg.From, "whatsapp:") {
		cfg.From = "whatsapp:" + cfg.From
	}
	return &TwilioProvider{cfg: cfg, api: api}
}

func (p *TwilioProvider) Name() string { return "twilio" }

func (p *TwilioProvider) MaxLength() int { return TwilioMaxLength }

// FormatAddress returns "whatsapp:+<digits>"
func (p *TwilioProvider) FormatAddress(address string) string {
	return "whatsapp:+" + phone.Digits(address)
}

// Split cuts text against TwilioMaxLength counted in UTF-16 code units
func (p *TwilioProvider) Split(text string) []string {
	return SplitWidth(text, TwilioMaxLength, UTF16Width)
}

func (p *TwilioProvider) Configured() error {
	if p.cfg.AccountSID == "" || p.cfg.AuthToken == "" || p.api == nil {
		return fmt.Errorf("twilio: TWILIO_ACCOUNT_SID and TWILIO_AUTH_TOKEN are required: %w", ErrNotConfigured)
	}
	return nil
}

// SendText does not take the context into the SDK call, which has no
// context support; a cancelled context stops the send before it starts.
func (p *TwilioProvider) SendText(ctx context.Context, to, text string) (string, error) {
	if err := p.Configured(); err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	params := &twilioApi.CreateMessageParams{}
	params.SetFrom(p.cfg.From)
	params.SetTo(to)
	params.SetBody(text)

	msg, err := p.api.CreateMessage(params)
	if err != nil {
		return "", fmt.Errorf("twilio: create message: %w", err)
	}
	if msg == nil || msg.Sid == nil {
		return "", nil
	}
	return *msg.Sid, nil
}
