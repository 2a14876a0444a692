package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"

	"whatsapp-assistant/backend/internal/inbound"
	"whatsapp-assistant/backend/internal/service"
	apperrors "whatsapp-assistant/backend/pkg/errors"
	"whatsapp-assistant/backend/pkg/logger"

	"github.com/gin-gonic/gin"
)

// InboundProcessor runs a normalized message through the pipeline
type InboundProcessor interface {
	HandleInbound(ctx context.Context, msg inbound.Message) (*service.Outcome, error)
}

// ProviderRegistry reports whether an outbound provider can send
type ProviderRegistry interface {
	Configured(name string) error
}

// WebhookHandler receives provider callbacks. Providers retry anything that
// is not a 2xx, so payloads that carry nothing to answer are acknowledged.
type WebhookHandler struct {
	normalizers map[string]inbound.Normalizer
	verifier    *inbound.Verifier
	pipeline    InboundProcessor
	providers   ProviderRegistry
	maxBody     int64
	logger      *logger.Logger
}

// NewWebhookHandler creates a webhook handler
func NewWebhookHandler(
	normalizers []inbound.Normalizer,
	verifier *inbound.Verifier,
	pipeline InboundProcessor,
	providers ProviderRegistry,
	maxBody int64,
	logger *logger.Logger,
) *WebhookHandler {
	byChannel := make(map[string]inbound.Normalizer, len(normalizers))
	for _, n := range normalizers {
		byChannel[n.Channel()] = n
	}
	return &WebhookHandler{
		normalizers: byChannel,
		verifier:    verifier,
		pipeline:    pipeline,
		providers:   providers,
		maxBody:     maxBody,
		logger:      logger,
	}
}

// RegisterRoutes registers the webhook routes
func (h *WebhookHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/webhooks/meta", h.Verify)
	rg.POST("/webhooks/:channel", h.Receive)
}

// firstQuery returns the first non-empty query value among keys
func firstQuery(c *gin.Context, keys ...string) string {
	for _, k := range keys {
		if v := c.Query(k); v != "" {
			return v
		}
	}
	return ""
}

// Verify answers the subscription handshake with the integer challenge
func (h *WebhookHandler) Verify(c *gin.Context) {
	mode := firstQuery(c, "hub.mode", "hub_mode", "mode")
	challenge := firstQuery(c, "hub.challenge", "hub_challenge", "challenge")
	token := firstQuery(c, "hub.verify_token", "hub_verify_token", "verify_token")

	n, err := h.verifier.Verify(mode, challenge, token)
	switch {
	case errors.Is(err, inbound.ErrInvalidChallenge):
		badRequest(c, "hub.challenge must be an integer", nil)
		return
	case err != nil:
		h.logger.Warn("Webhook verification rejected", "mode", mode)
		fail(c, apperrors.NewForbiddenError(apperrors.CodeForbidden, "Verification failed"))
		return
	}
	c.String(http.StatusOK, strconv.FormatInt(n, 10))
}

// Receive handles an inbound provider callback
func (h *WebhookHandler) Receive(c *gin.Context) {
	channel := c.Param("channel")
	normalizer, known := h.normalizers[channel]
	if !known {
		fail(c, apperrors.NewNotFoundError(apperrors.CodeNotFound, "Unknown channel"))
		return
	}
	log := logger.FromContext(c).With("channel", channel)

	reader := io.Reader(c.Request.Body)
	if h.maxBody > 0 {
		reader = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBody)
	}
	body, err := io.ReadAll(reader)
	if err != nil {
		badRequest(c, "Could not read request body", err)
		return
	}

	if verifier, ok := normalizer.(inbound.SignatureVerifier); ok {
		if err := verifier.VerifySignature(c.Request, body); err != nil {
			log.Warn("Webhook signature rejected")
			fail(c, apperrors.NewForbiddenError(apperrors.CodeForbidden, "Invalid signature"))
			return
		}
	}

	msg, err := normalizer.Normalize(body)
	if errors.Is(err, inbound.ErrIgnored) {
		log.Debug("Webhook payload ignored", "reason", err.Error())
		ok(c, gin.H{"status": "ignored"})
		return
	}
	if err != nil {
		badRequest(c, "Malformed webhook payload", err)
		return
	}

	if err := h.providers.Configured(channel); err != nil {
		fail(c, apperrors.NewInternalServerError(apperrors.CodeProviderMissing, "Outbound provider is not configured").Wrap(err))
		return
	}

	out, err := h.pipeline.HandleInbound(c.Request.Context(), msg)
	if err != nil {
		fail(c, err)
		return
	}
	log.Info("Webhook processed", "status", string(out.Status))
	ok(c, gin.H{"status": "ok"})
}
