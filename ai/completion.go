package ai

import (
	"context"
	"errors"
	"math/rand/v2"
	"strings"
	"time"

	"whatsapp-assistant/backend/pkg/logger"

	"github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// ApologyMessage is returned when every attempt failed
const ApologyMessage = "Desculpe, tive um problema para gerar a resposta agora. Pode tentar novamente?"

var errNoChoices = errors.New("completion returned no choices")

// ChatCompleter is the part of *openai.Client the client needs
type ChatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Config tunes the completion client
type Config struct {
	Model         string
	Temperature   float32
	Instructions  string
	HistoryLimit  int
	Timeout       time.Duration
	MaxAttempts   int
	BackoffBase   time.Duration
	BackoffJitter time.Duration
}

// DefaultConfig mirrors the environment defaults
func DefaultConfig() Config {
	return Config{
		Model:         "gpt-4o-mini",
		Temperature:   0.7,
		Instructions:  FallbackInstructions,
		HistoryLimit:  20,
		Timeout:       30 * time.Second,
		MaxAttempts:   3,
		BackoffBase:   500 * time.Millisecond,
		BackoffJitter: 250 * time.Millisecond,
	}
}

// Client produces assistant replies. Generate never returns an error: after
// the last failed attempt it answers with ApologyMessage.
type Client struct {
	api    ChatCompleter
	cfg    Config
	log    *logger.Logger
	sleep  func(ctx context.Context, d time.Duration) error
	jitter func(n int64) int64

	attempts metric.Int64Counter
}

// NewOpenAIClient builds the go-openai client, optionally against another base URL
func NewOpenAIClient(apiKey, baseURL string) *openai.Client {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return openai.NewClientWithConfig(cfg)
}

// NewClient creates a completion client
func NewClient(api ChatCompleter, cfg Config, log *logger.Logger) *Client {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if cfg.Instructions == "" {
		cfg.Instructions = FallbackInstructions
	}

	attempts, _ := otel.Meter("whatsapp-assistant/ai").Int64Counter(
		"completion_attempts_total",
		metric.WithDescription("Chat completion attempts by outcome"),
	)

	return &Client{
		api:      api,
		cfg:      cfg,
		log:      log,
		sleep:    sleepContext,
		jitter:   rand.Int64N,
		attempts: attempts,
	}
}

// Generate asks the model for a reply to userText given the prior history
func (c *Client) Generate(ctx context.Context, userText string, history []Turn) string {
	messages := c.buildMessages(userText, history)

	for attempt := 1; attempt <= c.cfg.MaxAttempts; attempt++ {
		reply, err := c.complete(ctx, messages)
		if err == nil {
			c.attempts.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "ok")))
			return reply
		}

		c.attempts.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "error")))
		c.log.Warn("Completion attempt failed",
			"attempt", attempt,
			"max_attempts", c.cfg.MaxAttempts,
			"error", err.Error(),
		)

		if attempt == c.cfg.MaxAttempts || ctx.Err() != nil {
			break
		}
		if err := c.sleep(ctx, c.backoff(attempt)); err != nil {
			break
		}
	}

	c.log.Error("Completion failed, answering with apology", "attempts", c.cfg.MaxAttempts)
	return ApologyMessage
}

func (c *Client) buildMessages(userText string, history []Turn) []openai.ChatCompletionMessage {
	trimmed := TrimHistory(history, c.cfg.HistoryLimit)

	messages := make([]openai.ChatCompletionMessage, 0, len(trimmed)+2)
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: c.cfg.Instructions,
	})
	for _, t := range trimmed {
		messages = append(messages, openai.ChatCompletionMessage{Role: t.Role, Content: t.Content})
	}
	return append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: userText,
	})
}

func (c *Client) complete(ctx context.Context, messages []openai.ChatCompletionMessage) (string, error) {
	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.cfg.Model,
		Messages:    messages,
		Temperature: c.cfg.Temperature,
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errNoChoices
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// backoff grows exponentially with the attempt number plus a jitter whose
// ceiling grows linearly
func (c *Client) backoff(attempt int) time.Duration {
	d := c.cfg.BackoffBase << (attempt - 1)
	if span := int64(c.cfg.BackoffJitter) * int64(attempt); span > 0 {
		d += time.Duration(c.jitter(span))
	}
	return d
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
