package outbound

import (
	"context"
	"fmt"
	"time"

	"whatsapp-assistant/backend/pkg/logger"
	"whatsapp-assistant/backend/pkg/resilience"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/time/rate"
)

// Delivery describes the outcome of a dispatch. MessageID is the id of the
// first chunk sent by the provider that succeeded.
type Delivery struct {
	Delivered bool   `json:"delivered"`
	Provider  string `json:"provider,omitempty"`
	MessageID string `json:"message_id,omitempty"`
	Chunks    int    `json:"chunks,omitempty"`
}

// Options configures the dispatcher
type Options struct {
	// Order is the default provider order; unknown names are ignored and
	// registered providers missing from it are tried last
	Order []string
	// ChunkDelay is the pause between consecutive chunks of one message
	ChunkDelay time.Duration
	// Timeout bounds a single provider call
	Timeout time.Duration
	// FailureThreshold and RetryTimeout configure each provider's breaker
	FailureThreshold uint
	RetryTimeout     time.Duration
}

type route struct {
	provider Provider
	breaker  *resilience.CircuitBreaker
}

// Dispatcher delivers text through an ordered list of providers, falling
// back to the next one when a provider fails
type Dispatcher struct {
	routes map[string]*route
	order  []string
	opts   Options
	log    *logger.Logger

	sent metric.Int64Counter
}

// NewDispatcher creates a dispatcher over the given providers
func NewDispatcher(providers []Provider, opts Options, log *logger.Logger) *Dispatcher {
	d := &Dispatcher{
		routes: make(map[string]*route, len(providers)),
		opts:   opts,
		log:    log,
	}

	for _, p := range providers {
		cfg := resilience.DefaultConfig("outbound-" + p.Name())
		if opts.FailureThreshold > 0 {
			cfg.FailureThreshold = opts.FailureThreshold
		}
		if opts.RetryTimeout > 0 {
			cfg.RetryTimeout = opts.RetryTimeout
		}
		d.routes[p.Name()] = &route{provider: p, breaker: resilience.NewCircuitBreaker(cfg, log)}
	}

	seen := make(map[string]bool)
	for _, name := range opts.Order {
		if _, ok := d.routes[name]; ok && !seen[name] {
			d.order = append(d.order, name)
			seen[name] = true
		}
	}
	for _, p := range providers {
		if !seen[p.Name()] {
			d.order = append(d.order, p.Name())
			seen[p.Name()] = true
		}
	}

	d.sent, _ = otel.Meter("whatsapp-assistant/outbound").Int64Counter(
		"outbound_messages_total",
		metric.WithDescription("Outbound dispatch attempts by provider and outcome"),
	)
	return d
}

// Configured reports whether the named provider exists and has credentials
func (d *Dispatcher) Configured(name string) error {
	r, ok := d.routes[name]
	if !ok {
		return fmt.Errorf("%s: %w", name, ErrNotConfigured)
	}
	return r.provider.Configured()
}

// Order returns the provider order used when preferred names are given
func (d *Dispatcher) Order(preferred ...string) []string {
	out := make([]string, 0, len(d.order))
	seen := make(map[string]bool)
	for _, name := range preferred {
		if _, ok := d.routes[name]; ok && !seen[name] {
			out = append(out, name)
			seen[name] = true
		}
	}
	for _, name := range d.order {
		if !seen[name] {
			out = append(out, name)
		}
	}
	return out
}

// BreakerStates maps each provider's breaker to its state
func (d *Dispatcher) BreakerStates() map[string]string {
	out := make(map[string]string, len(d.routes))
	for name, r := range d.routes {
		out[name] = string(r.breaker.State())
	}
	return out
}

// Send delivers text to the canonical address. Preferred providers are tried
// first, then the configured order. Each provider gets the full text and
// splits it against its own limit. Failures never surface as errors; an
// undelivered message is reported through Delivery.Delivered.
func (d *Dispatcher) Send(ctx context.Context, address, text string, preferred ...string) Delivery {
	if address == "" || text == "" {
		d.log.Warn("Outbound message skipped", "has_address", address != "", "has_text", text != "")
		return Delivery{}
	}

	for _, name := range d.Order(preferred...) {
		r := d.routes[name]
		if err := r.provider.Configured(); err != nil {
			d.log.Warn("Outbound provider skipped", "provider", name, "error", err.Error())
			d.record(ctx, name, "skipped")
			continue
		}

		id, chunks, err := d.sendVia(ctx, r, address, text)
		if err != nil {
			d.log.Warn("Outbound provider failed",
				"provider", name,
				"chunks_sent", chunks,
				"error", err.Error(),
			)
			d.record(ctx, name, "failed")
			if ctx.Err() != nil {
				break
			}
			continue
		}

		d.record(ctx, name, "delivered")
		d.log.Info("Outbound message delivered", "provider", name, "chunks", chunks, "message_id", id)
		return Delivery{Delivered: true, Provider: name, MessageID: id, Chunks: chunks}
	}

	d.log.Error("Outbound message not delivered by any provider", "providers", len(d.order))
	return Delivery{}
}

func (d *Dispatcher) sendVia(ctx context.Context, r *route, address, text string) (string, int, error) {
	to := r.provider.FormatAddress(address)
	var chunks []string
	if s, ok := r.provider.(Splitter); ok {
		chunks = s.Split(text)
	} else {
		chunks = Split(text, r.provider.MaxLength())
	}

	limit := rate.Inf
	if d.opts.ChunkDelay > 0 {
		limit = rate.Every(d.opts.ChunkDelay)
	}
	pacer := rate.NewLimiter(limit, 1)

	var firstID string
	for i, chunk := range chunks {
		if err := pacer.Wait(ctx); err != nil {
			return firstID, i, err
		}

		var id string
		err := r.breaker.Execute(func() error {
			callCtx := ctx
			if d.opts.Timeout > 0 {
				var cancel context.CancelFunc
				callCtx, cancel = context.WithTimeout(ctx, d.opts.Timeout)
				defer cancel()
			}
			var err error
			id, err = r.provider.SendText(callCtx, to, chunk)
			return err
		})
		if err != nil {
			return firstID, i, fmt.Errorf("chunk %d/%d: %w", i+1, len(chunks), err)
		}
		if i == 0 {
			firstID = id
		}
	}
	return firstID, len(chunks), nil
}

func (d *Dispatcher) record(ctx context.Context, provider, outcome string) {
	d.sent.Add(ctx, 1, metric.WithAttributes(
		attribute.String("provider", provider),
		attribute.String("outcome", outcome),
	))
}
