package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"whatsapp-assistant/backend/ai"
	"whatsapp-assistant/backend/internal/dedup"
	"whatsapp-assistant/backend/internal/events"
	"whatsapp-assistant/backend/internal/inbound"
	"whatsapp-assistant/backend/internal/models"
	"whatsapp-assistant/backend/internal/outbound"
	"whatsapp-assistant/backend/internal/repository"
	"whatsapp-assistant/backend/pkg/logger"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Completer produces the automated reply
type Completer interface {
	Generate(ctx context.Context, userText string, history []ai.Turn) string
}

// Sender delivers text to a contact
type Sender interface {
	Send(ctx context.Context, address, text string, preferred ...string) outbound.Delivery
	Configured(name string) error
}

// Status is the outcome of one pass through the pipeline
type Status string

const (
	StatusReplied    Status = "replied"
	StatusSuppressed Status = "suppressed"
	StatusDuplicate  Status = "duplicate"
	StatusEmptyReply Status = "empty_reply"
)

// Outcome reports what the pipeline did with a message
type Outcome struct {
	Status   Status
	Thread   *models.Thread
	Inbound  *models.Message
	Reply    *models.Message
	Delivery outbound.Delivery
}

// PipelineDeps groups the collaborators of a Pipeline
type PipelineDeps struct {
	Repo      repository.Repository
	Resolver  *Resolver
	Takeover  *TakeoverGate
	Completer Completer
	Sender    Sender
	Guard     dedup.Guard
	Events    events.Publisher
	Log       *logger.Logger
}

// Pipeline runs an inbound message from resolution to dispatch:
// resolve, store inbound, check takeover, complete, store reply, dispatch.
type Pipeline struct {
	PipelineDeps

	tracer   trace.Tracer
	messages metric.Int64Counter
}

// NewPipeline creates the pipeline
func NewPipeline(deps PipelineDeps) *Pipeline {
	if deps.Events == nil {
		deps.Events = events.Nop{}
	}
	if deps.Log == nil {
		deps.Log = logger.GetGlobal()
	}

	counter, _ := otel.Meter("whatsapp-assistant/pipeline").Int64Counter(
		"inbound_messages_total",
		metric.WithDescription("Inbound messages by channel and outcome"),
	)

	return &Pipeline{
		PipelineDeps: deps,
		tracer:       otel.Tracer("whatsapp-assistant/pipeline"),
		messages:     counter,
	}
}

// HandleInbound processes a normalized channel message
func (p *Pipeline) HandleInbound(ctx context.Context, msg inbound.Message) (out *Outcome, err error) {
	ctx, span := p.tracer.Start(ctx, "pipeline.inbound", trace.WithAttributes(
		attribute.String("channel", msg.Channel),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	var stored bool
	if msg.ExternalID != "" && p.Guard != nil {
		key := msg.Channel + ":" + msg.ExternalID
		first, claimErr := p.Guard.Claim(ctx, key)
		switch {
		case claimErr != nil:
			p.Log.Warn("Replay guard unavailable, processing anyway", "error", claimErr.Error())
		case !first:
			p.Log.Info("Duplicate inbound message ignored", "channel", msg.Channel, "external_id", msg.ExternalID)
			p.count(ctx, msg.Channel, StatusDuplicate)
			return &Outcome{Status: StatusDuplicate}, nil
		default:
			defer func() {
				// let the provider's retry through unless the inbound
				// message was already stored, which a retry would repeat
				if err != nil && !stored {
					_ = p.Guard.Release(context.WithoutCancel(ctx), key)
				}
			}()
		}
	}

	_, thread, err := p.Resolver.Resolve(ctx, msg.Channel, msg.Address)
	if err != nil {
		return nil, fmt.Errorf("resolve conversation: %w", err)
	}
	span.SetAttributes(attribute.Int64("thread_id", int64(thread.ID)))

	out, err = p.respond(ctx, thread, msg.Text, msg.ExternalID, true, msg.Channel)
	if err != nil {
		stored = out != nil && out.Inbound != nil
		return nil, err
	}
	p.count(ctx, msg.Channel, out.Status)
	return out, nil
}

// Reply runs a direct API message through the same steps, without dispatch
func (p *Pipeline) Reply(ctx context.Context, thread *models.Thread, text, externalID string) (*Outcome, error) {
	ctx, span := p.tracer.Start(ctx, "pipeline.direct", trace.WithAttributes(
		attribute.Int64("thread_id", int64(thread.ID)),
	))
	defer span.End()

	out, err := p.respond(ctx, thread, text, externalID, false)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	p.count(ctx, "api", out.Status)
	return out, nil
}

// respond stores text as a user message and answers it. Once the message is
// stored, errors come back with a partial Outcome carrying it.
func (p *Pipeline) respond(ctx context.Context, thread *models.Thread, text, externalID string, dispatch bool, preferred ...string) (*Outcome, error) {
	log := p.Log.WithThread(thread.ID)

	in := &models.Message{
		ThreadID:          thread.ID,
		Role:              models.RoleUser,
		Content:           text,
		ExternalMessageID: models.StringPtr(externalID),
	}
	if err := p.Repo.CreateMessage(ctx, in); err != nil {
		return nil, fmt.Errorf("store inbound message: %w", err)
	}
	p.publish(thread, in)
	out := &Outcome{Thread: thread, Inbound: in}

	// read the flag after the inbound message is stored so a takeover that
	// lands in between is honoured
	current, err := p.Repo.GetThread(ctx, thread.ID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return out, ErrThreadNotFound
		}
		return out, fmt.Errorf("reload thread: %w", err)
	}
	out.Thread = current

	if p.Takeover.Active(current) {
		log.Info("Human takeover active, automated reply suppressed")
		out.Status = StatusSuppressed
		return out, nil
	}

	history, err := p.history(ctx, thread.ID, in.ID)
	if err != nil {
		return out, err
	}

	reply := p.Completer.Generate(ctx, text, history)
	if reply == "" {
		log.Warn("Completion returned no text, nothing stored or sent")
		out.Status = StatusEmptyReply
		return out, nil
	}

	answer := &models.Message{ThreadID: thread.ID, Role: models.RoleAssistant, Content: reply}
	if err := p.Repo.CreateMessage(ctx, answer); err != nil {
		return out, fmt.Errorf("store reply: %w", err)
	}
	p.publish(current, answer)
	out.Reply = answer
	out.Status = StatusReplied

	if dispatch {
		out.Delivery = p.Sender.Send(ctx, current.ContactAddress(), reply, preferred...)
		if !out.Delivery.Delivered {
			log.Error("Reply stored but not delivered", "message_id", answer.ID)
		}
	}
	return out, nil
}

// HumanReply stores an operator message and sends it in the configured
// provider order. A failed send does not undo the stored message.
func (p *Pipeline) HumanReply(ctx context.Context, threadID uint, content string) (*models.Message, outbound.Delivery, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, outbound.Delivery{}, ErrEmptyContent
	}

	thread, err := p.Repo.GetThread(ctx, threadID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, outbound.Delivery{}, ErrThreadNotFound
	}
	if err != nil {
		return nil, outbound.Delivery{}, err
	}

	msg := &models.Message{ThreadID: thread.ID, Role: models.RoleAssistant, Content: content, IsHuman: true}
	if err := p.Repo.CreateMessage(ctx, msg); err != nil {
		return nil, outbound.Delivery{}, fmt.Errorf("store human reply: %w", err)
	}
	p.publish(thread, msg)

	address := thread.ContactAddress()
	if address == "" {
		p.Log.WithThread(thread.ID).Info("Human reply stored, thread has no contact address")
		return msg, outbound.Delivery{}, nil
	}
	return msg, p.Sender.Send(ctx, address, content), nil
}

// history returns the thread's messages in order, minus the one just stored
func (p *Pipeline) history(ctx context.Context, threadID, excludeID uint) ([]ai.Turn, error) {
	messages, err := p.Repo.ListMessages(ctx, threadID)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	turns := make([]ai.Turn, 0, len(messages))
	for _, m := range messages {
		if m.ID == excludeID {
			continue
		}
		turns = append(turns, ai.Turn{Role: string(m.Role), Content: m.Content})
	}
	return turns, nil
}

func (p *Pipeline) publish(thread *models.Thread, msg *models.Message) {
	p.Events.Publish(events.Event{
		Type:     events.TypeMessageCreated,
		UserID:   thread.UserID,
		ThreadID: thread.ID,
		Message:  msg,
		At:       time.Now(),
	})
}

func (p *Pipeline) count(ctx context.Context, channel string, status Status) {
	p.messages.Add(ctx, 1, metric.WithAttributes(
		attribute.String("channel", channel),
		attribute.String("status", string(status)),
	))
}
