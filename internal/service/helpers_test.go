package service

import (
	"context"
	"sync"
	"time"

	"whatsapp-assistant/backend/ai"
	"whatsapp-assistant/backend/internal/dedup"
	"whatsapp-assistant/backend/internal/events"
	"whatsapp-assistant/backend/internal/models"
	"whatsapp-assistant/backend/internal/outbound"
	"whatsapp-assistant/backend/internal/repository"
	"whatsapp-assistant/backend/pkg/logger"
)

type completerCall struct {
	text    string
	history []ai.Turn
}

type fakeCompleter struct {
	mu    sync.Mutex
	reply string
	calls []completerCall
}

func (f *fakeCompleter) Generate(_ context.Context, text string, history []ai.Turn) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, completerCall{text: text, history: append([]ai.Turn(nil), history...)})
	return f.reply
}

type sendCall struct {
	address   string
	text      string
	preferred []string
}

type fakeSender struct {
	mu        sync.Mutex
	delivered bool
	calls     []sendCall
}

func (f *fakeSender) Send(_ context.Context, address, text string, preferred ...string) outbound.Delivery {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, sendCall{address: address, text: text, preferred: preferred})
	if !f.delivered {
		return outbound.Delivery{}
	}
	provider := "twilio"
	if len(preferred) > 0 {
		provider = preferred[0]
	}
	return outbound.Delivery{Delivered: true, Provider: provider, MessageID: "SM1", Chunks: 1}
}

func (f *fakeSender) Configured(string) error { return nil }

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(e events.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

type testEnv struct {
	repo      *repository.MemoryRepository
	completer *fakeCompleter
	sender    *fakeSender
	events    *recordingPublisher
	guard     *dedup.MemoryGuard
	takeover  *TakeoverGate
	pipeline  *Pipeline
}

func newTestEnv(routeToEmail string) *testEnv {
	repo := repository.NewMemoryRepository()
	log := logger.Nop()
	pub := &recordingPublisher{}
	env := &testEnv{
		repo:      repo,
		completer: &fakeCompleter{reply: "Olá! Como posso ajudar?"},
		sender:    &fakeSender{delivered: true},
		events:    pub,
		guard:     dedup.NewMemoryGuard(time.Hour),
		takeover:  NewTakeoverGate(repo, pub),
	}
	env.pipeline = NewPipeline(PipelineDeps{
		Repo:      repo,
		Resolver:  NewResolver(repo, routeToEmail, log),
		Takeover:  env.takeover,
		Completer: env.completer,
		Sender:    env.sender,
		Guard:     env.guard,
		Events:    pub,
		Log:       log,
	})
	return env
}

func loginRequest(email, password string) models.LoginRequest {
	return models.LoginRequest{Email: email, Password: password}
}
