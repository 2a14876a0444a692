package service

import (
	"context"
	"errors"
	"time"

	"whatsapp-assistant/backend/internal/events"
	"whatsapp-assistant/backend/internal/models"
	"whatsapp-assistant/backend/internal/repository"
)

// TakeoverGate holds the per-thread switch between automated and human replies
type TakeoverGate struct {
	repo   repository.Repository
	events events.Publisher
}

// NewTakeoverGate creates the gate
func NewTakeoverGate(repo repository.Repository, publisher events.Publisher) *TakeoverGate {
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &TakeoverGate{repo: repo, events: publisher}
}

// Active reports whether a human has taken the thread over
func (g *TakeoverGate) Active(thread *models.Thread) bool {
	return thread.HumanTakeover
}

// Set turns takeover on or off. Setting the current value again is a no-op.
func (g *TakeoverGate) Set(ctx context.Context, threadID uint, active bool) (*models.Thread, error) {
	thread, err := g.repo.SetTakeover(ctx, threadID, active)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrThreadNotFound
	}
	if err != nil {
		return nil, err
	}

	state := thread.HumanTakeover
	g.events.Publish(events.Event{
		Type:          events.TypeTakeoverChanged,
		UserID:        thread.UserID,
		ThreadID:      thread.ID,
		HumanTakeover: &state,
		At:            time.Now(),
	})
	return thread, nil
}
