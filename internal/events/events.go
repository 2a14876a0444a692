// Package events carries conversation changes to live operator views
package events

import (
	"time"

	"whatsapp-assistant/backend/internal/models"
)

// Event types
const (
	TypeMessageCreated  = "message.created"
	TypeTakeoverChanged = "takeover.changed"
	TypeThreadDeleted   = "thread.deleted"
)

// Event is one change to a thread, published after it is stored
type Event struct {
	Type          string          `json:"type"`
	UserID        uint            `json:"user_id"`
	ThreadID      uint            `json:"thread_id"`
	Message       *models.Message `json:"message,omitempty"`
	HumanTakeover *bool           `json:"human_takeover,omitempty"`
	At            time.Time       `json:"at"`
}

// Publisher fans events out; Publish must not block the caller
type Publisher interface {
	Publish(Event)
}

// Nop discards events
type Nop struct{}

func (Nop) Publish(Event) {}
