// Package repository persists users, threads and messages. The unique
// constraints declared on the models are what keep concurrent resolution of
// the same contact down to one user and one thread.
package repository

import (
	"context"
	"errors"
	"time"

	"whatsapp-assistant/backend/internal/models"
)

var (
	// ErrNotFound is returned when the requested row does not exist
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned when an insert violates a unique constraint
	ErrDuplicate = errors.New("duplicate record")
)

// Usage aggregates a user's activity
type Usage struct {
	Threads           int64      `json:"threads"`
	UserMessages      int64      `json:"user_messages"`
	AssistantMessages int64      `json:"assistant_messages"`
	LastActivity      *time.Time `json:"last_activity"`
}

// RecentMessage is a message row joined with its thread title
type RecentMessage struct {
	MessageID   uint
	ThreadID    uint
	ThreadTitle string
	Role        models.Role
	Content     string
	IsHuman     bool
	CreatedAt   time.Time
}

// Repository is the storage contract used by the services
type Repository interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUser(ctx context.Context, id uint) (*models.User, error)
	FindUserByEmail(ctx context.Context, email string) (*models.User, error)
	SetPasswordHash(ctx context.Context, id uint, hash string) error

	CreateThread(ctx context.Context, thread *models.Thread) error
	GetThread(ctx context.Context, id uint) (*models.Thread, error)
	FindThreadByTitle(ctx context.Context, userID uint, title string) (*models.Thread, error)
	LatestThread(ctx context.Context, userID uint) (*models.Thread, error)
	ListThreads(ctx context.Context, userID uint) ([]models.Thread, error)
	DeleteThread(ctx context.Context, id uint) error
	SetTakeover(ctx context.Context, id uint, active bool) (*models.Thread, error)
	// AttachContact stores the contact address on a thread that has none
	AttachContact(ctx context.Context, id uint, address, channel string) error

	CreateMessage(ctx context.Context, message *models.Message) error
	ListMessages(ctx context.Context, threadID uint) ([]models.Message, error)

	Usage(ctx context.Context, userID uint) (*Usage, error)
	RecentMessages(ctx context.Context, userID uint, limit int) ([]RecentMessage, error)
	RecentThreads(ctx context.Context, userID uint, limit int) ([]models.Thread, error)

	Ping(ctx context.Context) error
}
