package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"whatsapp-assistant/backend/internal/events"
	"whatsapp-assistant/backend/internal/models"
	"whatsapp-assistant/backend/internal/repository"
)

const defaultNewThreadTitle = "Nova conversa"

// ThreadService is the owner-scoped thread API
type ThreadService struct {
	repo     repository.Repository
	pipeline *Pipeline
	events   events.Publisher
}

// NewThreadService creates a thread service
func NewThreadService(repo repository.Repository, pipeline *Pipeline, publisher events.Publisher) *ThreadService {
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &ThreadService{repo: repo, pipeline: pipeline, events: publisher}
}

// Create opens a thread for the user
func (s *ThreadService) Create(ctx context.Context, userID uint, req models.CreateThreadRequest) (*models.Thread, error) {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = defaultNewThreadTitle
	}
	thread := &models.Thread{
		UserID:           userID,
		Title:            title,
		ExternalThreadID: req.ExternalThreadID,
	}
	if err := s.repo.CreateThread(ctx, thread); err != nil {
		return nil, err
	}
	return thread, nil
}

// List returns the user's threads, newest first
func (s *ThreadService) List(ctx context.Context, userID uint) ([]models.Thread, error) {
	return s.repo.ListThreads(ctx, userID)
}

// Get returns a thread the user owns
func (s *ThreadService) Get(ctx context.Context, userID, threadID uint) (*models.Thread, error) {
	thread, err := s.repo.GetThread(ctx, threadID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrThreadNotFound
	}
	if err != nil {
		return nil, err
	}
	if thread.UserID != userID {
		return nil, ErrThreadNotFound
	}
	return thread, nil
}

// Delete removes a thread and its messages
func (s *ThreadService) Delete(ctx context.Context, userID, threadID uint) error {
	thread, err := s.Get(ctx, userID, threadID)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteThread(ctx, thread.ID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrThreadNotFound
		}
		return err
	}
	s.events.Publish(events.Event{
		Type:     events.TypeThreadDeleted,
		UserID:   thread.UserID,
		ThreadID: thread.ID,
		At:       time.Now(),
	})
	return nil
}

// Messages returns a thread's messages in insertion order
func (s *ThreadService) Messages(ctx context.Context, userID, threadID uint) ([]models.Message, error) {
	if _, err := s.Get(ctx, userID, threadID); err != nil {
		return nil, err
	}
	return s.repo.ListMessages(ctx, threadID)
}

// SendMessage stores a user message and, unless a human has taken over,
// the automated reply
func (s *ThreadService) SendMessage(ctx context.Context, userID, threadID uint, req models.CreateMessageRequest) (*Outcome, error) {
	content := strings.TrimSpace(req.Content)
	if content == "" {
		return nil, ErrEmptyContent
	}
	thread, err := s.Get(ctx, userID, threadID)
	if err != nil {
		return nil, err
	}

	externalID := ""
	if req.ExternalMessageID != nil {
		externalID = *req.ExternalMessageID
	}
	return s.pipeline.Reply(ctx, thread, content, externalID)
}
