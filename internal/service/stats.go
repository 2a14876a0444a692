package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"whatsapp-assistant/backend/internal/repository"
)

const (
	DefaultActivityLimit = 10
	MaxActivityLimit     = 50
)

// Stats is the dashboard summary for one user
type Stats struct {
	Threads           int64      `json:"threads"`
	UserMessages      int64      `json:"user_messages"`
	AssistantMessages int64      `json:"assistant_messages"`
	TotalMessages     int64      `json:"total_messages"`
	LastActivity      *time.Time `json:"last_activity"`
}

// UsageSummary is the compact usage counter view
type UsageSummary struct {
	ThreadsTotal  int64 `json:"threads_total"`
	MessagesTotal int64 `json:"messages_total"`
	UserSent      int64 `json:"user_sent"`
	AssistantSent int64 `json:"assistant_sent"`
}

// Activity is one entry of the recent activity feed
type Activity struct {
	ID       string    `json:"id"`
	Type     string    `json:"type"`
	Title    string    `json:"title"`
	ThreadID uint      `json:"thread_id"`
	At       time.Time `json:"at"`
}

// StatsService aggregates per-user counters
type StatsService struct {
	repo repository.Repository
}

// NewStatsService creates a stats service
func NewStatsService(repo repository.Repository) *StatsService {
	return &StatsService{repo: repo}
}

// Stats returns the dashboard summary
func (s *StatsService) Stats(ctx context.Context, userID uint) (*Stats, error) {
	u, err := s.repo.Usage(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &Stats{
		Threads:           u.Threads,
		UserMessages:      u.UserMessages,
		AssistantMessages: u.AssistantMessages,
		TotalMessages:     u.UserMessages + u.AssistantMessages,
		LastActivity:      u.LastActivity,
	}, nil
}

// Usage returns the usage counters
func (s *StatsService) Usage(ctx context.Context, userID uint) (*UsageSummary, error) {
	u, err := s.repo.Usage(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &UsageSummary{
		ThreadsTotal:  u.Threads,
		MessagesTotal: u.UserMessages + u.AssistantMessages,
		UserSent:      u.UserMessages,
		AssistantSent: u.AssistantMessages,
	}, nil
}

// ClampActivityLimit applies the default and bounds to a requested limit
func ClampActivityLimit(limit int) int {
	switch {
	case limit == 0:
		return DefaultActivityLimit
	case limit < 1:
		return 1
	case limit > MaxActivityLimit:
		return MaxActivityLimit
	}
	return limit
}

// Activities merges recent messages and thread creations, newest first
func (s *StatsService) Activities(ctx context.Context, userID uint, limit int) ([]Activity, error) {
	limit = ClampActivityLimit(limit)

	messages, err := s.repo.RecentMessages(ctx, userID, limit)
	if err != nil {
		return nil, err
	}
	threads, err := s.repo.RecentThreads(ctx, userID, limit)
	if err != nil {
		return nil, err
	}

	items := make([]Activity, 0, len(messages)+len(threads))
	for _, m := range messages {
		items = append(items, Activity{
			ID:       fmt.Sprintf("msg-%d", m.MessageID),
			Type:     "message",
			Title:    "Mensagem em: " + m.ThreadTitle,
			ThreadID: m.ThreadID,
			At:       m.CreatedAt,
		})
	}
	for _, t := range threads {
		items = append(items, Activity{
			ID:       fmt.Sprintf("thr-%d", t.ID),
			Type:     "thread",
			Title:    "Conversa criada: " + t.Title,
			ThreadID: t.ID,
			At:       t.CreatedAt,
		})
	}

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].At.After(items[j].At)
	})
	if len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}
