package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"whatsapp-assistant/backend/internal/models"
)

// MemoryRepository keeps everything in process memory. It enforces the same
// unique constraints as the Postgres schema and is used by tests and by
// DB_USE_IN_MEMORY=true.
type MemoryRepository struct {
	mu       sync.RWMutex
	now      func() time.Time
	users    map[uint]models.User
	threads  map[uint]models.Thread
	messages map[uint]models.Message
	lastID   struct{ user, thread, message uint }
}

// NewMemoryRepository creates an empty store
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		now:      time.Now,
		users:    make(map[uint]models.User),
		threads:  make(map[uint]models.Thread),
		messages: make(map[uint]models.Message),
	}
}

func (r *MemoryRepository) CreateUser(_ context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, u := range r.users {
		if u.Email == user.Email {
			return ErrDuplicate
		}
	}
	r.lastID.user++
	user.ID = r.lastID.user
	user.CreatedAt = r.now()
	r.users[user.ID] = *user
	return nil
}

func (r *MemoryRepository) GetUser(_ context.Context, id uint) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &u, nil
}

func (r *MemoryRepository) FindUserByEmail(_ context.Context, email string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, u := range r.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, ErrNotFound
}

func (r *MemoryRepository) SetPasswordHash(_ context.Context, id uint, hash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok {
		return ErrNotFound
	}
	u.PasswordHash = hash
	r.users[id] = u
	return nil
}

func (r *MemoryRepository) CreateThread(_ context.Context, thread *models.Thread) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.users[thread.UserID]; !ok {
		return fmt.Errorf("thread references unknown user %d", thread.UserID)
	}
	if thread.RoutingKey != nil {
		for _, t := range r.threads {
			if t.UserID == thread.UserID && t.RoutingKey != nil && *t.RoutingKey == *thread.RoutingKey {
				return ErrDuplicate
			}
		}
	}
	r.lastID.thread++
	thread.ID = r.lastID.thread
	thread.CreatedAt = r.now()
	r.threads[thread.ID] = *thread
	return nil
}

func (r *MemoryRepository) GetThread(_ context.Context, id uint) (*models.Thread, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.threads[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &t, nil
}

func (r *MemoryRepository) FindThreadByTitle(_ context.Context, userID uint, title string) (*models.Thread, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var found *models.Thread
	for _, t := range r.threads {
		if t.UserID == userID && t.Title == title && (found == nil || t.ID < found.ID) {
			t := t
			found = &t
		}
	}
	if found == nil {
		return nil, ErrNotFound
	}
	return found, nil
}

func (r *MemoryRepository) LatestThread(ctx context.Context, userID uint) (*models.Thread, error) {
	threads, _ := r.RecentThreads(ctx, userID, 1)
	if len(threads) == 0 {
		return nil, ErrNotFound
	}
	return &threads[0], nil
}

func (r *MemoryRepository) ListThreads(ctx context.Context, userID uint) ([]models.Thread, error) {
	return r.RecentThreads(ctx, userID, 0)
}

func (r *MemoryRepository) DeleteThread(_ context.Context, id uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.threads[id]; !ok {
		return ErrNotFound
	}
	delete(r.threads, id)
	for mid, m := range r.messages {
		if m.ThreadID == id {
			delete(r.messages, mid)
		}
	}
	return nil
}

func (r *MemoryRepository) SetTakeover(_ context.Context, id uint, active bool) (*models.Thread, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.threads[id]
	if !ok {
		return nil, ErrNotFound
	}
	t.HumanTakeover = active
	r.threads[id] = t
	return &t, nil
}

func (r *MemoryRepository) AttachContact(_ context.Context, id uint, address, channel string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.threads[id]
	if !ok || t.ExternalContact != nil {
		return nil
	}
	t.ExternalContact = &address
	t.Channel = channel
	r.threads[id] = t
	return nil
}

func (r *MemoryRepository) CreateMessage(_ context.Context, message *models.Message) error {
	if !message.Role.Valid() {
		return fmt.Errorf("invalid message role %q", message.Role)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.threads[message.ThreadID]; !ok {
		return fmt.Errorf("message references unknown thread %d", message.ThreadID)
	}
	r.lastID.message++
	message.ID = r.lastID.message
	message.CreatedAt = r.now()
	r.messages[message.ID] = *message
	return nil
}

func (r *MemoryRepository) ListMessages(_ context.Context, threadID uint) ([]models.Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]models.Message, 0)
	for _, m := range r.messages {
		if m.ThreadID == threadID {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *MemoryRepository) Usage(_ context.Context, userID uint) (*Usage, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	usage := &Usage{}
	for _, t := range r.threads {
		if t.UserID == userID {
			usage.Threads++
		}
	}
	for _, m := range r.messages {
		t, ok := r.threads[m.ThreadID]
		if !ok || t.UserID != userID {
			continue
		}
		switch m.Role {
		case models.RoleUser:
			usage.UserMessages++
		case models.RoleAssistant:
			usage.AssistantMessages++
		}
		if usage.LastActivity == nil || m.CreatedAt.After(*usage.LastActivity) {
			at := m.CreatedAt
			usage.LastActivity = &at
		}
	}
	return usage, nil
}

func (r *MemoryRepository) RecentMessages(_ context.Context, userID uint, limit int) ([]RecentMessage, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []RecentMessage
	for _, m := range r.messages {
		t, ok := r.threads[m.ThreadID]
		if !ok || t.UserID != userID {
			continue
		}
		out = append(out, RecentMessage{
			MessageID:   m.ID,
			ThreadID:    m.ThreadID,
			ThreadTitle: t.Title,
			Role:        m.Role,
			Content:     m.Content,
			IsHuman:     m.IsHuman,
			CreatedAt:   m.CreatedAt,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].MessageID > out[j].MessageID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *MemoryRepository) RecentThreads(_ context.Context, userID uint, limit int) ([]models.Thread, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]models.Thread, 0)
	for _, t := range r.threads {
		if t.UserID == userID {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *MemoryRepository) Ping(context.Context) error { return nil }
