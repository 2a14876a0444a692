package repository

import (
	"context"
	"testing"

	"whatsapp-assistant/backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedThread(t *testing.T, repo *MemoryRepository, email string) (*models.User, *models.Thread) {
	t.Helper()
	ctx := context.Background()

	user := models.NewChannelUser(email)
	require.NoError(t, repo.CreateUser(ctx, user))

	thread := &models.Thread{UserID: user.ID, Title: "WhatsApp"}
	require.NoError(t, repo.CreateThread(ctx, thread))
	return user, thread
}

func TestMemoryRepository_UniqueEmail(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	require.NoError(t, repo.CreateUser(ctx, models.NewChannelUser("+551100@meta.wa")))
	err := repo.CreateUser(ctx, models.NewChannelUser("+551100@meta.wa"))
	assert.ErrorIs(t, err, ErrDuplicate)
}

func TestMemoryRepository_UniqueRoutingKeyPerUser(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	user, _ := seedThread(t, repo, "a@wa")
	other, _ := seedThread(t, repo, "b@wa")

	key := "whatsapp"
	require.NoError(t, repo.CreateThread(ctx, &models.Thread{UserID: user.ID, RoutingKey: &key}))
	assert.ErrorIs(t, repo.CreateThread(ctx, &models.Thread{UserID: user.ID, RoutingKey: &key}), ErrDuplicate)

	// same key under another user is fine, and nil keys never collide
	assert.NoError(t, repo.CreateThread(ctx, &models.Thread{UserID: other.ID, RoutingKey: &key}))
	assert.NoError(t, repo.CreateThread(ctx, &models.Thread{UserID: user.ID}))
}

func TestMemoryRepository_DeleteThreadCascades(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	_, thread := seedThread(t, repo, "a@wa")

	require.NoError(t, repo.CreateMessage(ctx, &models.Message{ThreadID: thread.ID, Role: models.RoleUser, Content: "hi"}))
	require.NoError(t, repo.DeleteThread(ctx, thread.ID))

	msgs, err := repo.ListMessages(ctx, thread.ID)
	require.NoError(t, err)
	assert.Empty(t, msgs)
	assert.ErrorIs(t, repo.DeleteThread(ctx, thread.ID), ErrNotFound)
}

func TestMemoryRepository_RejectsInvalidRole(t *testing.T) {
	repo := NewMemoryRepository()
	_, thread := seedThread(t, repo, "a@wa")

	err := repo.CreateMessage(context.Background(), &models.Message{ThreadID: thread.ID, Role: "bot", Content: "x"})
	assert.Error(t, err)
}

func TestMemoryRepository_LatestThreadAndUsage(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	user, first := seedThread(t, repo, "a@wa")

	second := &models.Thread{UserID: user.ID, Title: "later"}
	require.NoError(t, repo.CreateThread(ctx, second))

	latest, err := repo.LatestThread(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, second.ID, latest.ID)

	require.NoError(t, repo.CreateMessage(ctx, &models.Message{ThreadID: first.ID, Role: models.RoleUser, Content: "a"}))
	require.NoError(t, repo.CreateMessage(ctx, &models.Message{ThreadID: first.ID, Role: models.RoleAssistant, Content: "b"}))
	require.NoError(t, repo.CreateMessage(ctx, &models.Message{ThreadID: second.ID, Role: models.RoleUser, Content: "c"}))

	usage, err := repo.Usage(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), usage.Threads)
	assert.Equal(t, int64(2), usage.UserMessages)
	assert.Equal(t, int64(1), usage.AssistantMessages)
	assert.NotNil(t, usage.LastActivity)

	recent, err := repo.RecentMessages(ctx, user.ID, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "c", recent[0].Content)
	assert.Equal(t, "later", recent[0].ThreadTitle)
}

func TestMemoryRepository_SetTakeoverAndAttachContact(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	_, thread := seedThread(t, repo, "a@wa")

	updated, err := repo.SetTakeover(ctx, thread.ID, true)
	require.NoError(t, err)
	assert.True(t, updated.HumanTakeover)

	_, err = repo.SetTakeover(ctx, 999, true)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, repo.AttachContact(ctx, thread.ID, "+5511", "meta"))
	require.NoError(t, repo.AttachContact(ctx, thread.ID, "+5599", "twilio"))

	got, err := repo.GetThread(ctx, thread.ID)
	require.NoError(t, err)
	assert.Equal(t, "+5511", got.ContactAddress())
	assert.Equal(t, "meta", got.Channel)
}
