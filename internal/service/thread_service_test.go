package service

import (
	"context"
	"testing"

	"whatsapp-assistant/backend/internal/events"
	"whatsapp-assistant/backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newOwner(t *testing.T, env *testEnv, email string) *models.User {
	t.Helper()
	user := models.NewChannelUser(email)
	require.NoError(t, env.repo.CreateUser(context.Background(), user))
	return user
}

func TestThreadServiceOwnership(t *testing.T) {
	env := newTestEnv("")
	svc := NewThreadService(env.repo, env.pipeline, env.events)
	ctx := context.Background()
	alice := newOwner(t, env, "alice@example.com")
	bob := newOwner(t, env, "bob@example.com")

	thread, err := svc.Create(ctx, alice.ID, models.CreateThreadRequest{Title: "  "})
	require.NoError(t, err)
	assert.Equal(t, "Nova conversa", thread.Title)

	_, err = svc.Get(ctx, bob.ID, thread.ID)
	assert.ErrorIs(t, err, ErrThreadNotFound)
	_, err = svc.Messages(ctx, bob.ID, thread.ID)
	assert.ErrorIs(t, err, ErrThreadNotFound)
	assert.ErrorIs(t, svc.Delete(ctx, bob.ID, thread.ID), ErrThreadNotFound)

	require.NoError(t, svc.Delete(ctx, alice.ID, thread.ID))
	_, err = svc.Get(ctx, alice.ID, thread.ID)
	assert.ErrorIs(t, err, ErrThreadNotFound)
	assert.Contains(t, env.events.types(), events.TypeThreadDeleted)
}

func TestThreadServiceListNewestFirst(t *testing.T) {
	env := newTestEnv("")
	svc := NewThreadService(env.repo, env.pipeline, nil)
	ctx := context.Background()
	user := newOwner(t, env, "alice@example.com")

	first, err := svc.Create(ctx, user.ID, models.CreateThreadRequest{Title: "first"})
	require.NoError(t, err)
	second, err := svc.Create(ctx, user.ID, models.CreateThreadRequest{Title: "second"})
	require.NoError(t, err)

	threads, err := svc.List(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, threads, 2)
	assert.Equal(t, second.ID, threads[0].ID)
	assert.Equal(t, first.ID, threads[1].ID)
}

func TestThreadServiceSendMessage(t *testing.T) {
	env := newTestEnv("")
	svc := NewThreadService(env.repo, env.pipeline, nil)
	ctx := context.Background()
	user := newOwner(t, env, "alice@example.com")
	thread, err := svc.Create(ctx, user.ID, models.CreateThreadRequest{Title: "panel"})
	require.NoError(t, err)

	_, err = svc.SendMessage(ctx, user.ID, thread.ID, models.CreateMessageRequest{Content: "   "})
	assert.ErrorIs(t, err, ErrEmptyContent)

	out, err := svc.SendMessage(ctx, user.ID, thread.ID, models.CreateMessageRequest{
		Content:           "Oi",
		ExternalMessageID: models.StringPtr("ext-1"),
	})
	require.NoError(t, err)
	assert.Equal(t, StatusReplied, out.Status)
	require.NotNil(t, out.Inbound.ExternalMessageID)
	assert.Equal(t, "ext-1", *out.Inbound.ExternalMessageID)
	assert.Empty(t, env.sender.calls)

	msgs, err := svc.Messages(ctx, user.ID, thread.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, models.RoleUser, msgs[0].Role)
	assert.Equal(t, models.RoleAssistant, msgs[1].Role)
}

func TestThreadServiceSendMessageUnderTakeover(t *testing.T) {
	env := newTestEnv("")
	svc := NewThreadService(env.repo, env.pipeline, nil)
	ctx := context.Background()
	user := newOwner(t, env, "alice@example.com")
	thread, err := svc.Create(ctx, user.ID, models.CreateThreadRequest{})
	require.NoError(t, err)
	_, err = env.takeover.Set(ctx, thread.ID, true)
	require.NoError(t, err)

	out, err := svc.SendMessage(ctx, user.ID, thread.ID, models.CreateMessageRequest{Content: "Oi"})
	require.NoError(t, err)
	assert.Equal(t, StatusSuppressed, out.Status)
	assert.Empty(t, env.completer.calls)
}
