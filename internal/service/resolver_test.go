package service

import (
	"context"
	"sync"
	"testing"

	"whatsapp-assistant/backend/internal/models"
	"whatsapp-assistant/backend/internal/repository"
	"whatsapp-assistant/backend/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testAddress = "+5561999990000"

func TestResolveCreatesUserAndThread(t *testing.T) {
	repo := repository.NewMemoryRepository()
	r := NewResolver(repo, "", logger.Nop())

	user, thread, err := r.Resolve(context.Background(), "meta", testAddress)
	require.NoError(t, err)

	assert.Equal(t, "+5561999990000@meta.wa", user.Email)
	assert.Equal(t, "WhatsApp", thread.Title)
	assert.Equal(t, user.ID, thread.UserID)
	assert.Equal(t, testAddress, thread.ContactAddress())
	assert.Equal(t, "meta", thread.Channel)
	assert.False(t, thread.HumanTakeover)
	assert.False(t, user.CheckPassword(""), "channel users cannot log in")
}

func TestResolveIsIdempotent(t *testing.T) {
	repo := repository.NewMemoryRepository()
	r := NewResolver(repo, "", logger.Nop())
	ctx := context.Background()

	u1, t1, err := r.Resolve(ctx, "twilio", testAddress)
	require.NoError(t, err)
	u2, t2, err := r.Resolve(ctx, "twilio", testAddress)
	require.NoError(t, err)

	assert.Equal(t, u1.ID, u2.ID)
	assert.Equal(t, t1.ID, t2.ID)

	threads, err := repo.ListThreads(ctx, u1.ID)
	require.NoError(t, err)
	assert.Len(t, threads, 1)
}

func TestResolveConcurrentFirstContact(t *testing.T) {
	repo := repository.NewMemoryRepository()
	r := NewResolver(repo, "", logger.Nop())
	ctx := context.Background()

	const workers = 16
	ids := make([]uint, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, thread, err := r.Resolve(ctx, "meta", testAddress)
			if assert.NoError(t, err) {
				ids[i] = thread.ID
			}
		}(i)
	}
	wg.Wait()

	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
	user, err := repo.FindUserByEmail(ctx, ChannelUserEmail("meta", testAddress))
	require.NoError(t, err)
	threads, err := repo.ListThreads(ctx, user.ID)
	require.NoError(t, err)
	assert.Len(t, threads, 1)
}

func TestResolveFixedRouting(t *testing.T) {
	repo := repository.NewMemoryRepository()
	r := NewResolver(repo, "operator@example.com", logger.Nop())
	ctx := context.Background()

	u1, t1, err := r.Resolve(ctx, "meta", testAddress)
	require.NoError(t, err)
	u2, t2, err := r.Resolve(ctx, "twilio", "+5511988887777")
	require.NoError(t, err)
	_, t3, err := r.Resolve(ctx, "twilio", testAddress)
	require.NoError(t, err)

	assert.Equal(t, "operator@example.com", u1.Email)
	assert.Equal(t, u1.ID, u2.ID)
	assert.NotEqual(t, t1.ID, t2.ID)
	assert.Equal(t, t1.ID, t3.ID)
	assert.Equal(t, "WhatsApp +5561999990000", t1.Title)
	assert.Equal(t, "WhatsApp +5511988887777", t2.Title)
}

func TestResolveUsesLatestThread(t *testing.T) {
	repo := repository.NewMemoryRepository()
	r := NewResolver(repo, "", logger.Nop())
	ctx := context.Background()

	user, first, err := r.Resolve(ctx, "meta", testAddress)
	require.NoError(t, err)

	newer := &models.Thread{UserID: user.ID, Title: "Nova conversa"}
	require.NoError(t, repo.CreateThread(ctx, newer))

	_, thread, err := r.Resolve(ctx, "meta", testAddress)
	require.NoError(t, err)
	assert.Equal(t, newer.ID, thread.ID)
	assert.NotEqual(t, first.ID, thread.ID)
	assert.Equal(t, testAddress, thread.ContactAddress(), "contact is attached to a thread that had none")
}

// racingRepo hides existing rows from the first lookup so the resolver
// takes the insert path and hits the unique constraint
type racingRepo struct {
	repository.Repository
	hideUser   bool
	hideThread bool
}

func (r *racingRepo) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	if r.hideUser {
		r.hideUser = false
		return nil, repository.ErrNotFound
	}
	return r.Repository.FindUserByEmail(ctx, email)
}

func (r *racingRepo) FindThreadByTitle(ctx context.Context, userID uint, title string) (*models.Thread, error) {
	if r.hideThread {
		r.hideThread = false
		return nil, repository.ErrNotFound
	}
	return r.Repository.FindThreadByTitle(ctx, userID, title)
}

func TestResolveRereadsAfterDuplicate(t *testing.T) {
	mem := repository.NewMemoryRepository()
	ctx := context.Background()

	winner, winnerThread, err := NewResolver(mem, "operator@example.com", logger.Nop()).Resolve(ctx, "meta", testAddress)
	require.NoError(t, err)

	racing := &racingRepo{Repository: mem, hideUser: true, hideThread: true}
	user, thread, err := NewResolver(racing, "operator@example.com", logger.Nop()).Resolve(ctx, "meta", testAddress)
	require.NoError(t, err)

	assert.Equal(t, winner.ID, user.ID)
	assert.Equal(t, winnerThread.ID, thread.ID)
}
