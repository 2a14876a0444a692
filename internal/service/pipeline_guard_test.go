package service

import (
	"context"
	"errors"
	"testing"

	"whatsapp-assistant/backend/internal/models"
	"whatsapp-assistant/backend/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errDiskFull = errors.New("disk full")

// flakyMessageRepo fails message inserts of one role while failRole is set
type flakyMessageRepo struct {
	repository.Repository
	failRole models.Role
}

func (r *flakyMessageRepo) CreateMessage(ctx context.Context, m *models.Message) error {
	if m.Role == r.failRole {
		return errDiskFull
	}
	return r.Repository.CreateMessage(ctx, m)
}

func TestRetryAfterStoredInboundIsDuplicate(t *testing.T) {
	env := newTestEnv("")
	flaky := &flakyMessageRepo{Repository: env.repo, failRole: models.RoleAssistant}
	env.pipeline.Repo = flaky
	ctx := context.Background()

	_, err := env.pipeline.HandleInbound(ctx, inboundText("Hello", "wamid.1"))
	require.ErrorIs(t, err, errDiskFull)

	flaky.failRole = ""
	out, err := env.pipeline.HandleInbound(ctx, inboundText("Hello", "wamid.1"))
	require.NoError(t, err)
	assert.Equal(t, StatusDuplicate, out.Status)

	user, err := env.repo.FindUserByEmail(ctx, ChannelUserEmail("meta", testAddress))
	require.NoError(t, err)
	thread, err := env.repo.LatestThread(ctx, user.ID)
	require.NoError(t, err)
	msgs, err := env.repo.ListMessages(ctx, thread.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 1, "the inbound message is stored once")
	assert.Equal(t, models.RoleUser, msgs[0].Role)
}

func TestRetryAfterFailedInboundStoreIsProcessed(t *testing.T) {
	env := newTestEnv("")
	flaky := &flakyMessageRepo{Repository: env.repo, failRole: models.RoleUser}
	env.pipeline.Repo = flaky
	ctx := context.Background()

	_, err := env.pipeline.HandleInbound(ctx, inboundText("Hello", "wamid.1"))
	require.ErrorIs(t, err, errDiskFull)

	flaky.failRole = ""
	out, err := env.pipeline.HandleInbound(ctx, inboundText("Hello", "wamid.1"))
	require.NoError(t, err)
	assert.Equal(t, StatusReplied, out.Status)

	msgs, err := env.repo.ListMessages(ctx, out.Thread.ID)
	require.NoError(t, err)
	assert.Len(t, msgs, 2)
}
