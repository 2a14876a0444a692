package dedup

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisGuard(t *testing.T, ttl time.Duration) (*RedisGuard, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisGuard(client, ttl), mr
}

func TestRedisGuard_ClaimAndRelease(t *testing.T) {
	g, mr := newRedisGuard(t, time.Hour)
	ctx := context.Background()

	first, err := g.Claim(ctx, "meta:wamid.1")
	require.NoError(t, err)
	assert.True(t, first)
	assert.True(t, mr.Exists("wa:inbound:meta:wamid.1"))

	again, err := g.Claim(ctx, "meta:wamid.1")
	require.NoError(t, err)
	assert.False(t, again)

	other, err := g.Claim(ctx, "twilio:wamid.1")
	require.NoError(t, err)
	assert.True(t, other, "keys are per channel")

	require.NoError(t, g.Release(ctx, "meta:wamid.1"))
	assert.False(t, mr.Exists("wa:inbound:meta:wamid.1"))

	afterRelease, err := g.Claim(ctx, "meta:wamid.1")
	require.NoError(t, err)
	assert.True(t, afterRelease)
}

func TestRedisGuard_ClaimExpires(t *testing.T) {
	g, mr := newRedisGuard(t, time.Minute)
	ctx := context.Background()

	first, err := g.Claim(ctx, "meta:wamid.2")
	require.NoError(t, err)
	require.True(t, first)
	assert.Equal(t, time.Minute, mr.TTL("wa:inbound:meta:wamid.2"))

	mr.FastForward(2 * time.Minute)

	again, err := g.Claim(ctx, "meta:wamid.2")
	require.NoError(t, err)
	assert.True(t, again)
}

func TestRedisGuard_ServerDown(t *testing.T) {
	g, mr := newRedisGuard(t, time.Minute)
	mr.Close()

	_, err := g.Claim(context.Background(), "meta:wamid.3")
	assert.Error(t, err)
}
