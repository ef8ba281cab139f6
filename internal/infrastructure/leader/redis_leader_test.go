package leader

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/require"
)

func newElection(t *testing.T) (*RedisLeaderElection, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisLeaderElection(client, "", time.Minute), mr
}

func TestRedisLeaderElection_SingleLeader(t *testing.T) {
	election, mr := newElection(t)
	ctx := context.Background()

	ok, err := election.BecomeLeader(ctx, "node-a")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = election.BecomeLeader(ctx, "node-b")
	require.NoError(t, err)
	require.False(t, ok)

	leads, err := election.IsLeader(ctx, "node-a")
	require.NoError(t, err)
	require.True(t, leads)
	leads, err = election.IsLeader(ctx, "node-b")
	require.NoError(t, err)
	require.False(t, leads)

	got, err := mr.Get(DefaultKey)
	require.NoError(t, err)
	require.Equal(t, "node-a", got)
}

func TestRedisLeaderElection_ReleaseOnlyByHolder(t *testing.T) {
	election, mr := newElection(t)
	ctx := context.Background()

	_, err := election.BecomeLeader(ctx, "node-a")
	require.NoError(t, err)

	require.NoError(t, election.ReleaseLeadership(ctx, "node-b"))
	require.True(t, mr.Exists(DefaultKey))

	require.NoError(t, election.ReleaseLeadership(ctx, "node-a"))
	require.False(t, mr.Exists(DefaultKey))

	ok, err := election.BecomeLeader(ctx, "node-b")
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, election.ReleaseLeadership(ctx, "node-b"))
}

func TestRedisLeaderElection_LeaseExpires(t *testing.T) {
	election, mr := newElection(t)
	ctx := context.Background()

	_, err := election.BecomeLeader(ctx, "node-a")
	require.NoError(t, err)
	election.stopHeartbeat("node-a")

	mr.FastForward(2 * time.Minute)

	leads, err := election.IsLeader(ctx, "node-a")
	require.NoError(t, err)
	require.False(t, leads)

	ok, err := election.BecomeLeader(ctx, "node-b")
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, election.ReleaseLeadership(ctx, "node-b"))
}
