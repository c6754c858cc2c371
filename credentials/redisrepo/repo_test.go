package redisrepo_test

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-admin-session/credentials"
	"github.com/jrsteele09/go-admin-session/credentials/redisrepo"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

// These tests need a reachable redis; set ADMIN_TEST_REDIS_ADDR to run them.
func newRepo(t *testing.T) (*redisrepo.Repo, *redis.Client, string) {
	t.Helper()
	addr := os.Getenv("ADMIN_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("ADMIN_TEST_REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = client.Close() })
	require.NoError(t, client.Ping(context.Background()).Err())

	prefix := "test-" + uuid.NewString()
	repo, err := redisrepo.New(client, prefix, credentials.AdminKeys())
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Clear(context.Background()) })
	return repo, client, prefix
}

func TestRedisRepoLifecycle(t *testing.T) {
	ctx := context.Background()
	repo, client, prefix := newRepo(t)

	rec, err := repo.Get(ctx)
	require.NoError(t, err)
	require.True(t, rec.Empty())

	require.NoError(t, repo.Set(ctx, "access-1", "refresh-1"))
	raw, err := client.Get(ctx, prefix+":"+credentials.RefreshTokenKey).Result()
	require.NoError(t, err)
	require.Equal(t, "refresh-1", raw)

	require.NoError(t, repo.SetAccessToken(ctx, "access-2"))
	rec, err = repo.Get(ctx)
	require.NoError(t, err)
	require.Equal(t, credentials.Record{AccessToken: "access-2", RefreshToken: "refresh-1"}, rec)

	require.NoError(t, repo.Clear(ctx))
	rec, err = repo.Get(ctx)
	require.NoError(t, err)
	require.True(t, rec.Empty())
}

func TestRedisRepoRequiresClient(t *testing.T) {
	_, err := redisrepo.New(nil, "", credentials.AdminKeys())
	require.Error(t, err)
}
