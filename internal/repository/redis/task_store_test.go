package redis_test

import (
	"context"
	"os"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tutorial-service/internal/entity"
	"tutorial-service/internal/registry"
	"tutorial-service/internal/repository/redis"
)

// Runs only against a live server: TEST_REDIS_ADDR=localhost:6379
func newClient(t *testing.T) *goredis.Client {
	t.Helper()
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	rdb := goredis.NewClient(&goredis.Options{Addr: addr})
	require.NoError(t, rdb.Ping(context.Background()).Err())
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

func TestTaskStore_RoundTrip(t *testing.T) {
	rdb := newClient(t)
	ctx := context.Background()
	key := "test:tasks:" + t.Name()
	t.Cleanup(func() { rdb.Del(context.Background(), key) })

	s := redis.NewTaskStore(rdb, key)

	_, err := s.Load(ctx)
	assert.ErrorIs(t, err, registry.ErrNoSnapshot)

	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	in := map[string]entity.Task{"a": entity.NewTask("a", "script", nil, now)}
	require.NoError(t, s.Save(ctx, in))

	out, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}
