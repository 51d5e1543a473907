package sharedstate_test

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/beehive-cloud/beehive-resource/pkg/engine"
	"github.com/beehive-cloud/beehive-resource/pkg/sharedstate"
)

// setupRedis spins up a Redis container and returns its URL.
func setupRedis(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
	}
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, container.Terminate(ctx)) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379")
	require.NoError(t, err)

	return "redis://" + host + ":" + port.Port()
}

func TestKey(t *testing.T) {
	assert.Equal(t, "beehive:job:abc:shared", sharedstate.Key("abc"))
}

func TestNewRedisStore_InvalidURL(t *testing.T) {
	_, err := sharedstate.NewRedisStore(sharedstate.RedisConfig{URL: "http://nope"})
	assert.Error(t, err)
}

func TestRedisStore_Unreachable(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 100 * time.Millisecond, MaxRetries: -1})
	store := sharedstate.NewRedisStoreWithClient(client, 0)
	defer store.Close()

	_, err := store.Get(context.Background(), "j1")
	assert.True(t, engine.IsStateUnavailable(err))
	assert.True(t, engine.IsStateUnavailable(store.Ping(context.Background())))
}

func TestRedisStore_RoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	store, err := sharedstate.NewRedisStore(sharedstate.RedisConfig{URL: setupRedis(t), TTL: time.Minute})
	require.NoError(t, err)
	defer store.Close()
	ctx := context.Background()

	require.NoError(t, store.Ping(ctx))

	for name, data := range roundTripCases {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, store.Set(ctx, name, data))
			got, err := store.Get(ctx, name)
			require.NoError(t, err)
			assert.Equal(t, data, got)
		})
	}
}

func TestRedisStore_LargeIntegers(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	store, err := sharedstate.NewRedisStore(sharedstate.RedisConfig{URL: setupRedis(t)})
	require.NoError(t, err)
	defer store.Close()

	assertExactInt64(t, store)
}

func TestRedisStore_MissingAndDelete(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	url := setupRedis(t)
	store, err := sharedstate.NewRedisStore(sharedstate.RedisConfig{URL: url})
	require.NoError(t, err)
	defer store.Close()
	ctx := context.Background()

	_, err = store.Get(ctx, "missing")
	assert.True(t, engine.IsStateUnavailable(err))

	require.NoError(t, store.Set(ctx, "j1", engine.SharedData{"id": float64(1)}))

	opts, err := redis.ParseURL(url)
	require.NoError(t, err)
	raw := redis.NewClient(opts)
	defer raw.Close()
	ttl, err := raw.TTL(ctx, sharedstate.Key("j1")).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, 23*time.Hour)

	require.NoError(t, store.Delete(ctx, "j1"))
	_, err = store.Get(ctx, "j1")
	assert.True(t, engine.IsStateUnavailable(err))
}
