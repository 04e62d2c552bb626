package redis

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func startRedis(t *testing.T) *redis.Client {
	t.Helper()
	if os.Getenv("SKIP_DOCKER") == "1" {
		t.Skip("SKIP_DOCKER=1 set; skipping integration test")
	}

	pool, err := dockertest.NewPool("")
	if err != nil {
		t.Skipf("docker not available: %v", err)
	}
	if err := pool.Client.Ping(); err != nil {
		t.Skipf("docker not available: %v", err)
	}

	resource, err := pool.RunWithOptions(&dockertest.RunOptions{
		Repository: "redis",
		Tag:        "7-alpine",
	}, func(config *docker.HostConfig) {
		config.AutoRemove = true
		config.RestartPolicy = docker.RestartPolicy{Name: "no"}
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = pool.Purge(resource) })

	var client *redis.Client
	err = pool.Retry(func() error {
		var cerr error
		client, cerr = Connect(context.Background(), Config{
			Addr:    "localhost:" + resource.GetPort("6379/tcp"),
			Timeout: time.Second,
		})
		return cerr
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestLoginThrottle(t *testing.T) {
	client := startRedis(t)
	ctx := context.Background()
	throttle := NewLoginThrottle(client, 3, time.Minute)

	const key = "applicant:ada@example.com"

	locked, err := throttle.Locked(ctx, key)
	require.NoError(t, err)
	require.False(t, locked, "unknown key must not be locked")

	for i := 0; i < 3; i++ {
		require.NoError(t, throttle.Failure(ctx, key))
	}
	locked, err = throttle.Locked(ctx, key)
	require.NoError(t, err)
	require.True(t, locked)

	ttl, err := client.TTL(ctx, "login:fail:"+key).Result()
	require.NoError(t, err)
	require.Greater(t, ttl, time.Duration(0), "failure counter must expire")

	locked, err = throttle.Locked(ctx, "admin:ada@example.com")
	require.NoError(t, err)
	require.False(t, locked, "roles are throttled independently")

	require.NoError(t, throttle.Reset(ctx, key))
	locked, err = throttle.Locked(ctx, key)
	require.NoError(t, err)
	require.False(t, locked)
}
