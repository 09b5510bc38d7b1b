//go:build integration

package checkpoint

import (
	"context"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupRedis creates a Redis container for integration testing.
func setupRedis(t *testing.T) *redis.Client {
	t.Helper()

	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start Redis container: %v", err)
	}

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379")
	require.NoError(t, err)

	client, err := Connect(ctx, "redis://"+host+":"+port.Port()+"/0")
	require.NoError(t, err)

	t.Cleanup(func() {
		client.Close()
		container.Terminate(context.Background())
	})

	return client
}

func TestManager_Integration_ResumeCycle(t *testing.T) {
	client := setupRedis(t)
	m := NewManager(client, DefaultConfig())
	ctx := context.Background()

	key := Key{File: "/data/variants.json", Method: "PUT", EndpointTemplate: "variants/{{id}}"}

	_, err := m.Get(ctx, key)
	require.ErrorIs(t, err, ErrNoCheckpoint)

	entry := &Entry{}
	for i := 0; i < 5; i++ {
		entry.Advance(i, "succeeded")
		require.NoError(t, m.Save(ctx, key, entry))
	}

	got, err := m.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, 5, got.NextIndex)
	assert.Equal(t, 5, got.Succeeded)

	ttl, err := client.TTL(ctx, key.String()).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl.Seconds(), 0.0)

	require.NoError(t, m.Delete(ctx, key))
	_, err = m.Get(ctx, key)
	assert.ErrorIs(t, err, ErrNoCheckpoint)
}
