//go:build integration

package store

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupRedis starts a Redis container for testing.
func setupRedis(t *testing.T) (string, func()) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}

	redisC, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start Redis container: %v", err)
	}

	host, err := redisC.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := redisC.MappedPort(ctx, "6379")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	redisURL := fmt.Sprintf("redis://%s:%s", host, port.Port())

	cleanup := func() {
		if err := redisC.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate Redis container: %v", err)
		}
	}

	return redisURL, cleanup
}

func newIntegrationClient(t *testing.T, redisURL string) *Client {
	opts, err := redis.ParseURL(redisURL)
	require.NoError(t, err)

	client, err := NewClient(opts, "integration")
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return client
}

// TestConcurrentSeedersConverge starts several clients that all observe an
// empty root and write the same default dataset at once.
func TestConcurrentSeedersConverge(t *testing.T) {
	redisURL, cleanup := setupRedis(t)
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	seed := map[string]record{
		"1": {Name: "Kiln Feed", Value: 380, Target: 400, Unit: "t/h"},
		"2": {Name: "Cement Feed", Value: 145, Target: 150, Unit: "t/h"},
		"3": {Name: "MTBF Kiln", Value: 320, Target: 400, Unit: "hrs"},
		"4": {Name: "MTBF Cement", Value: 280, Target: 300, Unit: "hrs"},
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		client := newIntegrationClient(t, redisURL)
		wg.Add(1)
		go func() {
			defer wg.Done()
			snap, err := client.Get(ctx, "kpis")
			if err != nil || snap.Exists {
				return
			}
			assert.NoError(t, client.Set(ctx, "kpis", seed))
		}()
	}
	wg.Wait()

	reader := newIntegrationClient(t, redisURL)
	snap, err := reader.Get(ctx, "kpis")
	require.NoError(t, err)
	children, err := snap.Children()
	require.NoError(t, err)
	assert.Len(t, children, len(seed))
}

// TestSubscribeAgainstRealRedis checks delivery order across two clients.
func TestSubscribeAgainstRealRedis(t *testing.T) {
	redisURL, cleanup := setupRedis(t)
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	watcher := newIntegrationClient(t, redisURL)
	writer := newIntegrationClient(t, redisURL)

	sub, err := watcher.Subscribe(ctx, "kpis/1")
	require.NoError(t, err)
	defer sub.Close()

	first := <-sub.Events()
	assert.False(t, first.Exists)

	for v := 1; v <= 3; v++ {
		require.NoError(t, writer.Set(ctx, "kpis/1", record{Name: "Kiln Feed", Value: float64(v)}))
	}

	var last record
	for last.Value < 3 {
		select {
		case snap := <-sub.Events():
			var got record
			require.NoError(t, snap.Decode(&got))
			assert.GreaterOrEqual(t, got.Value, last.Value, "states must arrive in commit order")
			last = got
		case <-ctx.Done():
			t.Fatal("timeout waiting for final state")
		}
	}
}
