//go:build integration

package kv

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const redisPort = "6379/tcp"

func startRedis(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{redisPort},
			WaitingFor:   wait.ForListeningPort(redisPort).WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Skipf("redis container unavailable: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("Warning: failed to terminate container: %v", err)
		}
	})

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("container host: %v", err)
	}
	port, err := container.MappedPort(ctx, redisPort)
	if err != nil {
		t.Fatalf("mapped port: %v", err)
	}
	return fmt.Sprintf("redis://%s:%s/0", host, port.Port())
}

func TestRedis_Integration(t *testing.T) {
	ctx := context.Background()

	store, err := New(ctx, startRedis(t))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer store.Close()

	for i := 0; i < 250; i++ {
		if err := store.Set(ctx, fmt.Sprintf("click:dep_%03d", i), []byte("{}"), time.Minute); err != nil {
			t.Fatalf("Set() error = %v", err)
		}
	}

	// More keys than one SCAN batch.
	keys, err := store.Keys(ctx, "click:*", 0)
	if err != nil {
		t.Fatalf("Keys() error = %v", err)
	}
	if len(keys) != 250 {
		t.Errorf("Keys() returned %d keys, want 250", len(keys))
	}

	keys, err = store.Keys(ctx, "click:*", 100)
	if err != nil {
		t.Fatalf("Keys(limit) error = %v", err)
	}
	if len(keys) != 100 {
		t.Errorf("Keys(limit=100) returned %d keys, want 100", len(keys))
	}

	n, err := store.HIncrBy(ctx, "metrics:daily:2024-01-01:p1", "conversions", 1)
	if err != nil || n != 1 {
		t.Errorf("HIncrBy() = %d, %v", n, err)
	}
}
