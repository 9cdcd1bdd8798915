//go:build integration

package redis

import (
	"context"
	"errors"
	"log"
	"os"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"rust-vip-platform/internal/config"
	"rust-vip-platform/internal/domain"
)

var testClient *Client

func TestMain(m *testing.M) {
	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		log.Fatalf("could not start redis container: %v. Is Docker running?", err)
	}
	addr, err := container.Endpoint(ctx, "")
	if err != nil {
		log.Fatalf("could not resolve redis endpoint: %v", err)
	}
	testClient, err = NewClient(ctx, &config.RedisConfig{URL: addr})
	if err != nil {
		_ = container.Terminate(ctx)
		log.Fatalf("could not connect to redis: %v", err)
	}

	code := m.Run()

	_ = testClient.Close()
	if err := container.Terminate(ctx); err != nil {
		log.Printf("could not stop redis container: %v", err)
	}
	os.Exit(code)
}

func TestRedisLocker_Integration(t *testing.T) {
	ctx := context.Background()
	locker := NewLocker(testClient)

	t.Run("should refuse a second holder", func(t *testing.T) {
		token, err := locker.TryLock(ctx, "sweep-a", time.Minute)
		if err != nil {
			t.Fatalf("expected to acquire the lock, got %v", err)
		}
		if _, err := locker.TryLock(ctx, "sweep-a", time.Minute); !errors.Is(err, domain.ErrAlreadyRunning) {
			t.Fatalf("expected ErrAlreadyRunning, got %v", err)
		}
		if err := locker.Unlock(ctx, "sweep-a", token); err != nil {
			t.Fatalf("unlock failed: %v", err)
		}
		if _, err := locker.TryLock(ctx, "sweep-a", time.Minute); err != nil {
			t.Fatalf("expected the lock to be free after unlock, got %v", err)
		}
	})

	t.Run("should not release a lock owned by someone else", func(t *testing.T) {
		if _, err := locker.TryLock(ctx, "sweep-b", time.Minute); err != nil {
			t.Fatal(err)
		}
		if err := locker.Unlock(ctx, "sweep-b", "stale-token"); !errors.Is(err, domain.ErrLockNotHeld) {
			t.Fatalf("expected ErrLockNotHeld, got %v", err)
		}
	})

	t.Run("should expire after ttl", func(t *testing.T) {
		if _, err := locker.TryLock(ctx, "sweep-c", 200*time.Millisecond); err != nil {
			t.Fatal(err)
		}
		time.Sleep(400 * time.Millisecond)
		if _, err := locker.TryLock(ctx, "sweep-c", time.Minute); err != nil {
			t.Fatalf("expected the expired lock to be free, got %v", err)
		}
	})
}

func TestMarkerStore_Integration(t *testing.T) {
	ctx := context.Background()
	store := NewMarkerStore(testClient, time.Minute)

	seen, err := store.Seen(ctx, "payment:123")
	if err != nil || seen {
		t.Fatalf("expected an unseen marker, got seen=%v err=%v", seen, err)
	}
	if err := store.Mark(ctx, "payment:123"); err != nil {
		t.Fatalf("mark failed: %v", err)
	}
	seen, err = store.Seen(ctx, "payment:123")
	if err != nil || !seen {
		t.Fatalf("expected the marker to be seen, got seen=%v err=%v", seen, err)
	}
}

func TestRateLimiter_Integration(t *testing.T) {
	ctx := context.Background()
	rl := NewRateLimiter(testClient)
	key := CheckoutKey("u-rate")

	for i := 0; i < 3; i++ {
		ok, err := rl.Allow(ctx, key, 3, time.Minute)
		if err != nil || !ok {
			t.Fatalf("call %d: expected allowed, got ok=%v err=%v", i+1, ok, err)
		}
	}
	if ok, _ := rl.Allow(ctx, key, 3, time.Minute); ok {
		t.Error("expected the fourth call to be limited")
	}
}
