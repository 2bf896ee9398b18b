package notify

import (
	"context"
	"testing"
	"time"

	"github.com/oriys/asynccalc/internal/domain"
	"github.com/redis/go-redis/v9"
)

// newTestRedisClient creates a Redis client for testing.
// Tests that require a running Redis instance are skipped automatically.
func newTestRedisClient(t *testing.T) *redis.Client {
	t.Helper()
	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   15,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis not available, skipping: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func TestRedisNotifier_PublishAndSubscribe(t *testing.T) {
	client := newTestRedisClient(t)
	n := NewRedisNotifier(client)
	defer n.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := n.Subscribe(ctx, TopicCompletions)

	// Allow subscription to establish
	time.Sleep(50 * time.Millisecond)

	want := domain.Notification{ID: "r1", Operation: "add", X: 2, Y: 3, Result: 5, State: "first"}
	if err := n.Publish(ctx, TopicCompletions, want); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	select {
	case got := <-ch:
		if got.ID != want.ID || got.Result != want.Result || got.State != want.State {
			t.Fatalf("got %+v, want %+v", got, want)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("expected notification")
	}
}

func TestRedisNotifier_TopicsAreIsolated(t *testing.T) {
	client := newTestRedisClient(t)
	n := NewRedisNotifier(client)
	defer n.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	completions := n.Subscribe(ctx, TopicCompletions)
	other := n.Subscribe(ctx, Topic("other"))
	time.Sleep(50 * time.Millisecond)

	n.Publish(ctx, TopicCompletions, domain.Notification{ID: "x"})

	select {
	case <-completions:
	case <-time.After(2 * time.Second):
		t.Fatal("expected notification on completions topic")
	}
	select {
	case <-other:
		t.Fatal("should not receive on other topic")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestRedisNotifier_CloseClosesSubscribers(t *testing.T) {
	client := newTestRedisClient(t)
	n := NewRedisNotifier(client)

	ch := n.Subscribe(context.Background(), TopicCompletions)
	time.Sleep(50 * time.Millisecond)

	if err := n.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("channel should be closed after Close()")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("channel should have been closed")
	}
}
