package notify

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/oriys/asynccalc/internal/domain"
)

func TestNoopNotifier(t *testing.T) {
	n := NewNoopNotifier()
	defer n.Close()

	ctx, cancel := context.WithCancel(context.Background())
	ch := n.Subscribe(ctx, TopicCompletions)

	if err := n.Publish(ctx, TopicCompletions, domain.Notification{ID: "1"}); err != nil {
		t.Fatalf("Publish should not return error: %v", err)
	}

	select {
	case <-ch:
		t.Fatal("NoopNotifier should never deliver")
	case <-time.After(10 * time.Millisecond):
	}

	cancel()
	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("expected closed channel")
		}
	case <-time.After(time.Second):
		t.Fatal("channel should close on cancellation")
	}
}

func TestChannelNotifier_PublishAndSubscribe(t *testing.T) {
	n := NewChannelNotifier()
	defer n.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := n.Subscribe(ctx, TopicCompletions)
	if err := n.Publish(ctx, TopicCompletions, domain.Notification{ID: "a", Result: 5}); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	select {
	case got := <-ch:
		if got.ID != "a" || got.Result != 5 {
			t.Fatalf("unexpected notification %+v", got)
		}
	case <-time.After(time.Second):
		t.Fatal("expected notification")
	}
}

func TestChannelNotifier_TopicsAreIsolated(t *testing.T) {
	n := NewChannelNotifier()
	defer n.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	completions := n.Subscribe(ctx, TopicCompletions)
	other := n.Subscribe(ctx, Topic("other"))

	n.Publish(ctx, TopicCompletions, domain.Notification{ID: "x"})

	select {
	case <-completions:
	case <-time.After(time.Second):
		t.Fatal("expected notification on completions topic")
	}
	select {
	case <-other:
		t.Fatal("should not receive on other topic")
	case <-time.After(10 * time.Millisecond):
	}
}

func TestChannelNotifier_PublishNeverBlocks(t *testing.T) {
	n := NewChannelNotifier()
	defer n.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	n.Subscribe(ctx, TopicCompletions)

	done := make(chan struct{})
	go func() {
		for i := 0; i < subscriberBuffer*2; i++ {
			n.Publish(ctx, TopicCompletions, domain.Notification{})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish should not block on a full subscriber")
	}
}

func TestChannelNotifier_ContextCancellationClosesChannel(t *testing.T) {
	n := NewChannelNotifier()
	defer n.Close()

	ctx, cancel := context.WithCancel(context.Background())
	ch := n.Subscribe(ctx, TopicCompletions)
	cancel()

	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("expected closed channel")
		}
	case <-time.After(time.Second):
		t.Fatal("channel should close after cancellation")
	}

	if err := n.Publish(context.Background(), TopicCompletions, domain.Notification{}); err != nil {
		t.Fatalf("Publish after cancellation should not fail: %v", err)
	}
}

func TestChannelNotifier_Close(t *testing.T) {
	n := NewChannelNotifier()
	ch := n.Subscribe(context.Background(), TopicCompletions)

	if err := n.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("channel should be closed after Close()")
		}
	case <-time.After(time.Second):
		t.Fatal("channel should have been closed")
	}

	if err := n.Close(); err != nil {
		t.Fatalf("Double close should not fail: %v", err)
	}

	late := n.Subscribe(context.Background(), TopicCompletions)
	if _, ok := <-late; ok {
		t.Fatal("subscribe after Close should return a closed channel")
	}
}

func TestChannelNotifier_ConcurrentAccess(t *testing.T) {
	n := NewChannelNotifier()
	defer n.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	const goroutines = 10
	var wg sync.WaitGroup

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ch := n.Subscribe(ctx, TopicCompletions)
			select {
			case <-ch:
			case <-time.After(time.Second):
			}
		}()
	}

	time.Sleep(10 * time.Millisecond)

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n.Publish(ctx, TopicCompletions, domain.Notification{})
		}()
	}

	wg.Wait()
}
