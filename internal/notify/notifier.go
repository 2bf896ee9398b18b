// Package notify fans completion notifications out beyond the process that
// produced them. It sits downstream of the exactly-once completion protocol:
// a notifier never decides whether an invocation completed, it only relays
// the notification value to interested observers.
//
// Implementations:
//   - NoopNotifier: drops everything; used when fan-out is not configured
//   - ChannelNotifier: in-process delivery for single-instance setups and tests
//   - RedisNotifier: PUBLISH/SUBSCRIBE across processes
package notify

import (
	"context"
	"sync"

	"github.com/oriys/asynccalc/internal/domain"
)

// Topic identifies a named notification stream.
type Topic string

const (
	TopicCompletions Topic = "completions"
)

// subscriberBuffer is the per-subscriber backlog; notifications beyond it are
// dropped for that subscriber rather than blocking the publisher.
const subscriberBuffer = 64

// Notifier relays completion notifications.
type Notifier interface {
	// Publish sends n to every current subscriber of topic.
	Publish(ctx context.Context, topic Topic, n domain.Notification) error

	// Subscribe returns a channel receiving notifications published on topic
	// from now on. The channel is closed when ctx is cancelled or Close is
	// called.
	Subscribe(ctx context.Context, topic Topic) <-chan domain.Notification

	// Close releases all resources held by the notifier.
	Close() error
}

// NoopNotifier never delivers anything.
type NoopNotifier struct{}

func NewNoopNotifier() *NoopNotifier { return &NoopNotifier{} }

func (n *NoopNotifier) Publish(_ context.Context, _ Topic, _ domain.Notification) error { return nil }

func (n *NoopNotifier) Subscribe(ctx context.Context, _ Topic) <-chan domain.Notification {
	ch := make(chan domain.Notification)
	go func() {
		<-ctx.Done()
		close(ch)
	}()
	return ch
}

func (n *NoopNotifier) Close() error { return nil }

// ChannelNotifier is an in-process notifier.
type ChannelNotifier struct {
	mu          sync.Mutex
	subscribers map[Topic][]chan domain.Notification
	closed      bool
}

func NewChannelNotifier() *ChannelNotifier {
	return &ChannelNotifier{
		subscribers: make(map[Topic][]chan domain.Notification),
	}
}

func (n *ChannelNotifier) Publish(_ context.Context, topic Topic, note domain.Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return nil
	}
	for _, ch := range n.subscribers[topic] {
		select {
		case ch <- note:
		default:
			// Slow subscriber; drop rather than block the completing goroutine.
		}
	}
	return nil
}

func (n *ChannelNotifier) Subscribe(ctx context.Context, topic Topic) <-chan domain.Notification {
	ch := make(chan domain.Notification, subscriberBuffer)

	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		close(ch)
		return ch
	}
	n.subscribers[topic] = append(n.subscribers[topic], ch)
	n.mu.Unlock()

	go func() {
		<-ctx.Done()
		n.mu.Lock()
		defer n.mu.Unlock()
		subs := n.subscribers[topic]
		for i, s := range subs {
			if s == ch {
				n.subscribers[topic] = append(subs[:i], subs[i+1:]...)
				close(ch)
				break
			}
		}
	}()

	return ch
}

func (n *ChannelNotifier) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return nil
	}
	n.closed = true
	for _, subs := range n.subscribers {
		for _, ch := range subs {
			close(ch)
		}
	}
	n.subscribers = nil
	return nil
}
