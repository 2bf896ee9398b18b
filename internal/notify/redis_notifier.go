package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/oriys/asynccalc/internal/domain"
	"github.com/oriys/asynccalc/internal/logging"
	"github.com/redis/go-redis/v9"
)

const redisChannelPrefix = "calc:notify:"

// RedisNotifier broadcasts notifications through Redis PUBLISH/SUBSCRIBE so
// that any process watching a topic sees completions produced elsewhere.
// Pub/Sub has no backlog: a process that subscribes late misses earlier
// notifications, the same as an in-process event.
type RedisNotifier struct {
	client *redis.Client
	mu     sync.Mutex
	subs   map[Topic][]*redisSub
	closed bool
}

type redisSub struct {
	ch     chan domain.Notification
	cancel context.CancelFunc
	once   sync.Once
}

func (s *redisSub) close() {
	s.once.Do(func() { close(s.ch) })
}

// NewRedisNotifier creates a new Redis-backed notifier.
func NewRedisNotifier(client *redis.Client) *RedisNotifier {
	return &RedisNotifier{
		client: client,
		subs:   make(map[Topic][]*redisSub),
	}
}

// Publish encodes n as JSON and publishes it on the topic channel.
func (n *RedisNotifier) Publish(ctx context.Context, topic Topic, note domain.Notification) error {
	data, err := json.Marshal(note)
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}
	if err := n.client.Publish(ctx, redisChannelPrefix+string(topic), data).Err(); err != nil {
		return fmt.Errorf("publish notification: %w", err)
	}
	return nil
}

// Subscribe starts a Redis subscription for topic and forwards decoded
// notifications to the returned channel.
func (n *RedisNotifier) Subscribe(ctx context.Context, topic Topic) <-chan domain.Notification {
	ch := make(chan domain.Notification, subscriberBuffer)

	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		close(ch)
		return ch
	}

	subCtx, cancel := context.WithCancel(ctx)
	rs := &redisSub{ch: ch, cancel: cancel}
	n.subs[topic] = append(n.subs[topic], rs)
	n.mu.Unlock()

	pubsub := n.client.Subscribe(subCtx, redisChannelPrefix+string(topic))

	go func() {
		defer pubsub.Close()
		defer rs.close()
		msgCh := pubsub.Channel()
		for {
			select {
			case <-subCtx.Done():
				n.removeSub(topic, rs)
				return
			case msg, ok := <-msgCh:
				if !ok {
					n.removeSub(topic, rs)
					return
				}
				var note domain.Notification
				if err := json.Unmarshal([]byte(msg.Payload), &note); err != nil {
					logging.Op().Warn("discarding malformed notification", "topic", topic, "error", err)
					continue
				}
				select {
				case ch <- note:
				default:
				}
			}
		}
	}()

	return ch
}

// Close cancels every subscription. Subscriber channels are closed by their
// forwarding goroutines once they observe the cancellation.
func (n *RedisNotifier) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return nil
	}
	n.closed = true
	for _, subs := range n.subs {
		for _, s := range subs {
			s.cancel()
		}
	}
	n.subs = nil
	return nil
}

func (n *RedisNotifier) removeSub(topic Topic, target *redisSub) {
	n.mu.Lock()
	defer n.mu.Unlock()
	subs := n.subs[topic]
	for i, s := range subs {
		if s == target {
			n.subs[topic] = append(subs[:i], subs[i+1:]...)
			break
		}
	}
}
