package redis

import (
	"context"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/unifiedui/multiagent-service/internal/core/events"
)

const subscriptionBuffer = 64

// Bus implements events.Bus with Redis PUBLISH/SUBSCRIBE.
type Bus struct {
	rdb *redis.Client
}

// NewBus creates a bus on an existing connection. Close on the bus does not
// close the shared connection.
func NewBus(rdb *redis.Client) *Bus {
	return &Bus{rdb: rdb}
}

// Publish sends payload on topic.
func (b *Bus) Publish(ctx context.Context, topic string, payload []byte) error {
	if b == nil || b.rdb == nil {
		return fmt.Errorf("redis bus not initialized")
	}
	if err := b.rdb.Publish(ctx, topic, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish on %s: %w", topic, err)
	}
	return nil
}

// Subscribe opens a subscription and waits for the broker to confirm it.
func (b *Bus) Subscribe(ctx context.Context, topic string) (events.Subscription, error) {
	if b == nil || b.rdb == nil {
		return nil, fmt.Errorf("redis bus not initialized")
	}

	ps := b.rdb.Subscribe(ctx, topic)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("redis subscribe %s: %w", topic, err)
	}

	sub := &subscription{
		ps:   ps,
		out:  make(chan []byte, subscriptionBuffer),
		done: make(chan struct{}),
	}
	go sub.forward(ctx)
	return sub, nil
}

// Close is a no-op; the connection belongs to the cache client.
func (b *Bus) Close() error {
	return nil
}

type subscription struct {
	ps        *redis.PubSub
	out       chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func (s *subscription) forward(ctx context.Context) {
	defer close(s.out)
	in := s.ps.Channel()
	for {
		select {
		case <-ctx.Done():
			_ = s.Close()
			return
		case <-s.done:
			return
		case m, ok := <-in:
			if !ok || m == nil {
				return
			}
			select {
			case s.out <- []byte(m.Payload):
			case <-s.done:
				return
			case <-ctx.Done():
				_ = s.Close()
				return
			}
		}
	}
}

func (s *subscription) Messages() <-chan []byte {
	return s.out
}

func (s *subscription) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		err = s.ps.Close()
	})
	return err
}
