package pubsub

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisTransport implements Transport on Redis pub/sub channels.
type RedisTransport struct {
	client *redis.Client
}

func NewRedisTransport(client *redis.Client) *RedisTransport {
	return &RedisTransport{client: client}
}

func (t *RedisTransport) Publish(ctx context.Context, topic string, payload []byte) error {
	if err := t.client.Publish(ctx, topic, payload).Err(); err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}
	return nil
}

func (t *RedisTransport) Subscribe(ctx context.Context, topic string) (Subscription, error) {
	ps := t.client.Subscribe(ctx, topic)
	// Block until the server confirms the subscription, so messages
	// published after Subscribe returns are guaranteed to be seen.
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("subscribe to %s: %w", topic, err)
	}

	sub := &redisSubscription{ps: ps, out: make(chan []byte, 64)}
	go sub.pump()
	return sub, nil
}

type redisSubscription struct {
	ps  *redis.PubSub
	out chan []byte
}

func (s *redisSubscription) pump() {
	defer close(s.out)
	for msg := range s.ps.Channel() {
		s.out <- []byte(msg.Payload)
	}
}

func (s *redisSubscription) Messages() <-chan []byte {
	return s.out
}

func (s *redisSubscription) Close() error {
	return s.ps.Close()
}
