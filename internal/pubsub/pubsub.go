// Package pubsub abstracts the cross-process match channel. Any transport
// with at-least-once, in-order-per-topic delivery to live subscribers fits;
// Redis pub/sub is the default and NATS is provided as an alternative.
package pubsub

import "context"

// Transport publishes raw payloads to named topics and hands out
// per-topic subscriptions.
type Transport interface {
	Publish(ctx context.Context, topic string, payload []byte) error
	Subscribe(ctx context.Context, topic string) (Subscription, error)
}

// Subscription is one live topic subscription. Messages is closed after
// Close returns or the transport drops the subscription.
type Subscription interface {
	Messages() <-chan []byte
	Close() error
}
