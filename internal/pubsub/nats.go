package pubsub

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
)

// NATSTransport implements Transport on core NATS subjects. Match topics
// use colons, which NATS subjects reserve, so topics are mapped onto
// dotted subjects internally.
type NATSTransport struct {
	nc *nats.Conn
}

// NewNATSTransport connects to a NATS server with reconnect handling.
func NewNATSTransport(url string) (*NATSTransport, error) {
	opts := []nats.Option{
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
	}
	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	return &NATSTransport{nc: nc}, nil
}

// NewNATSTransportWithConn wraps an existing connection (useful for tests).
func NewNATSTransportWithConn(nc *nats.Conn) *NATSTransport {
	return &NATSTransport{nc: nc}
}

func subjectFor(topic string) string {
	subject := make([]byte, len(topic))
	for i := 0; i < len(topic); i++ {
		if topic[i] == ':' {
			subject[i] = '.'
		} else {
			subject[i] = topic[i]
		}
	}
	return string(subject)
}

func (t *NATSTransport) Publish(_ context.Context, topic string, payload []byte) error {
	if err := t.nc.Publish(subjectFor(topic), payload); err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}
	return nil
}

func (t *NATSTransport) Subscribe(_ context.Context, topic string) (Subscription, error) {
	ns := &natsSubscription{out: make(chan []byte, 64)}
	sub, err := t.nc.Subscribe(subjectFor(topic), func(msg *nats.Msg) {
		ns.deliver(topic, msg.Data)
	})
	if err != nil {
		return nil, fmt.Errorf("subscribe to %s: %w", topic, err)
	}
	ns.sub = sub
	return ns, nil
}

func (t *NATSTransport) Close() {
	t.nc.Close()
}

type natsSubscription struct {
	sub *nats.Subscription

	mu     sync.Mutex
	out    chan []byte
	closed bool
}

// deliver guards against callbacks still in flight after Unsubscribe
// racing the channel close.
func (s *natsSubscription) deliver(topic string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.out <- data:
	default:
		log.Warn().Str("topic", topic).Msg("subscription buffer full, dropping message")
	}
}

func (s *natsSubscription) Messages() <-chan []byte {
	return s.out
}

func (s *natsSubscription) Close() error {
	err := s.sub.Unsubscribe()
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.out)
	}
	return err
}
