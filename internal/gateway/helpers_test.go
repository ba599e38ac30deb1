package gateway

import (
	"context"
	"errors"
	"sync"

	"glorylive/internal/pubsub"
)

// fakeHandle records payloads and can be told to fail sends.
type fakeHandle struct {
	id string

	mu       sync.Mutex
	payloads [][]byte
	fail     bool
	closed   bool
}

func newFakeHandle(id string) *fakeHandle {
	return &fakeHandle{id: id}
}

func (h *fakeHandle) ID() string { return h.id }

func (h *fakeHandle) Send(payload []byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.fail {
		return errors.New("send failed")
	}
	h.payloads = append(h.payloads, payload)
	return nil
}

func (h *fakeHandle) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
}

func (h *fakeHandle) received() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.payloads)
}

func (h *fakeHandle) isClosed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.closed
}

// fakeTransport is an in-process pub/sub that counts subscriptions.
type fakeTransport struct {
	mu        sync.Mutex
	subs      map[string][]*fakeSubscription
	totalSubs int
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{subs: make(map[string][]*fakeSubscription)}
}

func (t *fakeTransport) Publish(_ context.Context, topic string, payload []byte) error {
	t.mu.Lock()
	targets := append([]*fakeSubscription(nil), t.subs[topic]...)
	t.mu.Unlock()
	for _, sub := range targets {
		sub.deliver(payload)
	}
	return nil
}

func (t *fakeTransport) Subscribe(_ context.Context, topic string) (pubsub.Subscription, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	sub := &fakeSubscription{transport: t, topic: topic, ch: make(chan []byte, 16)}
	t.subs[topic] = append(t.subs[topic], sub)
	t.totalSubs++
	return sub, nil
}

func (t *fakeTransport) activeFor(topic string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.subs[topic])
}

func (t *fakeTransport) totalSubscriptions() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.totalSubs
}

type fakeSubscription struct {
	transport *fakeTransport
	topic     string

	mu     sync.Mutex
	ch     chan []byte
	closed bool
}

func (s *fakeSubscription) deliver(payload []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.ch <- payload
}

func (s *fakeSubscription) Messages() <-chan []byte { return s.ch }

func (s *fakeSubscription) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.ch)
	s.mu.Unlock()

	s.transport.mu.Lock()
	defer s.transport.mu.Unlock()
	remaining := s.transport.subs[s.topic][:0]
	for _, sub := range s.transport.subs[s.topic] {
		if sub != s {
			remaining = append(remaining, sub)
		}
	}
	s.transport.subs[s.topic] = remaining
	return nil
}
