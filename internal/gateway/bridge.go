package gateway

import (
	"context"
	"fmt"
	"sync"

	"glorylive/internal/match"
	"glorylive/internal/pubsub"

	"github.com/rs/zerolog/log"
)

// broadcaster is what the bridge forwards decoded payloads into; the Hub
// implements it over the Registry.
type broadcaster interface {
	broadcastLocal(matchCode string, payload []byte)
}

// Bridge maintains at most one external channel subscription per match in
// this process, reference-counted by the local connections that need it.
// The refcount and the subscription lifecycle share one mutex, so a
// last-disconnect teardown racing a fresh connect can never leave a match
// with live connections and no bridge.
type Bridge struct {
	transport pubsub.Transport
	sink      broadcaster

	mu    sync.Mutex
	tasks map[string]*bridgeTask
}

type bridgeTask struct {
	refs int
	sub  pubsub.Subscription
	done chan struct{}
}

func NewBridge(transport pubsub.Transport) *Bridge {
	return &Bridge{
		transport: transport,
		tasks:     make(map[string]*bridgeTask),
	}
}

// Acquire takes a reference on the match's bridge, creating the external
// subscription on the 0 -> 1 transition.
func (b *Bridge) Acquire(ctx context.Context, matchCode string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if task, ok := b.tasks[matchCode]; ok {
		task.refs++
		return nil
	}

	sub, err := b.transport.Subscribe(ctx, match.Topic(matchCode))
	if err != nil {
		return fmt.Errorf("subscribe match channel: %w", err)
	}
	task := &bridgeTask{refs: 1, sub: sub, done: make(chan struct{})}
	b.tasks[matchCode] = task

	go b.run(matchCode, task)
	log.Info().Str("match_code", matchCode).Msg("bridge subscription started")
	return nil
}

// Release drops a reference, tearing the subscription down on the
// 1 -> 0 transition.
func (b *Bridge) Release(matchCode string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	task, ok := b.tasks[matchCode]
	if !ok {
		return
	}
	task.refs--
	if task.refs > 0 {
		return
	}
	delete(b.tasks, matchCode)
	if err := task.sub.Close(); err != nil {
		log.Warn().Err(err).Str("match_code", matchCode).Msg("closing bridge subscription")
	}
	log.Info().Str("match_code", matchCode).Msg("bridge subscription torn down")
}

// run relays channel messages into local connections until the
// subscription closes. Decode failures skip the single message; no error
// terminates the loop.
func (b *Bridge) run(matchCode string, task *bridgeTask) {
	defer close(task.done)

	for payload := range task.sub.Messages() {
		if _, err := match.DecodeEvent(payload); err != nil {
			log.Warn().Err(err).
				Str("match_code", matchCode).
				Msg("dropping undecodable channel message")
			continue
		}
		b.sink.broadcastLocal(matchCode, payload)
	}
	log.Debug().Str("match_code", matchCode).Msg("bridge loop exited")
}

// ActiveSubscriptions reports how many match bridges are live in this
// process.
func (b *Bridge) ActiveSubscriptions() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.tasks)
}
