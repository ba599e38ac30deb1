package match

import (
	"context"
	"encoding/json"
	"fmt"

	"glorylive/internal/pubsub"

	"github.com/rs/zerolog/log"
)

// Publisher is the one path events take to reach viewers. Nothing is
// handed to local connections directly; every state change round-trips
// through the match channel so all processes converge on the same view.
type Publisher interface {
	Publish(ctx context.Context, matchCode string, ev Event) error
}

// ChannelPublisher publishes JSON-encoded events onto the per-match topic.
type ChannelPublisher struct {
	transport pubsub.Transport
}

func NewChannelPublisher(transport pubsub.Transport) *ChannelPublisher {
	return &ChannelPublisher{transport: transport}
}

func (p *ChannelPublisher) Publish(ctx context.Context, matchCode string, ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := p.transport.Publish(ctx, Topic(matchCode), payload); err != nil {
		return fmt.Errorf("publish %s event: %w", ev.Type, err)
	}
	log.Debug().
		Str("match_code", matchCode).
		Str("event_type", string(ev.Type)).
		Msg("event published")
	return nil
}
