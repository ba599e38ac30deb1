package match

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"
)

// ClientMessage is what a contestant's socket sends inbound.
type ClientMessage struct {
	Type         string `json:"type"`
	PlayerCode   string `json:"player_code"`
	QuestionCode string `json:"question_code"`
	Answer       string `json:"answer"`
}

const (
	ClientBuzz         = "buzz"
	ClientAnswer       = "answer"
	ClientPickQuestion = "pick_question"
)

// Processor validates inbound client messages and shapes the accepted
// ones into channel events. Buzz messages are delegated to the
// arbitrator. Malformed or unknown messages are logged and dropped,
// never surfaced to the caller. The lock check for answers happens at
// the connection listener, before this is invoked.
type Processor struct {
	arbitrator *Arbitrator
	store      *StateStore
	publisher  Publisher
}

func NewProcessor(arbitrator *Arbitrator, store *StateStore, publisher Publisher) *Processor {
	return &Processor{
		arbitrator: arbitrator,
		store:      store,
		publisher:  publisher,
	}
}

// HandleRaw decodes and dispatches one inbound client payload.
func (p *Processor) HandleRaw(ctx context.Context, matchCode string, payload []byte) {
	var msg ClientMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		log.Warn().Err(err).Str("match_code", matchCode).Msg("malformed client message dropped")
		return
	}
	p.Handle(ctx, matchCode, msg)
}

// Handle processes one decoded client message. Each accepted message
// produces exactly one publish onto the match channel.
func (p *Processor) Handle(ctx context.Context, matchCode string, msg ClientMessage) {
	if msg.PlayerCode == "" {
		log.Warn().
			Str("match_code", matchCode).
			Str("client_type", msg.Type).
			Msg("client message missing player_code dropped")
		return
	}

	var err error
	switch msg.Type {
	case ClientBuzz:
		err = p.arbitrator.HandleBuzz(ctx, matchCode, msg.PlayerCode)

	case ClientAnswer:
		err = p.publisher.Publish(ctx, matchCode,
			PlayerAnsweredEvent(matchCode, msg.PlayerCode, msg.QuestionCode, msg.Answer))

	case ClientPickQuestion:
		err = p.handlePickQuestion(ctx, matchCode, msg)

	default:
		log.Debug().
			Str("match_code", matchCode).
			Str("client_type", msg.Type).
			Msg("unhandled client message type dropped")
		return
	}

	if err != nil {
		log.Error().Err(err).
			Str("match_code", matchCode).
			Str("client_type", msg.Type).
			Str("player_code", msg.PlayerCode).
			Msg("failed to process client message")
	}
}

func (p *Processor) handlePickQuestion(ctx context.Context, matchCode string, msg ClientMessage) error {
	if msg.QuestionCode == "" {
		log.Warn().
			Str("match_code", matchCode).
			Str("player_code", msg.PlayerCode).
			Msg("pick_question missing question_code dropped")
		return nil
	}
	if err := p.store.SetPickedQuestion(ctx, matchCode, msg.PlayerCode, msg.QuestionCode); err != nil {
		return fmt.Errorf("record picked question: %w", err)
	}
	return p.publisher.Publish(ctx, matchCode,
		PickQuestionEvent(matchCode, msg.PlayerCode, msg.QuestionCode))
}
