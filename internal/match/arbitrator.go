package match

import (
	"context"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// Arbitrator decides a single buzz winner per question. Multiple server
// processes may receive near-simultaneous buzz requests for the same
// match; the store's SetNX is the serialization point, so exactly one
// caller ever wins regardless of process interleaving. First atomic
// claim wins, with no secondary ordering by timestamp.
type Arbitrator struct {
	store     *StateStore
	publisher Publisher
	clock     clockwork.Clock

	// winnerTTL bounds how long a stale winner key can linger; it is
	// derived from the question time limit when known.
	winnerTTL time.Duration
}

// DefaultWinnerTTL covers twice a generous answer window.
const DefaultWinnerTTL = 2 * time.Minute

func NewArbitrator(store *StateStore, publisher Publisher, clock clockwork.Clock) *Arbitrator {
	return &Arbitrator{
		store:     store,
		publisher: publisher,
		clock:     clock,
		winnerTTL: DefaultWinnerTTL,
	}
}

// HandleBuzz arbitrates one buzz request. Losing the claim race is not an
// error; the loser is told via a buzz_rejected event carrying its own
// player code.
func (a *Arbitrator) HandleBuzz(ctx context.Context, matchCode, playerCode string) error {
	status, err := a.store.BuzzStatus(ctx, matchCode)
	if err != nil {
		return fmt.Errorf("read buzz status: %w", err)
	}
	if status != StatusBuzzing {
		log.Debug().
			Str("match_code", matchCode).
			Str("player_code", playerCode).
			Str("status", string(status)).
			Msg("buzz outside BUZZING state rejected")
		return a.publisher.Publish(ctx, matchCode, BuzzRejectedEvent(matchCode, playerCode, RejectNotBuzzing, status))
	}

	won, err := a.store.ClaimBuzzerWinner(ctx, matchCode, playerCode, a.winnerTTL)
	if err != nil {
		return fmt.Errorf("claim buzzer winner: %w", err)
	}
	if !won {
		return a.publisher.Publish(ctx, matchCode, BuzzRejectedEvent(matchCode, playerCode, RejectAlreadyWon, StatusBuzzed))
	}

	if err := a.store.SetBuzzStatus(ctx, matchCode, StatusBuzzed); err != nil {
		return fmt.Errorf("transition to BUZZED: %w", err)
	}

	questionCode, err := a.store.CurrentQuestion(ctx, matchCode)
	if err != nil {
		return fmt.Errorf("read current question: %w", err)
	}

	buzzedAt := float64(a.clock.Now().UnixNano()) / float64(time.Second)
	log.Info().
		Str("match_code", matchCode).
		Str("player_code", playerCode).
		Str("question_code", questionCode).
		Msg("buzzer winner decided")
	return a.publisher.Publish(ctx, matchCode, BuzzerWinnerEvent(matchCode, playerCode, questionCode, buzzedAt))
}
