package match

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
)

// ScoreRecorder is the durable persistence collaborator. Implementations
// record the delta for post-match reporting; the live scoreboard never
// reads back through it.
type ScoreRecorder interface {
	RecordScoreDelta(ctx context.Context, matchCode, playerCode string, delta int64) error
}

// ScoreBroadcaster couples a score mutation with the broadcast of the new
// cumulative total, so every viewer's scoreboard converges without
// re-querying durable storage. Not idempotent: each call adds its delta,
// and replayed requests must send a corrective delta instead.
type ScoreBroadcaster struct {
	store     *StateStore
	publisher Publisher
	recorder  ScoreRecorder // optional
}

func NewScoreBroadcaster(store *StateStore, publisher Publisher, recorder ScoreRecorder) *ScoreBroadcaster {
	return &ScoreBroadcaster{
		store:     store,
		publisher: publisher,
		recorder:  recorder,
	}
}

// ApplyScoreDelta atomically increments the player's cumulative score and
// publishes the new total. The returned total comes from the increment
// itself, so concurrent writers from other processes cannot make the
// broadcast stale relative to the stored value at increment time.
func (b *ScoreBroadcaster) ApplyScoreDelta(ctx context.Context, matchCode, playerCode string, delta int64) (int64, error) {
	newTotal, err := b.store.IncrScore(ctx, matchCode, playerCode, delta)
	if err != nil {
		return 0, fmt.Errorf("apply score delta: %w", err)
	}

	if b.recorder != nil {
		if err := b.recorder.RecordScoreDelta(ctx, matchCode, playerCode, delta); err != nil {
			// Durable recording failing must not hide the live update.
			log.Error().Err(err).
				Str("match_code", matchCode).
				Str("player_code", playerCode).
				Int64("delta", delta).
				Msg("failed to record score delta durably")
		}
	}

	if err := b.publisher.Publish(ctx, matchCode,
		PlayerScoreUpdatedEvent(matchCode, playerCode, delta, newTotal)); err != nil {
		return newTotal, fmt.Errorf("broadcast score update: %w", err)
	}

	log.Info().
		Str("match_code", matchCode).
		Str("player_code", playerCode).
		Int64("delta", delta).
		Int64("new_total", newTotal).
		Msg("score updated")
	return newTotal, nil
}
