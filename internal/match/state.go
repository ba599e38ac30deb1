package match

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// StateStore holds the ephemeral runtime state of a match in Redis.
// Key layout:
//   - match:{code}:start_time             -> float seconds since epoch
//   - match:{code}:end_time               -> float seconds since epoch
//   - match:{code}:current_question_code  -> string
//   - match:{code}:buzz_status            -> BUZZING | BUZZED | TIME_UP
//   - match:{code}:buzzer_winner          -> player code (set once per question)
//   - match:{code}:locked                 -> 0 | 1
//   - match:{code}:scores                 -> hash player_code -> cumulative score
//
// SetNX on the winner key and HINCRBY on the score hash are the only
// cross-process synchronization points; no in-process lock substitutes
// for them.
type StateStore struct {
	client *redis.Client
}

func NewStateStore(client *redis.Client) *StateStore {
	return &StateStore{client: client}
}

func matchKey(matchCode, field string) string {
	return fmt.Sprintf("match:%s:%s", matchCode, field)
}

// ResetQuestion writes the full runtime state for a new question as one
// MULTI/EXEC group, so readers never observe a half-reset match.
func (s *StateStore) ResetQuestion(ctx context.Context, matchCode, questionCode string, startTime, endTime float64) error {
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, matchKey(matchCode, "start_time"), startTime, 0)
	pipe.Set(ctx, matchKey(matchCode, "end_time"), endTime, 0)
	pipe.Set(ctx, matchKey(matchCode, "current_question_code"), questionCode, 0)
	pipe.Set(ctx, matchKey(matchCode, "buzz_status"), string(StatusBuzzing), 0)
	pipe.Del(ctx, matchKey(matchCode, "buzzer_winner"))
	pipe.Set(ctx, matchKey(matchCode, "locked"), 0, 0)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("reset question state: %w", err)
	}
	return nil
}

// BuzzStatus reads the current arbitration state. A match that has never
// seen a question reports StatusTimeUp, which keeps buzzing rejected
// until a question is started.
func (s *StateStore) BuzzStatus(ctx context.Context, matchCode string) (BuzzStatus, error) {
	val, err := s.client.Get(ctx, matchKey(matchCode, "buzz_status")).Result()
	if errors.Is(err, redis.Nil) {
		return StatusTimeUp, nil
	}
	if err != nil {
		return "", fmt.Errorf("get buzz_status: %w", err)
	}
	return BuzzStatus(val), nil
}

func (s *StateStore) SetBuzzStatus(ctx context.Context, matchCode string, status BuzzStatus) error {
	if err := s.client.Set(ctx, matchKey(matchCode, "buzz_status"), string(status), 0).Err(); err != nil {
		return fmt.Errorf("set buzz_status: %w", err)
	}
	return nil
}

// ClaimBuzzerWinner attempts the atomic first-buzz claim. It returns true
// only for the single caller, across all processes, that set the winner
// key. The TTL bounds how long a stale winner can linger.
func (s *StateStore) ClaimBuzzerWinner(ctx context.Context, matchCode, playerCode string, ttl time.Duration) (bool, error) {
	ok, err := s.client.SetNX(ctx, matchKey(matchCode, "buzzer_winner"), playerCode, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("claim buzzer_winner: %w", err)
	}
	return ok, nil
}

// BuzzerWinner returns the winning player code, or "" when no claim has
// been made for the current question.
func (s *StateStore) BuzzerWinner(ctx context.Context, matchCode string) (string, error) {
	val, err := s.client.Get(ctx, matchKey(matchCode, "buzzer_winner")).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get buzzer_winner: %w", err)
	}
	return val, nil
}

func (s *StateStore) CurrentQuestion(ctx context.Context, matchCode string) (string, error) {
	val, err := s.client.Get(ctx, matchKey(matchCode, "current_question_code")).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get current_question_code: %w", err)
	}
	return val, nil
}

func (s *StateStore) Locked(ctx context.Context, matchCode string) (bool, error) {
	val, err := s.client.Get(ctx, matchKey(matchCode, "locked")).Int()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get locked: %w", err)
	}
	return val != 0, nil
}

func (s *StateStore) SetLocked(ctx context.Context, matchCode string, locked bool) error {
	val := 0
	if locked {
		val = 1
	}
	if err := s.client.Set(ctx, matchKey(matchCode, "locked"), val, 0).Err(); err != nil {
		return fmt.Errorf("set locked: %w", err)
	}
	return nil
}

// IncrScore atomically adds delta to the player's cumulative score and
// returns the new total. HINCRBY's return value is the post-increment
// total, so there is no stale read racing a concurrent writer.
func (s *StateStore) IncrScore(ctx context.Context, matchCode, playerCode string, delta int64) (int64, error) {
	total, err := s.client.HIncrBy(ctx, matchKey(matchCode, "scores"), playerCode, delta).Result()
	if err != nil {
		return 0, fmt.Errorf("increment score: %w", err)
	}
	return total, nil
}

// Scores returns the full scoreboard hash for a match.
func (s *StateStore) Scores(ctx context.Context, matchCode string) (map[string]int64, error) {
	raw, err := s.client.HGetAll(ctx, matchKey(matchCode, "scores")).Result()
	if err != nil {
		return nil, fmt.Errorf("get scores: %w", err)
	}
	scores := make(map[string]int64, len(raw))
	for player, val := range raw {
		n, err := strconv.ParseInt(val, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse score for %s: %w", player, err)
		}
		scores[player] = n
	}
	return scores, nil
}

// SetPickedQuestion records which player picked which question.
func (s *StateStore) SetPickedQuestion(ctx context.Context, matchCode, playerCode, questionCode string) error {
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, matchKey(matchCode, "picked_question_code"), questionCode, 0)
	pipe.Set(ctx, matchKey(matchCode, "picked_player_code"), playerCode, 0)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("set picked question: %w", err)
	}
	return nil
}
