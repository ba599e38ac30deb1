package match

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStateStore_ResetQuestion(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	// Leave residue from a previous question behind.
	won, err := store.ClaimBuzzerWinner(ctx, "M01", "P9", time.Minute)
	require.NoError(t, err)
	require.True(t, won)
	require.NoError(t, store.SetLocked(ctx, "M01", true))
	require.NoError(t, store.SetBuzzStatus(ctx, "M01", StatusTimeUp))

	require.NoError(t, store.ResetQuestion(ctx, "M01", "Q2", 100.5, 110.5))

	status, err := store.BuzzStatus(ctx, "M01")
	require.NoError(t, err)
	assert.Equal(t, StatusBuzzing, status)

	winner, err := store.BuzzerWinner(ctx, "M01")
	require.NoError(t, err)
	assert.Empty(t, winner)

	locked, err := store.Locked(ctx, "M01")
	require.NoError(t, err)
	assert.False(t, locked)

	question, err := store.CurrentQuestion(ctx, "M01")
	require.NoError(t, err)
	assert.Equal(t, "Q2", question)
}

func TestStateStore_UnknownMatchDefaults(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	status, err := store.BuzzStatus(ctx, "nope")
	require.NoError(t, err)
	assert.Equal(t, StatusTimeUp, status)

	locked, err := store.Locked(ctx, "nope")
	require.NoError(t, err)
	assert.False(t, locked)

	winner, err := store.BuzzerWinner(ctx, "nope")
	require.NoError(t, err)
	assert.Empty(t, winner)
}

func TestStateStore_ClaimBuzzerWinner_SingleClaim(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	won, err := store.ClaimBuzzerWinner(ctx, "M01", "P1", time.Minute)
	require.NoError(t, err)
	assert.True(t, won)

	won, err = store.ClaimBuzzerWinner(ctx, "M01", "P2", time.Minute)
	require.NoError(t, err)
	assert.False(t, won, "second claim must lose")

	winner, err := store.BuzzerWinner(ctx, "M01")
	require.NoError(t, err)
	assert.Equal(t, "P1", winner)
}

func TestStateStore_ClaimBuzzerWinner_Expires(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	won, err := store.ClaimBuzzerWinner(ctx, "M01", "P1", 20*time.Second)
	require.NoError(t, err)
	require.True(t, won)

	mr.FastForward(21 * time.Second)

	winner, err := store.BuzzerWinner(ctx, "M01")
	require.NoError(t, err)
	assert.Empty(t, winner, "stale winner key must self-clear")
}

func TestStateStore_IncrScore_Converges(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	deltas := []int64{10, -3, 5, 5, -7, 20}
	var want int64
	var wg sync.WaitGroup
	for _, d := range deltas {
		want += d
		wg.Add(1)
		go func(d int64) {
			defer wg.Done()
			_, err := store.IncrScore(ctx, "M01", "P1", d)
			assert.NoError(t, err)
		}(d)
	}
	wg.Wait()

	scores, err := store.Scores(ctx, "M01")
	require.NoError(t, err)
	assert.Equal(t, want, scores["P1"], "final cumulative value must equal the delta sum")
}

func TestStateStore_SetPickedQuestion(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SetPickedQuestion(ctx, "M01", "P1", "Q7"))

	picked, err := mr.Get("match:M01:picked_question_code")
	require.NoError(t, err)
	assert.Equal(t, "Q7", picked)

	picker, err := mr.Get("match:M01:picked_player_code")
	require.NoError(t, err)
	assert.Equal(t, "P1", picker)
}
