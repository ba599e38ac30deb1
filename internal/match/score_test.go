package match

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureRecorder struct {
	mu     sync.Mutex
	deltas []int64
	err    error
}

func (r *captureRecorder) RecordScoreDelta(_ context.Context, _, _ string, delta int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deltas = append(r.deltas, delta)
	return r.err
}

func TestScoreBroadcaster_AppliesAndBroadcasts(t *testing.T) {
	store, _ := newTestStore(t)
	pub := &capturePublisher{}
	sb := NewScoreBroadcaster(store, pub, nil)
	ctx := context.Background()

	total, err := sb.ApplyScoreDelta(ctx, "M01", "P1", 10)
	require.NoError(t, err)
	assert.Equal(t, int64(10), total)

	total, err = sb.ApplyScoreDelta(ctx, "M01", "P1", -3)
	require.NoError(t, err)
	assert.Equal(t, int64(7), total)

	events := pub.byType(EventPlayerScoreUpdated)
	require.Len(t, events, 2)
	assert.Equal(t, int64(10), events[0].Delta)
	assert.Equal(t, int64(10), events[0].NewTotal)
	assert.Equal(t, int64(-3), events[1].Delta)
	assert.Equal(t, int64(7), events[1].NewTotal, "final broadcast carries the converged total")
}

func TestScoreBroadcaster_RecordsDurably(t *testing.T) {
	store, _ := newTestStore(t)
	pub := &capturePublisher{}
	rec := &captureRecorder{}
	sb := NewScoreBroadcaster(store, pub, rec)

	_, err := sb.ApplyScoreDelta(context.Background(), "M01", "P1", 4)
	require.NoError(t, err)
	assert.Equal(t, []int64{4}, rec.deltas)
}

func TestScoreBroadcaster_RecorderFailureDoesNotBlockBroadcast(t *testing.T) {
	store, _ := newTestStore(t)
	pub := &capturePublisher{}
	rec := &captureRecorder{err: errors.New("db down")}
	sb := NewScoreBroadcaster(store, pub, rec)

	total, err := sb.ApplyScoreDelta(context.Background(), "M01", "P1", 5)
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)
	assert.Len(t, pub.byType(EventPlayerScoreUpdated), 1)
}

func TestScoreBroadcaster_ConcurrentDeltasConverge(t *testing.T) {
	store, _ := newTestStore(t)
	pub := &capturePublisher{}
	sb := NewScoreBroadcaster(store, pub, nil)
	ctx := context.Background()

	deltas := []int64{1, 2, 3, 4, 5, -5, -4, 10}
	var want int64
	var wg sync.WaitGroup
	for _, d := range deltas {
		want += d
		wg.Add(1)
		go func(d int64) {
			defer wg.Done()
			_, err := sb.ApplyScoreDelta(ctx, "M01", "P1", d)
			assert.NoError(t, err)
		}(d)
	}
	wg.Wait()

	scores, err := store.Scores(ctx, "M01")
	require.NoError(t, err)
	assert.Equal(t, want, scores["P1"])

	// One of the broadcasts carries the final total.
	var sawFinal bool
	for _, ev := range pub.byType(EventPlayerScoreUpdated) {
		if ev.NewTotal == want {
			sawFinal = true
		}
	}
	assert.True(t, sawFinal)
}
