package match

import (
	"context"
	"testing"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestProcessor(t *testing.T) (*Processor, *StateStore, *capturePublisher) {
	t.Helper()
	store, _ := newTestStore(t)
	pub := &capturePublisher{}
	arb := NewArbitrator(store, pub, clockwork.NewFakeClock())
	return NewProcessor(arb, store, pub), store, pub
}

func TestProcessor_Answer(t *testing.T) {
	proc, _, pub := newTestProcessor(t)

	proc.Handle(context.Background(), "M01", ClientMessage{
		Type:         ClientAnswer,
		PlayerCode:   "P1",
		QuestionCode: "Q1",
		Answer:       "forty-two",
	})

	events := pub.byType(EventPlayerAnswered)
	require.Len(t, events, 1)
	assert.Equal(t, "P1", events[0].PlayerCode)
	assert.Equal(t, "Q1", events[0].QuestionCode)
	assert.Equal(t, "forty-two", events[0].Answer)
}

func TestProcessor_PickQuestion(t *testing.T) {
	proc, store, pub := newTestProcessor(t)
	ctx := context.Background()

	proc.Handle(ctx, "M01", ClientMessage{
		Type:         ClientPickQuestion,
		PlayerCode:   "P1",
		QuestionCode: "Q3",
	})

	events := pub.byType(EventPickQuestion)
	require.Len(t, events, 1)
	assert.Equal(t, "P1", events[0].PlayerCode)
	assert.Equal(t, "Q3", events[0].QuestionCode)

	picked, err := store.client.Get(ctx, "match:M01:picked_question_code").Result()
	require.NoError(t, err)
	assert.Equal(t, "Q3", picked)
}

func TestProcessor_PickQuestionMissingQuestionCode(t *testing.T) {
	proc, _, pub := newTestProcessor(t)

	proc.Handle(context.Background(), "M01", ClientMessage{
		Type:       ClientPickQuestion,
		PlayerCode: "P1",
	})

	assert.Empty(t, pub.all())
}

func TestProcessor_MissingPlayerCodeDropped(t *testing.T) {
	proc, _, pub := newTestProcessor(t)

	proc.Handle(context.Background(), "M01", ClientMessage{Type: ClientAnswer, Answer: "x"})

	assert.Empty(t, pub.all())
}

func TestProcessor_UnknownTypeDropped(t *testing.T) {
	proc, _, pub := newTestProcessor(t)

	proc.Handle(context.Background(), "M01", ClientMessage{Type: "dance", PlayerCode: "P1"})

	assert.Empty(t, pub.all())
}

func TestProcessor_HandleRawMalformedDropped(t *testing.T) {
	proc, _, pub := newTestProcessor(t)

	proc.HandleRaw(context.Background(), "M01", []byte("{not json"))

	assert.Empty(t, pub.all())
}

func TestProcessor_BuzzDelegatesToArbitrator(t *testing.T) {
	proc, store, pub := newTestProcessor(t)
	ctx := context.Background()

	require.NoError(t, store.ResetQuestion(ctx, "M01", "Q1", 0, 10))

	proc.HandleRaw(ctx, "M01", []byte(`{"type":"buzz","player_code":"P1"}`))

	winners := pub.byType(EventBuzzerWinner)
	require.Len(t, winners, 1)
	assert.Equal(t, "P1", winners[0].PlayerCode)
}
