package match

import (
	"encoding/json"
	"fmt"
)

// EventType identifies a match event on the wire.
type EventType string

const (
	EventNewQuestion        EventType = "new_question"
	EventStartTheTimer      EventType = "start_the_timer"
	EventBuzzerWinner       EventType = "buzzer_winner"
	EventBuzzRejected       EventType = "buzz_rejected"
	EventTimeUp             EventType = "time_up"
	EventPlayerAnswered     EventType = "player_answered"
	EventPickQuestion       EventType = "pick_question"
	EventPlayerScoreUpdated EventType = "player_score_updated"
)

// BuzzStatus is the per-question arbitration state.
type BuzzStatus string

const (
	StatusBuzzing BuzzStatus = "BUZZING"
	StatusBuzzed  BuzzStatus = "BUZZED"
	StatusTimeUp  BuzzStatus = "TIME_UP"
)

// RejectReason explains why a buzz was not accepted.
type RejectReason string

const (
	RejectNotBuzzing RejectReason = "not-buzzing"
	RejectAlreadyWon RejectReason = "already-won"
)

// Event is the single wire shape for everything published on a match
// channel. Fields are flat so that clients see the same stable names
// regardless of type; MarshalJSON emits exactly the fields each variant
// defines, so a zero value (new_total of 0, say) is never dropped.
type Event struct {
	Type         EventType    `json:"type"`
	MatchCode    string       `json:"match_code"`
	QuestionCode string       `json:"question_code"`
	PlayerCode   string       `json:"player_code"`
	StartTime    float64      `json:"start_time"`
	TimeLimit    int          `json:"time_limit"`
	BuzzedAt     float64      `json:"buzzed_at"`
	Reason       RejectReason `json:"reason"`
	Status       BuzzStatus   `json:"status"`
	Answer       string       `json:"answer"`
	Delta        int64        `json:"delta"`
	NewTotal     int64        `json:"new_total"`
}

// MarshalJSON encodes only the fields defined for the event's variant.
func (e Event) MarshalJSON() ([]byte, error) {
	m := map[string]any{
		"type":       e.Type,
		"match_code": e.MatchCode,
	}
	switch e.Type {
	case EventNewQuestion, EventStartTheTimer:
		m["question_code"] = e.QuestionCode
		m["start_time"] = e.StartTime
		m["time_limit"] = e.TimeLimit
	case EventBuzzerWinner:
		m["player_code"] = e.PlayerCode
		m["question_code"] = e.QuestionCode
		m["buzzed_at"] = e.BuzzedAt
	case EventBuzzRejected:
		m["player_code"] = e.PlayerCode
		m["reason"] = e.Reason
		m["status"] = e.Status
	case EventTimeUp:
		m["question_code"] = e.QuestionCode
	case EventPlayerAnswered:
		m["player_code"] = e.PlayerCode
		m["question_code"] = e.QuestionCode
		m["answer"] = e.Answer
	case EventPickQuestion:
		m["player_code"] = e.PlayerCode
		m["question_code"] = e.QuestionCode
	case EventPlayerScoreUpdated:
		m["player_code"] = e.PlayerCode
		m["delta"] = e.Delta
		m["new_total"] = e.NewTotal
	default:
		return nil, fmt.Errorf("unhandled event type %q", e.Type)
	}
	return json.Marshal(m)
}

// NewQuestionEvent announces a question start. eventType must be either
// EventNewQuestion or EventStartTheTimer; both carry the same payload.
func NewQuestionEvent(eventType EventType, matchCode, questionCode string, startTime float64, timeLimit int) Event {
	return Event{
		Type:         eventType,
		MatchCode:    matchCode,
		QuestionCode: questionCode,
		StartTime:    startTime,
		TimeLimit:    timeLimit,
	}
}

func BuzzerWinnerEvent(matchCode, playerCode, questionCode string, buzzedAt float64) Event {
	return Event{
		Type:         EventBuzzerWinner,
		MatchCode:    matchCode,
		PlayerCode:   playerCode,
		QuestionCode: questionCode,
		BuzzedAt:     buzzedAt,
	}
}

func BuzzRejectedEvent(matchCode, playerCode string, reason RejectReason, status BuzzStatus) Event {
	return Event{
		Type:       EventBuzzRejected,
		MatchCode:  matchCode,
		PlayerCode: playerCode,
		Reason:     reason,
		Status:     status,
	}
}

func TimeUpEvent(matchCode, questionCode string) Event {
	return Event{
		Type:         EventTimeUp,
		MatchCode:    matchCode,
		QuestionCode: questionCode,
	}
}

func PlayerAnsweredEvent(matchCode, playerCode, questionCode, answer string) Event {
	return Event{
		Type:         EventPlayerAnswered,
		MatchCode:    matchCode,
		PlayerCode:   playerCode,
		QuestionCode: questionCode,
		Answer:       answer,
	}
}

func PickQuestionEvent(matchCode, playerCode, questionCode string) Event {
	return Event{
		Type:         EventPickQuestion,
		MatchCode:    matchCode,
		PlayerCode:   playerCode,
		QuestionCode: questionCode,
	}
}

func PlayerScoreUpdatedEvent(matchCode, playerCode string, delta, newTotal int64) Event {
	return Event{
		Type:       EventPlayerScoreUpdated,
		MatchCode:  matchCode,
		PlayerCode: playerCode,
		Delta:      delta,
		NewTotal:   newTotal,
	}
}

// DecodeEvent parses a channel payload and rejects unknown event types,
// so that the bridge has a single explicit unhandled branch instead of
// forwarding arbitrary JSON.
func DecodeEvent(data []byte) (Event, error) {
	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return Event{}, fmt.Errorf("unmarshal event: %w", err)
	}
	switch ev.Type {
	case EventNewQuestion, EventStartTheTimer, EventBuzzerWinner, EventBuzzRejected,
		EventTimeUp, EventPlayerAnswered, EventPickQuestion, EventPlayerScoreUpdated:
		return ev, nil
	default:
		return Event{}, fmt.Errorf("unhandled event type %q", ev.Type)
	}
}

// Topic returns the channel name carrying all events for a match.
func Topic(matchCode string) string {
	return "match:" + matchCode + ":updates"
}
