package match

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// TimerService drives the question lifecycle: it resets match state for a
// new question, announces it, and schedules the deferred time-up
// transition. Starting a new question supersedes any pending timer; the
// superseded timer also guards itself by re-checking the current question
// code before acting, so a late fire from this or any other process is a
// no-op.
type TimerService struct {
	store     *StateStore
	publisher Publisher
	clock     clockwork.Clock

	mu     sync.Mutex
	active map[string]*scheduledTimer

	// fireTimeout bounds the store and publish calls made when a timer
	// fires, since those run outside any request context.
	fireTimeout time.Duration
}

func NewTimerService(store *StateStore, publisher Publisher, clock clockwork.Clock) *TimerService {
	return &TimerService{
		store:       store,
		publisher:   publisher,
		clock:       clock,
		active:      make(map[string]*scheduledTimer),
		fireTimeout: 5 * time.Second,
	}
}

// StartQuestion begins a question: writes the grouped state reset,
// publishes the start event, and schedules the time-up transition.
// eventType selects the announcement variant; an empty value means
// new_question.
func (t *TimerService) StartQuestion(ctx context.Context, matchCode, questionCode string, timeLimitSeconds int, eventType EventType) (float64, float64, error) {
	switch eventType {
	case "":
		eventType = EventNewQuestion
	case EventNewQuestion, EventStartTheTimer:
	default:
		return 0, 0, fmt.Errorf("invalid start event type %q", eventType)
	}
	if timeLimitSeconds <= 0 {
		return 0, 0, fmt.Errorf("time limit must be positive, got %d", timeLimitSeconds)
	}

	now := t.clock.Now()
	startTime := float64(now.UnixNano()) / float64(time.Second)
	endTime := startTime + float64(timeLimitSeconds)

	if err := t.store.ResetQuestion(ctx, matchCode, questionCode, startTime, endTime); err != nil {
		return 0, 0, err
	}

	log.Info().
		Str("match_code", matchCode).
		Str("question_code", questionCode).
		Int("time_limit_sec", timeLimitSeconds).
		Msg("question started")

	if err := t.publisher.Publish(ctx, matchCode, NewQuestionEvent(eventType, matchCode, questionCode, startTime, timeLimitSeconds)); err != nil {
		return 0, 0, err
	}

	t.schedule(matchCode, questionCode, time.Duration(timeLimitSeconds)*time.Second)
	return startTime, endTime, nil
}

// scheduledTimer pairs a one-shot timer with a stop signal so a
// superseded wait goroutine can exit instead of blocking forever on a
// stopped timer channel.
type scheduledTimer struct {
	timer clockwork.Timer
	stop  chan struct{}
}

// schedule arms a one-shot timer for the question, replacing any timer
// already pending for the match.
func (t *TimerService) schedule(matchCode, questionCode string, d time.Duration) {
	st := &scheduledTimer{
		timer: t.clock.NewTimer(d),
		stop:  make(chan struct{}),
	}
	t.replaceTimer(matchCode, st)

	go func() {
		select {
		case <-st.timer.Chan():
			t.removeTimer(matchCode, st)
			t.fireTimeUp(matchCode, questionCode)
		case <-st.stop:
		}
	}()

	log.Debug().
		Str("match_code", matchCode).
		Str("question_code", questionCode).
		Dur("duration", d).
		Msg("scheduled time-up timer")
}

// fireTimeUp performs the deferred transition with check-then-act guards:
// it must still be the question the timer was armed for, and no winner
// may have been decided in the meantime.
func (t *TimerService) fireTimeUp(matchCode, questionCode string) {
	ctx, cancel := context.WithTimeout(context.Background(), t.fireTimeout)
	defer cancel()

	current, err := t.store.CurrentQuestion(ctx, matchCode)
	if err != nil {
		log.Error().Err(err).Str("match_code", matchCode).Msg("time-up: failed to read current question")
		return
	}
	if current != questionCode {
		log.Debug().
			Str("match_code", matchCode).
			Str("scheduled_question", questionCode).
			Str("current_question", current).
			Msg("stale timer fired, ignoring")
		return
	}

	status, err := t.store.BuzzStatus(ctx, matchCode)
	if err != nil {
		log.Error().Err(err).Str("match_code", matchCode).Msg("time-up: failed to read buzz status")
		return
	}
	if status != StatusBuzzing {
		// A winner was decided before the clock ran out; BUZZED must
		// not be overridden.
		return
	}

	if err := t.store.SetLocked(ctx, matchCode, true); err != nil {
		log.Error().Err(err).Str("match_code", matchCode).Msg("time-up: failed to lock match")
		return
	}
	if err := t.store.SetBuzzStatus(ctx, matchCode, StatusTimeUp); err != nil {
		log.Error().Err(err).Str("match_code", matchCode).Msg("time-up: failed to set TIME_UP")
		return
	}

	if err := t.publisher.Publish(ctx, matchCode, TimeUpEvent(matchCode, questionCode)); err != nil {
		log.Error().Err(err).Str("match_code", matchCode).Msg("time-up: failed to publish event")
		return
	}
	log.Info().
		Str("match_code", matchCode).
		Str("question_code", questionCode).
		Msg("time up")
}

// replaceTimer swaps in a new timer for the match, stopping and draining
// any pending one so it cannot leak a goroutine wakeup.
func (t *TimerService) replaceTimer(matchCode string, st *scheduledTimer) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if existing, ok := t.active[matchCode]; ok {
		close(existing.stop)
		stopAndDrainTimer(existing.timer)
	}
	t.active[matchCode] = st
}

// removeTimer clears the map entry only if it still refers to the timer
// that fired; a replacement may already have taken the slot.
func (t *TimerService) removeTimer(matchCode string, st *scheduledTimer) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.active[matchCode] == st {
		delete(t.active, matchCode)
	}
}

func stopAndDrainTimer(timer clockwork.Timer) {
	if !timer.Stop() {
		select {
		case <-timer.Chan():
		default:
		}
	}
}
