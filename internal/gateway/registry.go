package gateway

import (
	"sync"

	"github.com/rs/zerolog/log"
)

// Handle is one live client connection as the registry sees it. Send must
// not block: a slow consumer returns an error instead of stalling the
// broadcast, and the registry treats that error as an implicit
// disconnect.
type Handle interface {
	ID() string
	Send(payload []byte) error
	Close()
}

// Registry tracks the set of live local connections per match. It owns no
// business meaning: it adds, removes, and fans out.
type Registry struct {
	mu    sync.RWMutex
	conns map[string]map[Handle]bool
}

func NewRegistry() *Registry {
	return &Registry{conns: make(map[string]map[Handle]bool)}
}

// Connect registers a handle for a match. It is idempotent: registering
// the same handle twice reports false and leaves a single entry, which
// guards against duplicate-accept races double-counting a connection.
func (r *Registry) Connect(matchCode string, h Handle) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.conns[matchCode] == nil {
		r.conns[matchCode] = make(map[Handle]bool)
	}
	if r.conns[matchCode][h] {
		return false
	}
	r.conns[matchCode][h] = true

	log.Info().
		Str("connection_id", h.ID()).
		Str("match_code", matchCode).
		Int("total_connections", len(r.conns[matchCode])).
		Msg("connection registered")
	return true
}

// Disconnect removes a handle. Safe to call repeatedly; only the call
// that actually removes the handle reports true. remaining is the number
// of handles left for the match after removal.
func (r *Registry) Disconnect(matchCode string, h Handle) (removed bool, remaining int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	handles, ok := r.conns[matchCode]
	if !ok || !handles[h] {
		return false, len(handles)
	}
	delete(handles, h)
	if len(handles) == 0 {
		delete(r.conns, matchCode)
	}

	log.Info().
		Str("connection_id", h.ID()).
		Str("match_code", matchCode).
		Int("remaining_connections", len(handles)).
		Msg("connection unregistered")
	return true, len(handles)
}

// Broadcast sends the payload to every registered handle for the match.
// It iterates a snapshot so concurrent connects and disconnects cannot
// invalidate the walk. Handles that fail to accept the payload are
// returned for the caller to tear down; a failure never blocks or fails
// delivery to the others.
func (r *Registry) Broadcast(matchCode string, payload []byte) []Handle {
	r.mu.RLock()
	handles, ok := r.conns[matchCode]
	if !ok {
		r.mu.RUnlock()
		return nil
	}
	snapshot := make([]Handle, 0, len(handles))
	for h := range handles {
		snapshot = append(snapshot, h)
	}
	r.mu.RUnlock()

	var dropped []Handle
	for _, h := range snapshot {
		if err := h.Send(payload); err != nil {
			log.Warn().Err(err).
				Str("connection_id", h.ID()).
				Str("match_code", matchCode).
				Msg("send failed, dropping connection")
			dropped = append(dropped, h)
		}
	}

	log.Debug().
		Str("match_code", matchCode).
		Int("connections", len(snapshot)).
		Msg("event broadcast")
	return dropped
}

// Count reports the number of live handles for a match.
func (r *Registry) Count(matchCode string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns[matchCode])
}

// Stats summarizes active connections across all matches.
func (r *Registry) Stats() (totalConnections, activeMatches int) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, handles := range r.conns {
		totalConnections += len(handles)
	}
	return totalConnections, len(r.conns)
}
