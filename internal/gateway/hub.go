package gateway

import (
	"context"

	"glorylive/internal/pubsub"
)

// Hub ties the Registry and the Bridge together: a connection joining a
// match acquires the match's bridge, the last one leaving releases it.
// There is one Hub per process, constructed at startup and passed by
// reference to the handlers.
type Hub struct {
	registry *Registry
	bridge   *Bridge
}

func NewHub(transport pubsub.Transport) *Hub {
	h := &Hub{registry: NewRegistry()}
	h.bridge = NewBridge(transport)
	h.bridge.sink = h
	return h
}

// Join registers the handle and takes a bridge reference. Duplicate joins
// of the same handle are no-ops and do not double-count the bridge.
func (h *Hub) Join(ctx context.Context, matchCode string, handle Handle) error {
	if !h.registry.Connect(matchCode, handle) {
		return nil
	}
	if err := h.bridge.Acquire(ctx, matchCode); err != nil {
		h.registry.Disconnect(matchCode, handle)
		return err
	}
	return nil
}

// Leave removes the handle and drops its bridge reference. Safe to call
// from both pump goroutines; only the first removal releases.
func (h *Hub) Leave(matchCode string, handle Handle) {
	removed, _ := h.registry.Disconnect(matchCode, handle)
	if removed {
		h.bridge.Release(matchCode)
	}
}

// broadcastLocal fans a channel payload out to the match's local
// connections and tears down any handle that failed to accept it.
func (h *Hub) broadcastLocal(matchCode string, payload []byte) {
	for _, handle := range h.registry.Broadcast(matchCode, payload) {
		h.Leave(matchCode, handle)
		handle.Close()
	}
}

// Stats exposes connection counts for the stats endpoint.
func (h *Hub) Stats() (totalConnections, activeMatches int) {
	return h.registry.Stats()
}
