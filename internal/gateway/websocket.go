package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"glorylive/internal/match"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// ConnectionConfig holds tunables for WebSocket connections.
type ConnectionConfig struct {
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	MaxMessageSize  int64
	SendBufferSize  int
	ReadBufferSize  int
	WriteBufferSize int
	CheckOrigin     func(r *http.Request) bool
}

// DefaultConnectionConfig returns production defaults.
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		MaxMessageSize:  1024,
		SendBufferSize:  256,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}
}

var (
	errConnectionClosed = errors.New("connection closed")
	errSendBufferFull   = errors.New("send buffer full")
)

// Connection is one live client socket. The write pump drains the send
// buffer; the read pump consumes inbound client messages. Neither blocks
// the other, and either one failing tears the whole connection down.
type Connection struct {
	id         string
	matchCode  string
	playerCode string

	ws   *websocket.Conn
	send chan []byte
	done chan struct{}

	closeOnce sync.Once
}

func (c *Connection) ID() string { return c.id }

// Send queues a payload for the write pump without blocking. A full
// buffer means the client is too slow to keep up and is reported as a
// send failure.
func (c *Connection) Send(payload []byte) error {
	select {
	case <-c.done:
		return errConnectionClosed
	default:
	}
	select {
	case c.send <- payload:
		return nil
	default:
		return errSendBufferFull
	}
}

// Close shuts the socket down; both pumps observe done and exit.
func (c *Connection) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.ws.Close()
	})
}

// Handler upgrades match WebSocket requests and runs the per-connection
// pumps.
type Handler struct {
	hub       *Hub
	processor *match.Processor
	store     *match.StateStore
	config    ConnectionConfig
	upgrader  websocket.Upgrader
}

func NewHandler(hub *Hub, processor *match.Processor, store *match.StateStore, config ConnectionConfig) *Handler {
	return &Handler{
		hub:       hub,
		processor: processor,
		store:     store,
		config:    config,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
	}
}

// HandleMatchConnection upgrades the request and attaches the connection
// to its match.
func (h *Handler) HandleMatchConnection(w http.ResponseWriter, r *http.Request) {
	matchCode := r.URL.Query().Get("match_code")
	if matchCode == "" {
		http.Error(w, "match_code is required", http.StatusBadRequest)
		return
	}
	playerCode := r.URL.Query().Get("player_code")

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Str("match_code", matchCode).Msg("failed to upgrade WebSocket connection")
		return
	}

	conn := &Connection{
		id:         uuid.New().String(),
		matchCode:  matchCode,
		playerCode: playerCode,
		ws:         ws,
		send:       make(chan []byte, h.config.SendBufferSize),
		done:       make(chan struct{}),
	}

	if err := h.hub.Join(r.Context(), matchCode, conn); err != nil {
		log.Error().Err(err).Str("match_code", matchCode).Msg("failed to join match")
		conn.Close()
		return
	}

	go h.writePump(conn)
	go h.readPump(conn)

	log.Info().
		Str("connection_id", conn.id).
		Str("match_code", matchCode).
		Str("player_code", playerCode).
		Msg("WebSocket connection established")
}

// HandleStats reports connection counts.
func (h *Handler) HandleStats(w http.ResponseWriter, r *http.Request) {
	total, active := h.hub.Stats()
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]int{
		"total_connections": total,
		"active_matches":    active,
	})
}

// RegisterRoutes registers the WebSocket routes on a mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/ws/match", h.HandleMatchConnection)
	mux.HandleFunc("/ws/stats", h.HandleStats)
}

func (h *Handler) writePump(c *Connection) {
	ticker := time.NewTicker(h.config.PingInterval)
	defer func() {
		ticker.Stop()
		h.hub.Leave(c.matchCode, c)
		c.Close()
	}()

	for {
		select {
		case <-c.done:
			return
		case payload := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(h.config.WriteTimeout))
			if err := c.ws.WriteMessage(websocket.TextMessage, payload); err != nil {
				log.Error().Err(err).Str("connection_id", c.id).Msg("failed to write message")
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(h.config.WriteTimeout))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Error().Err(err).Str("connection_id", c.id).Msg("failed to send ping")
				return
			}
		}
	}
}

func (h *Handler) readPump(c *Connection) {
	defer func() {
		h.hub.Leave(c.matchCode, c)
		c.Close()
	}()

	c.ws.SetReadLimit(h.config.MaxMessageSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(h.config.ReadTimeout))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(h.config.ReadTimeout))
	})

	for {
		_, payload, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Error().Err(err).Str("connection_id", c.id).Msg("unexpected WebSocket close")
			}
			return
		}
		h.handleClientMessage(c, payload)
		_ = c.ws.SetReadDeadline(time.Now().Add(h.config.ReadTimeout))
	}
}

// handleClientMessage applies the listener-boundary lock check, then
// hands the message to the processor.
func (h *Handler) handleClientMessage(c *Connection, payload []byte) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var msg match.ClientMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		log.Warn().Err(err).Str("connection_id", c.id).Msg("malformed client message dropped")
		return
	}
	if msg.PlayerCode == "" {
		msg.PlayerCode = c.playerCode
	}

	if msg.Type == match.ClientAnswer {
		locked, err := h.store.Locked(ctx, c.matchCode)
		if err != nil {
			log.Error().Err(err).Str("match_code", c.matchCode).Msg("failed to read lock state")
			return
		}
		if locked {
			log.Debug().
				Str("match_code", c.matchCode).
				Str("player_code", msg.PlayerCode).
				Msg("answer after lock ignored")
			return
		}
	}

	h.processor.Handle(ctx, c.matchCode, msg)
}
