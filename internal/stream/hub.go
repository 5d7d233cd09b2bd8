// Package stream pushes snapshot announcements and notices to websocket
// clients. Each connection belongs to one principal and only receives
// events for that principal.
package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// EventType names a pushed event.
type EventType string

const (
	EventSnapshot EventType = "snapshot"
	EventNotice   EventType = "notice"
)

// Event is the JSON frame written to clients.
type Event struct {
	Type EventType `json:"type"`
	Data any       `json:"data"`
	// Principal limits delivery to one user. Empty means everyone.
	Principal string `json:"-"`
}

// Config holds websocket connection settings.
type Config struct {
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	SendBuffer      int
	CheckOrigin     func(r *http.Request) bool
}

// DefaultConfig returns default websocket settings. Origins are checked by
// the CORS layer, so every origin is accepted here.
func DefaultConfig() Config {
	return Config{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		MaxMessageSize:  1024,
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		SendBuffer:      64,
		CheckOrigin:     func(r *http.Request) bool { return true },
	}
}

// Hub tracks live connections and fans events out to them.
type Hub struct {
	mu    sync.RWMutex
	conns map[*conn]struct{}

	upgrader    websocket.Upgrader
	cfg         Config
	broadcastCh chan Event
	logger      *slog.Logger
}

type conn struct {
	id        string
	principal string
	ws        *websocket.Conn
	send      chan []byte
	hub       *Hub

	// mu guards send against a close racing a delivery.
	mu     sync.Mutex
	closed bool
}

// trySend queues msg without blocking. It reports false when the buffer
// is full.
func (c *conn) trySend(msg []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return true
	}
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

func (c *conn) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

func NewHub(cfg Config, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.SendBuffer < 1 {
		cfg.SendBuffer = 1
	}
	return &Hub{
		conns: make(map[*conn]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  cfg.ReadBufferSize,
			WriteBufferSize: cfg.WriteBufferSize,
			CheckOrigin:     cfg.CheckOrigin,
		},
		cfg:         cfg,
		broadcastCh: make(chan Event, 256),
		logger:      logger,
	}
}

// Run delivers broadcast events until ctx is cancelled, then closes every
// connection.
func (h *Hub) Run(ctx context.Context) {
	h.logger.Info("Stream hub started")
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			h.logger.Info("Stream hub stopped")
			return
		case ev := <-h.broadcastCh:
			h.deliver(ev)
		}
	}
}

// Broadcast queues ev. It never blocks; events are dropped when the queue
// is full.
func (h *Hub) Broadcast(ev Event) {
	select {
	case h.broadcastCh <- ev:
	default:
		h.logger.Warn("Stream broadcast queue full, dropping event", "type", ev.Type)
	}
}

// Serve upgrades the request and registers the connection for principal.
// initial, when non-nil, is written before any broadcast.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, principal string, initial *Event) error {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return fmt.Errorf("upgrade connection: %w", err)
	}
	c := &conn{
		id:        uuid.NewString(),
		principal: principal,
		ws:        ws,
		send:      make(chan []byte, h.cfg.SendBuffer),
		hub:       h,
	}
	if initial != nil {
		if b, err := json.Marshal(initial); err == nil {
			c.send <- b
		}
	}
	h.register(c)

	go c.writePump()
	go c.readPump()

	h.logger.Info("Stream connected", "connection_id", c.id, "principal", principal)
	return nil
}

// Count returns the number of live connections.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

func (h *Hub) register(c *conn) {
	h.mu.Lock()
	h.conns[c] = struct{}{}
	h.mu.Unlock()
}

func (h *Hub) unregister(c *conn) {
	h.mu.Lock()
	_, ok := h.conns[c]
	delete(h.conns, c)
	h.mu.Unlock()
	if ok {
		c.closeSend()
		h.logger.Info("Stream disconnected", "connection_id", c.id)
	}
}

func (h *Hub) deliver(ev Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		h.logger.Error("Failed to encode stream event", "type", ev.Type, "error", err)
		return
	}

	h.mu.RLock()
	targets := make([]*conn, 0, len(h.conns))
	for c := range h.conns {
		if ev.Principal != "" && c.principal != ev.Principal {
			continue
		}
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		if !c.trySend(data) {
			h.logger.Warn("Stream client too slow, closing", "connection_id", c.id)
			h.unregister(c)
			c.ws.Close()
		}
	}
}

func (h *Hub) closeAll() {
	h.mu.RLock()
	all := make([]*conn, 0, len(h.conns))
	for c := range h.conns {
		all = append(all, c)
	}
	h.mu.RUnlock()
	for _, c := range all {
		h.unregister(c)
	}
}

func (c *conn) writePump() {
	ticker := time.NewTicker(c.hub.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		c.ws.Close()
		c.hub.unregister(c)
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(c.hub.cfg.WriteTimeout))
			if !ok {
				c.ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.hub.logger.Debug("Stream write failed", "connection_id", c.id, "error", err)
				return
			}
		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(c.hub.cfg.WriteTimeout))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump discards client frames; it exists to process pongs and notice
// the close.
func (c *conn) readPump() {
	defer func() {
		c.hub.unregister(c)
		c.ws.Close()
	}()

	c.ws.SetReadLimit(c.hub.cfg.MaxMessageSize)
	c.ws.SetReadDeadline(time.Now().Add(c.hub.cfg.ReadTimeout))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(c.hub.cfg.ReadTimeout))
		return nil
	})
	for {
		if _, _, err := c.ws.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Debug("Stream closed unexpectedly", "connection_id", c.id, "error", err)
			}
			return
		}
	}
}
