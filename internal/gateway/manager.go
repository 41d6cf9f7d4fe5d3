package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/faceoff/internal/registry"
)

// ConnectionConfig holds transport tuning for WebSocket connections.
type ConnectionConfig struct {
	WriteTimeout   time.Duration
	ReadTimeout    time.Duration
	PingInterval   time.Duration
	MaxMessageSize int64
	SendBufferSize int
	CheckOrigin    func(r *http.Request) bool
}

// DefaultConnectionConfig returns the production defaults.
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		WriteTimeout:   10 * time.Second,
		ReadTimeout:    60 * time.Second,
		PingInterval:   30 * time.Second,
		MaxMessageSize: 4096,
		SendBufferSize: 256,
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}
}

// outbound is one queued delivery: to everyone when Token is empty,
// otherwise only to the connections registered under Token.
type outbound struct {
	Token string
	Data  []byte
}

// InboundHandler routes a decoded client event.
type InboundHandler func(c *Connection, e *Event)

// Manager owns the WebSocket transport: upgrades, the token<->connection
// registry, and the fan-out loop. Delivery to a closed or slow connection
// is a non-fatal no-op that closes the offender.
type Manager struct {
	registry  *registry.Registry
	upgrader  websocket.Upgrader
	config    ConnectionConfig
	sendCh    chan outbound
	onInbound InboundHandler
}

// NewManager creates a manager over the given registry.
func NewManager(config ConnectionConfig, reg *registry.Registry) *Manager {
	return &Manager{
		registry: reg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     config.CheckOrigin,
		},
		config: config,
		sendCh: make(chan outbound, 1024),
	}
}

// SetInboundHandler installs the router for client events. Must be called
// before the first upgrade.
func (m *Manager) SetInboundHandler(h InboundHandler) {
	m.onInbound = h
}

// Start runs the fan-out loop until the context is cancelled.
func (m *Manager) Start(ctx context.Context) {
	log.Info().Msg("gateway manager started")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("gateway manager shutting down")
			return
		case msg := <-m.sendCh:
			m.deliver(msg)
		}
	}
}

// Upgrade promotes an HTTP request to a WebSocket connection bound to the
// given identity token and starts its pumps.
func (m *Manager) Upgrade(w http.ResponseWriter, r *http.Request, token string, admin bool) (*Connection, error) {
	ws, err := m.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, err
	}

	c := &Connection{
		ID:          uuid.NewString(),
		Token:       token,
		Admin:       admin,
		conn:        ws,
		send:        make(chan []byte, m.config.SendBufferSize),
		done:        make(chan struct{}),
		manager:     m,
		ConnectedAt: time.Now(),
		LastPing:    time.Now(),
	}
	m.registry.Register(token, c)

	go c.writePump()
	go c.readPump()

	log.Info().
		Str("connection_id", c.ID).
		Str("token", token).
		Bool("admin", admin).
		Msg("connection established")
	return c, nil
}

// BroadcastAll queues an event for every live connection.
func (m *Manager) BroadcastAll(e *Event) {
	m.queue("", e)
}

// DeliverTo queues an event for the connections of one identity only. No
// connection registered under a different token ever receives it.
func (m *Manager) DeliverTo(token string, e *Event) {
	if token == "" {
		return
	}
	m.queue(token, e)
}

func (m *Manager) queue(token string, e *Event) {
	data, err := json.Marshal(e)
	if err != nil {
		log.Error().Err(err).Str("event_type", string(e.Type)).Msg("failed to marshal event")
		return
	}
	select {
	case m.sendCh <- outbound{Token: token, Data: data}:
	default:
		log.Warn().Str("event_type", string(e.Type)).Msg("send channel full, dropping event")
	}
}

func (m *Manager) deliver(msg outbound) {
	var targets []registry.Handle
	if msg.Token == "" {
		targets = m.registry.All()
	} else {
		targets = m.registry.HandlesFor(msg.Token)
	}

	for _, h := range targets {
		if h.Enqueue(msg.Data) {
			continue
		}
		if c, ok := h.(*Connection); ok {
			log.Warn().
				Str("connection_id", c.ID).
				Str("token", c.Token).
				Msg("send buffer full, closing connection")
			c.close()
		}
	}
}

// handleInbound decodes a raw client frame and routes it.
func (m *Manager) handleInbound(c *Connection, raw []byte) {
	var e Event
	if err := json.Unmarshal(raw, &e); err != nil {
		log.Debug().
			Err(err).
			Str("connection_id", c.ID).
			Msg("malformed client frame")
		m.SendError(c, "BAD_EVENT", "malformed event")
		return
	}
	if m.onInbound != nil {
		m.onInbound(c, &e)
	}
}

// SendError delivers an error event to one connection only.
func (m *Manager) SendError(c *Connection, code, message string) {
	e, err := NewEvent(EventError, ErrorPayload{Code: code, Message: message})
	if err != nil {
		return
	}
	data, err := json.Marshal(e)
	if err != nil {
		return
	}
	c.Enqueue(data)
}

// SendTo delivers an event to one connection only, bypassing the identity
// fan-out. Used for the initial snapshot push.
func (m *Manager) SendTo(c *Connection, e *Event) {
	data, err := json.Marshal(e)
	if err != nil {
		return
	}
	c.Enqueue(data)
}

// Stats reports live connection counts.
func (m *Manager) Stats() map[string]any {
	return map[string]any{
		"total_connections": m.registry.Len(),
	}
}
