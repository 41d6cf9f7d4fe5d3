package gateway

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// Connection is one live WebSocket client. It belongs to exactly one
// identity token; several connections may share a token (multiple tabs or
// devices behind the same address).
type Connection struct {
	ID    string
	Token string
	Admin bool

	conn    *websocket.Conn
	send    chan []byte
	done    chan struct{}
	closer  sync.Once
	manager *Manager

	ConnectedAt time.Time
	LastPing    time.Time
}

// Enqueue hands a marshaled event to the connection without blocking.
// Returns false when the connection is gone or its buffer is full.
func (c *Connection) Enqueue(msg []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

// close tears the connection down exactly once: both registry indices drop
// it atomically, then the socket is closed.
func (c *Connection) close() {
	c.closer.Do(func() {
		close(c.done)
		c.manager.registry.Unregister(c)
		if c.conn != nil {
			c.conn.Close()
		}

		log.Info().
			Str("connection_id", c.ID).
			Str("token", c.Token).
			Msg("connection closed")
	})
}

// writePump drains the send buffer onto the socket and keeps the
// connection alive with pings.
func (c *Connection) writePump() {
	ticker := time.NewTicker(c.manager.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case <-c.done:
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(c.manager.config.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Debug().
					Err(err).
					Str("connection_id", c.ID).
					Msg("failed to write message")
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(c.manager.config.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
			c.LastPing = time.Now()
		}
	}
}

// readPump receives client events and routes them through the manager.
func (c *Connection) readPump() {
	defer c.close()

	c.conn.SetReadLimit(c.manager.config.MaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(c.manager.config.ReadTimeout))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(c.manager.config.ReadTimeout))
		c.LastPing = time.Now()
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Debug().
					Err(err).
					Str("connection_id", c.ID).
					Msg("unexpected close")
			}
			return
		}
		c.manager.handleInbound(c, message)
		c.conn.SetReadDeadline(time.Now().Add(c.manager.config.ReadTimeout))
	}
}
