package gameserver

import (
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/termrumble/termrumble/internal/protocol"
)

// Client is a single connected transport. Outbound frames go through a
// buffered send channel drained by a dedicated write pump, so a slow
// client can never stall the broadcast loop: when its outbox is full,
// frames are dropped (snapshots are self-contained, a missed tick is
// tolerable).
type Client struct {
	id   string
	conn *websocket.Conn

	connectedAt time.Time

	mu           sync.Mutex
	playerID     string
	playerName   string
	lastActivity time.Time
	ended        bool
	endedAt      time.Time

	sendCh    chan []byte
	closeCh   chan struct{}
	closeOnce sync.Once

	writeTimeout time.Duration
}

func newClient(id string, conn *websocket.Conn, queueSize int, writeTimeout time.Duration, now time.Time) *Client {
	return &Client{
		id:           id,
		conn:         conn,
		connectedAt:  now,
		lastActivity: now,
		sendCh:       make(chan []byte, queueSize),
		closeCh:      make(chan struct{}),
		writeTimeout: writeTimeout,
	}
}

// ID returns the server-assigned client id.
func (c *Client) ID() string { return c.id }

// ConnectedAt returns when the transport was accepted.
func (c *Client) ConnectedAt() time.Time { return c.connectedAt }

// PlayerID returns the joined player id, empty before CONNECT.
func (c *Client) PlayerID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.playerID
}

// SetPlayerID binds the connection to a player.
func (c *Client) SetPlayerID(playerID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.playerID = playerID
}

// PlayerName returns the display name announced on CONNECT.
func (c *Client) PlayerName() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.playerName
}

// SetPlayerName records the display name.
func (c *Client) SetPlayerName(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.playerName = name
}

// UpdateActivity stamps the last-inbound-message time.
func (c *Client) UpdateActivity(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastActivity = now
}

// LastActivity returns the last-inbound-message time.
func (c *Client) LastActivity() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastActivity
}

// markEnded flags the connection as closed. The registry entry stays
// retrievable for the reconnect window but is excluded from broadcast.
func (c *Client) markEnded(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ended = true
	c.endedAt = now
}

// Active reports whether the connection still receives broadcasts.
func (c *Client) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.ended
}

// SendEnvelope encodes and enqueues an envelope for the write pump.
func (c *Client) SendEnvelope(env protocol.Envelope) {
	data, err := env.Encode()
	if err != nil {
		slog.Error("encoding envelope", "client", c.id, "type", env.Type, "error", err)
		return
	}
	c.Send(data)
}

// Send enqueues a raw frame, dropping it when the outbox is full or
// the connection is closing.
func (c *Client) Send(data []byte) {
	select {
	case <-c.closeCh:
	case c.sendCh <- data:
	default:
		slog.Debug("send queue full, dropping frame", "client", c.id)
	}
}

// writePump drains the send channel onto the transport. Exits on close
// or the first write error; each write carries a deadline so one stuck
// client cannot block forever.
func (c *Client) writePump() {
	for {
		select {
		case <-c.closeCh:
			return
		case data := <-c.sendCh:
			if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				slog.Debug("write failed", "client", c.id, "error", err)
				return
			}
		}
	}
}

// Close shuts the transport down once.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.closeCh)
		if err := c.conn.Close(); err != nil {
			slog.Debug("closing connection", "client", c.id, "error", err)
		}
	})
}
