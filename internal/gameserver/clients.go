package gameserver

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// retentionWindow keeps ended registry entries retrievable briefly so
// a reconnecting transport can be correlated with its predecessor.
const retentionWindow = 30 * time.Second

// ClientManager tracks transport bindings and their metadata.
// Thread-safe; iteration for broadcast takes a short read lock to
// snapshot the active set, writes then happen on each client's own
// write pump.
type ClientManager struct {
	mu      sync.RWMutex
	clients map[string]*Client // key: clientId
}

// NewClientManager creates an empty manager.
func NewClientManager() *ClientManager {
	return &ClientManager{clients: make(map[string]*Client)}
}

// AddConnection registers a transport and returns its new client.
func (cm *ClientManager) AddConnection(conn *websocket.Conn, queueSize int, writeTimeout time.Duration) *Client {
	c := newClient(uuid.NewString(), conn, queueSize, writeTimeout, time.Now())

	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.clients[c.id] = c
	return c
}

// RemoveConnection marks the connection as ended. The entry stays
// retrievable for the reconnect window but no longer broadcasts.
func (cm *ClientManager) RemoveConnection(clientID string) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	if c, ok := cm.clients[clientID]; ok {
		c.markEnded(time.Now())
	}
}

// Get returns the client for clientID, nil when unknown.
func (cm *ClientManager) Get(clientID string) *Client {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.clients[clientID]
}

// GetByPlayerID returns the active client bound to playerID.
func (cm *ClientManager) GetByPlayerID(playerID string) *Client {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	for _, c := range cm.clients {
		if c.Active() && c.PlayerID() == playerID {
			return c
		}
	}
	return nil
}

// ForEachActive calls fn for every active connection. fn returning
// false stops the iteration.
func (cm *ClientManager) ForEachActive(fn func(*Client) bool) {
	cm.mu.RLock()
	active := make([]*Client, 0, len(cm.clients))
	for _, c := range cm.clients {
		if c.Active() {
			active = append(active, c)
		}
	}
	cm.mu.RUnlock()

	// writes happen outside the registry lock
	for _, c := range active {
		if !fn(c) {
			return
		}
	}
}

// ActiveCount returns the number of active connections.
func (cm *ClientManager) ActiveCount() int {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	n := 0
	for _, c := range cm.clients {
		if c.Active() {
			n++
		}
	}
	return n
}

// Sweep drops ended entries past the retention window.
func (cm *ClientManager) Sweep(now time.Time) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	for id, c := range cm.clients {
		c.mu.Lock()
		expired := c.ended && now.Sub(c.endedAt) > retentionWindow
		c.mu.Unlock()
		if expired {
			delete(cm.clients, id)
		}
	}
}

// CloseAll closes every tracked connection.
func (cm *ClientManager) CloseAll() {
	cm.mu.RLock()
	all := make([]*Client, 0, len(cm.clients))
	for _, c := range cm.clients {
		all = append(all, c)
	}
	cm.mu.RUnlock()

	for _, c := range all {
		c.Close()
	}
}
