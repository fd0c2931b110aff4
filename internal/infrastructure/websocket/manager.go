package websocket

import (
	"sync"

	"github.com/gorilla/websocket"

	"lapakchat/pkg/logger"
)

// Client is one realtime connection. The user id stays empty until the
// connection authenticates.
type Client struct {
	Conn *websocket.Conn
	Send chan []byte

	mu     sync.RWMutex
	userID string

	done      chan struct{}
	closeOnce sync.Once
}

func NewClient(conn *websocket.Conn) *Client {
	return &Client{
		Conn: conn,
		Send: make(chan []byte, 256),
		done: make(chan struct{}),
	}
}

// UserID returns the authenticated user id, or "" before authentication.
// The read pump writes it while the write pump and broadcast paths read it,
// so access is synchronized.
func (c *Client) UserID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.userID
}

func (c *Client) SetUserID(userID string) {
	c.mu.Lock()
	c.userID = userID
	c.mu.Unlock()
}

// Close shuts the transport down. Safe to call more than once and from
// any goroutine; pending writes are abandoned.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		if c.Conn != nil {
			c.Conn.Close()
		}
	})
}

// Manager is the process-wide presence registry plus the per-chat broadcast
// rooms. One active connection per user: registering a second connection
// for the same user supersedes the first (last-connect-wins).
type Manager struct {
	mu      sync.RWMutex
	clients map[string]*Client
	rooms   map[string]map[string]*Client
}

func NewManager() *Manager {
	return &Manager{
		clients: make(map[string]*Client),
		rooms:   make(map[string]map[string]*Client),
	}
}

// Register records an authenticated connection. A previously registered
// connection for the same user is closed asynchronously.
func (m *Manager) Register(client *Client) {
	userID := client.UserID()

	m.mu.Lock()
	existing, superseded := m.clients[userID]
	m.clients[userID] = client
	m.mu.Unlock()

	if superseded && existing != client {
		logger.Info("WebSocket: superseding connection for user %s", userID)
		go existing.Close()
	}
}

// Unregister removes the connection from presence and from every room. The
// instance guard applies per structure: a stale disconnect arriving after
// the same user reconnected must not evict the newer connection from the
// presence map or from any room, but the disconnecting connection itself
// always leaves every room it still occupies.
func (m *Manager) Unregister(client *Client) {
	userID := client.UserID()
	if userID == "" {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if registered, ok := m.clients[userID]; ok && registered == client {
		delete(m.clients, userID)
	}

	for chatID, members := range m.rooms {
		if members[userID] == client {
			delete(members, userID)
			if len(members) == 0 {
				delete(m.rooms, chatID)
			}
		}
	}
}

// IsOnline reports whether the user currently has an active connection.
// Absence is not an error; messages stay in the durable log regardless.
func (m *Manager) IsOnline(userID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.clients[userID]
	return ok
}

func (m *Manager) JoinRoom(chatID string, client *Client) {
	userID := client.UserID()

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.rooms[chatID] == nil {
		m.rooms[chatID] = make(map[string]*Client)
	}
	m.rooms[chatID][userID] = client
}

func (m *Manager) LeaveRoom(chatID string, client *Client) {
	userID := client.UserID()

	m.mu.Lock()
	defer m.mu.Unlock()

	if members, ok := m.rooms[chatID]; ok && members[userID] == client {
		delete(members, userID)
		if len(members) == 0 {
			delete(m.rooms, chatID)
		}
	}
}

func (m *Manager) InRoom(chatID, userID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.rooms[chatID][userID]
	return ok
}

// SendToUser delivers a payload to a user's active connection if present.
// Returns false when the user is offline.
func (m *Manager) SendToUser(userID string, payload []byte) bool {
	m.mu.RLock()
	client, ok := m.clients[userID]
	m.mu.RUnlock()

	if !ok {
		return false
	}
	m.send(client, payload)
	return true
}

// BroadcastToRoom delivers a payload to every connection joined to the
// chat's room, minus excludeUserID when non-empty.
func (m *Manager) BroadcastToRoom(chatID string, payload []byte, excludeUserID string) {
	m.mu.RLock()
	members := make([]*Client, 0, len(m.rooms[chatID]))
	for userID, client := range m.rooms[chatID] {
		if excludeUserID != "" && userID == excludeUserID {
			continue
		}
		members = append(members, client)
	}
	m.mu.RUnlock()

	for _, client := range members {
		m.send(client, payload)
	}
}

// send never blocks; a connection whose buffer is full is dropped.
func (m *Manager) send(client *Client, payload []byte) {
	select {
	case client.Send <- payload:
	default:
		logger.Warn("WebSocket: send buffer full for user %s, closing connection", client.UserID())
		client.Close()
		m.Unregister(client)
	}
}
