package websocket

import (
	"context"
	"encoding/json"
	"log"
	"sync"

	"github.com/gorilla/websocket"
)

// Client represents a WebSocket connection client
type Client struct {
	UserID string
	Conn   *websocket.Conn
	Send   chan []byte
}

// Manager manages all active WebSocket connections and their room
// memberships. A room is either a mediation id (the parties and mediator of
// that case) or the special admin room.
type Manager struct {
	clients    map[string]*Client
	rooms      map[string]map[string]bool // room -> set of user ids
	Register   chan *Client
	Unregister chan *Client
	mutex      sync.RWMutex
}

// AdminRoom receives every mediation event regardless of membership.
const AdminRoom = "admin"

// NewManager creates a new WebSocket connection manager
func NewManager() *Manager {
	return &Manager{
		clients:    make(map[string]*Client),
		rooms:      make(map[string]map[string]bool),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
	}
}

// Start runs the manager's main loop in a goroutine
func (m *Manager) Start(ctx context.Context) {
	go func() {
		for {
			select {
			case client := <-m.Register:
				m.mutex.Lock()
				m.clients[client.UserID] = client
				m.mutex.Unlock()
				log.Printf("Client registered: %s", client.UserID)

			case client := <-m.Unregister:
				m.mutex.Lock()
				if _, ok := m.clients[client.UserID]; ok {
					delete(m.clients, client.UserID)
					close(client.Send)
				}
				m.mutex.Unlock()
				log.Printf("Client unregistered: %s", client.UserID)

			case <-ctx.Done():
				return
			}
		}
	}()
}

// JoinRoom adds a user to a room. Joining twice is a no-op.
func (m *Manager) JoinRoom(room, userID string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if m.rooms[room] == nil {
		m.rooms[room] = make(map[string]bool)
	}
	m.rooms[room][userID] = true
}

// LeaveRoom removes a user from a room.
func (m *Manager) LeaveRoom(room, userID string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if members, ok := m.rooms[room]; ok {
		delete(members, userID)
		if len(members) == 0 {
			delete(m.rooms, room)
		}
	}
}

// BroadcastToRoom sends an event to every connected member of a room and to
// the admin room. Offline members are skipped; delivery is best-effort.
func (m *Manager) BroadcastToRoom(room, event string, payload interface{}) {
	data, err := json.Marshal(map[string]interface{}{
		"event":   event,
		"room":    room,
		"payload": payload,
	})
	if err != nil {
		log.Printf("Failed to marshal broadcast for room %s: %v", room, err)
		return
	}

	m.mutex.RLock()
	targets := make(map[string]bool)
	for userID := range m.rooms[room] {
		targets[userID] = true
	}
	for userID := range m.rooms[AdminRoom] {
		targets[userID] = true
	}
	m.mutex.RUnlock()

	for userID := range targets {
		m.SendToUser(userID, data)
	}
}

// SendToUser sends a message to a specific user
func (m *Manager) SendToUser(userID string, message []byte) {
	m.mutex.RLock()
	client, ok := m.clients[userID]
	m.mutex.RUnlock()

	if ok {
		select {
		case client.Send <- message:
		default:
			log.Printf("Dropping message for slow client %s", userID)
		}
	}
}

// ReadPump reads messages from the WebSocket connection
func (c *Client) ReadPump(m *Manager) {
	defer func() {
		m.Unregister <- c
		c.Conn.Close()
	}()

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("error: %v", err)
			}
			break
		}

		HandleClientMessage(m, c, message)
	}
}

// WritePump sends messages to the WebSocket connection
func (c *Client) WritePump() {
	defer c.Conn.Close()

	for {
		message, ok := <-c.Send
		if !ok {
			c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}

		err := c.Conn.WriteMessage(websocket.TextMessage, message)
		if err != nil {
			log.Printf("error: %v", err)
			return
		}
	}
}
