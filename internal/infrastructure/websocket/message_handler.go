package websocket

import (
	"encoding/json"
	"log"
	"time"
)

// WebSocket Message Types
const (
	MessageTypePing      = "ping"
	MessageTypePong      = "pong"
	MessageTypeJoinRoom  = "join_room"
	MessageTypeLeaveRoom = "leave_room"
)

// WSMessage is the envelope for client-originated frames. Server-originated
// mediation events are produced by BroadcastToRoom and carry full snapshots.
type WSMessage struct {
	Type      string      `json:"type"`
	Room      string      `json:"room,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp string      `json:"timestamp"`
}

// HandleClientMessage processes incoming WebSocket messages. Clients only
// manage their room subscriptions over the socket; all state changes go
// through the HTTP API.
func HandleClientMessage(m *Manager, client *Client, messageBytes []byte) {
	var wsMessage WSMessage

	if err := json.Unmarshal(messageBytes, &wsMessage); err != nil {
		log.Printf("WebSocket: Failed to unmarshal message from client %s: %v", client.UserID, err)
		sendErrorToClient(m, client, "Invalid message format")
		return
	}

	switch wsMessage.Type {
	case MessageTypePing:
		sendToClient(m, client, WSMessage{
			Type:      MessageTypePong,
			Data:      map[string]string{"status": "alive"},
			Timestamp: time.Now().Format(time.RFC3339),
		})

	case MessageTypeJoinRoom:
		if wsMessage.Room == "" {
			sendErrorToClient(m, client, "Missing room")
			return
		}
		m.JoinRoom(wsMessage.Room, client.UserID)
		log.Printf("WebSocket: Client %s joined room %s", client.UserID, wsMessage.Room)

	case MessageTypeLeaveRoom:
		if wsMessage.Room == "" {
			sendErrorToClient(m, client, "Missing room")
			return
		}
		m.LeaveRoom(wsMessage.Room, client.UserID)
		log.Printf("WebSocket: Client %s left room %s", client.UserID, wsMessage.Room)

	default:
		log.Printf("WebSocket: Unknown message type '%s' from client %s", wsMessage.Type, client.UserID)
		sendErrorToClient(m, client, "Unknown message type")
	}
}

func sendToClient(m *Manager, client *Client, message WSMessage) {
	messageBytes, err := json.Marshal(message)
	if err != nil {
		log.Printf("WebSocket: Failed to marshal message for client %s: %v", client.UserID, err)
		return
	}
	m.SendToUser(client.UserID, messageBytes)
}

func sendErrorToClient(m *Manager, client *Client, errorMsg string) {
	sendToClient(m, client, WSMessage{
		Type: "error",
		Data: map[string]string{
			"error":   errorMsg,
			"user_id": client.UserID,
		},
		Timestamp: time.Now().Format(time.RFC3339),
	})
}
