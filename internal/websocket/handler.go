package websocket

import (
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

// ServeWs runs the pump loops for an upgraded connection. Blocks until the
// connection closes; onClose (if set) runs after the registry entry is gone.
func ServeWs(hub *Hub, c *websocket.Conn, meetingID string, role Role, participantID uuid.UUID, participant string, onMessage MessageHandler, onClose func(*Client)) {
	client := &Client{
		Hub:           hub,
		Conn:          c,
		MeetingID:     meetingID,
		Role:          role,
		ParticipantID: participantID,
		Participant:   participant,
		Send:          make(chan []byte, 256),
		OnMessage:     onMessage,
	}
	hub.Register(client)

	go client.writePump()
	client.readPump() // Run readPump in current goroutine (handler)

	if onClose != nil {
		onClose(client)
	}
}
