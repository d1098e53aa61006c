package websocket

import (
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	// Base64 video frames are the largest inbound unit; frames are
	// downscaled client-side before encoding.
	maxMessageSize = 1024 * 1024
)

// MessageHandler processes one inbound message from a connection.
// Malformed payloads must be handled inside; returning is not an error path.
type MessageHandler func(c *Client, data []byte)

// Client is a middleman between one websocket connection and the hub.
type Client struct {
	Hub *Hub

	// The websocket connection.
	Conn *websocket.Conn

	// Meeting this connection belongs to, and which channel it serves.
	MeetingID string
	Role      Role

	// Identity extracted from the handshake token, or a generated one.
	ParticipantID uuid.UUID
	Participant   string

	// Buffered channel of outbound messages.
	Send chan []byte

	// Invoked from readPump for every inbound frame.
	OnMessage MessageHandler

	closeOnce sync.Once
}

// Deliver queues a directed message for this connection. Returns false if
// the buffer is full or the channel is already closed.
func (c *Client) Deliver(data []byte) bool {
	return c.trySend(data)
}

func (c *Client) trySend(data []byte) bool {
	defer func() {
		// Send channel may be closed concurrently by Unregister.
		_ = recover()
	}()
	select {
	case c.Send <- data:
		return true
	default:
		return false
	}
}

func (c *Client) closeSend() {
	c.closeOnce.Do(func() {
		close(c.Send)
	})
}

// readPump pumps messages from the websocket connection to the handler.
func (c *Client) readPump() {
	defer func() {
		c.Hub.Unregister(c)
		c.Conn.Close()
	}()
	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.Hub.logger.Warn("Client", "Unexpected close", map[string]interface{}{
					"meeting_id": c.MeetingID,
					"error":      err.Error(),
				})
			}
			break
		}
		if c.OnMessage != nil {
			c.OnMessage(c, data)
		}
	}
}

// writePump pumps messages from the hub to the websocket connection.
// One message per frame: each queued payload is a complete JSON envelope.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
