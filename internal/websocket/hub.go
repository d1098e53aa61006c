package websocket

import (
	"context"
	"encoding/json"
	"sync"

	"ai-meeting-copilot-be/internal/pkg/logger"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Role separates the two duplex channels a meeting exposes.
type Role string

const (
	RoleObserver    Role = "observer"
	RoleFacilitator Role = "facilitator"
)

const clusterChannel = "meeting_events"

// Hub is the per-meeting connection registry. It exclusively owns
// connection-set membership: register/unregister are idempotent, and
// removing the last connection for a meeting drops the meeting entry.
type Hub struct {
	// meetingID -> set of clients (observer and facilitator links mixed;
	// broadcasts filter by role).
	clients map[string]map[*Client]struct{}

	// Lock for safe map access
	mu sync.RWMutex

	// Redis connection for cross-instance fan-out
	rdb *redis.Client

	// Used to skip our own cluster messages when they echo back.
	instanceID string

	// Dedicated Logger
	logger logger.ILogger
}

func NewHub(rdb *redis.Client, log logger.ILogger) *Hub {
	return &Hub{
		clients:    make(map[string]map[*Client]struct{}),
		rdb:        rdb,
		instanceID: uuid.NewString(),
		logger:     log,
	}
}

// Run starts the cross-instance subscriber. Local registry operations do
// not require it; call it once from the container when Redis is available.
func (h *Hub) Run() {
	if h.rdb != nil {
		go h.subscribeToRedis()
	}
}

// Register adds a client to its meeting's set. Idempotent.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	set, ok := h.clients[c.MeetingID]
	if !ok {
		set = make(map[*Client]struct{})
		h.clients[c.MeetingID] = set
	}
	_, already := set[c]
	set[c] = struct{}{}
	h.mu.Unlock()

	if !already {
		h.logger.Info("Hub", "Client registered", map[string]interface{}{
			"meeting_id": c.MeetingID,
			"role":       string(c.Role),
		})
	}
}

// Unregister removes a client from its meeting's set and closes its send
// channel. Idempotent; unregistering the last connection removes the
// meeting entry so no empty sets dangle.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	removed := false
	if set, ok := h.clients[c.MeetingID]; ok {
		if _, found := set[c]; found {
			delete(set, c)
			removed = true
		}
		if len(set) == 0 {
			delete(h.clients, c.MeetingID)
		}
	}
	h.mu.Unlock()

	if removed {
		c.closeSend()
		h.logger.Info("Hub", "Client unregistered", map[string]interface{}{
			"meeting_id": c.MeetingID,
			"role":       string(c.Role),
		})
	}
}

// Count reports how many connections are registered under a meeting.
func (h *Hub) Count(meetingID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[meetingID])
}

// CountRole reports how many connections of one role a meeting holds.
func (h *Hub) CountRole(meetingID string, role Role) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for client := range h.clients[meetingID] {
		if client.Role == role {
			n++
		}
	}
	return n
}

// Broadcast sends a message to every connection of the meeting holding the
// given role. A slow or closed connection is skipped and scheduled for
// removal; it never fails the broadcast for others. Each individual
// connection receives broadcasts in emission order (buffered FIFO channel
// drained by a single writePump).
func (h *Hub) Broadcast(meetingID string, role Role, data []byte) {
	h.broadcastLocal(meetingID, role, data)

	// Fan out to other instances.
	if h.rdb != nil {
		payload, _ := json.Marshal(clusterEnvelope{
			Origin:    h.instanceID,
			MeetingID: meetingID,
			Role:      string(role),
			Message:   data,
		})
		if err := h.rdb.Publish(context.Background(), clusterChannel, payload).Err(); err != nil {
			h.logger.Warn("Hub", "Cluster publish failed", map[string]interface{}{"error": err.Error()})
		}
	}
}

func (h *Hub) broadcastLocal(meetingID string, role Role, data []byte) {
	h.mu.RLock()
	var stale []*Client
	for client := range h.clients[meetingID] {
		if client.Role != role {
			continue
		}
		if !client.trySend(data) {
			stale = append(stale, client)
		}
	}
	h.mu.RUnlock()

	for _, client := range stale {
		h.logger.Warn("Hub", "Client send buffer full, dropping connection", map[string]interface{}{
			"meeting_id": meetingID,
		})
		h.Unregister(client)
	}
}

type clusterEnvelope struct {
	Origin    string          `json:"origin"`
	MeetingID string          `json:"meeting_id"`
	Role      string          `json:"role"`
	Message   json.RawMessage `json:"message"`
}

func (h *Hub) subscribeToRedis() {
	ctx := context.Background()
	pubsub := h.rdb.Subscribe(ctx, clusterChannel)
	defer pubsub.Close()

	ch := pubsub.Channel()

	for msg := range ch {
		var payload clusterEnvelope
		if err := json.Unmarshal([]byte(msg.Payload), &payload); err != nil {
			h.logger.Warn("Hub", "Cluster message parse error", map[string]interface{}{"error": err.Error()})
			continue
		}

		// Our own publishes were already delivered locally.
		if payload.Origin == h.instanceID {
			continue
		}

		h.broadcastLocal(payload.MeetingID, Role(payload.Role), payload.Message)
	}
}
