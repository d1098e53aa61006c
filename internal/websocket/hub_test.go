package websocket

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

type nopLogger struct{}

func (nopLogger) Debug(module, message string, details map[string]interface{}) {}
func (nopLogger) Info(module, message string, details map[string]interface{})  {}
func (nopLogger) Warn(module, message string, details map[string]interface{})  {}
func (nopLogger) Error(module, message string, details map[string]interface{}) {}
func (nopLogger) Sync() error                                                  { return nil }

func newTestClient(hub *Hub, meetingID string, role Role, buffer int) *Client {
	return &Client{
		Hub:       hub,
		MeetingID: meetingID,
		Role:      role,
		Send:      make(chan []byte, buffer),
	}
}

func TestRegisterIsIdempotent(t *testing.T) {
	hub := NewHub(nil, nopLogger{})
	c := newTestClient(hub, "room-1", RoleObserver, 8)

	hub.Register(c)
	hub.Register(c)

	assert.Equal(t, 1, hub.Count("room-1"))
}

func TestUnregisterRemovesEmptyMeetingEntry(t *testing.T) {
	hub := NewHub(nil, nopLogger{})
	c := newTestClient(hub, "room-1", RoleObserver, 8)

	hub.Register(c)
	hub.Unregister(c)
	hub.Unregister(c) // idempotent

	assert.Equal(t, 0, hub.Count("room-1"))

	hub.mu.RLock()
	_, exists := hub.clients["room-1"]
	hub.mu.RUnlock()
	assert.False(t, exists, "empty meeting sets must not dangle")
}

func TestBroadcastFiltersByRole(t *testing.T) {
	hub := NewHub(nil, nopLogger{})
	observer := newTestClient(hub, "room-1", RoleObserver, 8)
	facilitator := newTestClient(hub, "room-1", RoleFacilitator, 8)
	hub.Register(observer)
	hub.Register(facilitator)

	hub.Broadcast("room-1", RoleObserver, []byte(`{"type":"sop_update"}`))

	assert.Len(t, observer.Send, 1)
	assert.Len(t, facilitator.Send, 0)
	assert.Equal(t, 1, hub.CountRole("room-1", RoleObserver))
	assert.Equal(t, 1, hub.CountRole("room-1", RoleFacilitator))
}

func TestBroadcastIsScopedToMeeting(t *testing.T) {
	hub := NewHub(nil, nopLogger{})
	inRoom := newTestClient(hub, "room-1", RoleObserver, 8)
	otherRoom := newTestClient(hub, "room-2", RoleObserver, 8)
	hub.Register(inRoom)
	hub.Register(otherRoom)

	hub.Broadcast("room-1", RoleObserver, []byte("hello"))

	assert.Len(t, inRoom.Send, 1)
	assert.Len(t, otherRoom.Send, 0)
}

func TestBroadcastOrderPerConnection(t *testing.T) {
	hub := NewHub(nil, nopLogger{})
	c := newTestClient(hub, "room-1", RoleObserver, 32)
	hub.Register(c)

	for i := 0; i < 10; i++ {
		hub.Broadcast("room-1", RoleObserver, []byte(fmt.Sprintf("msg-%d", i)))
	}

	for i := 0; i < 10; i++ {
		got := <-c.Send
		assert.Equal(t, fmt.Sprintf("msg-%d", i), string(got))
	}
}

func TestSlowClientIsDroppedWithoutFailingOthers(t *testing.T) {
	hub := NewHub(nil, nopLogger{})
	slow := newTestClient(hub, "room-1", RoleObserver, 1)
	healthy := newTestClient(hub, "room-1", RoleObserver, 8)
	hub.Register(slow)
	hub.Register(healthy)

	hub.Broadcast("room-1", RoleObserver, []byte("first"))
	hub.Broadcast("room-1", RoleObserver, []byte("second")) // slow buffer is full

	assert.Equal(t, 1, hub.Count("room-1"), "slow client must be unregistered")
	assert.Len(t, healthy.Send, 2)
}

func TestDeliverAfterUnregisterDoesNotPanic(t *testing.T) {
	hub := NewHub(nil, nopLogger{})
	c := newTestClient(hub, "room-1", RoleObserver, 1)
	hub.Register(c)
	hub.Unregister(c) // closes the send channel

	assert.NotPanics(t, func() {
		ok := c.Deliver([]byte("late"))
		assert.False(t, ok)
	})
}
