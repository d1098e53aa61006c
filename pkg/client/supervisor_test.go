package client

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// scriptConn is a connection driven by the test: frames pushed through
// push() come out of ReadMessage, and serverClose simulates the peer
// dropping the link.
type scriptConn struct {
	inbound   chan []byte
	closed    chan struct{}
	closeOnce sync.Once

	mu      sync.Mutex
	written [][]byte
}

func newScriptConn() *scriptConn {
	return &scriptConn{
		inbound: make(chan []byte, 16),
		closed:  make(chan struct{}),
	}
}

func (c *scriptConn) ReadMessage() (int, []byte, error) {
	select {
	case data := <-c.inbound:
		return websocket.TextMessage, data, nil
	case <-c.closed:
		return 0, nil, errors.New("connection reset")
	}
}

func (c *scriptConn) WriteMessage(messageType int, data []byte) error {
	select {
	case <-c.closed:
		return errors.New("connection reset")
	default:
	}
	c.mu.Lock()
	c.written = append(c.written, append([]byte(nil), data...))
	c.mu.Unlock()
	return nil
}

func (c *scriptConn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

func (c *scriptConn) push(data []byte) {
	c.inbound <- data
}

func (c *scriptConn) serverClose() {
	c.Close()
}

func (c *scriptConn) writtenFrames() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][]byte(nil), c.written...)
}

type scriptDialer struct {
	mu        sync.Mutex
	failFirst int
	dials     int
	conns     []*scriptConn
}

func (d *scriptDialer) DialContext(ctx context.Context, urlStr string) (Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dials++
	if d.dials <= d.failFirst {
		return nil, errors.New("connection refused")
	}
	c := newScriptConn()
	d.conns = append(d.conns, c)
	return c, nil
}

func (d *scriptDialer) dialCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}

func (d *scriptDialer) conn(i int) *scriptConn {
	d.mu.Lock()
	defer d.mu.Unlock()
	if i >= len(d.conns) {
		return nil
	}
	return d.conns[i]
}

func poll(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

func TestSupervisorDeliversInboundFrames(t *testing.T) {
	dialer := &scriptDialer{}
	s := NewSupervisor("ws://test/ws/observe/room-1", WithDialer(dialer))

	var mu sync.Mutex
	var received [][]byte
	s.OnMessage = func(data []byte) {
		mu.Lock()
		received = append(received, data)
		mu.Unlock()
	}

	if err := s.Connect(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer s.Disconnect()

	dialer.conn(0).push([]byte(`{"type":"text"}`))
	dialer.conn(0).push([]byte(`{"type":"audio"}`))

	poll(t, time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(received) == 2
	})

	mu.Lock()
	defer mu.Unlock()
	if string(received[0]) != `{"type":"text"}` {
		t.Errorf("first frame = %s", received[0])
	}
}

func TestSupervisorReconnectsAfterUnexpectedClose(t *testing.T) {
	dialer := &scriptDialer{}
	s := NewSupervisor("ws://test/ws/observe/room-1",
		WithDialer(dialer), WithReconnectDelay(10*time.Millisecond))

	var connects int
	var mu sync.Mutex
	s.OnConnect = func(*Supervisor) {
		mu.Lock()
		connects++
		mu.Unlock()
	}

	if err := s.Connect(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer s.Disconnect()

	dialer.conn(0).serverClose()

	poll(t, time.Second, func() bool { return dialer.dialCount() == 2 })
	poll(t, time.Second, func() bool { return s.Connected() })

	mu.Lock()
	defer mu.Unlock()
	if connects != 2 {
		t.Errorf("OnConnect fired %d times, want one per successful dial", connects)
	}
}

func TestSupervisorKeepsRetryingFailedRedials(t *testing.T) {
	dialer := &scriptDialer{}
	s := NewSupervisor("ws://test/ws/observe/room-1",
		WithDialer(dialer), WithReconnectDelay(5*time.Millisecond))

	if err := s.Connect(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer s.Disconnect()

	dialer.mu.Lock()
	dialer.failFirst = 3 // next two redials refused, third succeeds
	dialer.mu.Unlock()
	dialer.conn(0).serverClose()

	poll(t, 2*time.Second, func() bool { return dialer.dialCount() >= 4 })
	poll(t, time.Second, func() bool { return s.Connected() })
}

func TestDisconnectSuppressesReconnect(t *testing.T) {
	dialer := &scriptDialer{}
	s := NewSupervisor("ws://test/ws/observe/room-1",
		WithDialer(dialer), WithReconnectDelay(5*time.Millisecond))

	if err := s.Connect(context.Background()); err != nil {
		t.Fatal(err)
	}
	s.Disconnect()

	time.Sleep(50 * time.Millisecond)
	if got := dialer.dialCount(); got != 1 {
		t.Errorf("dials = %d, leaving must not redial", got)
	}
	if s.Connected() {
		t.Error("still connected after Disconnect")
	}
}

func TestConnectFirstDialFailureIsReturned(t *testing.T) {
	dialer := &scriptDialer{failFirst: 1}
	s := NewSupervisor("ws://test/ws/observe/room-1", WithDialer(dialer))

	if err := s.Connect(context.Background()); err == nil {
		t.Fatal("expected dial error")
	}

	// The failed join resets state: a later Connect dials again.
	if err := s.Connect(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer s.Disconnect()
	if got := dialer.dialCount(); got != 2 {
		t.Errorf("dials = %d, want 2", got)
	}
}

func TestSendRequiresConnection(t *testing.T) {
	dialer := &scriptDialer{}
	s := NewSupervisor("ws://test/ws/observe/room-1", WithDialer(dialer))

	if err := s.Send([]byte("hello")); err == nil {
		t.Fatal("Send before Connect must fail")
	}

	if err := s.Connect(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer s.Disconnect()

	if err := s.Send([]byte(`{"type":"text","data":"hi"}`)); err != nil {
		t.Fatal(err)
	}
	frames := dialer.conn(0).writtenFrames()
	if len(frames) != 1 || string(frames[0]) != `{"type":"text","data":"hi"}` {
		t.Errorf("frames = %q", frames)
	}
}
