package client

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Default fixed delay between reconnect attempts after an unexpected close.
const defaultReconnectDelay = 3000 * time.Millisecond

// Dialer abstracts websocket dialing so transports can be injected.
type Dialer interface {
	DialContext(ctx context.Context, urlStr string) (Conn, error)
}

// Conn is the subset of a websocket connection the supervisor drives.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// GorillaDialer adapts gorilla/websocket's dialer to the Dialer interface.
type GorillaDialer struct {
	Dialer *websocket.Dialer
}

func (g GorillaDialer) DialContext(ctx context.Context, urlStr string) (Conn, error) {
	d := g.Dialer
	if d == nil {
		d = websocket.DefaultDialer
	}
	conn, resp, err := d.DialContext(ctx, urlStr, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("websocket dial failed (status %d): %w", resp.StatusCode, err)
		}
		return nil, err
	}
	return conn, nil
}

// Supervisor keeps one duplex channel connected while the meeting is
// joined. After an unexpected close it redials on a fixed delay; a
// user-initiated Disconnect suppresses the next auto-reconnect.
type Supervisor struct {
	url    string
	dialer Dialer
	delay  time.Duration

	// OnMessage receives every inbound frame. OnConnect fires after each
	// successful (re)dial so the caller can replay desired state.
	OnMessage func(data []byte)
	OnConnect func(s *Supervisor)

	mu       sync.Mutex
	conn     Conn
	joined   bool // meeting membership; reconnects only happen while true
	cancel   context.CancelFunc
	loopDone chan struct{}
}

type Option func(*Supervisor)

func WithDialer(d Dialer) Option {
	return func(s *Supervisor) { s.dialer = d }
}

func WithReconnectDelay(d time.Duration) Option {
	return func(s *Supervisor) { s.delay = d }
}

func NewSupervisor(url string, opts ...Option) *Supervisor {
	s := &Supervisor{
		url:    url,
		dialer: GorillaDialer{},
		delay:  defaultReconnectDelay,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Connect joins the channel and starts the supervision loop. Returns the
// first dial error; later failures are retried internally.
func (s *Supervisor) Connect(ctx context.Context) error {
	s.mu.Lock()
	if s.joined {
		s.mu.Unlock()
		return nil
	}
	s.joined = true
	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	done := make(chan struct{})
	s.loopDone = done
	s.mu.Unlock()

	conn, err := s.dialer.DialContext(loopCtx, s.url)
	if err != nil {
		s.mu.Lock()
		s.joined = false
		s.cancel = nil
		s.mu.Unlock()
		cancel()
		close(done)
		return err
	}

	s.setConn(conn)
	if s.OnConnect != nil {
		s.OnConnect(s)
	}

	go s.supervise(loopCtx, conn, done)
	return nil
}

// Disconnect is the user-initiated leave: closes the connection and
// suppresses any pending auto-reconnect.
func (s *Supervisor) Disconnect() {
	s.mu.Lock()
	if !s.joined {
		s.mu.Unlock()
		return
	}
	s.joined = false
	cancel := s.cancel
	s.cancel = nil
	conn := s.conn
	s.conn = nil
	done := s.loopDone
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if conn != nil {
		conn.Close()
	}
	if done != nil {
		<-done
	}
}

// Send writes one text frame. Fails when not currently connected.
func (s *Supervisor) Send(data []byte) error {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return fmt.Errorf("not connected")
	}
	return conn.WriteMessage(websocket.TextMessage, data)
}

// Connected reports whether a live connection is currently held.
func (s *Supervisor) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn != nil
}

func (s *Supervisor) setConn(conn Conn) {
	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()
}

func (s *Supervisor) supervise(ctx context.Context, conn Conn, done chan struct{}) {
	defer close(done)

	for {
		s.readLoop(conn)
		s.setConn(nil)

		// Unexpected close: redial on a fixed delay, but only while the
		// meeting remains joined.
		for {
			select {
			case <-ctx.Done():
				return
			case <-time.After(s.delay):
			}

			s.mu.Lock()
			joined := s.joined
			s.mu.Unlock()
			if !joined {
				return
			}

			next, err := s.dialer.DialContext(ctx, s.url)
			if err != nil {
				continue
			}
			conn = next
			break
		}

		s.setConn(conn)
		if s.OnConnect != nil {
			s.OnConnect(s)
		}
	}
}

func (s *Supervisor) readLoop(conn Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			conn.Close()
			return
		}
		if s.OnMessage != nil {
			s.OnMessage(data)
		}
	}
}
