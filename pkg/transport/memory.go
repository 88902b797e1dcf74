package transport

import (
	"context"
	"net"
	"sync"

	"github.com/gorilla/websocket"
)

// MemoryConn is an in-process Conn. Frames pushed with Push are read by the
// channel; frames the channel writes appear on Sent.
type MemoryConn struct {
	inbound chan []byte
	sent    chan []byte
	closed  chan struct{}
	once    sync.Once
}

// NewMemoryConn creates an open in-memory connection
func NewMemoryConn() *MemoryConn {
	return &MemoryConn{
		inbound: make(chan []byte, 64),
		sent:    make(chan []byte, 64),
		closed:  make(chan struct{}),
	}
}

// Push delivers a server frame. It reports false once the connection is closed.
func (c *MemoryConn) Push(frame []byte) bool {
	select {
	case c.inbound <- frame:
		return true
	case <-c.closed:
		return false
	}
}

// Sent returns the text frames written by the client
func (c *MemoryConn) Sent() <-chan []byte {
	return c.sent
}

// Done is closed when the connection closes
func (c *MemoryConn) Done() <-chan struct{} {
	return c.closed
}

// ReadMessage blocks until a pushed frame or close
func (c *MemoryConn) ReadMessage() (int, []byte, error) {
	select {
	case frame := <-c.inbound:
		return websocket.TextMessage, frame, nil
	case <-c.closed:
		return 0, nil, net.ErrClosed
	}
}

// WriteMessage records text frames; control frames are ignored.
func (c *MemoryConn) WriteMessage(messageType int, data []byte) error {
	select {
	case <-c.closed:
		return net.ErrClosed
	default:
	}
	if messageType != websocket.TextMessage {
		return nil
	}
	frame := append([]byte(nil), data...)
	select {
	case c.sent <- frame:
		return nil
	case <-c.closed:
		return net.ErrClosed
	}
}

// Close closes the connection; both sides observe it.
func (c *MemoryConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

// MemoryDialer hands out MemoryConns
type MemoryDialer struct {
	mu     sync.Mutex
	err    error
	gate   chan struct{}
	dialed chan *MemoryConn
}

// NewMemoryDialer creates a dialer that succeeds until Fail is called
func NewMemoryDialer() *MemoryDialer {
	return &MemoryDialer{dialed: make(chan *MemoryConn, 16)}
}

// Fail makes subsequent dials return err; nil restores success.
func (d *MemoryDialer) Fail(err error) {
	d.mu.Lock()
	d.err = err
	d.mu.Unlock()
}

// Hold makes subsequent dials wait until the returned release func is called.
func (d *MemoryDialer) Hold() (release func()) {
	gate := make(chan struct{})
	d.mu.Lock()
	d.gate = gate
	d.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			d.mu.Lock()
			if d.gate == gate {
				d.gate = nil
			}
			d.mu.Unlock()
			close(gate)
		})
	}
}

// Dialed returns each connection as it is handed out
func (d *MemoryDialer) Dialed() <-chan *MemoryConn {
	return d.dialed
}

// Dial returns a new MemoryConn
func (d *MemoryDialer) Dial(ctx context.Context, url string) (Conn, error) {
	d.mu.Lock()
	gate := d.gate
	d.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	d.mu.Lock()
	err := d.err
	d.mu.Unlock()
	if err != nil {
		return nil, err
	}

	conn := NewMemoryConn()
	select {
	case d.dialed <- conn:
	default:
	}
	return conn, nil
}
