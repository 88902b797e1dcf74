// Package transport manages the duplex connection to a log stream endpoint.
//
// A Channel is opened asynchronously by Connect and reports everything that
// happens on it as typed events on a single stream, in arrival order.
// Subscribe and Unsubscribe may be called at any time; frames issued before
// the connection is open are queued and flushed once it is.
package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/loganalyzer/logview/pkg/models"
	"github.com/sirupsen/logrus"
	"github.com/valyala/fastjson"
	"golang.org/x/sync/errgroup"
)

// State is the lifecycle state of a Channel
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateOpen
	StateError
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateError:
		return "error"
	case StateClosed:
		return "closed"
	}
	return "disconnected"
}

// Conn is one established duplex connection. *websocket.Conn satisfies it.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Dialer opens connections
type Dialer interface {
	Dial(ctx context.Context, url string) (Conn, error)
}

// WebsocketDialer dials with gorilla/websocket
type WebsocketDialer struct {
	Dialer *websocket.Dialer // nil means websocket.DefaultDialer
	Header http.Header
}

// Dial connects to url
func (d WebsocketDialer) Dial(ctx context.Context, url string) (Conn, error) {
	dialer := d.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	conn, _, err := dialer.DialContext(ctx, url, d.Header)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	return conn, nil
}

// Options tune a Channel
type Options struct {
	Logger     logrus.FieldLogger
	EventQueue int // capacity of the events stream
	SendQueue  int // capacity of the outbound frame queue
}

const (
	defaultEventQueue = 1024
	defaultSendQueue  = 256
)

type pending struct {
	command string
	key     models.SubscriptionKey
}

// Channel is one connection to a log stream endpoint
type Channel struct {
	id     string
	url    string
	dialer Dialer
	log    logrus.FieldLogger

	mu         sync.Mutex
	state      State
	queue      []pending
	active     map[models.SubscriptionKey]bool
	current    models.SubscriptionKey // implicit context for records without a key
	subscribed bool
	arena      fastjson.Arena

	send   chan []byte
	events chan models.Event

	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once
}

// Connect starts opening a connection to rawURL and returns immediately.
// Failures are reported as a transport_error event and StateError, never
// returned.
func Connect(ctx context.Context, dialer Dialer, rawURL string, opts Options) *Channel {
	if opts.EventQueue <= 0 {
		opts.EventQueue = defaultEventQueue
	}
	if opts.SendQueue <= 0 {
		opts.SendQueue = defaultSendQueue
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	if dialer == nil {
		dialer = WebsocketDialer{}
	}

	ctx, cancel := context.WithCancel(ctx)
	id := uuid.NewString()
	c := &Channel{
		id:     id,
		url:    rawURL,
		dialer: dialer,
		log:    opts.Logger.WithFields(logrus.Fields{"component": "transport", "conn": id}),
		state:  StateConnecting,
		active: make(map[models.SubscriptionKey]bool),
		send:   make(chan []byte, opts.SendQueue),
		events: make(chan models.Event, opts.EventQueue),
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go c.run()
	return c
}

// ID returns the connection id used in log fields
func (c *Channel) ID() string {
	return c.id
}

// Events returns the inbound event stream. It is closed when the channel
// stops, after a final transport_error or closed event.
func (c *Channel) Events() <-chan models.Event {
	return c.events
}

// State returns the current lifecycle state
func (c *Channel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Subscribed reports whether the server confirmed the current subscription
func (c *Channel) Subscribed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.subscribed
}

// Subscribe asks for the stream identified by key. Before the channel is
// open the request is queued.
func (c *Channel) Subscribe(key models.SubscriptionKey) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if key.IsZero() {
		return
	}
	switch c.state {
	case StateError, StateClosed:
		c.log.WithField("key", key.String()).Warnf("subscribe ignored, channel is %s", c.state)
		return
	case StateOpen:
		if c.active[key] {
			return
		}
		c.write(CommandSubscribe, key)
		c.active[key] = true
	default:
		for _, p := range c.queue {
			if p.command == CommandSubscribe && p.key == key {
				return
			}
		}
		c.queue = append(c.queue, pending{CommandSubscribe, key})
	}
	c.current = key
	c.subscribed = false
}

// Unsubscribe drops interest in key. It sends nothing when key is neither
// active nor queued; a queued subscribe is cancelled instead.
func (c *Channel) Unsubscribe(key models.SubscriptionKey) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if key == c.current {
		c.current = models.SubscriptionKey{}
		c.subscribed = false
	}
	for i, p := range c.queue {
		if p.command == CommandSubscribe && p.key == key {
			c.queue = append(c.queue[:i], c.queue[i+1:]...)
			return
		}
	}
	if !c.active[key] {
		return
	}
	delete(c.active, key)
	if c.state == StateOpen {
		c.write(CommandUnsubscribe, key)
	}
}

// write queues a frame for the write pump. Callers hold c.mu.
func (c *Channel) write(command string, key models.SubscriptionKey) {
	frame := EncodeCommand(&c.arena, command, key)
	select {
	case c.send <- frame:
		c.log.WithField("key", key.String()).Debugf("sent %s", command)
	case <-c.ctx.Done():
	}
}

// Close closes the connection and the events stream. Safe to call more
// than once.
func (c *Channel) Close() {
	c.closeOnce.Do(c.cancel)
	<-c.done
}

func (c *Channel) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

func (c *Channel) emit(ev models.Event) {
	select {
	case c.events <- ev:
	case <-c.ctx.Done():
	}
}

func (c *Channel) run() {
	defer close(c.done)
	defer close(c.events)

	err := c.serve()
	if c.ctx.Err() != nil {
		c.setState(StateClosed)
		select {
		case c.events <- models.Event{Type: models.EventClosed}:
		default:
		}
		return
	}

	c.mu.Lock()
	c.state = StateError
	c.queue = nil
	c.active = make(map[models.SubscriptionKey]bool)
	c.subscribed = false
	c.mu.Unlock()

	c.log.WithError(err).Warn("connection failed")
	c.emit(models.Event{Type: models.EventTransportError, Message: err.Error(), Err: err})
}

func (c *Channel) serve() error {
	u, err := url.Parse(c.url)
	if err != nil {
		return fmt.Errorf("invalid url: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("invalid url %q: scheme must be ws or wss", c.url)
	}

	conn, err := c.dialer.Dial(c.ctx, c.url)
	if err != nil {
		return err
	}
	c.log.WithField("url", c.url).Info("connected")
	c.open()

	g, ctx := errgroup.WithContext(c.ctx)
	g.Go(func() error { return c.readPump(conn) })
	g.Go(func() error { return c.writePump(ctx, conn) })
	return g.Wait()
}

// open flushes queued frames in order, then reports the channel open.
func (c *Channel) open() {
	c.mu.Lock()
	c.state = StateOpen
	for _, p := range c.queue {
		c.write(p.command, p.key)
		if p.command == CommandSubscribe {
			c.active[p.key] = true
		}
	}
	c.queue = nil
	c.mu.Unlock()

	c.emit(models.Event{Type: models.EventOpen})
}

// readPump is the only reader, so events keep arrival order.
func (c *Channel) readPump(conn Conn) error {
	var p fastjson.Parser
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.WithError(err).Warn("unexpected close")
			}
			return fmt.Errorf("read: %w", err)
		}

		msg, err := DecodeMessage(&p, data)
		if err != nil {
			if errors.Is(err, ErrUnknownType) {
				c.log.WithError(err).Debug("message dropped")
			} else {
				c.log.WithError(err).Warn("message dropped")
			}
			continue
		}
		c.emit(c.stamp(msg))
	}
}

// stamp applies the implicit subscription context and tracks the
// subscribed flag.
func (c *Channel) stamp(msg Message) models.Event {
	ev := msg.Event
	c.mu.Lock()
	defer c.mu.Unlock()

	if !msg.HasKey {
		ev.Key = c.current
		if ev.Record != nil {
			ev.Record.Key = c.current
		}
	}
	if ev.Type == models.EventInfo {
		switch ev.Message {
		case "subscribed":
			c.subscribed = ev.Key == c.current
		case "unsubscribed":
			if ev.Key == c.current {
				c.subscribed = false
			}
		}
	}
	return ev
}

func (c *Channel) writePump(ctx context.Context, conn Conn) error {
	defer conn.Close()
	for {
		select {
		case frame := <-c.send:
			if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return fmt.Errorf("write: %w", err)
			}
		case <-ctx.Done():
			c.drain(conn)
			return nil
		}
	}
}

// drain writes frames queued before shutdown, then says goodbye.
func (c *Channel) drain(conn Conn) {
	for {
		select {
		case frame := <-c.send:
			if conn.WriteMessage(websocket.TextMessage, frame) != nil {
				return
			}
		default:
			msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
			_ = conn.WriteMessage(websocket.CloseMessage, msg)
			return
		}
	}
}
