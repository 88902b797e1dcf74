// Package viewer wires the transport, store, search, highlighter and
// viewport into one log viewer widget.
//
// Run is the event loop: it owns the transport channel and is the only
// goroutine that mutates the log store, so inbound events are applied in
// arrival order. Presentation operations and Frame may be called from any
// goroutine.
package viewer

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/loganalyzer/logview/pkg/config"
	"github.com/loganalyzer/logview/pkg/highlighter"
	"github.com/loganalyzer/logview/pkg/models"
	"github.com/loganalyzer/logview/pkg/search"
	"github.com/loganalyzer/logview/pkg/store"
	"github.com/loganalyzer/logview/pkg/transport"
	"github.com/loganalyzer/logview/pkg/viewport"
	"github.com/sirupsen/logrus"
)

// State is the connection state shown to the user
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateSubscribed
	StateError
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateSubscribed:
		return "subscribed"
	case StateError:
		return "error"
	}
	return "disconnected"
}

// maxBatch bounds how many queued log events are appended in one go
const maxBatch = 512

// ErrNoURL is shown when a subscription is wanted but no endpoint is configured
var ErrNoURL = errors.New("no stream url configured")

// Viewer is one log viewer widget
type Viewer struct {
	opts   Options
	log    logrus.FieldLogger
	store  *store.Store
	engine *search.Engine
	hl     *highlighter.Highlighter

	mu            sync.Mutex
	state         State
	key           models.SubscriptionKey // settled key
	pending       models.SubscriptionKey // requested key, applied after the debounce
	query         models.SearchQuery
	mode          models.ViewMode
	fullscreen    bool
	window        *viewport.Window
	width         int
	height        int
	showNumbers   bool
	showTimestamp bool
	errText       string
	status        string

	keyChanged chan struct{}
	changes    chan struct{}

	// owned by Run
	ch       *transport.Channel
	attempts int
}

// New creates a viewer. Nothing connects until Run.
func New(opts Options) *Viewer {
	opts = opts.withDefaults()

	cfg := config.DefaultConfig()
	cfg.UI.Theme = opts.themeName()
	cfg.HighlightRules = opts.Rules

	v := &Viewer{
		opts:          opts,
		log:           opts.Logger.WithField("component", "viewer"),
		store:         store.New(opts.MaxRecords),
		engine:        search.New(),
		hl:            highlighter.New(cfg),
		pending:       opts.Key,
		query:         opts.Query,
		mode:          models.ViewAll,
		width:         opts.Width,
		height:        opts.Height,
		showNumbers:   !opts.HideLineNumber,
		showTimestamp: !opts.HideTimestamp,
		keyChanged:    make(chan struct{}, 1),
		changes:       make(chan struct{}, 1),
	}
	v.window = viewport.NewWindow(v.effectiveHeight(), opts.Follow)
	return v
}

// Changes signals after every buffer or state change. Signals coalesce.
func (v *Viewer) Changes() <-chan struct{} {
	return v.changes
}

func (v *Viewer) notify() {
	select {
	case v.changes <- struct{}{}:
	default:
	}
}

// Options returns the options the viewer runs with
func (v *Viewer) Options() Options {
	return v.opts
}

// Run connects, subscribes and applies inbound events until ctx is done.
// On return the subscription is dropped, the buffer reset and the
// connection closed.
func (v *Viewer) Run(ctx context.Context) error {
	key := v.pendingKey()
	v.store.Bind(key)
	v.setKey(key)
	if !key.IsZero() {
		v.connect(ctx)
	}
	defer v.unmount()

	var (
		debounce  *time.Timer
		settleC   <-chan time.Time
		reconnect *time.Timer
		retryC    <-chan time.Time
	)
	stop := func(t *time.Timer) {
		if t != nil {
			t.Stop()
		}
	}
	defer func() {
		stop(debounce)
		stop(reconnect)
	}()

	for {
		var events <-chan models.Event
		if v.ch != nil {
			events = v.ch.Events()
		}

		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-events:
			if !ok {
				v.ch = nil
				continue
			}
			if v.handle(ev) {
				stop(reconnect)
				delay := Backoff(v.attempts, v.opts.ReconnectBase, v.opts.ReconnectMax)
				v.attempts++
				v.log.WithField("retry_in", delay).Info("reconnect scheduled")
				reconnect = time.NewTimer(delay)
				retryC = reconnect.C
			}

		case <-v.keyChanged:
			if v.opts.Debounce == 0 {
				v.settle(ctx)
				continue
			}
			stop(debounce)
			debounce = time.NewTimer(v.opts.Debounce)
			settleC = debounce.C

		case <-settleC:
			settleC = nil
			v.settle(ctx)

		case <-retryC:
			retryC = nil
			if v.ch == nil {
				v.connect(ctx)
			}
		}
	}
}

func (v *Viewer) connect(ctx context.Context) {
	if v.opts.URL == "" {
		v.setError(StateError, ErrNoURL.Error())
		return
	}
	// the channel outlives ctx long enough to send the final unsubscribe
	v.ch = transport.Connect(context.WithoutCancel(ctx), v.opts.Dialer, v.opts.URL, transport.Options{Logger: v.opts.Logger})
	v.setState(StateConnecting)
	if key := v.currentKey(); !key.IsZero() {
		v.ch.Subscribe(key)
	}
}

// settle applies the requested key: unsubscribe the old key, reset the
// buffer bound to the new key, then subscribe it.
func (v *Viewer) settle(ctx context.Context) {
	next := v.pendingKey()
	old := v.currentKey()
	if next == old {
		return
	}
	v.log.WithFields(logrus.Fields{"from": old.String(), "to": next.String()}).Info("subscription changed")

	if v.ch != nil && !old.IsZero() {
		v.ch.Unsubscribe(old)
	}
	v.store.Bind(next)
	v.engine.Invalidate()
	v.setKey(next)

	v.mu.Lock()
	v.errText = ""
	if v.state == StateSubscribed {
		v.state = StateConnected
	}
	v.mu.Unlock()
	v.notify()

	if next.IsZero() {
		return
	}
	if v.ch == nil {
		v.connect(ctx)
		return
	}
	v.ch.Subscribe(next)
}

// handle applies one inbound event. It reports true when the connection
// failed and a reconnect is due.
func (v *Viewer) handle(ev models.Event) bool {
	switch ev.Type {
	case models.EventTransportError:
		v.transportError(ev)
		return true

	case models.EventOpen:
		v.attempts = 0
		v.mu.Lock()
		v.state = StateConnected
		v.errText = ""
		v.mu.Unlock()
		v.notify()

	case models.EventLog:
		return v.appendBurst(ev)

	case models.EventInfo:
		v.mu.Lock()
		v.status = ev.Message
		switch {
		case ev.Message == "subscribed" && ev.Key == v.key:
			v.state = StateSubscribed
		case ev.Message == "unsubscribed" && ev.Key == v.key:
			v.state = StateConnected
		}
		v.mu.Unlock()
		v.notify()

	case models.EventError:
		if key := v.currentKey(); ev.Key != key && !ev.Key.IsZero() {
			v.log.WithField("key", ev.Key.String()).Debugf("error for a previous subscription: %s", ev.Message)
			return false
		}
		// stale lines must not linger under the error
		v.store.Reset()
		v.engine.Invalidate()
		v.setError(StateConnected, ev.Message)
		v.log.WithField("key", ev.Key.String()).Warnf("server error: %s", ev.Message)

	case models.EventUpdate:
		v.log.WithField("message", ev.Message).Debug("update")

	case models.EventClosed:
		v.setState(StateDisconnected)
	}
	return false
}

// appendBurst appends ev and any log events already queued behind it.
func (v *Viewer) appendBurst(ev models.Event) bool {
	batch := []models.LogRecord{*ev.Record}
	var next *models.Event

	events := v.ch.Events()
drain:
	for len(batch) < maxBatch {
		select {
		case e, ok := <-events:
			if !ok {
				break drain
			}
			if e.Type != models.EventLog {
				next = &e
				break drain
			}
			batch = append(batch, *e.Record)
		default:
			break drain
		}
	}

	if v.store.AppendBatch(batch) > 0 {
		v.notify()
	}
	if next != nil {
		return v.handle(*next)
	}
	return false
}

func (v *Viewer) transportError(ev models.Event) {
	v.ch = nil
	v.setError(StateError, ev.Message)
	v.log.WithError(ev.Err).Warn("transport error")
}

func (v *Viewer) unmount() {
	if v.ch != nil {
		if key := v.currentKey(); !key.IsZero() {
			v.ch.Unsubscribe(key)
		}
		v.ch.Close()
		v.ch = nil
	}
	v.store.Reset()
	v.engine.Invalidate()
	v.setState(StateDisconnected)
}

// SetKey requests a different subscription. Rapid changes settle into one
// resubscribe after the debounce.
func (v *Viewer) SetKey(key models.SubscriptionKey) {
	v.mu.Lock()
	v.pending = key
	v.mu.Unlock()
	select {
	case v.keyChanged <- struct{}{}:
	default:
	}
}

// Key returns the active subscription key
func (v *Viewer) Key() models.SubscriptionKey {
	return v.currentKey()
}

func (v *Viewer) pendingKey() models.SubscriptionKey {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.pending
}

func (v *Viewer) currentKey() models.SubscriptionKey {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.key
}

func (v *Viewer) setKey(key models.SubscriptionKey) {
	v.mu.Lock()
	v.key = key
	v.mu.Unlock()
}

func (v *Viewer) setState(s State) {
	v.mu.Lock()
	v.state = s
	v.mu.Unlock()
	v.notify()
}

func (v *Viewer) setError(s State, text string) {
	v.mu.Lock()
	v.state = s
	v.errText = text
	v.mu.Unlock()
	v.notify()
}

// State returns the connection state
func (v *Viewer) State() State {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state
}

// Store exposes the buffer for read access
func (v *Viewer) Store() *store.Store {
	return v.store
}
