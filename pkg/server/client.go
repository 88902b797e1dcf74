package server

import (
	"context"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/loganalyzer/logview/pkg/models"
	"github.com/loganalyzer/logview/pkg/tailer"
	"github.com/loganalyzer/logview/pkg/transport"
	"github.com/sirupsen/logrus"
)

type client struct {
	srv  *Server
	conn *websocket.Conn
	send chan []byte
	log  logrus.FieldLogger

	mu   sync.Mutex
	subs map[models.SubscriptionKey]*subscription

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
}

type subscription struct {
	tailer *tailer.Tailer
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

func (sub *subscription) stop() {
	sub.cancel()
	sub.tailer.Stop()
	<-sub.done
}

func (c *client) close() {
	c.closeOnce.Do(func() {
		c.cancel()
		c.mu.Lock()
		subs := c.subs
		c.subs = make(map[models.SubscriptionKey]*subscription)
		c.mu.Unlock()
		for _, sub := range subs {
			sub.stop()
		}
		c.conn.Close()
		c.srv.unregister(c)
	})
}

func (c *client) readPump() {
	defer c.close()

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.WithError(err).Warn("read failed")
			}
			return
		}
		c.handleCommand(data)
	}
}

func (c *client) writePump() {
	for {
		select {
		case data := <-c.send:
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				c.log.WithError(err).Debug("write failed")
				c.close()
				return
			}
		case <-c.ctx.Done():
			return
		}
	}
}

// deliver queues a frame, waiting while the client is slow
func (c *client) deliver(ev models.Event) bool {
	return c.deliverCtx(c.ctx, ev)
}

func (c *client) deliverCtx(ctx context.Context, ev models.Event) bool {
	select {
	case c.send <- c.srv.encode(ev):
		return true
	case <-ctx.Done():
		return false
	}
}

func (c *client) handleCommand(data []byte) {
	p := c.srv.parsers.Get()
	cmd, err := transport.DecodeCommand(p, data)
	c.srv.parsers.Put(p)
	if err != nil {
		c.log.WithError(err).Warn("command dropped")
		return
	}

	switch cmd.Event {
	case transport.CommandSubscribe:
		c.subscribe(cmd.Key)
	case transport.CommandUnsubscribe:
		c.unsubscribe(cmd.Key)
	}
}

func (c *client) subscribe(key models.SubscriptionKey) {
	c.mu.Lock()
	_, exists := c.subs[key]
	c.mu.Unlock()
	if exists {
		c.deliver(models.Event{Type: models.EventInfo, Key: key, Message: InfoSubscribed})
		return
	}

	path, err := c.srv.Resolve(key)
	if err != nil {
		c.log.WithError(err).WithField("key", key.String()).Info("subscribe rejected")
		c.deliver(models.Event{Type: models.EventError, Key: key, Message: err.Error()})
		return
	}

	ctx, cancel := context.WithCancel(c.ctx)
	tl := tailer.New(ctx, tailer.Options{FromStart: true, Poll: c.srv.opts.Poll, Logger: c.srv.opts.Logger})
	if err := tl.AddFile(path); err != nil {
		tl.Stop()
		cancel()
		c.deliver(models.Event{Type: models.EventError, Key: key, Message: err.Error()})
		return
	}

	sub := &subscription{tailer: tl, ctx: ctx, cancel: cancel, done: make(chan struct{})}
	c.mu.Lock()
	c.subs[key] = sub
	c.mu.Unlock()

	c.log.WithFields(logrus.Fields{"key": key.String(), "path": path}).Info("subscribed")
	c.deliver(models.Event{Type: models.EventInfo, Key: key, Message: InfoSubscribed})
	go c.stream(key, sub)
}

// stream forwards tailed lines until the subscription stops
func (c *client) stream(key models.SubscriptionKey, sub *subscription) {
	defer close(sub.done)
	for ev := range sub.tailer.Events() {
		var out models.Event
		switch ev.Type {
		case tailer.EventLine:
			out = models.Event{Type: models.EventLog, Key: key, Record: c.srv.record(key, ev.Path, ev.Line)}
		case tailer.EventError:
			out = models.Event{Type: models.EventUpdate, Key: key, Message: ev.Err.Error()}
		}
		if !c.deliverCtx(sub.ctx, out) {
			return
		}
	}
}

func (c *client) unsubscribe(key models.SubscriptionKey) {
	c.mu.Lock()
	sub, exists := c.subs[key]
	delete(c.subs, key)
	c.mu.Unlock()

	if exists {
		sub.stop()
		c.log.WithField("key", key.String()).Info("unsubscribed")
	}
	c.deliver(models.Event{Type: models.EventInfo, Key: key, Message: InfoUnsubscribed})
}
