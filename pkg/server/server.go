// Package server is a development log endpoint speaking the viewer's
// subscribe/unsubscribe protocol over WebSocket. Each subscription tails a
// file below the log directory.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/loganalyzer/logview/pkg/models"
	"github.com/loganalyzer/logview/pkg/parser"
	"github.com/loganalyzer/logview/pkg/tailer"
	"github.com/loganalyzer/logview/pkg/transport"
	"github.com/sirupsen/logrus"
	"github.com/valyala/fastjson"
)

// Path is where the WebSocket endpoint is mounted
const Path = "/logs"

// Info messages sent to clients
const (
	InfoSubscribed   = "subscribed"
	InfoUnsubscribed = "unsubscribed"
)

// ErrInvalidKey is reported for keys that cannot name a file
var ErrInvalidKey = errors.New("invalid subscription key")

// Options tune a Server
type Options struct {
	Container string // containerName reported for every line, default "main"
	Poll      bool   // poll files instead of using inotify
	Logger    logrus.FieldLogger
}

// Server serves log files from a directory
type Server struct {
	dir      string
	opts     Options
	log      logrus.FieldLogger
	parser   *parser.LogParser
	parsers  fastjson.ParserPool
	arenas   fastjson.ArenaPool
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[*client]bool
}

// New creates a server for the logs below dir
func New(dir string, opts Options) *Server {
	if opts.Container == "" {
		opts.Container = "main"
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	return &Server{
		dir:    dir,
		opts:   opts,
		log:    opts.Logger.WithField("component", "server"),
		parser: parser.New(),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients: make(map[*client]bool),
	}
}

// Handler returns the HTTP handler with the endpoint mounted at Path
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(Path, s.HandleWebSocket)
	return mux
}

// ListenAndServe serves on addr until ctx is done
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.Handler()}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
		s.Close()
	}()

	s.log.WithFields(logrus.Fields{"addr": addr, "dir": s.dir}).Info("serving logs")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	return nil
}

// Close disconnects every client
func (s *Server) Close() {
	s.mu.RLock()
	clients := make([]*client, 0, len(s.clients))
	for c := range s.clients {
		clients = append(clients, c)
	}
	s.mu.RUnlock()

	for _, c := range clients {
		c.close()
	}
}

// ClientCount returns the number of connected clients
func (s *Server) ClientCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

// Resolve maps a key to its log file: <dir>/<account>/<cluster>/<trackingId>.log,
// falling back to <dir>/<trackingId>.log.
func (s *Server) Resolve(key models.SubscriptionKey) (string, error) {
	if key.IsZero() {
		return "", ErrInvalidKey
	}
	for _, part := range []string{key.Account, key.Cluster, key.TrackingID} {
		if part == "." || part == ".." || strings.ContainsAny(part, `/\`) {
			return "", fmt.Errorf("%w: %q", ErrInvalidKey, part)
		}
	}

	candidates := []string{
		filepath.Join(s.dir, key.Account, key.Cluster, key.TrackingID+".log"),
		filepath.Join(s.dir, key.TrackingID+".log"),
	}
	for _, path := range candidates {
		if info, err := os.Stat(path); err == nil && info.Mode().IsRegular() {
			return path, nil
		}
	}
	return "", fmt.Errorf("no logs found for tracking id %q", key.TrackingID)
}

// HandleWebSocket upgrades the connection and serves one client
func (s *Server) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.WithError(err).Warn("upgrade failed")
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &client{
		srv:    s,
		conn:   conn,
		send:   make(chan []byte, 256),
		subs:   make(map[models.SubscriptionKey]*subscription),
		ctx:    ctx,
		cancel: cancel,
		log:    s.log.WithField("remote", r.RemoteAddr),
	}

	s.mu.Lock()
	s.clients[c] = true
	s.mu.Unlock()
	c.log.Infof("client connected (%d total)", s.ClientCount())

	go c.writePump()
	go c.readPump()
}

func (s *Server) unregister(c *client) {
	s.mu.Lock()
	delete(s.clients, c)
	s.mu.Unlock()
	c.log.Infof("client disconnected (%d total)", s.ClientCount())
}

// encode builds a server frame with a pooled arena
func (s *Server) encode(ev models.Event) []byte {
	a := s.arenas.Get()
	defer s.arenas.Put(a)
	return transport.EncodeMessage(a, ev)
}

// record turns one tailed line into a log record
func (s *Server) record(key models.SubscriptionKey, path, line string) *models.LogRecord {
	ts, _ := s.parser.ExtractTimestamp(line)
	return &models.LogRecord{
		Key:           key,
		SourceID:      strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
		ContainerName: s.opts.Container,
		Message:       line,
		Timestamp:     ts,
	}
}
