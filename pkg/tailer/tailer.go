// Package tailer follows log files and reports their lines as events.
package tailer

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/hpcloud/tail"
	"github.com/sirupsen/logrus"
)

// EventType tags tailer events
type EventType int

const (
	EventLine EventType = iota
	EventError
)

// Event is one line read from a file, or a read error
type Event struct {
	Type EventType
	Path string
	Line string
	Num  int // 1-based line number within the file
	Time time.Time
	Err  error
}

// Options tune a Tailer
type Options struct {
	FromStart bool // read existing content before following
	Poll      bool // poll for changes instead of using inotify
	Logger    logrus.FieldLogger
}

// Tailer follows any number of files
type Tailer struct {
	mu     sync.RWMutex
	files  map[string]*fileWatcher
	events chan Event
	opts   Options
	log    logrus.FieldLogger
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once
}

type fileWatcher struct {
	path  string
	tail  *tail.Tail
	lines int
}

// New creates a Tailer; it stops when ctx is done or Stop is called.
func New(ctx context.Context, opts Options) *Tailer {
	ctx, cancel := context.WithCancel(ctx)
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	return &Tailer{
		files:  make(map[string]*fileWatcher),
		events: make(chan Event, 1000),
		opts:   opts,
		log:    opts.Logger.WithField("component", "tailer"),
		ctx:    ctx,
		cancel: cancel,
	}
}

// AddFile starts following path
func (t *Tailer) AddFile(path string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.files[path]; exists {
		return fmt.Errorf("file %s is already being watched", path)
	}
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("cannot access file %s: %w", path, err)
	}

	whence := io.SeekEnd
	if t.opts.FromStart {
		whence = io.SeekStart
	}
	tl, err := tail.TailFile(path, tail.Config{
		Follow:    true,
		ReOpen:    true, // survive rotation and truncation
		MustExist: true,
		Poll:      t.opts.Poll,
		Location:  &tail.SeekInfo{Offset: 0, Whence: whence},
		Logger:    t.log,
	})
	if err != nil {
		return fmt.Errorf("failed to start tailing %s: %w", path, err)
	}

	w := &fileWatcher{path: path, tail: tl}
	t.files[path] = w
	t.wg.Add(1)
	go t.follow(w)
	return nil
}

// RemoveFile stops following path
func (t *Tailer) RemoveFile(path string) error {
	t.mu.Lock()
	w, exists := t.files[path]
	delete(t.files, path)
	t.mu.Unlock()

	if !exists {
		return fmt.Errorf("file %s is not being watched", path)
	}
	return w.tail.Stop()
}

// Events returns the event stream. It is closed by Stop.
func (t *Tailer) Events() <-chan Event {
	return t.events
}

// WatchedFiles returns the followed paths in order
func (t *Tailer) WatchedFiles() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	files := make([]string, 0, len(t.files))
	for path := range t.files {
		files = append(files, path)
	}
	sort.Strings(files)
	return files
}

// Stop stops every file and closes the event stream
func (t *Tailer) Stop() {
	t.once.Do(func() {
		t.cancel()

		t.mu.Lock()
		for path, w := range t.files {
			w.tail.Stop()
			delete(t.files, path)
		}
		t.mu.Unlock()

		t.wg.Wait()
		close(t.events)
	})
}

func (t *Tailer) follow(w *fileWatcher) {
	defer t.wg.Done()
	defer w.tail.Cleanup()

	for {
		select {
		case line, ok := <-w.tail.Lines:
			if !ok {
				return
			}
			ev := Event{Type: EventLine, Path: w.path, Line: line.Text, Time: line.Time}
			if line.Err != nil {
				ev = Event{Type: EventError, Path: w.path, Time: line.Time, Err: line.Err}
				t.log.WithError(line.Err).WithField("path", w.path).Warn("read failed")
			} else {
				w.lines++
				ev.Num = w.lines
			}
			select {
			case t.events <- ev:
			case <-t.ctx.Done():
				return
			}
		case <-t.ctx.Done():
			return
		}
	}
}
