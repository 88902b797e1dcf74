package transport

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/loganalyzer/logview/pkg/models"
	"github.com/sirupsen/logrus"
	"github.com/valyala/fastjson"
)

var (
	keyA = models.SubscriptionKey{Account: "acc", Cluster: "c1", TrackingID: "a"}
	keyB = models.SubscriptionKey{Account: "acc", Cluster: "c1", TrackingID: "b"}
)

func quietLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func connect(t *testing.T, d Dialer, url string) *Channel {
	t.Helper()
	ch := Connect(context.Background(), d, url, Options{Logger: quietLogger()})
	t.Cleanup(ch.Close)
	return ch
}

func nextEvent(t *testing.T, ch *Channel) models.Event {
	t.Helper()
	select {
	case ev, ok := <-ch.Events():
		if !ok {
			t.Fatal("events stream closed")
		}
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for an event")
	}
	return models.Event{}
}

func nextFrame(t *testing.T, conn *MemoryConn) Command {
	t.Helper()
	select {
	case frame := <-conn.Sent():
		var p fastjson.Parser
		cmd, err := DecodeCommand(&p, frame)
		if err != nil {
			t.Fatalf("DecodeCommand(%s): %v", frame, err)
		}
		return cmd
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a frame")
	}
	return Command{}
}

func noFrame(t *testing.T, conn *MemoryConn) {
	t.Helper()
	select {
	case frame := <-conn.Sent():
		t.Fatalf("unexpected frame %s", frame)
	case <-time.After(50 * time.Millisecond):
	}
}

func openChannel(t *testing.T) (*Channel, *MemoryConn) {
	t.Helper()
	d := NewMemoryDialer()
	ch := connect(t, d, "ws://memory/logs")
	if ev := nextEvent(t, ch); ev.Type != models.EventOpen {
		t.Fatalf("first event = %s, want open", ev.Type)
	}
	return ch, <-d.Dialed()
}

func TestSubscribeQueuedUntilOpen(t *testing.T) {
	d := NewMemoryDialer()
	release := d.Hold()
	ch := connect(t, d, "ws://memory/logs")

	ch.Subscribe(keyA)
	ch.Subscribe(keyB)
	if s := ch.State(); s != StateConnecting {
		t.Fatalf("State() = %s, want connecting", s)
	}
	release()

	if ev := nextEvent(t, ch); ev.Type != models.EventOpen {
		t.Fatalf("event = %s, want open", ev.Type)
	}
	conn := <-d.Dialed()
	for _, want := range []models.SubscriptionKey{keyA, keyB} {
		cmd := nextFrame(t, conn)
		if cmd.Event != CommandSubscribe || cmd.Key != want {
			t.Errorf("frame = %+v, want subscribe %s", cmd, want)
		}
	}
}

func TestUnsubscribeCancelsQueuedSubscribe(t *testing.T) {
	d := NewMemoryDialer()
	release := d.Hold()
	ch := connect(t, d, "ws://memory/logs")

	ch.Subscribe(keyA)
	ch.Unsubscribe(keyA)
	ch.Subscribe(keyB)
	release()

	nextEvent(t, ch)
	conn := <-d.Dialed()
	if cmd := nextFrame(t, conn); cmd.Event != CommandSubscribe || cmd.Key != keyB {
		t.Errorf("frame = %+v, want subscribe b", cmd)
	}
	noFrame(t, conn)
}

func TestUnsubscribeIdempotent(t *testing.T) {
	ch, conn := openChannel(t)

	ch.Unsubscribe(keyA)
	noFrame(t, conn)

	ch.Subscribe(keyA)
	ch.Subscribe(keyA)
	if cmd := nextFrame(t, conn); cmd.Event != CommandSubscribe {
		t.Fatalf("frame = %+v", cmd)
	}
	noFrame(t, conn)

	ch.Unsubscribe(keyA)
	ch.Unsubscribe(keyA)
	if cmd := nextFrame(t, conn); cmd.Event != CommandUnsubscribe || cmd.Key != keyA {
		t.Errorf("frame = %+v, want unsubscribe a", cmd)
	}
	noFrame(t, conn)
}

func TestMalformedPayloadDropped(t *testing.T) {
	ch, conn := openChannel(t)
	ch.Subscribe(keyA)

	conn.Push([]byte(`{nope`))
	conn.Push([]byte(`{"type":"mystery"}`))
	conn.Push([]byte(`[1,2]`))
	conn.Push([]byte(`{"type":"log","message":"hello","timestamp":1700000000,"spec":{"podName":"api-1","containerName":"api"}}`))

	ev := nextEvent(t, ch)
	if ev.Type != models.EventLog || ev.Record == nil {
		t.Fatalf("event = %+v, want log", ev)
	}
	if ev.Record.Message != "hello" || ev.Record.SourceID != "api-1" || ev.Record.ContainerName != "api" {
		t.Errorf("record = %+v", ev.Record)
	}
	if ev.Record.Key != keyA {
		t.Errorf("record key = %s, want the current subscription", ev.Record.Key)
	}
	if ch.State() != StateOpen {
		t.Errorf("State() = %s after bad payloads", ch.State())
	}
}

func TestSubscribedFlag(t *testing.T) {
	ch, conn := openChannel(t)
	ch.Subscribe(keyA)

	conn.Push([]byte(`{"type":"info","message":"subscribed"}`))
	if ev := nextEvent(t, ch); ev.Type != models.EventInfo || ev.Message != "subscribed" {
		t.Fatalf("event = %+v", ev)
	}
	if !ch.Subscribed() {
		t.Error("Subscribed() = false after info subscribed")
	}

	ch.Unsubscribe(keyA)
	if ch.Subscribed() {
		t.Error("Subscribed() = true after Unsubscribe")
	}
}

func TestDialFailure(t *testing.T) {
	d := NewMemoryDialer()
	d.Fail(errors.New("connection refused"))
	ch := connect(t, d, "ws://memory/logs")

	ev := nextEvent(t, ch)
	if ev.Type != models.EventTransportError || !strings.Contains(ev.Message, "refused") {
		t.Fatalf("event = %+v, want transport_error", ev)
	}
	if _, ok := <-ch.Events(); ok {
		t.Error("events stream should close after a transport error")
	}
	if ch.State() != StateError {
		t.Errorf("State() = %s, want error", ch.State())
	}

	ch.Subscribe(keyA)
	if ch.Subscribed() {
		t.Error("subscribe in the error state should be a no-op")
	}
}

func TestInvalidURL(t *testing.T) {
	tests := []struct {
		name string
		url  string
	}{
		{"empty", ""},
		{"http scheme", "http://localhost/logs"},
		{"unparseable", "ws://[::1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ch := connect(t, NewMemoryDialer(), tt.url)
			if ev := nextEvent(t, ch); ev.Type != models.EventTransportError {
				t.Errorf("event = %s, want transport_error", ev.Type)
			}
		})
	}
}

func TestCloseOnce(t *testing.T) {
	ch, conn := openChannel(t)
	ch.Subscribe(keyA)
	nextFrame(t, conn)

	ch.Unsubscribe(keyA)
	ch.Close()
	ch.Close()

	if cmd := nextFrame(t, conn); cmd.Event != CommandUnsubscribe {
		t.Errorf("pending unsubscribe not flushed on close: %+v", cmd)
	}
	for range ch.Events() {
	}
	if ch.State() != StateClosed {
		t.Errorf("State() = %s, want closed", ch.State())
	}
	select {
	case <-conn.Done():
	case <-time.After(time.Second):
		t.Error("connection not closed")
	}
}

func TestDecodeMessage(t *testing.T) {
	tests := []struct {
		name    string
		frame   string
		typ     models.EventType
		message string
		ts      models.TimestampKind
		hasKey  bool
		wantErr bool
	}{
		{"text timestamp", `{"type":"log","message":"m","timestamp":"2024-01-15T14:30:22Z"}`, models.EventLog, "m", models.TimestampText, false, false},
		{"numeric timestamp", `{"type":"log","message":"m","timestamp":1705329022000}`, models.EventLog, "m", models.TimestampNumeric, false, false},
		{"no timestamp", `{"type":"log","message":"m"}`, models.EventLog, "m", models.TimestampNone, false, false},
		{"object message", `{"type":"log","message":{"a":1}}`, models.EventLog, `{"a":1}`, models.TimestampNone, false, false},
		{"with key", `{"type":"log","message":"m","key":{"account":"acc","cluster":"c1","trackingId":"a"}}`, models.EventLog, "m", models.TimestampNone, true, false},
		{"error", `{"type":"error","message":"no such tracking id"}`, models.EventError, "no such tracking id", models.TimestampNone, false, false},
		{"update", `{"type":"update","message":"pod restarted"}`, models.EventUpdate, "pod restarted", models.TimestampNone, false, false},
		{"unknown type", `{"type":"ping"}`, "", "", 0, false, true},
		{"not json", `hello`, "", "", 0, false, true},
	}

	var p fastjson.Parser
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := DecodeMessage(&p, []byte(tt.frame))
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if m.Event.Type != tt.typ || m.Event.Message != tt.message || m.HasKey != tt.hasKey {
				t.Errorf("decoded %+v hasKey=%v", m.Event, m.HasKey)
			}
			if tt.typ == models.EventLog && m.Event.Record.Timestamp.Kind != tt.ts {
				t.Errorf("timestamp kind = %v, want %v", m.Event.Record.Timestamp.Kind, tt.ts)
			}
		})
	}
}

func TestEncodeMessageDecodes(t *testing.T) {
	var a fastjson.Arena
	var p fastjson.Parser
	rec := &models.LogRecord{SourceID: "web", ContainerName: "nginx", Message: `say "hi"`, Timestamp: models.TextTimestamp("2024-01-15T14:30:22Z")}

	frame := EncodeMessage(&a, models.Event{Type: models.EventLog, Key: keyA, Record: rec})
	m, err := DecodeMessage(&p, frame)
	if err != nil {
		t.Fatalf("DecodeMessage(%s): %v", frame, err)
	}
	got := m.Event.Record
	if got.Message != rec.Message || got.SourceID != "web" || got.ContainerName != "nginx" || got.Key != keyA {
		t.Errorf("record = %+v", got)
	}
	if got.Timestamp.Raw != rec.Timestamp.Raw {
		t.Errorf("timestamp = %q", got.Timestamp.Raw)
	}
}

func TestWebsocketRoundTrip(t *testing.T) {
	upgrader := websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		var p fastjson.Parser
		var a fastjson.Arena
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		cmd, err := DecodeCommand(&p, data)
		if err != nil || cmd.Event != CommandSubscribe {
			return
		}
		conn.WriteMessage(websocket.TextMessage, EncodeMessage(&a, models.Event{Type: models.EventInfo, Key: cmd.Key, Message: "subscribed"}))
		rec := &models.LogRecord{SourceID: "pod", Message: "line one"}
		conn.WriteMessage(websocket.TextMessage, EncodeMessage(&a, models.Event{Type: models.EventLog, Key: cmd.Key, Record: rec}))
		conn.ReadMessage()
	}))
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	ch := connect(t, WebsocketDialer{}, url)
	ch.Subscribe(keyA)

	if ev := nextEvent(t, ch); ev.Type != models.EventOpen {
		t.Fatalf("event = %s, want open", ev.Type)
	}
	if ev := nextEvent(t, ch); ev.Type != models.EventInfo || ev.Key != keyA {
		t.Fatalf("event = %+v, want info for key a", ev)
	}
	ev := nextEvent(t, ch)
	if ev.Type != models.EventLog || ev.Record.Message != "line one" || ev.Record.Key != keyA {
		t.Errorf("event = %+v", ev)
	}
	if !ch.Subscribed() {
		t.Error("Subscribed() = false")
	}
}
