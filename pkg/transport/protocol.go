package transport

import (
	"errors"
	"fmt"

	"github.com/loganalyzer/logview/pkg/models"
	"github.com/valyala/fastjson"
)

// Commands sent by the client in the "event" field
const (
	CommandSubscribe   = "subscribe"
	CommandUnsubscribe = "unsubscribe"
)

// ErrUnknownType is returned for inbound messages with an unrecognised type.
var ErrUnknownType = errors.New("unknown message type")

// Message is the decoded form of one inbound frame
type Message struct {
	Event  models.Event
	HasKey bool // the frame carried its own key object
}

// DecodeMessage decodes a server frame:
//
//	{"type":"log","message":..,"timestamp":..,"spec":{"podName":..,"containerName":..},"key":{..}}
//
// The message may be any JSON value and the timestamp a string or a number.
func DecodeMessage(p *fastjson.Parser, data []byte) (Message, error) {
	v, err := p.ParseBytes(data)
	if err != nil {
		return Message{}, fmt.Errorf("malformed payload: %w", err)
	}
	if v.Type() != fastjson.TypeObject {
		return Message{}, fmt.Errorf("malformed payload: expected an object, got %s", v.Type())
	}

	var m Message
	typ := models.EventType(v.GetStringBytes("type"))
	m.Event = models.Event{Type: typ, Message: text(v.Get("message"))}
	if k := v.Get("key"); k != nil && k.Type() == fastjson.TypeObject {
		m.Event.Key = keyOf(k)
		m.HasKey = true
	}

	switch typ {
	case models.EventLog:
		m.Event.Record = &models.LogRecord{
			Key:           m.Event.Key,
			SourceID:      string(v.GetStringBytes("spec", "podName")),
			ContainerName: string(v.GetStringBytes("spec", "containerName")),
			Message:       m.Event.Message,
			Timestamp:     timestampOf(v.Get("timestamp")),
		}
	case models.EventInfo, models.EventError, models.EventUpdate:
	default:
		return m, fmt.Errorf("%w %q", ErrUnknownType, typ)
	}
	return m, nil
}

func text(v *fastjson.Value) string {
	if v == nil {
		return ""
	}
	switch v.Type() {
	case fastjson.TypeString:
		return string(v.GetStringBytes())
	case fastjson.TypeNull:
		return ""
	}
	return v.String()
}

func timestampOf(v *fastjson.Value) models.Timestamp {
	if v == nil {
		return models.Timestamp{}
	}
	switch v.Type() {
	case fastjson.TypeNumber:
		return models.NumericTimestamp(v.GetFloat64())
	case fastjson.TypeString:
		return models.TextTimestamp(string(v.GetStringBytes()))
	}
	return models.Timestamp{}
}

func keyOf(v *fastjson.Value) models.SubscriptionKey {
	return models.SubscriptionKey{
		Account:    string(v.GetStringBytes("account")),
		Cluster:    string(v.GetStringBytes("cluster")),
		TrackingID: string(v.GetStringBytes("trackingId")),
	}
}

// EncodeCommand builds {"event":command,"data":{account,cluster,trackingId}}.
// The arena is reset, so the result must be used before the next call.
func EncodeCommand(a *fastjson.Arena, command string, key models.SubscriptionKey) []byte {
	a.Reset()
	o := a.NewObject()
	o.Set("event", a.NewString(command))
	o.Set("data", keyValue(a, key))
	return o.MarshalTo(nil)
}

// Command is a decoded client frame
type Command struct {
	Event string
	Key   models.SubscriptionKey
}

// DecodeCommand decodes a client frame on the server side.
func DecodeCommand(p *fastjson.Parser, data []byte) (Command, error) {
	v, err := p.ParseBytes(data)
	if err != nil {
		return Command{}, fmt.Errorf("malformed command: %w", err)
	}
	cmd := Command{Event: string(v.GetStringBytes("event"))}
	if d := v.Get("data"); d != nil && d.Type() == fastjson.TypeObject {
		cmd.Key = keyOf(d)
	}
	switch cmd.Event {
	case CommandSubscribe, CommandUnsubscribe:
		return cmd, nil
	}
	return cmd, fmt.Errorf("unknown command %q", cmd.Event)
}

// EncodeMessage builds a server frame for ev. Log events carry the record's
// timestamp and spec.
func EncodeMessage(a *fastjson.Arena, ev models.Event) []byte {
	a.Reset()
	o := a.NewObject()
	o.Set("type", a.NewString(string(ev.Type)))
	msg := ev.Message
	if ev.Record != nil {
		msg = ev.Record.Message
		switch ev.Record.Timestamp.Kind {
		case models.TimestampNumeric:
			o.Set("timestamp", a.NewNumberFloat64(ev.Record.Timestamp.Number))
		case models.TimestampText:
			o.Set("timestamp", a.NewString(ev.Record.Timestamp.Raw))
		}
		spec := a.NewObject()
		spec.Set("podName", a.NewString(ev.Record.SourceID))
		spec.Set("containerName", a.NewString(ev.Record.ContainerName))
		o.Set("spec", spec)
	}
	o.Set("message", a.NewString(msg))
	if !ev.Key.IsZero() {
		o.Set("key", keyValue(a, ev.Key))
	}
	return o.MarshalTo(nil)
}

func keyValue(a *fastjson.Arena, key models.SubscriptionKey) *fastjson.Value {
	d := a.NewObject()
	d.Set("account", a.NewString(key.Account))
	d.Set("cluster", a.NewString(key.Cluster))
	d.Set("trackingId", a.NewString(key.TrackingID))
	return d
}
