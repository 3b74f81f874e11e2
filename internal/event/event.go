// Package event defines the log events that flow between pipeline components.
package event

import (
	"os"
	"time"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Event is a single log record. Fields hold JSON-compatible values so that
// transforms can evaluate expressions and jq programs over them.
type Event struct {
	Fields map[string]any
}

// New returns an empty event.
func New() Event {
	return Event{Fields: make(map[string]any)}
}

// NewLog builds an event carrying msg under the schema's message key, stamped
// with the current time and host.
func NewLog(schema LogSchema, msg string) Event {
	ev := New()
	ev.Set(schema.MessageKey, msg)
	ev.Set(schema.TimestampKey, time.Now().UTC().Format(time.RFC3339Nano))
	if host, err := os.Hostname(); err == nil {
		ev.Set(schema.HostKey, host)
	}
	return ev
}

// Get returns the value stored under key.
func (e Event) Get(key string) (any, bool) {
	if e.Fields == nil {
		return nil, false
	}
	v, ok := e.Fields[key]
	return v, ok
}

// Set stores value under key, allocating the field map when needed.
func (e *Event) Set(key string, value any) {
	if e.Fields == nil {
		e.Fields = make(map[string]any)
	}
	e.Fields[key] = value
}

// Clone returns a deep copy so fan-out targets never share mutable state.
func (e Event) Clone() Event {
	return Event{Fields: cloneMap(e.Fields)}
}

// MarshalJSON encodes the event as its field map.
func (e Event) MarshalJSON() ([]byte, error) {
	if e.Fields == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(e.Fields)
}

// UnmarshalJSON decodes a JSON object into the event's fields.
func (e *Event) UnmarshalJSON(data []byte) error {
	fields := make(map[string]any)
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	e.Fields = fields
	return nil
}

func cloneMap(in map[string]any) map[string]any {
	if in == nil {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch typed := v.(type) {
	case map[string]any:
		return cloneMap(typed)
	case []any:
		out := make([]any, len(typed))
		for i, item := range typed {
			out[i] = cloneValue(item)
		}
		return out
	default:
		return v
	}
}
