// Package codec converts events to and from the byte payloads sources read
// and sinks write.
package codec

import (
	"fmt"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/jmountifield/vector/internal/event"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Encoding names a payload format.
type Encoding string

const (
	JSON Encoding = "json"
	Text Encoding = "text"
)

// Encode renders ev. Text writes only the message field.
func Encode(enc Encoding, schema event.LogSchema, ev event.Event) ([]byte, error) {
	switch enc {
	case JSON, "":
		return json.Marshal(ev.Fields)
	case Text:
		msg, ok := ev.Get(schema.WithDefaults().MessageKey)
		if !ok || msg == nil {
			return []byte{}, nil
		}
		if s, ok := msg.(string); ok {
			return []byte(s), nil
		}
		return []byte(fmt.Sprint(msg)), nil
	}
	return nil, fmt.Errorf("unknown encoding %q", enc)
}

// Decode turns a payload into an event. JSON payloads must be objects; a
// missing timestamp is filled in with the current time.
func Decode(enc Encoding, schema event.LogSchema, data []byte) (event.Event, error) {
	schema = schema.WithDefaults()

	switch enc {
	case Text, "":
		return event.NewLog(schema, string(data)), nil
	case JSON:
		ev := event.New()
		if err := json.Unmarshal(data, &ev.Fields); err != nil {
			return event.Event{}, fmt.Errorf("invalid JSON payload: %w", err)
		}
		if ev.Fields == nil {
			return event.Event{}, fmt.Errorf("invalid JSON payload: not an object")
		}
		if _, ok := ev.Get(schema.TimestampKey); !ok {
			ev.Set(schema.TimestampKey, time.Now().UTC().Format(time.RFC3339Nano))
		}
		return ev, nil
	}
	return event.Event{}, fmt.Errorf("unknown encoding %q", enc)
}
