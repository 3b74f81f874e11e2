package event

import (
	"errors"
	"sync"
)

// ErrAlreadySet is returned when the global log schema is written twice.
var ErrAlreadySet = errors.New("log schema already set")

// LogSchema names the well-known fields of a log event.
type LogSchema struct {
	MessageKey   string `yaml:"message_key,omitempty" json:"message_key,omitempty"`
	TimestampKey string `yaml:"timestamp_key,omitempty" json:"timestamp_key,omitempty"`
	HostKey      string `yaml:"host_key,omitempty" json:"host_key,omitempty"`
}

// DefaultLogSchema returns the schema used when the configuration sets none.
func DefaultLogSchema() LogSchema {
	return LogSchema{
		MessageKey:   "message",
		TimestampKey: "timestamp",
		HostKey:      "host",
	}
}

// WithDefaults fills unset keys from DefaultLogSchema.
func (s LogSchema) WithDefaults() LogSchema {
	def := DefaultLogSchema()
	if s.MessageKey == "" {
		s.MessageKey = def.MessageKey
	}
	if s.TimestampKey == "" {
		s.TimestampKey = def.TimestampKey
	}
	if s.HostKey == "" {
		s.HostKey = def.HostKey
	}
	return s
}

// IsZero reports whether no key has been configured.
func (s LogSchema) IsZero() bool {
	return s == LogSchema{}
}

// SchemaCell holds a log schema that may be written exactly once.
type SchemaCell struct {
	mu    sync.RWMutex
	set   bool
	value LogSchema
}

// Set stores schema. Every call after the first fails with ErrAlreadySet and
// leaves the stored value untouched.
func (c *SchemaCell) Set(schema LogSchema) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.set {
		return ErrAlreadySet
	}
	c.set = true
	c.value = schema
	return nil
}

// Get returns the stored schema, or the default schema when nothing was set.
func (c *SchemaCell) Get() LogSchema {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.set {
		return DefaultLogSchema()
	}
	return c.value
}

// IsSet reports whether the cell has been written.
func (c *SchemaCell) IsSet() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.set
}

var global SchemaCell

// GlobalSchemaCell exposes the process-wide cell.
func GlobalSchemaCell() *SchemaCell {
	return &global
}
