// Package plugintest holds helpers shared by component tests.
package plugintest

import (
	"context"
	"sync"

	"github.com/jmountifield/vector/internal/config"
	"github.com/jmountifield/vector/internal/event"
	"github.com/jmountifield/vector/internal/logger"
	"github.com/jmountifield/vector/internal/plugin"
)

// Output records every emitted event.
type Output struct {
	mu     sync.Mutex
	events []event.Event
}

// Emit stores ev unless ctx is done.
func (o *Output) Emit(ctx context.Context, ev event.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.events = append(o.events, ev)
	return nil
}

// Events returns a copy of what has been emitted so far.
func (o *Output) Events() []event.Event {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]event.Event(nil), o.events...)
}

// Len reports how many events were emitted.
func (o *Output) Len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.events)
}

// BuildContext returns a context with default schema and a silent logger.
func BuildContext(name string) plugin.BuildContext {
	return plugin.BuildContext{Name: name, LogSchema: event.DefaultLogSchema(), Logger: logger.Nop()}
}

// Component builds a definition from a type and inline options.
func Component(typ string, options map[string]any, inputs ...string) config.ComponentConfig {
	return config.ComponentConfig{Type: typ, Inputs: inputs, Options: options}
}

// Feed returns a closed channel holding evs, ready for a sink's Run.
func Feed(evs ...event.Event) <-chan event.Event {
	ch := make(chan event.Event, len(evs))
	for _, ev := range evs {
		ch <- ev
	}
	close(ch)
	return ch
}

// Message builds an event with only a message field.
func Message(msg string) event.Event {
	ev := event.New()
	ev.Set("message", msg)
	return ev
}
