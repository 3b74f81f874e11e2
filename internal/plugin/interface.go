package plugin

import (
	"context"

	"github.com/jmountifield/vector/internal/config"
	"github.com/jmountifield/vector/internal/event"
	"github.com/jmountifield/vector/internal/logger"
)

// Output receives events produced by a source or transform. Emit blocks
// while downstream components are busy.
type Output interface {
	Emit(ctx context.Context, ev event.Event) error
}

// Source produces events until shutdown is closed, then returns nil. A
// cancelled ctx means the process is aborting and the source should return
// as soon as possible.
type Source interface {
	Run(ctx context.Context, shutdown <-chan struct{}, out Output) error
}

// Transform maps one event to zero or more events. Implementations must not
// retain the input event.
type Transform interface {
	Transform(ev event.Event) []event.Event
}

// Sink consumes events until in is closed.
type Sink interface {
	Run(ctx context.Context, in <-chan event.Event) error
}

// Healthcheck verifies that a sink's downstream system is reachable. It must
// not touch the running pipeline.
type Healthcheck func(ctx context.Context) error

// BuildContext carries what every component may depend on at build time.
type BuildContext struct {
	Name      string
	LogSchema event.LogSchema
	DataDir   string
	Logger    *logger.Logger
}

// SourceFactory builds a source from its definition.
type SourceFactory func(bc BuildContext, def config.ComponentConfig) (Source, error)

// TransformFactory builds a transform from its definition.
type TransformFactory func(bc BuildContext, def config.ComponentConfig) (Transform, error)

// SinkFactory builds a sink and its healthcheck. A nil healthcheck means the
// sink has nothing to verify.
type SinkFactory func(bc BuildContext, def config.ComponentConfig) (Sink, Healthcheck, error)

// TransformFunc adapts an ordinary function to Transform.
type TransformFunc func(ev event.Event) []event.Event

// Transform calls f(ev).
func (f TransformFunc) Transform(ev event.Event) []event.Event {
	return f(ev)
}
