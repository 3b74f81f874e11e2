// Package supervisor owns a running topology for the lifetime of the process.
// It reacts to control events by reloading configuration or shutting down.
package supervisor

import (
	"context"
	"time"

	"github.com/jmountifield/vector/internal/config"
	"github.com/jmountifield/vector/internal/logger"
	"github.com/jmountifield/vector/internal/metrics"
	"github.com/jmountifield/vector/internal/signals"
)

// State is a supervisor lifecycle state.
type State int

const (
	Running State = iota
	Reloading
	GracefulShutdown
	ImmediateShutdown
	Terminated
)

func (s State) String() string {
	switch s {
	case Running:
		return "running"
	case Reloading:
		return "reloading"
	case GracefulShutdown:
		return "graceful_shutdown"
	case ImmediateShutdown:
		return "immediate_shutdown"
	case Terminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// Topology is the part of a running topology the supervisor drives.
type Topology interface {
	ReloadConfigAndRespawn(ctx context.Context, cfg *config.Config, requireHealthy bool) (bool, error)
	Stop() <-chan struct{}
	Abort()
	Crashes() <-chan error
	SourcesFinished() <-chan struct{}
}

// LoadFunc reads, merges and expands the configuration at paths.
type LoadFunc func(ctx context.Context, paths []string) (*config.Config, []error)

// Options configure a Supervisor.
type Options struct {
	Topology Topology
	// Signals delivers operator control events. Nil means none.
	Signals signals.Source
	// Reloads fires when the configuration watcher sees a change.
	Reloads        <-chan struct{}
	Load           LoadFunc
	Paths          []string
	RequireHealthy bool
	// Shutdown tears down the executor once the topology is gone. It reports
	// whether every task exited within the timeout.
	Shutdown        func(timeout time.Duration) bool
	ShutdownTimeout time.Duration
	Logger          *logger.Logger
	Metrics         *metrics.Metrics
	// OnTransition observes every state change.
	OnTransition func(from, to State)
}

// DefaultShutdownTimeout bounds the executor shutdown after termination.
const DefaultShutdownTimeout = 10 * time.Second

// Outcome summarises a finished Run.
type Outcome struct {
	// Shutdown is GracefulShutdown or ImmediateShutdown.
	Shutdown        State
	Reloads         int
	RejectedReloads int
}

// Origins of control events.
const (
	OriginSignal          = "signal"
	OriginWatcher         = "watcher"
	OriginCrash           = "crash"
	OriginSourcesFinished = "sources_finished"
	OriginContext         = "context"
)

type control struct {
	kind   signals.Kind
	origin string
}

// Supervisor is the process-level state machine around a topology.
type Supervisor struct {
	opts  Options
	log   *logger.Logger
	state State
}

// New returns a supervisor in the Running state.
func New(opts Options) *Supervisor {
	if opts.Load == nil {
		opts.Load = config.ReadConfigs
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = DefaultShutdownTimeout
	}
	return &Supervisor{opts: opts, log: opts.Logger, state: Running}
}

// State reports the current state. It is only meaningful from the goroutine
// calling Run or from OnTransition.
func (s *Supervisor) State() State {
	return s.state
}

// Run processes control events until the topology is gone. Cancelling ctx
// counts as an Interrupt.
func (s *Supervisor) Run(ctx context.Context) Outcome {
	var out Outcome

	for s.state == Running {
		c := s.next(ctx)
		s.opts.Metrics.RecordControlEvent(c.kind.String(), c.origin)
		s.log.WithFields(map[string]any{"event": c.kind.String(), "origin": c.origin}).Debug("Control event received.")

		switch c.kind {
		case signals.Reload:
			accepted, ok := s.reload(ctx)
			if !ok {
				s.shutdownGracefully()
				break
			}
			if accepted {
				out.Reloads++
			} else {
				out.RejectedReloads++
			}
		case signals.Interrupt, signals.Terminate:
			s.shutdownGracefully()
		case signals.QuitNow:
			s.shutdownImmediately()
		}
	}

	out.Shutdown = s.state
	s.terminate()
	return out
}

// next waits for the first of the operator signals, the watcher, a crash,
// the sources finishing or ctx. Everything but operator signals is turned
// into a synthetic control event.
func (s *Supervisor) next(ctx context.Context) control {
	var events <-chan signals.Kind
	if s.opts.Signals != nil {
		events = s.opts.Signals.Events()
	}

	select {
	case kind := <-events:
		return control{kind: kind, origin: OriginSignal}
	case <-s.opts.Reloads:
		return control{kind: signals.Reload, origin: OriginWatcher}
	case err := <-s.opts.Topology.Crashes():
		s.log.Error(err, "A component crashed; shutting down.")
		return control{kind: signals.Interrupt, origin: OriginCrash}
	case <-s.opts.Topology.SourcesFinished():
		s.log.Info("All sources have finished.")
		return control{kind: signals.Interrupt, origin: OriginSourcesFinished}
	case <-ctx.Done():
		return control{kind: signals.Interrupt, origin: OriginContext}
	}
}

// reload re-reads the configuration and hands it to the topology. accepted
// reports whether the new configuration now runs. ok is false when the
// topology cannot continue.
func (s *Supervisor) reload(ctx context.Context) (accepted, ok bool) {
	s.transition(Reloading)
	s.log.WithFields(map[string]any{"path": s.opts.Paths}).Info("Reloading configs.")

	cfg, errs := s.opts.Load(ctx, s.opts.Paths)
	if len(errs) > 0 {
		for _, err := range errs {
			s.log.Error(err, "Configuration error.")
		}
		s.log.Error(nil, "Reload aborted.")
		s.opts.Metrics.RecordReload("aborted")
		s.transition(Running)
		return false, true
	}

	accepted, err := s.opts.Topology.ReloadConfigAndRespawn(ctx, cfg, s.opts.RequireHealthy)
	if err != nil {
		s.log.Error(err, "Reload left the topology unrecoverable.")
		return false, false
	}
	if !accepted {
		s.log.Error(nil, "Reload was not successful.")
	}
	s.transition(Running)
	return accepted, true
}

// shutdownGracefully drains the topology. Any operator signal arriving
// before the drain completes turns it into an immediate shutdown.
func (s *Supervisor) shutdownGracefully() {
	s.transition(GracefulShutdown)
	s.log.Info("Shutting down.")

	var events <-chan signals.Kind
	if s.opts.Signals != nil {
		events = s.opts.Signals.Events()
	}

	select {
	case <-s.opts.Topology.Stop():
	case kind := <-events:
		s.opts.Metrics.RecordControlEvent(kind.String(), OriginSignal)
		s.shutdownImmediately()
	}
}

func (s *Supervisor) shutdownImmediately() {
	s.transition(ImmediateShutdown)
	s.log.Info("Shutting down immediately.")
	s.opts.Topology.Abort()
}

func (s *Supervisor) terminate() {
	s.transition(Terminated)
	if s.opts.Signals != nil {
		s.opts.Signals.Stop()
	}
	if s.opts.Shutdown == nil {
		return
	}
	if !s.opts.Shutdown(s.opts.ShutdownTimeout) {
		s.log.Warn("Some component tasks did not exit before the runtime shut down.")
	}
}

func (s *Supervisor) transition(to State) {
	from := s.state
	if from == to {
		return
	}
	s.state = to
	s.log.WithFields(map[string]any{"from": from.String(), "to": to.String()}).Debug("Supervisor state changed.")
	if s.opts.OnTransition != nil {
		s.opts.OnTransition(from, to)
	}
}
