// Package topology runs the component graph built from a configuration and
// evolves it across reloads.
package topology

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jmountifield/vector/internal/config"
	"github.com/jmountifield/vector/internal/logger"
	"github.com/jmountifield/vector/internal/metrics"
	"github.com/jmountifield/vector/internal/runtime"
	"github.com/jmountifield/vector/internal/topology/builder"
	vectorerrors "github.com/jmountifield/vector/pkg/errors"
)

// ErrUnrecoverable means a reload left the topology in a state that cannot be
// trusted. The caller should shut down.
var ErrUnrecoverable = errors.New("topology is in an unrecoverable state")

// Options configure a running topology.
type Options struct {
	Runtime *runtime.Runtime
	Logger  *logger.Logger
	Metrics *metrics.Metrics
	// HealthcheckTimeout bounds each healthcheck. Zero means the default.
	HealthcheckTimeout time.Duration
	// ShutdownTimeout bounds how long retiring sources get to stop during a reload.
	ShutdownTimeout time.Duration
}

// DefaultShutdownTimeout is how long a retiring source may take to stop.
const DefaultShutdownTimeout = 5 * time.Second

type task struct {
	name   string
	role   config.Role
	in     *input
	handle *runtime.Handle
}

// RunningTopology is a started component graph.
type RunningTopology struct {
	rt      *runtime.Runtime
	log     *logger.Logger
	metrics *metrics.Metrics
	opts    Options

	ctx    context.Context
	cancel context.CancelFunc

	reloadMu sync.Mutex

	mu         sync.Mutex
	config     *config.Config
	generation string
	inputs     map[string]*input
	outputs    map[string]*fanout
	tasks      map[string]*task
	shutdowns  map[string]chan struct{}
	sources    map[string]struct{}
	retiring   []*runtime.Handle
	stopping   bool

	finished       chan struct{}
	finishedClosed bool

	crashes  chan error
	stopOnce sync.Once
	stopped  chan struct{}
}

// Start healthchecks the sinks, then spawns every piece. With requireHealthy
// a failed healthcheck aborts the start; otherwise healthchecks run in the
// background and only log.
func Start(ctx context.Context, opts Options, cfg *config.Config, diff *config.Diff, pieces *builder.Pieces, requireHealthy bool) (*RunningTopology, error) {
	if opts.Runtime == nil {
		return nil, errors.New("topology requires a runtime")
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = DefaultShutdownTimeout
	}

	tctx, cancel := context.WithCancel(opts.Runtime.Context())
	t := &RunningTopology{
		rt:        opts.Runtime,
		log:       opts.Logger,
		metrics:   opts.Metrics,
		opts:      opts,
		ctx:       tctx,
		cancel:    cancel,
		config:    config.Empty(),
		inputs:    make(map[string]*input),
		outputs:   make(map[string]*fanout),
		tasks:     make(map[string]*task),
		shutdowns: make(map[string]chan struct{}),
		sources:   make(map[string]struct{}),
		finished:  make(chan struct{}),
		crashes:   make(chan error, 1),
		stopped:   make(chan struct{}),
	}

	checks := builder.TakeHealthchecks(diff, pieces)
	if err := t.healthcheck(ctx, checks, requireHealthy); err != nil {
		cancel()
		return nil, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.generation = uuid.NewString()
	t.config = cfg
	t.spawnDiff(diff, pieces)
	t.connect(cfg)
	t.updateFinished()
	t.metrics.SetComponentsRunning(len(t.tasks))

	t.log.WithFields(map[string]any{"generation": t.generation, "components": len(t.tasks)}).Info("Topology started.")
	return t, nil
}

func (t *RunningTopology) healthcheck(ctx context.Context, checks []builder.NamedHealthcheck, required bool) error {
	if len(checks) == 0 {
		return nil
	}

	if required {
		_, err := runHealthchecks(ctx, t.rt, t.log, t.metrics, checks, t.opts.HealthcheckTimeout, true)
		return err
	}

	t.rt.Spawn("healthchecks", func(ctx context.Context) error {
		_, _ = runHealthchecks(ctx, t.rt, t.log, t.metrics, checks, t.opts.HealthcheckTimeout, false)
		return nil
	})
	return nil
}

// spawnDiff starts the tasks for every built piece. Consumers start before
// producers so nothing is emitted into an input nobody reads. Callers hold t.mu.
func (t *RunningTopology) spawnDiff(diff *config.Diff, pieces *builder.Pieces) {
	for _, name := range diff.Sinks.ChangedOrAdded() {
		piece := pieces.Sinks[name]
		in := newInput(name)
		t.inputs[name] = in
		t.spawnSink(piece, in)
	}

	for _, name := range diff.Transforms.ChangedOrAdded() {
		piece := pieces.Transforms[name]
		in := newInput(name)
		out := newFanout(name, t.metrics.EventsSent(name))
		t.inputs[name] = in
		t.outputs[name] = out
		t.spawnTransform(piece, in, out)
	}

	for _, name := range diff.Sources.ChangedOrAdded() {
		piece := pieces.Sources[name]
		out := newFanout(name, t.metrics.EventsSent(name))
		t.outputs[name] = out
		t.spawnSource(piece, out)
	}
}

func (t *RunningTopology) spawnSink(piece *builder.SinkPiece, in *input) {
	tk := &task{name: piece.Name, role: config.RoleSink, in: in}
	tk.handle = t.rt.SpawnWithContext(t.ctx, "sink:"+piece.Name, func(ctx context.Context) error {
		return piece.Sink.Run(ctx, in.ch)
	})
	t.tasks[piece.Name] = tk
	go t.reap(tk)
}

func (t *RunningTopology) spawnTransform(piece *builder.TransformPiece, in *input, out *fanout) {
	tk := &task{name: piece.Name, role: config.RoleTransform, in: in}
	tk.handle = t.rt.SpawnWithContext(t.ctx, "transform:"+piece.Name, func(ctx context.Context) error {
		defer out.close()

		for {
			select {
			case ev, ok := <-in.ch:
				if !ok {
					return nil
				}
				for _, result := range piece.Transform.Transform(ev) {
					if err := out.Emit(ctx, result); err != nil {
						return err
					}
				}
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	})
	t.tasks[piece.Name] = tk
	go t.reap(tk)
}

func (t *RunningTopology) spawnSource(piece *builder.SourcePiece, out *fanout) {
	shutdown := make(chan struct{})
	tk := &task{name: piece.Name, role: config.RoleSource}
	tk.handle = t.rt.SpawnWithContext(t.ctx, "source:"+piece.Name, func(ctx context.Context) error {
		defer out.close()
		return piece.Source.Run(ctx, shutdown, out)
	})
	t.tasks[piece.Name] = tk
	t.shutdowns[piece.Name] = shutdown
	t.sources[piece.Name] = struct{}{}
	go t.reap(tk)
}

// reap waits for a component task to return and decides whether its exit is
// a crash, a finished source or part of a shutdown.
func (t *RunningTopology) reap(tk *task) {
	res := tk.handle.Result()

	// Whatever the reason for the exit, nobody reads this input any more.
	// Draining it keeps upstream fanouts from blocking until it closes.
	if tk.in != nil {
		t.drain(tk)
	}

	t.mu.Lock()
	current := t.tasks[tk.name] == tk
	stopping := t.stopping
	if current {
		if tk.role == config.RoleSource {
			delete(t.sources, tk.name)
			t.updateFinished()
		}
	}
	t.mu.Unlock()

	log := t.log.Component(string(tk.role), tk.name)
	if !current || stopping || t.ctx.Err() != nil {
		if res.Err != nil && !res.Cancelled {
			log.Error(res.Err, "Component exited with an error while stopping.")
		}
		return
	}

	var err error
	switch {
	case res.Err != nil:
		err = res.Err
	case tk.role != config.RoleSource:
		err = errors.New("exited before its input was closed")
	default:
		log.Info("Source finished.")
		return
	}

	log.Error(err, "Component crashed.")
	t.metrics.RecordCrash(tk.name)

	select {
	case t.crashes <- vectorerrors.NewExecutionError(tk.name, err):
	default:
	}
}

func (t *RunningTopology) drain(tk *task) {
	in := tk.in
	t.rt.SpawnWithContext(t.ctx, "drain:"+tk.name, func(ctx context.Context) error {
		for {
			select {
			case _, ok := <-in.ch:
				if !ok {
					return nil
				}
			case <-ctx.Done():
				return nil
			}
		}
	})
}

// updateFinished closes the sources-finished signal once no source of the
// current generation is running. Callers hold t.mu.
func (t *RunningTopology) updateFinished() {
	if len(t.sources) > 0 {
		if t.finishedClosed {
			t.finished = make(chan struct{})
			t.finishedClosed = false
		}
		return
	}
	if !t.finishedClosed {
		t.finishedClosed = true
		close(t.finished)
	}
}

// connect wires every consumer of cfg to the fanouts of its inputs and
// detaches every edge cfg no longer has. Callers hold t.mu.
func (t *RunningTopology) connect(cfg *config.Config) {
	for producer, out := range t.outputs {
		for _, consumer := range out.targetNames() {
			if !consumes(cfg, consumer, producer) {
				out.detach(consumer)
			}
		}
	}

	for _, role := range []config.Role{config.RoleTransform, config.RoleSink} {
		for _, consumer := range cfg.Names(role) {
			in, ok := t.inputs[consumer]
			if !ok {
				continue
			}
			for _, producer := range cfg.Components(role)[consumer].Inputs {
				if out, ok := t.outputs[producer]; ok {
					out.set(consumer, in)
				}
			}
		}
	}
}

func consumes(cfg *config.Config, consumer, producer string) bool {
	def, ok := cfg.Transforms[consumer]
	if !ok {
		def, ok = cfg.Sinks[consumer]
	}
	if !ok {
		return false
	}
	for _, in := range def.Inputs {
		if in == producer {
			return true
		}
	}
	return false
}

// Stop shuts the topology down gracefully: sources are told to stop, every
// input is released so consumers drain, and the returned channel closes once
// every task, including ones retired by earlier reloads, has returned.
func (t *RunningTopology) Stop() <-chan struct{} {
	t.stopOnce.Do(func() {
		t.mu.Lock()
		t.stopping = true
		for name, ch := range t.shutdowns {
			close(ch)
			delete(t.shutdowns, name)
		}
		for name, in := range t.inputs {
			in.release()
			delete(t.inputs, name)
		}
		handles := make([]*runtime.Handle, 0, len(t.tasks)+len(t.retiring))
		for _, tk := range t.tasks {
			handles = append(handles, tk.handle)
		}
		handles = append(handles, t.retiring...)
		t.mu.Unlock()

		t.log.Info("Stopping topology.")
		go func() {
			for _, h := range handles {
				<-h.Done()
			}
			close(t.stopped)
		}()
	})
	return t.stopped
}

// Abort cancels every component without waiting for anything.
func (t *RunningTopology) Abort() {
	t.mu.Lock()
	t.stopping = true
	t.mu.Unlock()
	t.cancel()
}

// Crashes delivers an error when a component fails while running.
func (t *RunningTopology) Crashes() <-chan error {
	return t.crashes
}

// SourcesFinished is closed once every source of the current generation has
// returned on its own. Callers should fetch it again after a reload.
func (t *RunningTopology) SourcesFinished() <-chan struct{} {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.finished
}

// Running lists the components of the current generation, sorted.
func (t *RunningTopology) Running() []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	names := make([]string, 0, len(t.tasks))
	for name := range t.tasks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Config returns the configuration the topology currently runs.
func (t *RunningTopology) Config() *config.Config {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.config
}

// Generation identifies the configuration generation currently running.
func (t *RunningTopology) Generation() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.generation
}

func (t *RunningTopology) String() string {
	return fmt.Sprintf("topology(%s)", t.Generation())
}
