package supervisor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jmountifield/vector/internal/config"
	"github.com/jmountifield/vector/internal/logger"
	"github.com/jmountifield/vector/internal/signals"
)

type fakeSignals struct {
	events  chan signals.Kind
	stopped bool
}

func newFakeSignals(kinds ...signals.Kind) *fakeSignals {
	s := &fakeSignals{events: make(chan signals.Kind, 8)}
	for _, k := range kinds {
		s.events <- k
	}
	return s
}

func (s *fakeSignals) Events() <-chan signals.Kind { return s.events }
func (s *fakeSignals) Stop()                       { s.stopped = true }

type fakeTopology struct {
	mu       sync.Mutex
	reloads  []*config.Config
	accept   bool
	err      error
	stopped  chan struct{}
	stops    int
	aborted  bool
	crashes  chan error
	finished chan struct{}
}

func newFakeTopology() *fakeTopology {
	stopped := make(chan struct{})
	close(stopped)
	return &fakeTopology{
		accept:   true,
		stopped:  stopped,
		crashes:  make(chan error, 1),
		finished: make(chan struct{}),
	}
}

func (f *fakeTopology) ReloadConfigAndRespawn(ctx context.Context, cfg *config.Config, requireHealthy bool) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reloads = append(f.reloads, cfg)
	return f.accept && f.err == nil, f.err
}

func (f *fakeTopology) Stop() <-chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops++
	return f.stopped
}

func (f *fakeTopology) Abort() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.aborted = true
}

func (f *fakeTopology) Crashes() <-chan error            { return f.crashes }
func (f *fakeTopology) SourcesFinished() <-chan struct{} { return f.finished }

func loadOK(ctx context.Context, paths []string) (*config.Config, []error) {
	return config.Empty(), nil
}

type recorder struct {
	states []State
}

func (r *recorder) observe(from, to State) {
	if len(r.states) == 0 {
		r.states = append(r.states, from)
	}
	r.states = append(r.states, to)
}

func run(t *testing.T, opts Options) (Outcome, []State) {
	t.Helper()

	rec := &recorder{}
	opts.OnTransition = rec.observe
	opts.Logger = logger.Nop()
	if opts.Load == nil {
		opts.Load = loadOK
	}

	done := make(chan Outcome, 1)
	go func() { done <- New(opts).Run(context.Background()) }()

	select {
	case out := <-done:
		return out, rec.states
	case <-time.After(2 * time.Second):
		t.Fatal("supervisor did not terminate")
		return Outcome{}, nil
	}
}

func TestRejectedReloadKeepsRunning(t *testing.T) {
	t.Parallel()

	topo := newFakeTopology()
	topo.accept = false
	sigs := newFakeSignals(signals.Reload, signals.Interrupt)

	out, states := run(t, Options{Topology: topo, Signals: sigs})

	require.Equal(t, Outcome{Shutdown: GracefulShutdown, RejectedReloads: 1}, out)
	require.Equal(t, []State{Running, Reloading, Running, GracefulShutdown, Terminated}, states)
	require.Len(t, topo.reloads, 1)
	require.False(t, topo.aborted)
	require.True(t, sigs.stopped)
}

func TestAcceptedReloadUsesCurrentPaths(t *testing.T) {
	t.Parallel()

	var gotPaths []string
	load := func(ctx context.Context, paths []string) (*config.Config, []error) {
		gotPaths = paths
		return config.Empty(), nil
	}
	topo := newFakeTopology()

	out, _ := run(t, Options{
		Topology: topo,
		Signals:  newFakeSignals(signals.Reload, signals.Terminate),
		Load:     load,
		Paths:    []string{"/etc/vector/a.yaml"},
	})

	require.Equal(t, 1, out.Reloads)
	require.Equal(t, []string{"/etc/vector/a.yaml"}, gotPaths)
}

func TestReparseFailureAbortsReload(t *testing.T) {
	t.Parallel()

	load := func(ctx context.Context, paths []string) (*config.Config, []error) {
		return nil, []error{errors.New("broken file")}
	}
	topo := newFakeTopology()

	out, states := run(t, Options{
		Topology: topo,
		Signals:  newFakeSignals(signals.Reload, signals.Interrupt),
		Load:     load,
	})

	require.Empty(t, topo.reloads)
	require.Equal(t, Outcome{Shutdown: GracefulShutdown}, out)
	require.Equal(t, []State{Running, Reloading, Running, GracefulShutdown, Terminated}, states)
}

func TestUnrecoverableReloadShutsDownGracefully(t *testing.T) {
	t.Parallel()

	topo := newFakeTopology()
	topo.err = errors.New("unrecoverable")

	out, states := run(t, Options{Topology: topo, Signals: newFakeSignals(signals.Reload)})

	require.Equal(t, GracefulShutdown, out.Shutdown)
	require.Equal(t, []State{Running, Reloading, GracefulShutdown, Terminated}, states)
	require.Equal(t, 1, topo.stops)
}

func TestDoubleInterruptDuringSlowDrain(t *testing.T) {
	t.Parallel()

	topo := newFakeTopology()
	topo.stopped = make(chan struct{})

	out, states := run(t, Options{
		Topology: topo,
		Signals:  newFakeSignals(signals.Interrupt, signals.Interrupt),
	})

	require.Equal(t, ImmediateShutdown, out.Shutdown)
	require.Equal(t, []State{Running, GracefulShutdown, ImmediateShutdown, Terminated}, states)
	require.True(t, topo.aborted)
}

func TestQuitShutsDownImmediately(t *testing.T) {
	t.Parallel()

	topo := newFakeTopology()
	out, _ := run(t, Options{Topology: topo, Signals: newFakeSignals(signals.QuitNow)})

	require.Equal(t, ImmediateShutdown, out.Shutdown)
	require.True(t, topo.aborted)
	require.Zero(t, topo.stops)
}

func TestCrashTriggersGracefulShutdown(t *testing.T) {
	t.Parallel()

	topo := newFakeTopology()
	topo.crashes <- errors.New("sink died")

	out, _ := run(t, Options{Topology: topo})

	require.Equal(t, GracefulShutdown, out.Shutdown)
	require.Equal(t, 1, topo.stops)
	require.False(t, topo.aborted)
}

func TestSourcesFinishedTriggersGracefulShutdown(t *testing.T) {
	t.Parallel()

	topo := newFakeTopology()
	close(topo.finished)

	out, _ := run(t, Options{Topology: topo})
	require.Equal(t, GracefulShutdown, out.Shutdown)
}

func TestWatcherTriggersReload(t *testing.T) {
	t.Parallel()

	topo := newFakeTopology()
	reloads := make(chan struct{}, 1)
	reloads <- struct{}{}
	sigs := newFakeSignals()

	done := make(chan Outcome, 1)
	go func() {
		done <- New(Options{
			Topology: topo,
			Signals:  sigs,
			Reloads:  reloads,
			Load:     loadOK,
			Logger:   logger.Nop(),
		}).Run(context.Background())
	}()

	require.Eventually(t, func() bool {
		topo.mu.Lock()
		defer topo.mu.Unlock()
		return len(topo.reloads) == 1
	}, 2*time.Second, 5*time.Millisecond)

	sigs.events <- signals.Interrupt
	select {
	case out := <-done:
		require.Equal(t, 1, out.Reloads)
	case <-time.After(2 * time.Second):
		t.Fatal("supervisor did not terminate")
	}
}

func TestContextCancelActsAsInterrupt(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out := New(Options{Topology: newFakeTopology(), Logger: logger.Nop()}).Run(ctx)
	require.Equal(t, GracefulShutdown, out.Shutdown)
}

func TestTerminationShutsDownRuntime(t *testing.T) {
	t.Parallel()

	var timeout time.Duration
	shutdown := func(d time.Duration) bool {
		timeout = d
		return true
	}

	run(t, Options{
		Topology:        newFakeTopology(),
		Signals:         newFakeSignals(signals.Terminate),
		Shutdown:        shutdown,
		ShutdownTimeout: 3 * time.Second,
	})
	require.Equal(t, 3*time.Second, timeout)
}
