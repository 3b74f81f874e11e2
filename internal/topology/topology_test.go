package topology

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jmountifield/vector/internal/config"
	"github.com/jmountifield/vector/internal/event"
	"github.com/jmountifield/vector/internal/logger"
	"github.com/jmountifield/vector/internal/plugin"
	"github.com/jmountifield/vector/internal/topology/builder"
	vectorerrors "github.com/jmountifield/vector/pkg/errors"
)

type collector struct {
	mu       sync.Mutex
	messages []string
}

func (c *collector) add(msg string) {
	c.mu.Lock()
	c.messages = append(c.messages, msg)
	c.mu.Unlock()
}

func (c *collector) snapshot() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.messages...)
}

func (c *collector) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.messages)
}

var (
	collectorsMu sync.Mutex
	collectors   = map[string]*collector{}
)

func collectorFor(id string) *collector {
	collectorsMu.Lock()
	defer collectorsMu.Unlock()
	c, ok := collectors[id]
	if !ok {
		c = &collector{}
		collectors[id] = c
	}
	return c
}

type countSource struct {
	count   int
	hold    bool
	message string
}

func (s countSource) Run(ctx context.Context, shutdown <-chan struct{}, out plugin.Output) error {
	for i := 0; s.count < 0 || i < s.count; i++ {
		select {
		case <-shutdown:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		ev := event.New()
		ev.Set("message", s.message)
		if err := out.Emit(ctx, ev); err != nil {
			return err
		}
		if s.count < 0 {
			time.Sleep(time.Millisecond)
		}
	}
	if !s.hold {
		return nil
	}
	select {
	case <-shutdown:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type collectSink struct {
	c         *collector
	failAfter int
}

func (s collectSink) Run(ctx context.Context, in <-chan event.Event) error {
	n := 0
	for {
		select {
		case ev, ok := <-in:
			if !ok {
				return nil
			}
			s.c.add(fmt.Sprint(ev.Fields["message"]))
			n++
			if s.failAfter > 0 && n >= s.failAfter {
				return errors.New("sink failure")
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

type sourceOptions struct {
	Count   int    `yaml:"count"`
	Hold    bool   `yaml:"hold"`
	Message string `yaml:"message"`
}

type sinkOptions struct {
	ID        string `yaml:"id" validate:"required"`
	Healthy   *bool  `yaml:"healthy"`
	FailAfter int    `yaml:"fail_after"`
}

func init() {
	must := func(err error) {
		if err != nil {
			panic(err)
		}
	}
	must(plugin.RegisterSource("topo_count", func(bc plugin.BuildContext, def config.ComponentConfig) (plugin.Source, error) {
		var opts sourceOptions
		if err := config.DecodeOptions(def.Options, &opts); err != nil {
			return nil, err
		}
		return countSource{count: opts.Count, hold: opts.Hold, message: opts.Message}, nil
	}))
	must(plugin.RegisterTransform("topo_upper", func(bc plugin.BuildContext, def config.ComponentConfig) (plugin.Transform, error) {
		return plugin.TransformFunc(func(ev event.Event) []event.Event {
			ev.Set("message", strings.ToUpper(fmt.Sprint(ev.Fields["message"])))
			return []event.Event{ev}
		}), nil
	}))
	must(plugin.RegisterSink("topo_collect", func(bc plugin.BuildContext, def config.ComponentConfig) (plugin.Sink, plugin.Healthcheck, error) {
		var opts sinkOptions
		if err := config.DecodeOptions(def.Options, &opts); err != nil {
			return nil, nil, err
		}
		hc := func(ctx context.Context) error {
			if opts.Healthy != nil && !*opts.Healthy {
				return errors.New("unhealthy")
			}
			return nil
		}
		return collectSink{c: collectorFor(opts.ID), failAfter: opts.FailAfter}, hc, nil
	}))
}

func loadConfig(t *testing.T, doc string) *config.Config {
	t.Helper()
	cfg, errs := config.Load(strings.NewReader(doc))
	require.Empty(t, errs)
	return cfg
}

func startTopology(t *testing.T, doc string, requireHealthy bool) (*RunningTopology, error) {
	t.Helper()

	cfg := loadConfig(t, doc)
	diff := config.InitialDiff(cfg)
	pieces, _, errs := builder.Validate(plugin.BuildContext{Logger: logger.Nop()}, cfg, diff)
	require.Empty(t, errs)

	opts := Options{Runtime: testRuntime(t), Logger: logger.Nop(), HealthcheckTimeout: time.Second}
	return Start(context.Background(), opts, cfg, diff, pieces, requireHealthy)
}

func stopWithin(t *testing.T, topo *RunningTopology, d time.Duration) {
	t.Helper()
	select {
	case <-topo.Stop():
	case <-time.After(d):
		t.Fatal("topology did not stop in time")
	}
}

func TestStartDeliversEventsAndStops(t *testing.T) {
	t.Parallel()

	topo, err := startTopology(t, `
sources:
  in: {type: topo_count, count: 3, hold: true, message: hi}
transforms:
  upper: {type: topo_upper, inputs: [in]}
sinks:
  out: {type: topo_collect, inputs: [upper], id: start_stop}
`, true)
	require.NoError(t, err)
	require.Equal(t, []string{"in", "out", "upper"}, topo.Running())
	require.NotEmpty(t, topo.Generation())

	c := collectorFor("start_stop")
	require.Eventually(t, func() bool { return c.count() == 3 }, 2*time.Second, 5*time.Millisecond)

	stopWithin(t, topo, 2*time.Second)
	require.Equal(t, []string{"HI", "HI", "HI"}, c.snapshot())
}

func TestSourcesFinishedSignal(t *testing.T) {
	t.Parallel()

	topo, err := startTopology(t, `
sources:
  in: {type: topo_count, count: 2}
sinks:
  out: {type: topo_collect, inputs: [in], id: finished}
`, false)
	require.NoError(t, err)

	select {
	case <-topo.SourcesFinished():
	case <-time.After(2 * time.Second):
		t.Fatal("sources did not finish")
	}
	stopWithin(t, topo, 2*time.Second)
	require.Equal(t, 2, collectorFor("finished").count())
}

func TestNoSourcesFinishesImmediately(t *testing.T) {
	t.Parallel()

	topo, err := startTopology(t, "", false)
	require.NoError(t, err)

	select {
	case <-topo.SourcesFinished():
	default:
		t.Fatal("expected sources-finished to be closed")
	}
	stopWithin(t, topo, time.Second)
}

func TestRequireHealthyFailsStart(t *testing.T) {
	t.Parallel()

	doc := `
sources:
  in: {type: topo_count, count: 1}
sinks:
  out: {type: topo_collect, inputs: [in], id: unhealthy, healthy: false}
`
	_, err := startTopology(t, doc, true)
	require.Error(t, err)

	topo, err := startTopology(t, doc, false)
	require.NoError(t, err)
	stopWithin(t, topo, 2*time.Second)
}

func TestCrashIsReported(t *testing.T) {
	t.Parallel()

	topo, err := startTopology(t, `
sources:
  in: {type: topo_count, count: -1}
sinks:
  fragile: {type: topo_collect, inputs: [in], id: crash, fail_after: 1}
`, false)
	require.NoError(t, err)

	select {
	case err := <-topo.Crashes():
		var execErr *vectorerrors.ExecutionError
		require.ErrorAs(t, err, &execErr)
		require.Equal(t, "fragile", execErr.Component)
	case <-time.After(2 * time.Second):
		t.Fatal("crash was not reported")
	}

	// The crashed sink's input is drained, so the source keeps running and
	// the topology still stops cleanly.
	stopWithin(t, topo, 2*time.Second)
}

func TestAbortDoesNotBlock(t *testing.T) {
	t.Parallel()

	topo, err := startTopology(t, `
sources:
  in: {type: topo_count, count: -1}
sinks:
  out: {type: topo_collect, inputs: [in], id: abort}
`, false)
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		topo.Abort()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("abort blocked")
	}
	stopWithin(t, topo, 2*time.Second)
}

const reloadBase = `
sources:
  in: {type: topo_count, count: -1, message: base}
sinks:
  out: {type: topo_collect, inputs: [in], id: %s}
`

func TestReloadSameConfigIsIdempotent(t *testing.T) {
	t.Parallel()

	doc := fmt.Sprintf(reloadBase, "idempotent")
	topo, err := startTopology(t, doc, false)
	require.NoError(t, err)
	defer stopWithin(t, topo, 2*time.Second)

	before := topo.Running()
	ok, err := topo.ReloadConfigAndRespawn(context.Background(), loadConfig(t, doc), false)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, before, topo.Running())

	c := collectorFor("idempotent")
	seen := c.count()
	require.Eventually(t, func() bool { return c.count() > seen }, 2*time.Second, 5*time.Millisecond)
}

func TestRejectedReloadLeavesTopologyUntouched(t *testing.T) {
	t.Parallel()

	topo, err := startTopology(t, fmt.Sprintf(reloadBase, "rejected"), false)
	require.NoError(t, err)
	defer stopWithin(t, topo, 2*time.Second)

	running := topo.Running()
	cfg := topo.Config()
	generation := topo.Generation()

	for _, doc := range []string{
		"sources:\n  in: {type: topo_count}\nsinks:\n  out: {type: no_such_sink, inputs: [in]}\n",
		"sources:\n  in: {type: topo_count}\nsinks:\n  out: {type: topo_collect, inputs: [missing], id: x}\n",
		"sources:\n  in: {type: topo_count}\nsinks:\n  out: {type: topo_collect, inputs: [in], id: x, healthy: false}\n",
		"data_dir: /somewhere/else\nsources:\n  in: {type: topo_count}\nsinks:\n  out: {type: topo_collect, inputs: [in], id: x}\n",
	} {
		ok, err := topo.ReloadConfigAndRespawn(context.Background(), loadConfig(t, doc), true)
		require.NoError(t, err)
		require.False(t, ok)
		require.Equal(t, running, topo.Running())
		require.Same(t, cfg, topo.Config())
		require.Equal(t, generation, topo.Generation())
	}

	c := collectorFor("rejected")
	seen := c.count()
	require.Eventually(t, func() bool { return c.count() > seen }, 2*time.Second, 5*time.Millisecond)
}

func TestReloadReplacesChangedSink(t *testing.T) {
	t.Parallel()

	topo, err := startTopology(t, fmt.Sprintf(reloadBase, "before_reload"), false)
	require.NoError(t, err)
	defer stopWithin(t, topo, 2*time.Second)

	before := collectorFor("before_reload")
	require.Eventually(t, func() bool { return before.count() > 0 }, 2*time.Second, 5*time.Millisecond)

	ok, err := topo.ReloadConfigAndRespawn(context.Background(), loadConfig(t, fmt.Sprintf(reloadBase, "after_reload")), false)
	require.NoError(t, err)
	require.True(t, ok)

	after := collectorFor("after_reload")
	require.Eventually(t, func() bool { return after.count() > 0 }, 2*time.Second, 5*time.Millisecond)

	time.Sleep(20 * time.Millisecond)
	frozen := before.count()
	time.Sleep(50 * time.Millisecond)
	require.Equal(t, frozen, before.count())
}

func TestReloadAddsAndRemovesComponents(t *testing.T) {
	t.Parallel()

	topo, err := startTopology(t, fmt.Sprintf(reloadBase, "add_remove"), false)
	require.NoError(t, err)
	defer stopWithin(t, topo, 2*time.Second)

	ok, err := topo.ReloadConfigAndRespawn(context.Background(), loadConfig(t, `
sources:
  other: {type: topo_count, count: -1, message: other}
transforms:
  upper: {type: topo_upper, inputs: [other]}
sinks:
  out: {type: topo_collect, inputs: [upper], id: add_remove_new}
`), false)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []string{"other", "out", "upper"}, topo.Running())

	c := collectorFor("add_remove_new")
	require.Eventually(t, func() bool {
		msgs := c.snapshot()
		return len(msgs) > 0 && msgs[len(msgs)-1] == "OTHER"
	}, 2*time.Second, 5*time.Millisecond)
}
