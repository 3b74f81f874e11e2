// Package generatorplugin provides a source that emits synthetic log lines.
package generatorplugin

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/jmountifield/vector/internal/config"
	"github.com/jmountifield/vector/internal/event"
	"github.com/jmountifield/vector/internal/plugin"
)

// Options configure the generator source.
type Options struct {
	Lines []string `yaml:"lines" validate:"required,min=1"`
	// Count stops the source after this many events. Zero means forever.
	Count int `yaml:"count" validate:"gte=0"`
	// Rate is events per second. Zero means as fast as downstream allows.
	Rate     float64       `yaml:"rate" validate:"gte=0"`
	Sequence bool          `yaml:"sequence"`
	Interval time.Duration `yaml:"interval" validate:"gte=0"`
}

type generator struct {
	opts    Options
	schema  event.LogSchema
	limiter *rate.Limiter
}

func init() {
	if err := plugin.RegisterSource("generator", New); err != nil {
		panic(err)
	}
}

// New builds a generator source.
func New(bc plugin.BuildContext, def config.ComponentConfig) (plugin.Source, error) {
	var opts Options
	if err := config.DecodeOptions(def.Options, &opts); err != nil {
		return nil, err
	}

	g := &generator{opts: opts, schema: bc.LogSchema.WithDefaults()}
	switch {
	case opts.Rate > 0:
		g.limiter = rate.NewLimiter(rate.Limit(opts.Rate), 1)
	case opts.Interval > 0:
		g.limiter = rate.NewLimiter(rate.Every(opts.Interval), 1)
	}
	return g, nil
}

func (g *generator) Run(ctx context.Context, shutdown <-chan struct{}, out plugin.Output) error {
	// Waits on the limiter end at shutdown as well as on abort.
	waitCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-shutdown:
			cancel()
		case <-waitCtx.Done():
		}
	}()

	for n := 0; g.opts.Count == 0 || n < g.opts.Count; n++ {
		select {
		case <-shutdown:
			return nil
		default:
		}

		if g.limiter != nil {
			if err := g.limiter.Wait(waitCtx); err != nil {
				return stopErr(ctx, shutdown)
			}
		}

		line := g.opts.Lines[n%len(g.opts.Lines)]
		if g.opts.Sequence {
			line = fmt.Sprintf("%d %s", n, line)
		}
		ev := event.NewLog(g.schema, line)
		ev.Set("id", uuid.NewString())

		if err := out.Emit(waitCtx, ev); err != nil {
			return stopErr(ctx, shutdown)
		}
	}
	return nil
}

// stopErr maps an interrupted wait to the reason the source is stopping.
func stopErr(ctx context.Context, shutdown <-chan struct{}) error {
	select {
	case <-shutdown:
		return nil
	default:
		return ctx.Err()
	}
}
