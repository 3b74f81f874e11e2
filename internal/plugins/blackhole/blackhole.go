// Package blackholeplugin provides a sink that discards events.
package blackholeplugin

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/jmountifield/vector/internal/config"
	"github.com/jmountifield/vector/internal/event"
	"github.com/jmountifield/vector/internal/logger"
	"github.com/jmountifield/vector/internal/plugin"
)

// Options configure the blackhole sink.
type Options struct {
	// PrintInterval logs the running total this often. Zero disables it.
	PrintInterval time.Duration `yaml:"print_interval" validate:"gte=0"`
}

type blackhole struct {
	opts  Options
	log   *logger.Logger
	total atomic.Int64
}

func init() {
	if err := plugin.RegisterSink("blackhole", New); err != nil {
		panic(err)
	}
}

// New builds a blackhole sink.
func New(bc plugin.BuildContext, def config.ComponentConfig) (plugin.Sink, plugin.Healthcheck, error) {
	var opts Options
	if err := config.DecodeOptions(def.Options, &opts); err != nil {
		return nil, nil, err
	}
	return &blackhole{opts: opts, log: bc.Logger}, nil, nil
}

func (b *blackhole) Run(ctx context.Context, in <-chan event.Event) error {
	var tick <-chan time.Time
	if b.opts.PrintInterval > 0 {
		ticker := time.NewTicker(b.opts.PrintInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case _, ok := <-in:
			if !ok {
				b.log.Info(fmt.Sprintf("Total events collected: %d", b.total.Load()))
				return nil
			}
			b.total.Add(1)
		case <-tick:
			b.log.Info(fmt.Sprintf("Total events collected: %d", b.total.Load()))
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Total reports how many events were discarded.
func (b *blackhole) Total() int64 {
	return b.total.Load()
}
