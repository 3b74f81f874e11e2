// Package consoleplugin provides a sink writing events to stdout or stderr.
package consoleplugin

import (
	"bufio"
	"context"
	"io"
	"os"

	"github.com/jmountifield/vector/internal/codec"
	"github.com/jmountifield/vector/internal/config"
	"github.com/jmountifield/vector/internal/event"
	"github.com/jmountifield/vector/internal/plugin"
)

// Options configure the console sink.
type Options struct {
	Target   string         `yaml:"target" validate:"omitempty,oneof=stdout stderr"`
	Encoding codec.Encoding `yaml:"encoding" validate:"omitempty,oneof=json text"`
}

type console struct {
	out      io.Writer
	encoding codec.Encoding
	schema   event.LogSchema
}

func init() {
	if err := plugin.RegisterSink("console", New); err != nil {
		panic(err)
	}
}

// New builds a console sink. It has no healthcheck.
func New(bc plugin.BuildContext, def config.ComponentConfig) (plugin.Sink, plugin.Healthcheck, error) {
	var opts Options
	if err := config.DecodeOptions(def.Options, &opts); err != nil {
		return nil, nil, err
	}

	var out io.Writer = os.Stdout
	if opts.Target == "stderr" {
		out = os.Stderr
	}
	return newConsole(out, opts, bc.LogSchema), nil, nil
}

func newConsole(out io.Writer, opts Options, schema event.LogSchema) *console {
	enc := opts.Encoding
	if enc == "" {
		enc = codec.JSON
	}
	return &console{out: out, encoding: enc, schema: schema.WithDefaults()}
}

func (c *console) Run(ctx context.Context, in <-chan event.Event) error {
	w := bufio.NewWriter(c.out)
	defer w.Flush()

	for {
		select {
		case ev, ok := <-in:
			if !ok {
				return nil
			}
			line, err := codec.Encode(c.encoding, c.schema, ev)
			if err != nil {
				return err
			}
			if _, err := w.Write(append(line, '\n')); err != nil {
				return err
			}
			if len(in) == 0 {
				if err := w.Flush(); err != nil {
					return err
				}
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
