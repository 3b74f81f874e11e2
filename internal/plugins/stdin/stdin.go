// Package stdinplugin provides a source reading newline-delimited events from
// standard input.
package stdinplugin

import (
	"bufio"
	"context"
	"io"
	"os"

	"github.com/jmountifield/vector/internal/codec"
	"github.com/jmountifield/vector/internal/config"
	"github.com/jmountifield/vector/internal/event"
	"github.com/jmountifield/vector/internal/logger"
	"github.com/jmountifield/vector/internal/plugin"
)

// Options configure the stdin source.
type Options struct {
	Encoding      codec.Encoding `yaml:"encoding" validate:"omitempty,oneof=json text"`
	MaxLengthByte int            `yaml:"max_length" validate:"gte=0"`
}

const defaultMaxLength = 100 * 1024

type stdinSource struct {
	opts   Options
	schema event.LogSchema
	log    *logger.Logger
	input  io.Reader
}

func init() {
	if err := plugin.RegisterSource("stdin", New); err != nil {
		panic(err)
	}
}

// New builds a source reading os.Stdin.
func New(bc plugin.BuildContext, def config.ComponentConfig) (plugin.Source, error) {
	return newSource(bc, def, os.Stdin)
}

func newSource(bc plugin.BuildContext, def config.ComponentConfig, input io.Reader) (*stdinSource, error) {
	var opts Options
	if err := config.DecodeOptions(def.Options, &opts); err != nil {
		return nil, err
	}
	if opts.MaxLengthByte == 0 {
		opts.MaxLengthByte = defaultMaxLength
	}
	return &stdinSource{opts: opts, schema: bc.LogSchema.WithDefaults(), log: bc.Logger, input: input}, nil
}

// Run returns when input reaches EOF or on shutdown. A read blocked on the
// terminal is abandoned at shutdown.
func (s *stdinSource) Run(ctx context.Context, shutdown <-chan struct{}, out plugin.Output) error {
	lines := make(chan []byte)
	readErr := make(chan error, 1)

	go func() {
		scanner := bufio.NewScanner(s.input)
		scanner.Buffer(make([]byte, 0, 4096), s.opts.MaxLengthByte)
		for scanner.Scan() {
			line := append([]byte(nil), scanner.Bytes()...)
			select {
			case lines <- line:
			case <-shutdown:
				return
			case <-ctx.Done():
				return
			}
		}
		readErr <- scanner.Err()
	}()

	for {
		select {
		case line := <-lines:
			ev, err := codec.Decode(s.opts.Encoding, s.schema, line)
			if err != nil {
				s.log.Warn("Dropping unparseable line: " + err.Error())
				continue
			}
			if err := out.Emit(ctx, ev); err != nil {
				return err
			}
		case err := <-readErr:
			return err
		case <-shutdown:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
