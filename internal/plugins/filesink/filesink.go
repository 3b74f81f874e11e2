// Package filesinkplugin provides a sink appending events to a file.
package filesinkplugin

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jmountifield/vector/internal/codec"
	"github.com/jmountifield/vector/internal/config"
	"github.com/jmountifield/vector/internal/event"
	"github.com/jmountifield/vector/internal/plugin"
)

// Options configure the file sink.
type Options struct {
	Path     string         `yaml:"path" validate:"required"`
	Encoding codec.Encoding `yaml:"encoding" validate:"omitempty,oneof=json text"`
}

type fileSink struct {
	opts   Options
	schema event.LogSchema
}

func init() {
	if err := plugin.RegisterSink("file", New); err != nil {
		panic(err)
	}
}

// New builds a file sink. The healthcheck verifies the parent directory
// exists and is writable.
func New(bc plugin.BuildContext, def config.ComponentConfig) (plugin.Sink, plugin.Healthcheck, error) {
	var opts Options
	if err := config.DecodeOptions(def.Options, &opts); err != nil {
		return nil, nil, err
	}
	if opts.Encoding == "" {
		opts.Encoding = codec.JSON
	}
	s := &fileSink{opts: opts, schema: bc.LogSchema.WithDefaults()}
	return s, s.healthcheck, nil
}

func (s *fileSink) Run(ctx context.Context, in <-chan event.Event) error {
	f, err := os.OpenFile(s.opts.Path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	for {
		select {
		case ev, ok := <-in:
			if !ok {
				return w.Flush()
			}
			line, err := codec.Encode(s.opts.Encoding, s.schema, ev)
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
			_ = w.Flush()
			return ctx.Err()
		}
	}
}

func (s *fileSink) healthcheck(ctx context.Context) error {
	dir := filepath.Dir(s.opts.Path)
	info, err := os.Stat(dir)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", dir)
	}
	probe, err := os.CreateTemp(dir, ".vector-healthcheck-*")
	if err != nil {
		return fmt.Errorf("directory %s is not writable: %w", dir, err)
	}
	name := probe.Name()
	probe.Close()
	return os.Remove(name)
}
