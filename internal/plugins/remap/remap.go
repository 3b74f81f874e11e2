// Package remapplugin provides a transform that rewrites events with a jq
// program.
package remapplugin

import (
	"fmt"

	"github.com/itchyny/gojq"

	"github.com/jmountifield/vector/internal/config"
	"github.com/jmountifield/vector/internal/event"
	"github.com/jmountifield/vector/internal/logger"
	"github.com/jmountifield/vector/internal/plugin"
)

// Options configure the remap transform.
type Options struct {
	Source string `yaml:"source" validate:"required"`
	// DropOnError discards events the program fails on instead of passing
	// them through unchanged.
	DropOnError bool `yaml:"drop_on_error"`
}

type remap struct {
	code *gojq.Code
	opts Options
	log  *logger.Logger
}

func init() {
	if err := plugin.RegisterTransform("remap", New); err != nil {
		panic(err)
	}
}

// New parses and compiles the jq program.
func New(bc plugin.BuildContext, def config.ComponentConfig) (plugin.Transform, error) {
	var opts Options
	if err := config.DecodeOptions(def.Options, &opts); err != nil {
		return nil, err
	}

	query, err := gojq.Parse(opts.Source)
	if err != nil {
		return nil, fmt.Errorf("invalid jq program: %w", err)
	}
	code, err := gojq.Compile(query)
	if err != nil {
		return nil, fmt.Errorf("jq compilation failed: %w", err)
	}
	return &remap{code: code, opts: opts, log: bc.Logger}, nil
}

// Transform emits one event per object the program yields. Non-object
// results are dropped.
func (r *remap) Transform(ev event.Event) []event.Event {
	input := map[string]any(ev.Fields)
	if input == nil {
		input = map[string]any{}
	}

	var out []event.Event
	iter := r.code.Run(input)
	for {
		v, ok := iter.Next()
		if !ok {
			break
		}
		if err, isErr := v.(error); isErr {
			r.log.Debug("Remap program failed: " + err.Error())
			if r.opts.DropOnError {
				return nil
			}
			return []event.Event{ev}
		}
		fields, isObject := v.(map[string]any)
		if !isObject {
			continue
		}
		out = append(out, event.Event{Fields: fields})
	}
	return out
}
