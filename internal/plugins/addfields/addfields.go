// Package addfieldsplugin provides a transform that sets static fields.
package addfieldsplugin

import (
	"github.com/jmountifield/vector/internal/config"
	"github.com/jmountifield/vector/internal/event"
	"github.com/jmountifield/vector/internal/plugin"
)

// Options configure the add_fields transform.
type Options struct {
	Fields map[string]any `yaml:"fields" validate:"required,min=1"`
	// Overwrite replaces values already present. Defaults to true.
	Overwrite *bool `yaml:"overwrite"`
}

type addFields struct {
	fields    map[string]any
	overwrite bool
}

func init() {
	if err := plugin.RegisterTransform("add_fields", New); err != nil {
		panic(err)
	}
}

// New builds an add_fields transform.
func New(bc plugin.BuildContext, def config.ComponentConfig) (plugin.Transform, error) {
	var opts Options
	if err := config.DecodeOptions(def.Options, &opts); err != nil {
		return nil, err
	}
	overwrite := opts.Overwrite == nil || *opts.Overwrite
	return &addFields{fields: opts.Fields, overwrite: overwrite}, nil
}

func (a *addFields) Transform(ev event.Event) []event.Event {
	for key, value := range a.fields {
		if _, exists := ev.Get(key); exists && !a.overwrite {
			continue
		}
		ev.Set(key, value)
	}
	return []event.Event{ev}
}
