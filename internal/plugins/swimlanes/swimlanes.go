// Package swimlanesplugin provides the swimlanes macro, which splits one
// stream into named lanes, each a filter transform.
package swimlanesplugin

import (
	"fmt"

	"github.com/jmountifield/vector/internal/config"
	filterplugin "github.com/jmountifield/vector/internal/plugins/filter"
)

// Options configure the swimlanes macro.
type Options struct {
	// Lanes maps a lane name to its condition.
	Lanes map[string]string `yaml:"lanes" validate:"required,min=1,dive,keys,required,endkeys,required"`
}

func init() {
	config.RegisterMacro("swimlanes", Expand)
}

// Expand turns the macro into one filter transform per lane. Every lane
// reads the macro's inputs.
func Expand(name string, def config.ComponentConfig) (map[string]config.ComponentConfig, error) {
	var opts Options
	if err := config.DecodeOptions(def.Options, &opts); err != nil {
		return nil, err
	}

	lanes := make(map[string]config.ComponentConfig, len(opts.Lanes))
	for lane, condition := range opts.Lanes {
		if _, err := filterplugin.Compile(condition); err != nil {
			return nil, fmt.Errorf("lane %q: %w", lane, err)
		}
		lanes[lane] = config.ComponentConfig{
			Type:    "filter",
			Inputs:  append([]string(nil), def.Inputs...),
			Options: map[string]any{"condition": condition},
		}
	}
	return lanes, nil
}
