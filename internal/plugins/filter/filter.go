// Package filterplugin provides a transform that keeps events matching a
// condition.
package filterplugin

import (
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/jmountifield/vector/internal/config"
	"github.com/jmountifield/vector/internal/event"
	"github.com/jmountifield/vector/internal/logger"
	"github.com/jmountifield/vector/internal/plugin"
)

// Options configure the filter transform.
type Options struct {
	// Condition is an expr boolean expression over the event's fields.
	Condition string `yaml:"condition" validate:"required"`
}

type filter struct {
	program *vm.Program
	log     *logger.Logger
}

func init() {
	if err := plugin.RegisterTransform("filter", New); err != nil {
		panic(err)
	}
}

// New compiles the condition.
func New(bc plugin.BuildContext, def config.ComponentConfig) (plugin.Transform, error) {
	var opts Options
	if err := config.DecodeOptions(def.Options, &opts); err != nil {
		return nil, err
	}
	program, err := Compile(opts.Condition)
	if err != nil {
		return nil, err
	}
	return &filter{program: program, log: bc.Logger}, nil
}

// Compile checks a condition and prepares it for Match.
func Compile(condition string) (*vm.Program, error) {
	program, err := expr.Compile(condition,
		expr.Env(map[string]any{}),
		expr.AllowUndefinedVariables(),
		expr.AsBool(),
	)
	if err != nil {
		return nil, fmt.Errorf("invalid condition %q: %w", condition, err)
	}
	return program, nil
}

// Match evaluates program against ev. Evaluation errors count as no match.
func Match(program *vm.Program, ev event.Event) (bool, error) {
	env := ev.Fields
	if env == nil {
		env = map[string]any{}
	}
	out, err := expr.Run(program, env)
	if err != nil {
		return false, err
	}
	ok, _ := out.(bool)
	return ok, nil
}

func (f *filter) Transform(ev event.Event) []event.Event {
	ok, err := Match(f.program, ev)
	if err != nil {
		f.log.Debug("Condition failed to evaluate: " + err.Error())
		return nil
	}
	if !ok {
		return nil
	}
	return []event.Event{ev}
}
