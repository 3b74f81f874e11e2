package config

import (
	"fmt"
	"sync"

	vectorerrors "github.com/jmountifield/vector/pkg/errors"
)

// Expander turns one macro transform into the transforms that replace it.
// Returned names are lane suffixes; the aggregate prefixes them with the
// macro's own name.
type Expander func(name string, def ComponentConfig) (map[string]ComponentConfig, error)

var (
	macrosMu sync.RWMutex
	macros   = make(map[string]Expander)
)

// RegisterMacro makes a transform type expand at load time instead of being
// built as a component.
func RegisterMacro(typ string, expand Expander) {
	macrosMu.Lock()
	defer macrosMu.Unlock()

	if _, exists := macros[typ]; exists {
		panic(fmt.Sprintf("macro %q already registered", typ))
	}
	macros[typ] = expand
}

// IsMacro reports whether typ is registered as a macro.
func IsMacro(typ string) bool {
	macrosMu.RLock()
	defer macrosMu.RUnlock()
	_, ok := macros[typ]
	return ok
}

// MacroTypes lists registered macro types.
func MacroTypes() []string {
	macrosMu.RLock()
	defer macrosMu.RUnlock()
	return sortedKeys(macros)
}

func lookupMacro(typ string) (Expander, bool) {
	macrosMu.RLock()
	defer macrosMu.RUnlock()
	fn, ok := macros[typ]
	return fn, ok
}

// ExpandMacros replaces every macro transform with its expansion, named
// "<macro>.<lane>". Inputs naming the macro are rewritten to every lane. On
// error the aggregate is left unchanged.
func (c *Config) ExpandMacros() []error {
	c.ensureMaps()

	transforms := cloneComponents(c.Transforms)
	expanded := make(map[string][]string)
	var errs []error

	for _, name := range sortedKeys(c.Transforms) {
		def := c.Transforms[name]
		expand, ok := lookupMacro(def.Type)
		if !ok {
			continue
		}

		lanes, err := expand(name, def)
		if err != nil {
			errs = append(errs, vectorerrors.NewExpansionError(name, err))
			continue
		}
		if len(lanes) == 0 {
			errs = append(errs, vectorerrors.NewExpansionError(name, fmt.Errorf("expansion produced no transforms")))
			continue
		}

		delete(transforms, name)
		for _, lane := range sortedKeys(lanes) {
			full := name + "." + lane
			if _, clash := transforms[full]; clash {
				errs = append(errs, vectorerrors.NewExpansionError(name, fmt.Errorf("expanded name %q collides with an existing transform", full)))
				continue
			}
			transforms[full] = lanes[lane]
			expanded[name] = append(expanded[name], full)
		}
	}

	if len(errs) > 0 {
		return errs
	}
	if len(expanded) == 0 {
		return nil
	}

	sinks := cloneComponents(c.Sinks)
	for name, def := range transforms {
		def.Inputs = rewriteInputs(def.Inputs, expanded)
		transforms[name] = def
	}
	for name, def := range sinks {
		def.Inputs = rewriteInputs(def.Inputs, expanded)
		sinks[name] = def
	}

	c.Transforms = transforms
	c.Sinks = sinks
	return nil
}

func rewriteInputs(inputs []string, expanded map[string][]string) []string {
	if len(inputs) == 0 {
		return inputs
	}

	out := make([]string, 0, len(inputs))
	seen := make(map[string]struct{}, len(inputs))
	for _, input := range inputs {
		targets, ok := expanded[input]
		if !ok {
			targets = []string{input}
		}
		for _, target := range targets {
			if _, dup := seen[target]; dup {
				continue
			}
			seen[target] = struct{}{}
			out = append(out, target)
		}
	}
	return out
}
