package builder

import (
	"fmt"
	"sort"
	"strings"

	"github.com/jmountifield/vector/internal/config"
	"github.com/jmountifield/vector/internal/plugin"
	vectorerrors "github.com/jmountifield/vector/pkg/errors"
)

// Check validates the shape of the component graph without building
// anything. Errors make the configuration unusable; warnings flag components
// whose output goes nowhere.
func Check(cfg *config.Config) ([]string, []error) {
	var errs []error
	errs = append(errs, checkDuplicateNames(cfg)...)
	errs = append(errs, checkTypes(cfg)...)

	g := newGraph()
	for _, role := range config.Roles {
		for _, name := range cfg.Names(role) {
			g.addNode(name)
		}
	}

	for _, name := range cfg.Names(config.RoleSource) {
		if len(cfg.Sources[name].Inputs) > 0 {
			errs = append(errs, vectorerrors.NewValidationError(field(config.RoleSource, name, "inputs"),
				fmt.Sprintf("source %q cannot have inputs", name), nil))
		}
	}

	for _, role := range []config.Role{config.RoleTransform, config.RoleSink} {
		for _, name := range cfg.Names(role) {
			def := cfg.Components(role)[name]
			if len(def.Inputs) == 0 {
				errs = append(errs, vectorerrors.NewValidationError(field(role, name, "inputs"),
					fmt.Sprintf("%s %q has no inputs", role, name), nil))
				continue
			}
			for _, input := range def.Inputs {
				if !isProducer(cfg, input) {
					errs = append(errs, vectorerrors.NewValidationError(field(role, name, "inputs"),
						fmt.Sprintf("input %q for %s %q doesn't exist", input, role, name), nil))
					continue
				}
				g.addEdge(name, input)
			}
		}
	}

	if cycle := g.findCycle(); len(cycle) > 0 {
		errs = append(errs, vectorerrors.NewValidationError("transforms",
			fmt.Sprintf("cyclic dependency detected in the chain [ %s ]", strings.Join(cycle, " -> ")), nil))
	}

	return ComponentWarnings(cfg), errs
}

// ComponentWarnings flags sources and transforms whose output nothing reads.
func ComponentWarnings(cfg *config.Config) []string {
	consumed := make(map[string]bool)
	for _, role := range []config.Role{config.RoleTransform, config.RoleSink} {
		for _, def := range cfg.Components(role) {
			for _, input := range def.Inputs {
				consumed[input] = true
			}
		}
	}

	var warnings []string
	for _, role := range []config.Role{config.RoleSource, config.RoleTransform} {
		for _, name := range cfg.Names(role) {
			if !consumed[name] {
				warnings = append(warnings, fmt.Sprintf("%s %q has no consumers", capitalize(string(role)), name))
			}
		}
	}
	return warnings
}

func checkDuplicateNames(cfg *config.Config) []error {
	roles := make(map[string][]string)
	for _, role := range config.Roles {
		for _, name := range cfg.Names(role) {
			roles[name] = append(roles[name], string(role))
		}
	}

	var names []string
	for name, in := range roles {
		if len(in) > 1 {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	errs := make([]error, 0, len(names))
	for _, name := range names {
		errs = append(errs, vectorerrors.NewValidationError(name,
			fmt.Sprintf("more than one component with name %q (%s)", name, strings.Join(roles[name], ", ")), nil))
	}
	return errs
}

func checkTypes(cfg *config.Config) []error {
	var errs []error
	for _, role := range config.Roles {
		for _, name := range cfg.Names(role) {
			typ := cfg.Components(role)[name].Type
			if !plugin.IsRegistered(role, typ) {
				errs = append(errs, vectorerrors.NewValidationError(field(role, name, "type"),
					plugin.ErrPluginNotFound{Role: role, Type: typ}.Error(), nil))
			}
		}
	}
	return errs
}

func isProducer(cfg *config.Config, name string) bool {
	if _, ok := cfg.Sources[name]; ok {
		return true
	}
	_, ok := cfg.Transforms[name]
	return ok
}

func field(role config.Role, name, key string) string {
	return fmt.Sprintf("%ss.%s.%s", role, name, key)
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
