package config

import (
	"fmt"

	vectorerrors "github.com/jmountifield/vector/pkg/errors"
)

// Append merges other into c. Component names must be unique per role across
// fragments and global options may only be set once or set identically. When
// any conflict is found nothing from other is merged.
func (c *Config) Append(other *Config) []error {
	if other == nil {
		return nil
	}
	c.ensureMaps()

	var errs []error
	for _, role := range Roles {
		existing := c.Components(role)
		for _, name := range other.Names(role) {
			if _, ok := existing[name]; ok {
				errs = append(errs, vectorerrors.NewMergeError(other.path, string(role), name))
			}
		}
	}

	global, globalErrs := mergeGlobal(c.Global, other.Global)
	errs = append(errs, globalErrs...)

	if len(errs) > 0 {
		return errs
	}

	c.Global = global
	for _, role := range Roles {
		existing := c.Components(role)
		for name, def := range other.Components(role) {
			existing[name] = def
		}
	}
	return nil
}

func mergeGlobal(current, incoming GlobalOptions) (GlobalOptions, []error) {
	var errs []error

	switch {
	case incoming.DataDir == "":
	case current.DataDir == "":
		current.DataDir = incoming.DataDir
	case current.DataDir != incoming.DataDir:
		errs = append(errs, vectorerrors.NewValidationError("data_dir",
			fmt.Sprintf("conflicting values %q and %q", current.DataDir, incoming.DataDir), nil))
	}

	switch {
	case incoming.LogSchema.IsZero():
	case current.LogSchema.IsZero():
		current.LogSchema = incoming.LogSchema
	case current.LogSchema != incoming.LogSchema:
		errs = append(errs, vectorerrors.NewValidationError("log_schema", "conflicting values across config files", nil))
	}

	return current, errs
}
