package config

import (
	"sort"

	"github.com/jmountifield/vector/internal/event"
)

// Role names the three kinds of pipeline component.
type Role string

const (
	RoleSource    Role = "source"
	RoleTransform Role = "transform"
	RoleSink      Role = "sink"
)

// Roles lists every role in build order.
var Roles = []Role{RoleSource, RoleTransform, RoleSink}

// Config is the aggregate of every configuration fragment loaded for one
// generation of the topology.
type Config struct {
	Global     GlobalOptions              `yaml:",inline" json:"global"`
	Sources    map[string]ComponentConfig `yaml:"sources,omitempty" json:"sources" validate:"omitempty,dive,keys,component_name,endkeys"`
	Transforms map[string]ComponentConfig `yaml:"transforms,omitempty" json:"transforms" validate:"omitempty,dive,keys,component_name,endkeys"`
	Sinks      map[string]ComponentConfig `yaml:"sinks,omitempty" json:"sinks" validate:"omitempty,dive,keys,component_name,endkeys"`

	path string
}

// GlobalOptions are settings shared by every component. They cannot change
// across a reload.
type GlobalOptions struct {
	DataDir   string          `yaml:"data_dir,omitempty" json:"data_dir,omitempty"`
	LogSchema event.LogSchema `yaml:"log_schema,omitempty" json:"log_schema"`
}

// ComponentConfig is the definition of one source, transform or sink.
// Options holds the component-specific keys.
type ComponentConfig struct {
	Type        string         `yaml:"type" json:"type" validate:"required"`
	Inputs      []string       `yaml:"inputs,omitempty" json:"inputs,omitempty" validate:"omitempty,dive,required"`
	Healthcheck *bool          `yaml:"healthcheck,omitempty" json:"healthcheck,omitempty"`
	Options     map[string]any `yaml:",inline" json:"options,omitempty"`
}

// HealthcheckEnabled reports whether the sink's healthcheck should run.
func (c ComponentConfig) HealthcheckEnabled() bool {
	return c.Healthcheck == nil || *c.Healthcheck
}

// Empty returns an aggregate with no components.
func Empty() *Config {
	cfg := &Config{}
	cfg.ensureMaps()
	return cfg
}

// Path reports the file this fragment was loaded from, if any.
func (c *Config) Path() string {
	if c == nil {
		return ""
	}
	return c.path
}

// Components returns the definitions of the given role.
func (c *Config) Components(role Role) map[string]ComponentConfig {
	switch role {
	case RoleSource:
		return c.Sources
	case RoleTransform:
		return c.Transforms
	case RoleSink:
		return c.Sinks
	}
	return nil
}

// Names returns the sorted component names of the given role.
func (c *Config) Names(role Role) []string {
	return sortedKeys(c.Components(role))
}

// LogSchema returns the configured schema with defaults applied.
func (c *Config) LogSchema() event.LogSchema {
	return c.Global.LogSchema.WithDefaults()
}

func (c *Config) ensureMaps() {
	if c.Sources == nil {
		c.Sources = make(map[string]ComponentConfig)
	}
	if c.Transforms == nil {
		c.Transforms = make(map[string]ComponentConfig)
	}
	if c.Sinks == nil {
		c.Sinks = make(map[string]ComponentConfig)
	}
}

func cloneComponents(in map[string]ComponentConfig) map[string]ComponentConfig {
	out := make(map[string]ComponentConfig, len(in))
	for name, def := range in {
		copied := def
		copied.Inputs = append([]string(nil), def.Inputs...)
		out[name] = copied
	}
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
