package plugin

import (
	"fmt"
	"sort"
	"sync"

	"github.com/jmountifield/vector/internal/config"
)

var (
	registryMu sync.RWMutex
	sources    = make(map[string]SourceFactory)
	transforms = make(map[string]TransformFactory)
	sinks      = make(map[string]SinkFactory)
)

// RegisterSource adds a source implementation for the provided type.
func RegisterSource(typ string, factory SourceFactory) error {
	if factory == nil {
		return fmt.Errorf("source %q: factory is nil", typ)
	}

	registryMu.Lock()
	defer registryMu.Unlock()

	if _, exists := sources[typ]; exists {
		return ErrAlreadyRegistered{Role: config.RoleSource, Type: typ}
	}
	sources[typ] = factory
	return nil
}

// RegisterTransform adds a transform implementation for the provided type.
func RegisterTransform(typ string, factory TransformFactory) error {
	if factory == nil {
		return fmt.Errorf("transform %q: factory is nil", typ)
	}

	registryMu.Lock()
	defer registryMu.Unlock()

	if _, exists := transforms[typ]; exists {
		return ErrAlreadyRegistered{Role: config.RoleTransform, Type: typ}
	}
	transforms[typ] = factory
	return nil
}

// RegisterSink adds a sink implementation for the provided type.
func RegisterSink(typ string, factory SinkFactory) error {
	if factory == nil {
		return fmt.Errorf("sink %q: factory is nil", typ)
	}

	registryMu.Lock()
	defer registryMu.Unlock()

	if _, exists := sinks[typ]; exists {
		return ErrAlreadyRegistered{Role: config.RoleSink, Type: typ}
	}
	sinks[typ] = factory
	return nil
}

// GetSource retrieves a source factory by type.
func GetSource(typ string) (SourceFactory, error) {
	registryMu.RLock()
	factory, ok := sources[typ]
	registryMu.RUnlock()

	if !ok {
		return nil, ErrPluginNotFound{Role: config.RoleSource, Type: typ}
	}
	return factory, nil
}

// GetTransform retrieves a transform factory by type.
func GetTransform(typ string) (TransformFactory, error) {
	registryMu.RLock()
	factory, ok := transforms[typ]
	registryMu.RUnlock()

	if !ok {
		return nil, ErrPluginNotFound{Role: config.RoleTransform, Type: typ}
	}
	return factory, nil
}

// GetSink retrieves a sink factory by type.
func GetSink(typ string) (SinkFactory, error) {
	registryMu.RLock()
	factory, ok := sinks[typ]
	registryMu.RUnlock()

	if !ok {
		return nil, ErrPluginNotFound{Role: config.RoleSink, Type: typ}
	}
	return factory, nil
}

// IsRegistered reports whether typ is known for role. Macro transform types
// count as registered.
func IsRegistered(role config.Role, typ string) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()

	switch role {
	case config.RoleSource:
		_, ok := sources[typ]
		return ok
	case config.RoleTransform:
		if _, ok := transforms[typ]; ok {
			return true
		}
		return config.IsMacro(typ)
	case config.RoleSink:
		_, ok := sinks[typ]
		return ok
	}
	return false
}

// Registered lists the sorted types known for role.
func Registered(role config.Role) []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	var out []string
	switch role {
	case config.RoleSource:
		out = keys(sources)
	case config.RoleTransform:
		out = append(keys(transforms), config.MacroTypes()...)
	case config.RoleSink:
		out = keys(sinks)
	}
	sort.Strings(out)
	return out
}

func keys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
