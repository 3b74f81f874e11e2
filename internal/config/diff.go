package config

import (
	"fmt"
	"math"
	"reflect"
	"sort"

	jsoniter "github.com/json-iterator/go"
)

// canonical sorts map keys so equal definitions serialize identically.
var canonical = jsoniter.ConfigCompatibleWithStandardLibrary

// Difference lists, per role, which names disappear, change or appear
// between two generations. The three sets are disjoint and sorted.
type Difference struct {
	ToRemove []string
	ToChange []string
	ToAdd    []string
}

// Diff is the set of changes between an old and a new configuration.
type Diff struct {
	Sources    Difference
	Transforms Difference
	Sinks      Difference
}

// NewDiff compares old and next structurally. A name present in both with a
// different definition is a change, never a removal plus an addition.
func NewDiff(old, next *Config) *Diff {
	if old == nil {
		old = Empty()
	}
	if next == nil {
		next = Empty()
	}
	return &Diff{
		Sources:    newDifference(old.Sources, next.Sources),
		Transforms: newDifference(old.Transforms, next.Transforms),
		Sinks:      newDifference(old.Sinks, next.Sinks),
	}
}

// InitialDiff is the diff from an empty configuration: everything is added.
func InitialDiff(cfg *Config) *Diff {
	return NewDiff(Empty(), cfg)
}

func newDifference(old, next map[string]ComponentConfig) Difference {
	var d Difference
	for name, oldDef := range old {
		newDef, ok := next[name]
		switch {
		case !ok:
			d.ToRemove = append(d.ToRemove, name)
		case !Equal(oldDef, newDef):
			d.ToChange = append(d.ToChange, name)
		}
	}
	for name := range next {
		if _, ok := old[name]; !ok {
			d.ToAdd = append(d.ToAdd, name)
		}
	}
	sort.Strings(d.ToRemove)
	sort.Strings(d.ToChange)
	sort.Strings(d.ToAdd)
	return d
}

// Equal compares two definitions by their canonical serialization, falling
// back to a structural comparison when either cannot be serialized.
func Equal(a, b ComponentConfig) bool {
	ab, errA := Canonical(a)
	bb, errB := Canonical(b)
	if errA != nil || errB != nil {
		return reflect.DeepEqual(a, b)
	}
	return string(ab) == string(bb)
}

// Canonical renders a definition as indented JSON with sorted keys. Values
// JSON cannot carry (NaN, infinities, non-string map keys) are rewritten as
// strings first.
func Canonical(def ComponentConfig) ([]byte, error) {
	def.Options, _ = normalize(def.Options).(map[string]any)
	return canonical.MarshalIndent(def, "", "  ")
}

func normalize(v any) any {
	switch value := v.(type) {
	case float64:
		return normalizeFloat(value)
	case float32:
		return normalizeFloat(float64(value))
	case map[string]any:
		if value == nil {
			return value
		}
		out := make(map[string]any, len(value))
		for k, item := range value {
			out[k] = normalize(item)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(value))
		for k, item := range value {
			out[fmt.Sprint(k)] = normalize(item)
		}
		return out
	case []any:
		out := make([]any, len(value))
		for i, item := range value {
			out[i] = normalize(item)
		}
		return out
	}
	return v
}

func normalizeFloat(f float64) any {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "+Inf"
	case math.IsInf(f, -1):
		return "-Inf"
	}
	return f
}

// Role returns the difference for one role.
func (d *Diff) Role(role Role) Difference {
	switch role {
	case RoleSource:
		return d.Sources
	case RoleTransform:
		return d.Transforms
	case RoleSink:
		return d.Sinks
	}
	return Difference{}
}

// Empty reports whether nothing changes.
func (d *Diff) Empty() bool {
	for _, role := range Roles {
		if !d.Role(role).Empty() {
			return false
		}
	}
	return true
}

// Empty reports whether this role has no changes.
func (d Difference) Empty() bool {
	return len(d.ToRemove) == 0 && len(d.ToChange) == 0 && len(d.ToAdd) == 0
}

// Contains reports whether name is removed, changed or added.
func (d Difference) Contains(name string) bool {
	return d.IsRemoved(name) || d.IsChanged(name) || d.IsAdded(name)
}

// IsRemoved reports whether name is removed.
func (d Difference) IsRemoved(name string) bool { return contains(d.ToRemove, name) }

// IsChanged reports whether name is changed.
func (d Difference) IsChanged(name string) bool { return contains(d.ToChange, name) }

// IsAdded reports whether name is added.
func (d Difference) IsAdded(name string) bool { return contains(d.ToAdd, name) }

// ChangedOrAdded returns the names that must be built for the new generation.
func (d Difference) ChangedOrAdded() []string {
	out := make([]string, 0, len(d.ToChange)+len(d.ToAdd))
	out = append(out, d.ToChange...)
	out = append(out, d.ToAdd...)
	sort.Strings(out)
	return out
}

// RemovedOrChanged returns the names whose running tasks must be retired.
func (d Difference) RemovedOrChanged() []string {
	out := make([]string, 0, len(d.ToRemove)+len(d.ToChange))
	out = append(out, d.ToRemove...)
	out = append(out, d.ToChange...)
	sort.Strings(out)
	return out
}

func contains(sorted []string, name string) bool {
	i := sort.SearchStrings(sorted, name)
	return i < len(sorted) && sorted[i] == name
}
