package plugin

import (
	"fmt"
	"sort"
	"strings"

	"github.com/jmountifield/vector/internal/config"
)

// ErrPluginNotFound is returned when no component of the requested type is registered.
type ErrPluginNotFound struct {
	Role config.Role
	Type string
}

func (e ErrPluginNotFound) Error() string {
	known := Registered(e.Role)
	sort.Strings(known)
	if len(known) == 0 {
		return fmt.Sprintf("unknown %s type %q", e.Role, e.Type)
	}
	return fmt.Sprintf("unknown %s type %q\nHint: available types are %s", e.Role, e.Type, strings.Join(known, ", "))
}

// ErrAlreadyRegistered is returned when a type is registered twice for the same role.
type ErrAlreadyRegistered struct {
	Role config.Role
	Type string
}

func (e ErrAlreadyRegistered) Error() string {
	return fmt.Sprintf("%s type %q already registered", e.Role, e.Type)
}
