package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
)

// DefaultPath is used when no configuration path is given.
const DefaultPath = "/etc/vector/vector.yaml"

// ErrPathsAlreadySet is returned when the process-wide path list is written twice.
var ErrPathsAlreadySet = errors.New("config paths already set")

// ExpandPaths resolves wildcard patterns, falling back to DefaultPath, and
// returns a sorted list without duplicates. A pattern that matches nothing is
// kept verbatim so the loader reports it as missing.
func ExpandPaths(patterns []string) ([]string, error) {
	if len(patterns) == 0 {
		patterns = []string{DefaultPath}
	}

	var out []string
	for _, pattern := range patterns {
		if !doublestar.ValidatePathPattern(pattern) {
			return nil, fmt.Errorf("invalid config path pattern %q", pattern)
		}

		matches, err := doublestar.FilepathGlob(pattern, doublestar.WithFilesOnly())
		if err != nil {
			return nil, fmt.Errorf("expand config path %q: %w", pattern, err)
		}
		if len(matches) == 0 {
			out = append(out, filepath.Clean(pattern))
			continue
		}
		for _, match := range matches {
			out = append(out, filepath.Clean(match))
		}
	}

	sort.Strings(out)
	return dedupSorted(out), nil
}

func dedupSorted(in []string) []string {
	if len(in) == 0 {
		return in
	}
	out := in[:1]
	for _, s := range in[1:] {
		if s != out[len(out)-1] {
			out = append(out, s)
		}
	}
	return out
}

// PathsCell holds the configuration paths of the process. It may be written
// exactly once.
type PathsCell struct {
	mu    sync.RWMutex
	set   bool
	paths []string
}

// Set stores resolved. A second call fails with ErrPathsAlreadySet.
func (c *PathsCell) Set(resolved []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.set {
		return ErrPathsAlreadySet
	}
	c.set = true
	c.paths = append([]string(nil), resolved...)
	return nil
}

// Get returns a copy of the stored paths.
func (c *PathsCell) Get() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]string(nil), c.paths...)
}

var globalPaths PathsCell

// GlobalPathsCell exposes the process-wide cell.
func GlobalPathsCell() *PathsCell {
	return &globalPaths
}
