package config

import (
	"bytes"
	"context"
	"errors"
	"io/fs"
	"os"

	"golang.org/x/sync/errgroup"

	vectorerrors "github.com/jmountifield/vector/pkg/errors"
)

// maxParallelLoads bounds how many files are read at once.
const maxParallelLoads = 8

// FileResult is the outcome of loading one path.
type FileResult struct {
	Path   string
	Config *Config
	Errors []error
}

// LoadFile reads and decodes a single fragment. A file that is missing or
// cannot be read, including a directory, is reported as a FileError.
func LoadFile(path string) (*Config, []error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, []error{vectorerrors.NewFileError(path, errors.Is(err, fs.ErrNotExist), err)}
	}

	return load(path, bytes.NewReader(data))
}

// LoadFiles decodes every path concurrently. Results are returned in path
// order and a failure in one file never hides problems in another.
func LoadFiles(ctx context.Context, paths []string) []FileResult {
	results := make([]FileResult, len(paths))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelLoads)

	for i, path := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				results[i] = FileResult{Path: path, Errors: []error{err}}
				return nil
			}
			cfg, errs := LoadFile(path)
			results[i] = FileResult{Path: path, Config: cfg, Errors: errs}
			return nil
		})
	}
	_ = g.Wait()

	return results
}

// ReadConfigs loads, merges and expands the given paths into one aggregate.
// All problems across all files are returned together.
func ReadConfigs(ctx context.Context, paths []string) (*Config, []error) {
	cfg := Empty()
	var errs []error

	for _, result := range LoadFiles(ctx, paths) {
		if len(result.Errors) > 0 {
			errs = append(errs, result.Errors...)
			continue
		}
		errs = append(errs, cfg.Append(result.Config)...)
	}

	errs = append(errs, cfg.ExpandMacros()...)

	if len(errs) > 0 {
		return nil, errs
	}
	return cfg, nil
}
