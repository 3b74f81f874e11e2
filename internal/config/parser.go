package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"regexp"

	"gopkg.in/yaml.v3"

	vectorerrors "github.com/jmountifield/vector/pkg/errors"
)

var yamlLineRegex = regexp.MustCompile(`line (\d+)`)

// Load decodes one configuration fragment. Every decode and schema problem is
// reported; the returned config is nil whenever errors are present.
func Load(r io.Reader) (*Config, []error) {
	return load("", r)
}

func load(path string, r io.Reader) (*Config, []error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, []error{vectorerrors.NewParseError(path, 0, err)}
	}

	cfg := &Config{}
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)

	if err := decoder.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, decodeErrors(path, err)
	}

	cfg.path = path
	cfg.ensureMaps()

	if errs := Validate(cfg); len(errs) > 0 {
		return nil, errs
	}

	return cfg, nil
}

// decodeErrors splits a yaml.TypeError into one ParseError per problem so that
// every bad key is reported, not only the first.
func decodeErrors(path string, err error) []error {
	var typeErr *yaml.TypeError
	if errors.As(err, &typeErr) {
		out := make([]error, 0, len(typeErr.Errors))
		for _, msg := range typeErr.Errors {
			line := extractLine(msg)
			out = append(out, vectorerrors.NewParseError(path, line, errors.New(msg)))
		}
		return out
	}
	return []error{vectorerrors.NewParseError(path, extractLine(err.Error()), err)}
}

func extractLine(msg string) int {
	matches := yamlLineRegex.FindStringSubmatch(msg)
	if len(matches) != 2 {
		return 0
	}

	var line int
	if _, err := fmt.Sscanf(matches[1], "%d", &line); err != nil {
		return 0
	}

	return line
}
