package errors

import (
	"fmt"
)

// FileError reports a configuration file that could not be opened.
type FileError struct {
	Path     string
	NotFound bool
	Err      error
}

// NewFileError constructs a FileError. NotFound distinguishes a missing path
// from one that exists but cannot be read.
func NewFileError(path string, notFound bool, err error) error {
	return &FileError{Path: path, NotFound: notFound, Err: err}
}

func (e *FileError) Error() string {
	if e == nil {
		return ""
	}
	if e.NotFound {
		return fmt.Sprintf("config file not found in path: %s", e.Path)
	}
	return fmt.Sprintf("could not open config file %s: %v", e.Path, e.Err)
}

// Unwrap exposes the underlying error.
func (e *FileError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// ParseError represents a YAML parsing failure with optional line metadata.
type ParseError struct {
	Path    string
	Line    int
	Message string
	Err     error
}

// NewParseError constructs a ParseError.
func NewParseError(path string, line int, err error) error {
	message := ""
	if err != nil {
		message = err.Error()
	}
	return &ParseError{Path: path, Line: line, Message: message, Err: err}
}

func (e *ParseError) Error() string {
	if e == nil {
		return ""
	}

	switch {
	case e.Path == "" && e.Line > 0:
		return fmt.Sprintf("parse error: line %d: %s", e.Line, e.Message)
	case e.Path == "":
		return fmt.Sprintf("parse error: %s", e.Message)
	case e.Line > 0:
		return fmt.Sprintf("parse error: %s:%d: %s", e.Path, e.Line, e.Message)
	}
	return fmt.Sprintf("parse error: %s: %s", e.Path, e.Message)
}

// Unwrap exposes the underlying error.
func (e *ParseError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// MergeError reports a component name defined by more than one fragment.
type MergeError struct {
	Path string
	Role string
	Name string
}

// NewMergeError constructs a MergeError for the given role (source,
// transform or sink) and component name.
func NewMergeError(path, role, name string) error {
	return &MergeError{Path: path, Role: role, Name: name}
}

func (e *MergeError) Error() string {
	if e == nil {
		return ""
	}
	if e.Path != "" {
		return fmt.Sprintf("%s: duplicate %s name found: %s", e.Path, e.Role, e.Name)
	}
	return fmt.Sprintf("duplicate %s name found: %s", e.Role, e.Name)
}

// ExpansionError reports a macro that could not be expanded.
type ExpansionError struct {
	Component string
	Message   string
	Err       error
}

// NewExpansionError constructs an ExpansionError.
func NewExpansionError(component string, err error) error {
	message := ""
	if err != nil {
		message = err.Error()
	}
	return &ExpansionError{Component: component, Message: message, Err: err}
}

func (e *ExpansionError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("failed to expand transform %q: %s", e.Component, e.Message)
}

// Unwrap exposes the underlying error.
func (e *ExpansionError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// BuildError indicates a component that could not be constructed from its
// definition.
type BuildError struct {
	Role      string
	Component string
	Err       error
}

// NewBuildError constructs a BuildError.
func NewBuildError(role, component string, err error) error {
	return &BuildError{Role: role, Component: component, Err: err}
}

func (e *BuildError) Error() string {
	if e == nil {
		return ""
	}
	if e.Role != "" {
		return fmt.Sprintf("%s %q: %v", e.Role, e.Component, e.Err)
	}
	return fmt.Sprintf("component %q: %v", e.Component, e.Err)
}

// Unwrap exposes the underlying error.
func (e *BuildError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// ValidationError captures configuration validation issues.
type ValidationError struct {
	Field   string
	Message string
	Err     error
}

// NewValidationError constructs a ValidationError.
func NewValidationError(field, message string, err error) error {
	return &ValidationError{Field: field, Message: message, Err: err}
}

func (e *ValidationError) Error() string {
	if e == nil {
		return ""
	}
	if e.Field != "" {
		return fmt.Sprintf("validation error: %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation error: %s", e.Message)
}

// Unwrap exposes the underlying error.
func (e *ValidationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// ExecutionError represents a runtime failure of a running component.
type ExecutionError struct {
	Component string
	Err       error
}

// NewExecutionError constructs an ExecutionError.
func NewExecutionError(component string, err error) error {
	return &ExecutionError{Component: component, Err: err}
}

func (e *ExecutionError) Error() string {
	if e == nil {
		return ""
	}
	if e.Component != "" {
		return fmt.Sprintf("component %s failed: %v", e.Component, e.Err)
	}
	return fmt.Sprintf("execution error: %v", e.Err)
}

// Unwrap exposes the root error.
func (e *ExecutionError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}
