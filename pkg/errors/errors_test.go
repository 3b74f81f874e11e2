package errors

import (
	stdErrors "errors"
	"fmt"
	"io/fs"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFileErrorDistinguishesMissingFromUnreadable(t *testing.T) {
	t.Parallel()

	missing := NewFileError("/etc/vector/a.yaml", true, fs.ErrNotExist)
	require.Contains(t, missing.Error(), "not found")
	require.True(t, stdErrors.Is(missing, fs.ErrNotExist))

	denied := NewFileError("/etc/vector/b.yaml", false, fs.ErrPermission)
	var fileErr *FileError
	require.ErrorAs(t, denied, &fileErr)
	require.False(t, fileErr.NotFound)
	require.NotContains(t, denied.Error(), "not found")
	require.Contains(t, denied.Error(), "/etc/vector/b.yaml")
}

func TestParseErrorWrapsUnderlying(t *testing.T) {
	t.Parallel()

	underlying := fmt.Errorf("unexpected token")
	err := NewParseError("vector.yaml", 12, underlying)

	var parseErr *ParseError
	require.ErrorAs(t, err, &parseErr)
	require.Equal(t, "vector.yaml", parseErr.Path)
	require.Equal(t, 12, parseErr.Line)
	require.True(t, stdErrors.Is(err, underlying))
	require.Equal(t, "parse error: vector.yaml:12: unexpected token", err.Error())
}

func TestParseErrorWithoutPath(t *testing.T) {
	t.Parallel()

	err := NewParseError("", 3, fmt.Errorf("bad indent"))
	require.Equal(t, "parse error: line 3: bad indent", err.Error())
}

func TestMergeErrorNamesComponent(t *testing.T) {
	t.Parallel()

	err := NewMergeError("b.yaml", "source", "a")

	var mergeErr *MergeError
	require.ErrorAs(t, err, &mergeErr)
	require.Equal(t, "a", mergeErr.Name)
	require.Contains(t, err.Error(), "duplicate source name found: a")
	require.Contains(t, err.Error(), "b.yaml")
}

func TestExpansionErrorIncludesComponent(t *testing.T) {
	t.Parallel()

	underlying := stdErrors.New("unknown option lane")
	err := NewExpansionError("split", underlying)

	var expansionErr *ExpansionError
	require.ErrorAs(t, err, &expansionErr)
	require.Equal(t, "split", expansionErr.Component)
	require.True(t, stdErrors.Is(err, underlying))
}

func TestBuildErrorIncludesRole(t *testing.T) {
	t.Parallel()

	err := NewBuildError("sink", "out", stdErrors.New("missing path"))
	require.Equal(t, `sink "out": missing path`, err.Error())
}

func TestValidationErrorAggregatesFields(t *testing.T) {
	t.Parallel()

	err := NewValidationError("sinks.out.inputs", "references unknown component", nil)

	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)
	require.Equal(t, "sinks.out.inputs", validationErr.Field)
	require.Contains(t, validationErr.Message, "references unknown component")
}

func TestExecutionErrorIncludesComponentContext(t *testing.T) {
	t.Parallel()

	underlying := stdErrors.New("connection reset")
	err := NewExecutionError("kafka_in", underlying)

	var executionErr *ExecutionError
	require.ErrorAs(t, err, &executionErr)
	require.Equal(t, "kafka_in", executionErr.Component)
	require.True(t, stdErrors.Is(err, underlying))
}
