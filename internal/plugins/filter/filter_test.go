package filterplugin

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jmountifield/vector/internal/plugins/plugintest"
)

func TestFilterKeepsMatchingEvents(t *testing.T) {
	t.Parallel()

	tr, err := New(plugintest.BuildContext("f"), plugintest.Component("filter", map[string]any{
		"condition": `level == "error" && status >= 500`,
	}, "in"))
	require.NoError(t, err)

	keep := plugintest.Message("boom")
	keep.Set("level", "error")
	keep.Set("status", 503)

	drop := plugintest.Message("fine")
	drop.Set("level", "info")
	drop.Set("status", 200)

	require.Len(t, tr.Transform(keep), 1)
	require.Empty(t, tr.Transform(drop))
}

func TestFilterUndefinedFieldDoesNotMatch(t *testing.T) {
	t.Parallel()

	tr, err := New(plugintest.BuildContext("f"), plugintest.Component("filter", map[string]any{
		"condition": `level == "error"`,
	}, "in"))
	require.NoError(t, err)
	require.Empty(t, tr.Transform(plugintest.Message("no level")))
}

func TestFilterRejectsBadCondition(t *testing.T) {
	t.Parallel()

	_, err := New(plugintest.BuildContext("f"), plugintest.Component("filter", map[string]any{
		"condition": `level ==`,
	}, "in"))
	require.Error(t, err)

	_, err = New(plugintest.BuildContext("f"), plugintest.Component("filter", nil, "in"))
	require.Error(t, err)
}
