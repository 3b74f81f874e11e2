package blackholeplugin

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jmountifield/vector/internal/event"
	"github.com/jmountifield/vector/internal/plugins/plugintest"
)

func TestBlackholeCounts(t *testing.T) {
	t.Parallel()

	snk, hc, err := New(plugintest.BuildContext("void"), plugintest.Component("blackhole", map[string]any{"print_interval": "1s"}, "in"))
	require.NoError(t, err)
	require.Nil(t, hc)

	in := plugintest.Feed(plugintest.Message("a"), plugintest.Message("b"), plugintest.Message("c"))
	require.NoError(t, snk.Run(context.Background(), in))
	require.EqualValues(t, 3, snk.(*blackhole).Total())
}

func TestBlackholeStopsOnCancel(t *testing.T) {
	t.Parallel()

	snk, _, err := New(plugintest.BuildContext("void"), plugintest.Component("blackhole", nil, "in"))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, snk.Run(ctx, make(chan event.Event)), context.Canceled)
}
