package consoleplugin

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jmountifield/vector/internal/event"
	"github.com/jmountifield/vector/internal/plugins/plugintest"
)

func TestConsoleEncodings(t *testing.T) {
	t.Parallel()

	ev := plugintest.Message("hello")
	ev.Set("level", "info")

	buf := &bytes.Buffer{}
	snk := newConsole(buf, Options{}, event.DefaultLogSchema())
	require.NoError(t, snk.Run(context.Background(), plugintest.Feed(ev)))
	require.Equal(t, "{\"level\":\"info\",\"message\":\"hello\"}\n", buf.String())

	buf.Reset()
	snk = newConsole(buf, Options{Encoding: "text"}, event.DefaultLogSchema())
	require.NoError(t, snk.Run(context.Background(), plugintest.Feed(ev, plugintest.Message("again"))))
	require.Equal(t, "hello\nagain\n", buf.String())
}

func TestConsoleOptions(t *testing.T) {
	t.Parallel()

	snk, hc, err := New(plugintest.BuildContext("out"), plugintest.Component("console", map[string]any{"target": "stderr"}, "in"))
	require.NoError(t, err)
	require.NotNil(t, snk)
	require.Nil(t, hc)

	_, _, err = New(plugintest.BuildContext("out"), plugintest.Component("console", map[string]any{"target": "printer"}, "in"))
	require.Error(t, err)
}
