package kafkaplugin

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jmountifield/vector/internal/plugins/plugintest"
)

// closedAddr returns an address nothing listens on.
func closedAddr(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())
	return addr
}

func TestSourceOptions(t *testing.T) {
	t.Parallel()

	_, err := NewSource(plugintest.BuildContext("k"), plugintest.Component("kafka", map[string]any{
		"bootstrap_servers": []any{"localhost:9092"},
		"topics":            []any{"logs"},
		"group_id":          "vector",
	}))
	require.NoError(t, err)

	_, err = NewSource(plugintest.BuildContext("k"), plugintest.Component("kafka", map[string]any{
		"bootstrap_servers": []any{"localhost"},
		"topics":            []any{"logs"},
		"group_id":          "vector",
	}))
	require.Error(t, err)

	_, err = NewSource(plugintest.BuildContext("k"), plugintest.Component("kafka", map[string]any{
		"bootstrap_servers": []any{"localhost:9092"},
		"topics":            []any{"logs"},
	}))
	require.Error(t, err)
}

func TestSinkMessageUsesKeyField(t *testing.T) {
	t.Parallel()

	snk, hc, err := NewSink(plugintest.BuildContext("k"), plugintest.Component("kafka", map[string]any{
		"bootstrap_servers": []any{"localhost:9092"},
		"topic":             "logs",
		"key_field":         "user",
		"encoding":          "text",
	}))
	require.NoError(t, err)
	require.NotNil(t, hc)

	ev := plugintest.Message("login")
	ev.Set("user", 7)
	msg, err := snk.(*sink).message(ev)
	require.NoError(t, err)
	require.Equal(t, "7", string(msg.Key))
	require.Equal(t, "login", string(msg.Value))
}

func TestHealthcheckFailsWithoutBroker(t *testing.T) {
	t.Parallel()

	_, hc, err := NewSink(plugintest.BuildContext("k"), plugintest.Component("kafka", map[string]any{
		"bootstrap_servers": []any{closedAddr(t)},
		"topic":             "logs",
	}))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.ErrorContains(t, hc(ctx), "no broker reachable")
}

func TestSinkWithNoEventsClosesCleanly(t *testing.T) {
	t.Parallel()

	snk, _, err := NewSink(plugintest.BuildContext("k"), plugintest.Component("kafka", map[string]any{
		"bootstrap_servers": []any{closedAddr(t)},
		"topic":             "logs",
	}))
	require.NoError(t, err)
	require.NoError(t, snk.Run(context.Background(), plugintest.Feed()))
}
