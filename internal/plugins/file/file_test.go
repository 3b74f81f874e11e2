package fileplugin

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jmountifield/vector/internal/plugin"
	"github.com/jmountifield/vector/internal/plugins/plugintest"
)

func runSource(t *testing.T, src plugin.Source, out *plugintest.Output) func() {
	t.Helper()

	shutdown := make(chan struct{})
	done := make(chan error, 1)
	go func() { done <- src.Run(context.Background(), shutdown, out) }()

	return func() {
		close(shutdown)
		select {
		case err := <-done:
			require.NoError(t, err)
		case <-time.After(2 * time.Second):
			t.Fatal("file source ignored shutdown")
		}
	}
}

func appendTo(t *testing.T, path, data string) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString(data)
	require.NoError(t, err)
	require.NoError(t, f.Close())
}

func TestFileSourceFollowsAppends(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "app.log")
	appendTo(t, path, "old line\n")

	src, err := New(plugintest.BuildContext("files"), plugintest.Component("file", map[string]any{
		"include":       []any{filepath.Join(dir, "*.log")},
		"poll_interval": "10ms",
	}))
	require.NoError(t, err)

	out := &plugintest.Output{}
	stop := runSource(t, src, out)

	time.Sleep(30 * time.Millisecond)
	appendTo(t, path, "new line\npartial")

	require.Eventually(t, func() bool { return out.Len() == 1 }, 2*time.Second, 10*time.Millisecond)
	ev := out.Events()[0]
	require.Equal(t, "new line", ev.Fields["message"])
	require.Equal(t, path, ev.Fields["file"])

	appendTo(t, path, " done\n")
	require.Eventually(t, func() bool { return out.Len() == 2 }, 2*time.Second, 10*time.Millisecond)
	require.Equal(t, "partial done", out.Events()[1].Fields["message"])

	stop()
}

func TestFileSourceStartAtBeginningAndExclude(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	appendTo(t, filepath.Join(dir, "a.log"), "a1\na2\n")
	appendTo(t, filepath.Join(dir, "skip.log"), "s1\n")

	src, err := New(plugintest.BuildContext("files"), plugintest.Component("file", map[string]any{
		"include":            []any{filepath.Join(dir, "**", "*.log")},
		"exclude":            []any{filepath.Join(dir, "skip.log")},
		"start_at_beginning": true,
		"poll_interval":      "10ms",
	}))
	require.NoError(t, err)

	out := &plugintest.Output{}
	stop := runSource(t, src, out)
	require.Eventually(t, func() bool { return out.Len() == 2 }, 2*time.Second, 10*time.Millisecond)
	stop()

	require.Equal(t, "a1", out.Events()[0].Fields["message"])
	require.Equal(t, "a2", out.Events()[1].Fields["message"])
}

func TestFileSourceCheckpointsSurviveRestart(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	dataDir := t.TempDir()
	path := filepath.Join(dir, "app.log")
	appendTo(t, path, "first\n")

	bc := plugintest.BuildContext("files")
	bc.DataDir = dataDir
	def := plugintest.Component("file", map[string]any{
		"include":            []any{path},
		"start_at_beginning": true,
		"poll_interval":      "10ms",
	})

	src, err := New(bc, def)
	require.NoError(t, err)
	out := &plugintest.Output{}
	stop := runSource(t, src, out)
	require.Eventually(t, func() bool { return out.Len() == 1 }, 2*time.Second, 10*time.Millisecond)
	stop()

	require.FileExists(t, filepath.Join(dataDir, "files", checkpointFile))
	appendTo(t, path, "second\n")

	src, err = New(bc, def)
	require.NoError(t, err)
	out = &plugintest.Output{}
	stop = runSource(t, src, out)
	require.Eventually(t, func() bool { return out.Len() == 1 }, 2*time.Second, 10*time.Millisecond)
	stop()

	require.Equal(t, "second", out.Events()[0].Fields["message"])
}

func TestFileSourceRejectsBadOptions(t *testing.T) {
	t.Parallel()

	_, err := New(plugintest.BuildContext("files"), plugintest.Component("file", nil))
	require.Error(t, err)

	_, err = New(plugintest.BuildContext("files"), plugintest.Component("file", map[string]any{
		"include": []any{"[unclosed"},
	}))
	require.Error(t, err)
}
