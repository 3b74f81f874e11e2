package runtime

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jmountifield/vector/internal/logger"
)

func newRuntime(t *testing.T) *Runtime {
	t.Helper()
	rt, err := New(DefaultThreads(), logger.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { rt.ShutdownNow(time.Second) })
	return rt
}

func TestNewRejectsZeroThreads(t *testing.T) {
	t.Parallel()

	_, err := New(0, logger.Nop())
	require.Error(t, err)
}

func TestSpawnReturnsError(t *testing.T) {
	t.Parallel()

	rt := newRuntime(t)
	boom := errors.New("boom")
	h := rt.Spawn("failing", func(ctx context.Context) error { return boom })

	res := h.Result()
	require.ErrorIs(t, res.Err, boom)
	require.False(t, res.Panicked())
	require.Equal(t, "failing", h.Name())
}

func TestPanicIsContained(t *testing.T) {
	t.Parallel()

	rt := newRuntime(t)
	h := rt.Spawn("panicking", func(ctx context.Context) error { panic("kaboom") })

	res := h.Wait(context.Background())
	require.True(t, res.Panicked())
	require.Equal(t, "kaboom", res.Panic)
	require.NotEmpty(t, res.Stack)

	after := rt.Spawn("healthy", func(ctx context.Context) error { return nil })
	require.NoError(t, after.Result().Err)
}

func TestWaitTimesOutWithoutStoppingTask(t *testing.T) {
	t.Parallel()

	rt := newRuntime(t)
	release := make(chan struct{})
	h := rt.Spawn("slow", func(ctx context.Context) error {
		<-release
		return nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	res := h.Wait(ctx)
	require.True(t, res.Incomplete)
	require.True(t, res.TimedOut)
	require.Contains(t, rt.Active(), "slow")

	close(release)
	require.NoError(t, h.Result().Err)
}

func TestCancelStopsTask(t *testing.T) {
	t.Parallel()

	rt := newRuntime(t)
	h := rt.Spawn("cancellable", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	h.Cancel()

	res := h.Result()
	require.True(t, res.Cancelled)
	require.False(t, res.Incomplete)
}

func TestShutdownNowCancelsEverything(t *testing.T) {
	t.Parallel()

	rt, err := New(DefaultThreads(), logger.Nop())
	require.NoError(t, err)

	for i := 0; i < 4; i++ {
		rt.Spawn("worker", func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		})
	}

	require.True(t, rt.ShutdownNow(time.Second))
	require.Empty(t, rt.Active())

	late := rt.Spawn("late", func(ctx context.Context) error { return nil })
	require.ErrorIs(t, late.Result().Err, ErrShutdown)
}

func TestShutdownNowIsBounded(t *testing.T) {
	t.Parallel()

	rt, err := New(DefaultThreads(), logger.Nop())
	require.NoError(t, err)

	release := make(chan struct{})
	defer close(release)
	rt.Spawn("stuck", func(ctx context.Context) error {
		<-release
		return nil
	})

	start := time.Now()
	require.False(t, rt.ShutdownNow(30*time.Millisecond))
	require.Less(t, time.Since(start), time.Second)
}
