package plugin

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jmountifield/vector/internal/config"
	"github.com/jmountifield/vector/internal/event"
)

type nopSink struct{}

func (nopSink) Run(ctx context.Context, in <-chan event.Event) error {
	for range in {
	}
	return nil
}

func TestRegisterAndGetSink(t *testing.T) {
	t.Parallel()

	factory := func(bc BuildContext, def config.ComponentConfig) (Sink, Healthcheck, error) {
		return nopSink{}, nil, nil
	}

	require.NoError(t, RegisterSink("registry_test_sink", factory))

	var dup ErrAlreadyRegistered
	require.ErrorAs(t, RegisterSink("registry_test_sink", factory), &dup)
	require.Equal(t, config.RoleSink, dup.Role)

	got, err := GetSink("registry_test_sink")
	require.NoError(t, err)
	sink, hc, err := got(BuildContext{Name: "out"}, config.ComponentConfig{})
	require.NoError(t, err)
	require.Nil(t, hc)
	require.IsType(t, nopSink{}, sink)

	require.True(t, IsRegistered(config.RoleSink, "registry_test_sink"))
	require.False(t, IsRegistered(config.RoleSource, "registry_test_sink"))
	require.Contains(t, Registered(config.RoleSink), "registry_test_sink")
}

func TestGetUnknownType(t *testing.T) {
	t.Parallel()

	_, err := GetSource("registry_test_missing")
	var notFound ErrPluginNotFound
	require.ErrorAs(t, err, &notFound)
	require.Equal(t, "registry_test_missing", notFound.Type)
	require.Contains(t, err.Error(), `unknown source type "registry_test_missing"`)
}

func TestRegisterRejectsNilFactory(t *testing.T) {
	t.Parallel()

	require.Error(t, RegisterSource("registry_test_nil", nil))
	require.Error(t, RegisterTransform("registry_test_nil", nil))
	require.Error(t, RegisterSink("registry_test_nil", nil))
}

func TestTransformFunc(t *testing.T) {
	t.Parallel()

	var tr Transform = TransformFunc(func(ev event.Event) []event.Event {
		return []event.Event{ev, ev.Clone()}
	})
	require.Len(t, tr.Transform(event.New()), 2)
}
