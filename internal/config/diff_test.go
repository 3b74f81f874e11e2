package config

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

const generationA = `
sources:
  in:
    type: stdin
  gen:
    type: generator
    lines: [a]
transforms:
  parse:
    type: remap
    inputs: [in]
    program: .
sinks:
  out:
    type: console
    inputs: [parse]
`

const generationB = `
sources:
  in:
    type: stdin
  gen:
    type: generator
    lines: [a, b]
transforms:
  parse:
    type: remap
    inputs: [in, gen]
    program: .
sinks:
  file:
    type: file
    inputs: [parse]
    path: /tmp/out
`

func requireDisjoint(t *testing.T, d Difference) {
	t.Helper()
	seen := map[string]int{}
	for _, set := range [][]string{d.ToRemove, d.ToChange, d.ToAdd} {
		for _, name := range set {
			seen[name]++
		}
	}
	for name, n := range seen {
		require.Equal(t, 1, n, "component %q appears in more than one set", name)
	}
}

func TestDiffClassifiesChanges(t *testing.T) {
	t.Parallel()

	diff := NewDiff(mustLoad(t, generationA), mustLoad(t, generationB))

	require.Equal(t, Difference{ToChange: []string{"gen"}}, diff.Sources)
	require.Equal(t, Difference{ToChange: []string{"parse"}}, diff.Transforms)
	require.Equal(t, Difference{ToRemove: []string{"out"}, ToAdd: []string{"file"}}, diff.Sinks)

	for _, role := range Roles {
		requireDisjoint(t, diff.Role(role))
	}

	require.True(t, diff.Sinks.IsRemoved("out"))
	require.True(t, diff.Sinks.IsAdded("file"))
	require.True(t, diff.Sources.IsChanged("gen"))
	require.False(t, diff.Sources.Contains("in"))
	require.Equal(t, []string{"file", "out"}, append(diff.Sinks.ChangedOrAdded(), diff.Sinks.RemovedOrChanged()...))
}

func TestDiffAgainstSelfIsEmpty(t *testing.T) {
	t.Parallel()

	for _, doc := range []string{generationA, generationB} {
		diff := NewDiff(mustLoad(t, doc), mustLoad(t, doc))
		require.True(t, diff.Empty())
	}
}

func TestInitialDiffAddsEverything(t *testing.T) {
	t.Parallel()

	cfg := mustLoad(t, generationA)
	initial := InitialDiff(cfg)

	require.Equal(t, NewDiff(Empty(), cfg), initial)
	require.Equal(t, []string{"gen", "in"}, initial.Sources.ToAdd)
	require.Equal(t, []string{"parse"}, initial.Transforms.ToAdd)
	require.Equal(t, []string{"out"}, initial.Sinks.ToAdd)
	require.Empty(t, initial.Sinks.ToRemove)
	require.Empty(t, initial.Sinks.ToChange)
}

func TestEqualIgnoresMapOrder(t *testing.T) {
	t.Parallel()

	a := ComponentConfig{Type: "x", Options: map[string]any{"a": 1, "b": map[string]any{"c": 2, "d": 3}}}
	b := ComponentConfig{Type: "x", Options: map[string]any{"b": map[string]any{"d": 3, "c": 2}, "a": 1}}
	require.True(t, Equal(a, b))

	b.Options["a"] = 2
	require.False(t, Equal(a, b))
}

func TestDiffAgainstSelfWithUnencodableOptions(t *testing.T) {
	t.Parallel()

	docs := []string{
		"sources:\n  in:\n    type: generator\n    ratio: .nan\n",
		"sources:\n  in:\n    type: generator\n    limits: {1: low, 2: high}\n",
		"sources:\n  in:\n    type: generator\n    bounds: [-.inf, .inf]\n",
	}
	for _, doc := range docs {
		diff := NewDiff(mustLoad(t, doc), mustLoad(t, doc))
		require.True(t, diff.Empty(), doc)
	}
}

func TestEqualDetectsChangeAwayFromNaN(t *testing.T) {
	t.Parallel()

	a := ComponentConfig{Type: "x", Options: map[string]any{"ratio": math.NaN()}}
	b := ComponentConfig{Type: "x", Options: map[string]any{"ratio": 1.5}}
	require.True(t, Equal(a, a))
	require.False(t, Equal(a, b))
}
