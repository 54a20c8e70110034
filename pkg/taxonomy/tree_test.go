package taxonomy

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func processEdges() []Edge {
	return []Edge{
		{"1A1", "1A", 3},
		{"1A2", "1A", 3},
		{"1B1", "1B", 3},
		{"1A", "1", 2},
		{"1B", "1", 2},
		{"1", "Total", 1},
		{"2", "Total", 1},
	}
}

func TestNewTree(t *testing.T) {
	tree, err := NewTree(Process, processEdges())
	require.NoError(t, err)
	assert.Equal(t, 3, tree.MaxDepth())
	assert.Equal(t, 8, tree.Len())

	root, ok := tree.Root()
	require.True(t, ok)
	assert.Equal(t, "Total", root)

	n, ok := tree.Lookup("1A1")
	require.True(t, ok)
	assert.Equal(t, Node{ID: "1A1", Parent: "1A", HasParent: true, Depth: 3}, n)

	n, ok = tree.Lookup("Total")
	require.True(t, ok)
	assert.False(t, n.HasParent)
	assert.Equal(t, 0, n.Depth)

	assert.True(t, tree.Contains("1"))
	assert.False(t, tree.Contains("Total"))
	assert.False(t, tree.Contains("9"))
	assert.Equal(t, []string{"1A1", "1A2"}, tree.Children("1A"))

	chain, err := tree.Chain("1B1")
	require.NoError(t, err)
	assert.Equal(t, []string{"1B1", "1B", "1", "Total"}, chain)
	assert.NoError(t, tree.ResolvesTo("1A2", "Total"))
	assert.True(t, errors.Is(tree.ResolvesTo("1A2", "Other"), ErrNoTotal))
	assert.True(t, errors.Is(tree.ResolvesTo("x", "Total"), ErrUnknownID))
}

func TestNewTreeErrors(t *testing.T) {
	_, err := NewTree(Process, []Edge{{"a", "r", 1}, {"a", "s", 1}})
	assert.True(t, errors.Is(err, ErrDuplicateChild))

	_, err = NewTree(Process, []Edge{{"a", "r", 1}, {"b", "a", 3}})
	assert.True(t, errors.Is(err, ErrInconsistentDepth))

	_, err = NewTree(Process, []Edge{{"b", "a", 3}, {"a", "r", 1}})
	assert.True(t, errors.Is(err, ErrInconsistentDepth))

	_, err = NewTree(Process, []Edge{{"a", "r", 2}})
	assert.True(t, errors.Is(err, ErrInconsistentDepth))

	_, err = NewTree(Process, []Edge{{"a", "r", 0}})
	assert.True(t, errors.Is(err, ErrInconsistentDepth))
}

func TestBuildWithEntries(t *testing.T) {
	tx, err := Build(Process, Spec{
		Entries: []Entry{
			{ID: "p1", Code: "1", Name: "Energy", Rank: 1},
			{ID: "tot", Code: "Total", Rank: 0},
		},
		Edges: []Edge{{"p1", "tot", 1}},
	})
	require.NoError(t, err)
	assert.Equal(t, "1", tx.Entry("p1").Code)
	assert.Equal(t, "Total", tx.Entry("tot").Name)
	assert.True(t, tx.Known("p1"))
	assert.False(t, tx.Known("p2"))

	_, err = Build(Process, Spec{
		Entries: []Entry{{ID: "p1"}},
		Edges:   []Edge{{"p1", "tot", 1}},
	})
	assert.True(t, errors.Is(err, ErrUnknownID))

	_, err = Build(Process, Spec{Entries: []Entry{{ID: "p1"}, {ID: "p1"}}})
	assert.Error(t, err)
}

func TestBuildWithoutEntries(t *testing.T) {
	tx, err := Build(Compound, Spec{Edges: []Edge{{"CO2", "Total", 1}}})
	require.NoError(t, err)
	e := tx.Entry("CO2")
	assert.Equal(t, "CO2", e.Code)
	assert.Equal(t, "CO2", e.Name)
	assert.True(t, tx.Known("Total"))
}

func TestBuildForestEmptyAxes(t *testing.T) {
	f, err := BuildForest(Input{Process: Spec{Edges: processEdges()}})
	require.NoError(t, err)
	assert.Equal(t, 0, f.Get(Compound).Tree.Len())
	assert.Equal(t, Resource, f.Get(Resource).Axis)
}
