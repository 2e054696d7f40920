package dag

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildGraph mirrors a warehouse build: dimensions feed facts, facts feed
// validation.
func buildGraph(t *testing.T) *Graph[string] {
	t.Helper()
	g := NewGraph[string]()
	dims := []string{"dim_date", "dim_geography"}
	facts := []string{"fact_paid_social", "fact_ooh"}
	for _, d := range dims {
		g.AddNode(d, "dimension")
	}
	for _, f := range facts {
		g.AddNode(f, "fact")
	}
	g.AddNode("validate", "validate")
	for _, d := range dims {
		for _, f := range facts {
			require.NoError(t, g.AddEdge(d, f))
		}
	}
	for _, f := range facts {
		require.NoError(t, g.AddEdge(f, "validate"))
	}
	return g
}

func TestGraph_AddNodeAndEdge(t *testing.T) {
	g := buildGraph(t)
	assert.Equal(t, 5, g.Len())
	assert.Equal(t, 6, g.EdgeCount())

	// Duplicate edges are ignored.
	require.NoError(t, g.AddEdge("dim_date", "fact_ooh"))
	assert.Equal(t, 6, g.EdgeCount())

	g.AddNode("dim_date", "replaced")
	n, ok := g.Node("dim_date")
	require.True(t, ok)
	assert.Equal(t, "replaced", n.Data)
	assert.Equal(t, 5, g.Len())
}

func TestGraph_AddEdge_Invalid(t *testing.T) {
	g := NewGraph[int]()
	g.AddNode("a", 1)

	assert.Error(t, g.AddEdge("a", "missing"))
	assert.Error(t, g.AddEdge("missing", "a"))
	assert.Error(t, g.AddEdge("a", "a"))
}

func TestGraph_ParentsChildren(t *testing.T) {
	g := buildGraph(t)
	assert.Equal(t, []string{"dim_date", "dim_geography"}, g.Parents("fact_ooh"))
	assert.Equal(t, []string{"fact_ooh", "fact_paid_social"}, g.Children("dim_geography"))
	assert.Empty(t, g.Parents("dim_date"))
}

func TestGraph_FindCycle(t *testing.T) {
	g := buildGraph(t)
	assert.Nil(t, g.FindCycle())

	cg := NewGraph[int]()
	for _, id := range []string{"a", "b", "c"} {
		cg.AddNode(id, 0)
	}
	require.NoError(t, cg.AddEdge("a", "b"))
	require.NoError(t, cg.AddEdge("b", "c"))
	require.NoError(t, cg.AddEdge("c", "a"))

	assert.Equal(t, []string{"a", "b", "c", "a"}, cg.FindCycle())

	_, err := cg.TopologicalSort()
	assert.Error(t, err)
	_, err = cg.Levels()
	assert.Error(t, err)
}

func TestGraph_TopologicalSort(t *testing.T) {
	nodes, err := buildGraph(t).TopologicalSort()
	require.NoError(t, err)

	var ids []string
	for _, n := range nodes {
		ids = append(ids, n.ID)
	}
	assert.Equal(t, []string{"dim_date", "dim_geography", "fact_ooh", "fact_paid_social", "validate"}, ids)
}

func TestGraph_Levels(t *testing.T) {
	levels, err := buildGraph(t).Levels()
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		{"dim_date", "dim_geography"},
		{"fact_ooh", "fact_paid_social"},
		{"validate"},
	}, levels)

	empty, err := NewGraph[int]().Levels()
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestGraph_UpstreamDownstream(t *testing.T) {
	g := buildGraph(t)
	assert.Equal(t, []string{"fact_ooh", "fact_paid_social", "validate"}, g.Downstream("dim_date"))
	assert.Equal(t, []string{"dim_date", "dim_geography", "fact_ooh", "fact_paid_social"}, g.Upstream("validate"))
	assert.Empty(t, g.Downstream("validate"))
}

func TestGraph_RootsLeaves(t *testing.T) {
	g := buildGraph(t)
	assert.Equal(t, []string{"dim_date", "dim_geography"}, g.Roots())
	assert.Equal(t, []string{"validate"}, g.Leaves())
}
