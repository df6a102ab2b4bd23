package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuilder_ParallelEdgesSummed(t *testing.T) {
	g := FromEdges([]string{"a", "b", "c"}, []Edge{
		NewUndirected("a", "b", EdgeSimilarity, 0.9, "knn"),
		NewUndirected("b", "a", EdgeSameCategory, 0.5, "metadata-equality:category"),
		NewUndirected("b", "c", EdgeTemporal, 0.4, "temporal-proximity"),
		NewUndirected("a", "zzz", EdgeHub, 0.3, "hub"),
	})

	require.Equal(t, 3, g.Len())
	assert.Equal(t, 2, g.EdgeCount())
	require.Len(t, g.Neighbors(0), 1)
	assert.Equal(t, 1, g.Neighbors(0)[0].To)
	assert.InDelta(t, 1.4, g.Neighbors(0)[0].Weight, 1e-9)
	assert.InDelta(t, 1.8, g.Strength(1), 1e-9)
	assert.InDelta(t, 3.6, g.TotalStrength(), 1e-9)
}

func TestBuilder_SelfLoopCountsTwice(t *testing.T) {
	b := NewBuilder([]string{"a", "b"})
	b.Add(0, 0, 1)
	b.Add(0, 1, 1)
	g := b.Build()

	assert.Equal(t, 1.0, g.SelfLoop(0))
	assert.Equal(t, 3.0, g.Strength(0))
	assert.Equal(t, 1.0, g.Strength(1))
}

func TestBuilder_IgnoresNonPositive(t *testing.T) {
	b := NewBuilder([]string{"a", "b"})
	b.Add(0, 1, 0)
	b.Add(0, 1, -1)
	g := b.Build()

	assert.True(t, g.Isolated(0))
	assert.Zero(t, g.TotalStrength())
}

func TestGraph_Subgraph(t *testing.T) {
	g := FromEdges([]string{"a", "b", "c", "d"}, []Edge{
		NewUndirected("a", "b", EdgeSimilarity, 1, ""),
		NewUndirected("b", "c", EdgeSimilarity, 2, ""),
		NewUndirected("c", "d", EdgeSimilarity, 3, ""),
	})

	sub := g.Subgraph([]int{2, 1})
	require.Equal(t, 2, sub.Len())
	assert.Equal(t, "c", sub.ID(0))
	assert.Equal(t, []Arc{{To: 1, Weight: 2}}, sub.Neighbors(0))
	assert.Equal(t, 1, sub.EdgeCount())
}

func TestGraph_AggregatePreservesStrength(t *testing.T) {
	g := FromEdges([]string{"a", "b", "c", "d"}, []Edge{
		NewUndirected("a", "b", EdgeSimilarity, 1, ""),
		NewUndirected("b", "c", EdgeSimilarity, 2, ""),
		NewUndirected("c", "d", EdgeSimilarity, 3, ""),
	})

	agg := g.Aggregate([]int{0, 0, 1, 1}, []string{"x", "y"})
	require.Equal(t, 2, agg.Len())
	assert.Equal(t, 1.0, agg.SelfLoop(0))
	assert.Equal(t, 3.0, agg.SelfLoop(1))
	assert.Equal(t, []Arc{{To: 1, Weight: 2}}, agg.Neighbors(0))
	assert.InDelta(t, g.TotalStrength(), agg.TotalStrength(), 1e-9)
}

func TestEdge_CanonicalOrderAndKey(t *testing.T) {
	e := NewUndirected("b", "a", EdgeSimilarity, 0.9, "knn")
	assert.Equal(t, "a", e.Source)
	assert.Equal(t, "b", e.Other("a"))

	d := NewDirected("b", "a", EdgeReference, 1, "explicit-reference")
	assert.Equal(t, "b", d.Source)
	assert.NotEqual(t, e.Key(), d.Key())
}

func TestEdgeType_Priority(t *testing.T) {
	assert.Less(t, EdgeReference.Priority(), EdgeSimilarity.Priority())
	assert.Less(t, EdgeSimilarity.Priority(), EdgeTemporal.Priority())
	assert.Equal(t, EdgeSameCategory.Priority(), EdgeHub.Priority())
	assert.True(t, EdgeReference.CapExempt())
	assert.False(t, EdgeSimilarity.CapExempt())

	_, err := ParseEdgeType("friendship")
	assert.Error(t, err)
}
