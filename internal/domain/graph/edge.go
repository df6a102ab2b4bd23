package graph

import (
	"fmt"
	"sort"
)

// EdgeType tags an edge with the relation it represents.
type EdgeType string

const (
	// EdgeSimilarity links embedding nearest neighbors.
	EdgeSimilarity EdgeType = "similarity"
	// EdgeSameCategory links entities sharing a metadata value.
	EdgeSameCategory EdgeType = "same-category"
	// EdgeTemporal links entities created close together in time.
	EdgeTemporal EdgeType = "temporal-context"
	// EdgeReference links an entity to an id named in its metadata.
	EdgeReference EdgeType = "explicit-reference"
	// EdgeHub links entities to a structural hub entity.
	EdgeHub EdgeType = "hub"
)

// AllTypes lists the edge vocabulary in priority order.
var AllTypes = []EdgeType{EdgeReference, EdgeSimilarity, EdgeSameCategory, EdgeTemporal, EdgeHub}

// Priority orders edge types for capped selection; lower is kept first.
func (t EdgeType) Priority() int {
	switch t {
	case EdgeReference:
		return 0
	case EdgeSimilarity:
		return 1
	default:
		return 2
	}
}

// CapExempt reports whether edges of this type survive per-node caps.
func (t EdgeType) CapExempt() bool { return t == EdgeReference }

// Valid reports whether t belongs to the edge vocabulary.
func (t EdgeType) Valid() bool {
	for _, v := range AllTypes {
		if v == t {
			return true
		}
	}
	return false
}

// ParseEdgeType validates a raw edge type string.
func ParseEdgeType(s string) (EdgeType, error) {
	t := EdgeType(s)
	if !t.Valid() {
		return "", fmt.Errorf("unknown edge type %q", s)
	}
	return t, nil
}

// Edge is a typed, weighted relation between two entity ids.
// Undirected edges are stored with Source < Target.
type Edge struct {
	Source     string   `msgpack:"s" json:"source"`
	Target     string   `msgpack:"t" json:"target"`
	Type       EdgeType `msgpack:"y" json:"type"`
	Weight     float64  `msgpack:"w" json:"weight"`
	Provenance string   `msgpack:"p" json:"provenance"`
	Directed   bool     `msgpack:"d,omitempty" json:"directed,omitempty"`
}

// NewUndirected builds an undirected edge with canonical endpoint order.
func NewUndirected(a, b string, t EdgeType, w float64, provenance string) Edge {
	if b < a {
		a, b = b, a
	}
	return Edge{Source: a, Target: b, Type: t, Weight: w, Provenance: provenance}
}

// NewDirected builds a directed edge from source to target.
func NewDirected(source, target string, t EdgeType, w float64, provenance string) Edge {
	return Edge{Source: source, Target: target, Type: t, Weight: w, Provenance: provenance, Directed: true}
}

// Other returns the endpoint opposite to id.
func (e Edge) Other(id string) string {
	if e.Source == id {
		return e.Target
	}
	return e.Source
}

// Key identifies the edge by endpoints and type.
func (e Edge) Key() string {
	a, b := e.Source, e.Target
	if !e.Directed && b < a {
		a, b = b, a
	}
	return string(e.Type) + "|" + a + "|" + b
}

// SortEdges orders edges by source, target, then type for stable output.
func SortEdges(edges []Edge) {
	sort.Slice(edges, func(i, j int) bool {
		a, b := edges[i], edges[j]
		if a.Source != b.Source {
			return a.Source < b.Source
		}
		if a.Target != b.Target {
			return a.Target < b.Target
		}
		return a.Type < b.Type
	})
}

// CountByType tallies edges per type.
func CountByType(edges []Edge) map[EdgeType]int {
	counts := make(map[EdgeType]int, len(AllTypes))
	for _, e := range edges {
		counts[e.Type]++
	}
	return counts
}

// Neighbor is one nearest-neighbor hit.
type Neighbor struct {
	ID         string
	Similarity float64
}
