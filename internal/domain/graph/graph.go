package graph

import "sort"

// Arc is one adjacency entry of a weighted undirected graph.
type Arc struct {
	To     int
	Weight float64
}

// Graph is an immutable weighted undirected graph over indexed nodes.
// Parallel edges are summed; self loops are kept separately.
type Graph struct {
	ids      []string
	index    map[string]int
	adj      [][]Arc
	self     []float64
	strength []float64
	total2m  float64
}

// Builder accumulates weighted edges before freezing them into a Graph.
type Builder struct {
	ids     []string
	index   map[string]int
	weights []map[int]float64
	self    []float64
}

// NewBuilder creates a builder over the given node ids, in index order.
func NewBuilder(ids []string) *Builder {
	b := &Builder{
		ids:     append([]string(nil), ids...),
		index:   make(map[string]int, len(ids)),
		weights: make([]map[int]float64, len(ids)),
		self:    make([]float64, len(ids)),
	}
	for i, id := range ids {
		b.index[id] = i
	}
	return b
}

// Add adds weight w between nodes u and v. Non-positive weights are ignored.
func (b *Builder) Add(u, v int, w float64) {
	if w <= 0 {
		return
	}
	if u == v {
		b.self[u] += w
		return
	}
	if b.weights[u] == nil {
		b.weights[u] = make(map[int]float64)
	}
	if b.weights[v] == nil {
		b.weights[v] = make(map[int]float64)
	}
	b.weights[u][v] += w
	b.weights[v][u] += w
}

// AddByID adds weight between two ids; unknown ids are reported as false.
func (b *Builder) AddByID(a, c string, w float64) bool {
	u, ok := b.index[a]
	if !ok {
		return false
	}
	v, ok := b.index[c]
	if !ok {
		return false
	}
	b.Add(u, v, w)
	return true
}

// Build freezes the builder. Adjacency lists are sorted by target index.
func (b *Builder) Build() *Graph {
	n := len(b.ids)
	g := &Graph{
		ids:      b.ids,
		index:    b.index,
		adj:      make([][]Arc, n),
		self:     b.self,
		strength: make([]float64, n),
	}
	for u := 0; u < n; u++ {
		arcs := make([]Arc, 0, len(b.weights[u]))
		for v, w := range b.weights[u] {
			arcs = append(arcs, Arc{To: v, Weight: w})
		}
		sort.Slice(arcs, func(i, j int) bool { return arcs[i].To < arcs[j].To })
		g.adj[u] = arcs

		s := 2 * b.self[u]
		for _, a := range arcs {
			s += a.Weight
		}
		g.strength[u] = s
		g.total2m += s
	}
	return g
}

// FromEdges builds a graph over ids from typed edges, summing parallel edges.
// Edges naming unknown ids are skipped.
func FromEdges(ids []string, edges []Edge) *Graph {
	b := NewBuilder(ids)
	for _, e := range edges {
		b.AddByID(e.Source, e.Target, e.Weight)
	}
	return b.Build()
}

// Len returns the number of nodes.
func (g *Graph) Len() int { return len(g.ids) }

// ID returns the id of node i.
func (g *Graph) ID(i int) string { return g.ids[i] }

// IDs returns all node ids in index order.
func (g *Graph) IDs() []string { return g.ids }

// Index resolves a node id.
func (g *Graph) Index(id string) (int, bool) {
	i, ok := g.index[id]
	return i, ok
}

// Neighbors returns the arcs of node i, excluding its self loop.
func (g *Graph) Neighbors(i int) []Arc { return g.adj[i] }

// SelfLoop returns the self-loop weight of node i.
func (g *Graph) SelfLoop(i int) float64 { return g.self[i] }

// Strength returns the weighted degree of node i; self loops count twice.
func (g *Graph) Strength(i int) float64 { return g.strength[i] }

// TotalStrength returns the sum of all strengths (2m).
func (g *Graph) TotalStrength() float64 { return g.total2m }

// Isolated reports whether node i has no edges to other nodes.
func (g *Graph) Isolated(i int) bool { return len(g.adj[i]) == 0 }

// EdgeCount returns the number of distinct undirected node pairs with weight.
func (g *Graph) EdgeCount() int {
	var n int
	for _, arcs := range g.adj {
		n += len(arcs)
	}
	return n / 2
}

// Subgraph returns the graph induced by nodes, re-indexed in the given order.
func (g *Graph) Subgraph(nodes []int) *Graph {
	ids := make([]string, len(nodes))
	local := make(map[int]int, len(nodes))
	for i, u := range nodes {
		ids[i] = g.ids[u]
		local[u] = i
	}
	b := NewBuilder(ids)
	for i, u := range nodes {
		b.self[i] = g.self[u]
		for _, a := range g.adj[u] {
			j, ok := local[a.To]
			if !ok || j < i {
				continue
			}
			b.Add(i, j, a.Weight)
		}
	}
	return b.Build()
}

// Aggregate collapses nodes into communities given by membership.
// Community c becomes node c with id ids[c]; internal weight becomes a self loop.
func (g *Graph) Aggregate(membership []int, ids []string) *Graph {
	b := NewBuilder(ids)
	for u := range g.adj {
		cu := membership[u]
		b.self[cu] += g.self[u]
		for _, a := range g.adj[u] {
			if a.To < u {
				continue
			}
			b.Add(cu, membership[a.To], a.Weight)
		}
	}
	return b.Build()
}
