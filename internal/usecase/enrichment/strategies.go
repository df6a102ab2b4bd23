package enrichment

import (
	"sort"
	"time"

	"github.com/kailas-cloud/zoomgraph/internal/domain/entity"
	"github.com/kailas-cloud/zoomgraph/internal/domain/graph"
)

// Metadata links entities that share a metadata value.
// Within each group, members sorted by id are linked to the next Fanout members.
type Metadata struct {
	Keys     []string
	Weight   float64
	Fanout   int
	MaxGroup int
}

// Name implements Strategy.
func (m Metadata) Name() string { return "metadata" }

// Edges implements Strategy.
func (m Metadata) Edges(entities []entity.Entity) []graph.Edge {
	var edges []graph.Edge
	for _, key := range m.Keys {
		groups := make(map[string][]string)
		for i := range entities {
			if v := entities[i].MetadataValue(key); v != "" {
				groups[v] = append(groups[v], entities[i].ID())
			}
		}
		values := make([]string, 0, len(groups))
		for v := range groups {
			values = append(values, v)
		}
		sort.Strings(values)

		for _, v := range values {
			ids := groups[v]
			if len(ids) < 2 || (m.MaxGroup > 0 && len(ids) > m.MaxGroup) {
				continue
			}
			sort.Strings(ids)
			prov := "metadata:" + key
			for i := range ids {
				for j := i + 1; j < len(ids) && j <= i+m.Fanout; j++ {
					edges = append(edges, graph.NewUndirected(ids[i], ids[j], graph.EdgeSameCategory, m.Weight, prov))
				}
			}
		}
	}
	return edges
}

// Temporal links consecutive entities of one source created on the same
// UTC day less than Window apart.
type Temporal struct {
	Window time.Duration
	Weight float64
}

// Name implements Strategy.
func (t Temporal) Name() string { return "temporal" }

// Edges implements Strategy.
func (t Temporal) Edges(entities []entity.Entity) []graph.Edge {
	type stamped struct {
		id string
		at time.Time
	}
	groups := make(map[string][]stamped)
	for i := range entities {
		e := &entities[i]
		at := e.CreatedAt()
		if at.IsZero() {
			continue
		}
		at = at.UTC()
		key := e.Source() + "\x00" + at.Format(time.DateOnly)
		groups[key] = append(groups[key], stamped{id: e.ID(), at: at})
	}
	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var edges []graph.Edge
	for _, k := range keys {
		g := groups[k]
		sort.Slice(g, func(a, b int) bool {
			if !g[a].at.Equal(g[b].at) {
				return g[a].at.Before(g[b].at)
			}
			return g[a].id < g[b].id
		})
		for i := 1; i < len(g); i++ {
			if g[i].at.Sub(g[i-1].at) < t.Window {
				edges = append(edges, graph.NewUndirected(g[i-1].id, g[i].id, graph.EdgeTemporal, t.Weight, "temporal"))
			}
		}
	}
	return edges
}

// References links an entity to every known id named in its references metadata.
type References struct{}

// ReferenceWeight is the weight of explicit-reference edges.
const ReferenceWeight = 1.0

// Name implements Strategy.
func (References) Name() string { return "references" }

// Edges implements Strategy.
func (References) Edges(entities []entity.Entity) []graph.Edge {
	known := make(map[string]struct{}, len(entities))
	for i := range entities {
		known[entities[i].ID()] = struct{}{}
	}
	var edges []graph.Edge
	for i := range entities {
		e := &entities[i]
		for _, ref := range e.References() {
			if ref == e.ID() {
				continue
			}
			if _, ok := known[ref]; !ok {
				continue
			}
			edges = append(edges, graph.NewDirected(e.ID(), ref, graph.EdgeReference, ReferenceWeight, "references"))
		}
	}
	return edges
}

// Hub links entities of the given categories to a structural hub entity.
type Hub struct {
	EntityID   string
	Categories []string
	Weight     float64
}

// Name implements Strategy.
func (h Hub) Name() string { return "hub" }

// Edges implements Strategy.
func (h Hub) Edges(entities []entity.Entity) []graph.Edge {
	if h.EntityID == "" {
		return nil
	}
	cats := make(map[string]struct{}, len(h.Categories))
	for _, c := range h.Categories {
		cats[c] = struct{}{}
	}
	var hubFound bool
	var edges []graph.Edge
	for i := range entities {
		e := &entities[i]
		if e.ID() == h.EntityID {
			hubFound = true
			continue
		}
		if _, ok := cats[e.Category()]; ok {
			edges = append(edges, graph.NewUndirected(h.EntityID, e.ID(), graph.EdgeHub, h.Weight, "hub"))
		}
	}
	if !hubFound {
		return nil
	}
	return edges
}
