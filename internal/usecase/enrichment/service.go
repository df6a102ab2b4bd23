// Package enrichment adds typed edges beyond raw similarity and enforces the per-node edge cap.
package enrichment

import (
	"sort"

	"go.uber.org/zap"

	"github.com/kailas-cloud/zoomgraph/internal/domain/entity"
	"github.com/kailas-cloud/zoomgraph/internal/domain/graph"
)

// Service unions strategy edges with similarity edges and caps them per node.
type Service struct {
	strategies []Strategy
	maxPerNode int
	logger     *zap.Logger
}

// New creates an enrichment service. Strategies run in the given order.
// maxPerNode <= 0 disables the cap.
func New(maxPerNode int, logger *zap.Logger, strategies ...Strategy) *Service {
	return &Service{strategies: strategies, maxPerNode: maxPerNode, logger: logger}
}

// Enrich returns the capped union of similarity and strategy edges, sorted.
func (s *Service) Enrich(similarity []graph.Edge, entities []entity.Entity) []graph.Edge {
	union := make([]graph.Edge, 0, len(similarity))
	union = append(union, similarity...)
	for _, st := range s.strategies {
		edges := st.Edges(entities)
		s.logger.Debug("Strategy edges", zap.String("strategy", st.Name()), zap.Int("edges", len(edges)))
		union = append(union, edges...)
	}

	kept := s.capped(union)
	graph.SortEdges(kept)
	s.logger.Info("Edges enriched",
		zap.Int("candidates", len(union)),
		zap.Int("kept", len(kept)),
		zap.Int("max_per_node", s.maxPerNode),
	)
	return kept
}

// capped keeps edges by type priority, then weight, then key. Exempt edges are
// always kept; any other edge is kept only if both endpoints are under the cap.
// Duplicates of the same type and pair collapse to the heaviest one.
func (s *Service) capped(edges []graph.Edge) []graph.Edge {
	sort.SliceStable(edges, func(i, j int) bool {
		a, b := edges[i], edges[j]
		if pa, pb := a.Type.Priority(), b.Type.Priority(); pa != pb {
			return pa < pb
		}
		if a.Weight != b.Weight {
			return a.Weight > b.Weight
		}
		return a.Key() < b.Key()
	})

	seen := make(map[string]struct{}, len(edges))
	degree := make(map[string]int)
	kept := make([]graph.Edge, 0, len(edges))
	for _, e := range edges {
		if e.Source == e.Target {
			continue
		}
		key := e.Key()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		if !e.Type.CapExempt() && s.maxPerNode > 0 {
			if degree[e.Source] >= s.maxPerNode || degree[e.Target] >= s.maxPerNode {
				continue
			}
			degree[e.Source]++
			degree[e.Target]++
		}
		kept = append(kept, e)
	}
	return kept
}
