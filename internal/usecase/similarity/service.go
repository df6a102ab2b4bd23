// Package similarity builds the kNN similarity graph over entity embeddings.
package similarity

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/zoomgraph/internal/domain/entity"
	"github.com/kailas-cloud/zoomgraph/internal/domain/graph"
)

// Provenance tags of similarity edges.
const (
	ProvenanceKNN           = "knn"
	ProvenanceHighlySimilar = "knn:highly-similar"
)

// Config controls graph construction.
type Config struct {
	K              int
	Floor          float64
	HighlySimilar  float64
	ExactThreshold int
	Workers        int
}

// Service builds similarity edges.
type Service struct {
	cfg    Config
	index  NeighborIndex
	logger *zap.Logger
}

// New creates a similarity graph builder. index may be nil: search is then always exact.
func New(cfg Config, index NeighborIndex, logger *zap.Logger) *Service {
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.GOMAXPROCS(0)
	}
	return &Service{cfg: cfg, index: index, logger: logger}
}

type candidate struct {
	j   int
	sim float64
}

// Build returns undirected similarity edges, sorted, such that every entity has
// at most K of them and every weight is at least Floor.
// Entity vectors must be L2-normalized.
func (s *Service) Build(ctx context.Context, entities []entity.Entity) ([]graph.Edge, error) {
	n := len(entities)
	if n < 2 || s.cfg.K <= 0 {
		return nil, nil
	}

	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool { return entities[order[a]].ID() < entities[order[b]].ID() })
	sorted := make([]*entity.Entity, n)
	for r, i := range order {
		sorted[r] = &entities[i]
	}

	start := time.Now()
	var (
		lists [][]candidate
		err   error
		mode  = "exact"
	)
	if n > s.cfg.ExactThreshold && s.index != nil {
		mode = "ann"
		lists, err = s.approximate(ctx, entities, sorted)
	} else {
		if n > s.cfg.ExactThreshold {
			s.logger.Warn("No vector index available, using exact kNN above threshold",
				zap.Int("entities", n), zap.Int("exact_threshold", s.cfg.ExactThreshold))
		}
		lists, err = s.exact(ctx, sorted)
	}
	if err != nil {
		return nil, err
	}

	edges := s.pick(sorted, lists)
	s.logger.Info("Similarity graph built",
		zap.String("mode", mode),
		zap.Int("entities", n),
		zap.Int("edges", len(edges)),
		zap.Duration("duration", time.Since(start)),
	)
	return edges, nil
}

// exact scans all pairs, chunked across workers.
func (s *Service) exact(ctx context.Context, sorted []*entity.Entity) ([][]candidate, error) {
	n := len(sorted)
	lists := make([][]candidate, n)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Workers)
	chunk := (n + s.cfg.Workers - 1) / s.cfg.Workers
	for lo := 0; lo < n; lo += chunk {
		hi := min(lo+chunk, n)
		g.Go(func() error {
			for i := lo; i < hi; i++ {
				if err := ctx.Err(); err != nil {
					return err
				}
				var cs []candidate
				vi := sorted[i].Vector()
				for j := range sorted {
					if j == i {
						continue
					}
					if sim := entity.Cosine(vi, sorted[j].Vector()); sim >= s.cfg.Floor {
						cs = append(cs, candidate{j: j, sim: sim})
					}
				}
				lists[i] = topK(cs, s.cfg.K)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("exact knn: %w", err)
	}
	return lists, nil
}

// approximate asks the index for candidates and rescores them exactly,
// so the result does not depend on index-side score rounding.
func (s *Service) approximate(
	ctx context.Context, entities []entity.Entity, sorted []*entity.Entity,
) ([][]candidate, error) {
	if err := s.index.Build(ctx, entities); err != nil {
		return nil, fmt.Errorf("build vector index: %w", err)
	}

	rank := make(map[string]int, len(sorted))
	for r, e := range sorted {
		rank[e.ID()] = r
	}

	lists := make([][]candidate, len(sorted))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Workers)
	for i := range sorted {
		g.Go(func() error {
			hits, err := s.index.Neighbors(ctx, sorted[i].Vector(), s.cfg.K+1)
			if err != nil {
				return fmt.Errorf("neighbors of %s: %w", sorted[i].ID(), err)
			}
			var cs []candidate
			for _, h := range hits {
				j, ok := rank[h.ID]
				if !ok || j == i {
					continue
				}
				if sim := entity.Cosine(sorted[i].Vector(), sorted[j].Vector()); sim >= s.cfg.Floor {
					cs = append(cs, candidate{j: j, sim: sim})
				}
			}
			lists[i] = topK(cs, s.cfg.K)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("ann knn: %w", err)
	}
	return lists, nil
}

// pick symmetrizes the kNN lists and keeps pairs in similarity order
// while both endpoints have fewer than K edges.
func (s *Service) pick(sorted []*entity.Entity, lists [][]candidate) []graph.Edge {
	type pair struct {
		a, b int
		sim  float64
	}
	seen := make(map[[2]int]struct{})
	var pairs []pair
	for i, cs := range lists {
		for _, c := range cs {
			a, b := i, c.j
			if b < a {
				a, b = b, a
			}
			key := [2]int{a, b}
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			pairs = append(pairs, pair{a: a, b: b, sim: c.sim})
		}
	}
	sort.Slice(pairs, func(x, y int) bool {
		if pairs[x].sim != pairs[y].sim {
			return pairs[x].sim > pairs[y].sim
		}
		if pairs[x].a != pairs[y].a {
			return pairs[x].a < pairs[y].a
		}
		return pairs[x].b < pairs[y].b
	})

	degree := make([]int, len(sorted))
	edges := make([]graph.Edge, 0, len(pairs))
	for _, p := range pairs {
		if degree[p.a] >= s.cfg.K || degree[p.b] >= s.cfg.K {
			continue
		}
		degree[p.a]++
		degree[p.b]++
		prov := ProvenanceKNN
		if s.cfg.HighlySimilar > 0 && p.sim >= s.cfg.HighlySimilar {
			prov = ProvenanceHighlySimilar
		}
		edges = append(edges, graph.NewUndirected(
			sorted[p.a].ID(), sorted[p.b].ID(), graph.EdgeSimilarity, clamp01(p.sim), prov))
	}
	graph.SortEdges(edges)
	return edges
}

// topK keeps the k most similar candidates; ties go to the lower id rank.
func topK(cs []candidate, k int) []candidate {
	sort.Slice(cs, func(a, b int) bool {
		if cs[a].sim != cs[b].sim {
			return cs[a].sim > cs[b].sim
		}
		return cs[a].j < cs[b].j
	})
	if len(cs) > k {
		cs = cs[:k]
	}
	return cs
}

func clamp01(v float64) float64 {
	if v > 1 {
		return 1
	}
	if v < 0 {
		return 0
	}
	return v
}
