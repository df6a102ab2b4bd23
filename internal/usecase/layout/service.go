// Package layout computes per-level force-directed positions for a cluster hierarchy.
package layout

import (
	"context"
	"fmt"
	"hash/fnv"
	"runtime"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/zoomgraph/internal/domain/entity"
	"github.com/kailas-cloud/zoomgraph/internal/domain/graph"
	"github.com/kailas-cloud/zoomgraph/internal/domain/hierarchy"
)

// Config controls all layout levels.
type Config struct {
	DomainIterations int
	TopicIterations  int
	EntityIterations int
	Epsilon          float64
	Gravity          float64
	Extent           float64
	LargeGraphNodes  int
	BarnesHutNodes   int
	WarmStart        bool
	Workers          int
	Seed             int64
	Tiers            map[string]int
}

// Input is one clustered hierarchy to lay out.
type Input struct {
	RunID       string
	Entities    []entity.Entity
	Edges       []graph.Edge
	Topics      []hierarchy.Cluster
	Domains     []hierarchy.Cluster
	TopicEdges  []graph.Edge
	DomainEdges []graph.Edge
	// Previous is the published layout used for warm start; may be nil.
	Previous *hierarchy.Layout
}

// Service lays out the domain level, each domain's topics and each topic's entities.
type Service struct {
	cfg    Config
	logger *zap.Logger
}

// New creates a layout engine.
func New(cfg Config, logger *zap.Logger) *Service {
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.GOMAXPROCS(0)
	}
	if cfg.Extent <= 0 {
		cfg.Extent = 1000
	}
	return &Service{cfg: cfg, logger: logger}
}

// Layout computes the layout artifact. Per-domain and per-topic layouts run in parallel.
func (s *Service) Layout(ctx context.Context, in Input) (*hierarchy.Layout, error) {
	start := time.Now()
	var prev hierarchy.Layout
	if s.cfg.WarmStart && in.Previous != nil {
		prev = *in.Previous
	}

	domainCat := make(map[string]string, len(in.Domains))
	domainIDs := make([]string, len(in.Domains))
	for i := range in.Domains {
		domainIDs[i] = in.Domains[i].ID
		domainCat[in.Domains[i].ID] = in.Domains[i].DominantCategory
	}
	topicCat := make(map[string]string, len(in.Topics))
	domainOfTopic := make(map[string]string, len(in.Topics))
	topicOfEntity := make(map[string]string, len(in.Entities))
	for i := range in.Topics {
		t := &in.Topics[i]
		topicCat[t.ID] = t.DominantCategory
		domainOfTopic[t.ID] = t.Parent
		for _, id := range t.Members {
			topicOfEntity[id] = t.ID
		}
	}
	entityCat := make(map[string]string, len(in.Entities))
	for i := range in.Entities {
		entityCat[in.Entities[i].ID()] = in.Entities[i].Category()
	}

	out := &hierarchy.Layout{
		RunID: in.RunID,
		Domains: Place(graph.FromEdges(domainIDs, in.DomainEdges),
			s.options(s.cfg.DomainIterations, "domains", lookup(domainCat), prev.Domains)),
		Topics:   make(map[string]hierarchy.Position, len(in.Topics)),
		Entities: make(map[string]hierarchy.Position, len(in.Entities)),
	}

	topicEdges := bucket(in.TopicEdges, domainOfTopic)
	entityEdges := bucket(in.Edges, topicOfEntity)

	domainPos := make([]map[string]hierarchy.Position, len(in.Domains))
	topicPos := make([]map[string]hierarchy.Position, len(in.Topics))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Workers)
	for i := range in.Domains {
		d := &in.Domains[i]
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			domainPos[i] = Place(graph.FromEdges(d.Members, topicEdges[d.ID]),
				s.options(s.cfg.TopicIterations, d.ID, lookup(topicCat), prev.Topics))
			return nil
		})
	}
	for i := range in.Topics {
		t := &in.Topics[i]
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			topicPos[i] = Place(graph.FromEdges(t.Members, entityEdges[t.ID]),
				s.options(s.cfg.EntityIterations, t.ID, lookup(entityCat), prev.Entities))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("layout: %w", err)
	}

	for _, m := range domainPos {
		for id, p := range m {
			out.Topics[id] = p
		}
	}
	for _, m := range topicPos {
		for id, p := range m {
			out.Entities[id] = p
		}
	}

	s.logger.Info("Layout computed",
		zap.Int("domains", len(out.Domains)),
		zap.Int("topics", len(out.Topics)),
		zap.Int("entities", len(out.Entities)),
		zap.Bool("warm_start", in.Previous != nil && s.cfg.WarmStart),
		zap.Duration("duration", time.Since(start)),
	)
	return out, nil
}

func (s *Service) options(iters int, key string, category func(string) string, initial map[string]hierarchy.Position) Options {
	return Options{
		Iterations:      iters,
		Epsilon:         s.cfg.Epsilon,
		Gravity:         s.cfg.Gravity,
		Extent:          s.cfg.Extent,
		BarnesHutNodes:  s.cfg.BarnesHutNodes,
		LargeGraphNodes: s.cfg.LargeGraphNodes,
		Seed:            SeedFor(s.cfg.Seed, key),
		Tiers:           s.cfg.Tiers,
		Category:        category,
		Initial:         initial,
	}
}

// SeedFor derives the seed of one layout from the run seed and the layout key,
// so results do not depend on scheduling order.
func SeedFor(seed int64, key string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(key))
	return seed ^ int64(h.Sum64()) //nolint:gosec // bit mixing, overflow intended
}

// bucket groups edges whose endpoints share a parent under that parent.
func bucket(edges []graph.Edge, parentOf map[string]string) map[string][]graph.Edge {
	out := make(map[string][]graph.Edge)
	for _, e := range edges {
		p, ok := parentOf[e.Source]
		if !ok || parentOf[e.Target] != p {
			continue
		}
		out[p] = append(out[p], e)
	}
	return out
}

func lookup(m map[string]string) func(string) string {
	return func(id string) string { return m[id] }
}
