// Package clustering builds the two-level topic/domain hierarchy from the enriched graph.
package clustering

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/zoomgraph/internal/domain"
	"github.com/kailas-cloud/zoomgraph/internal/domain/entity"
	"github.com/kailas-cloud/zoomgraph/internal/domain/graph"
	"github.com/kailas-cloud/zoomgraph/internal/domain/hierarchy"
)

// Edge aggregation modes for cluster-level graphs.
const (
	AggregateSum  = "sum"
	AggregateMean = "mean"
)

// Degenerate conditions.
const (
	ConditionSingleCluster = "single-cluster"
	ConditionAllSingletons = "all-singletons"
)

// Config controls both clustering levels.
type Config struct {
	L1Resolution  float64
	L2Resolution  float64
	Seed          int64
	MaxPasses     int
	Aggregation   string
	CentroidFloor float64
}

// Result is the cluster hierarchy of one run. Labels are left empty.
type Result struct {
	Topics      []hierarchy.Cluster
	Domains     []hierarchy.Cluster
	TopicEdges  []graph.Edge
	DomainEdges []graph.Edge
	// Degenerate holds "<level>:<condition>" entries.
	Degenerate []string
}

// Service runs the same community detection on entities and then on topics.
type Service struct {
	cfg    Config
	logger *zap.Logger
}

// New creates a clustering engine.
func New(cfg Config, logger *zap.Logger) *Service {
	if cfg.Aggregation == "" {
		cfg.Aggregation = AggregateSum
	}
	return &Service{cfg: cfg, logger: logger}
}

// Cluster assigns every entity to exactly one topic and every topic to exactly one domain.
func (s *Service) Cluster(ctx context.Context, entities []entity.Entity, edges []graph.Edge) (*Result, error) {
	if len(entities) == 0 {
		return nil, fmt.Errorf("%w: no entities to cluster", domain.ErrInvalidInput)
	}
	start := time.Now()

	byID := make(map[string]*entity.Entity, len(entities))
	ids := make([]string, 0, len(entities))
	for i := range entities {
		byID[entities[i].ID()] = &entities[i]
		ids = append(ids, entities[i].ID())
	}
	sort.Strings(ids)

	g1 := graph.FromEdges(ids, edges)
	m1 := Detect(g1, Params{Resolution: s.cfg.L1Resolution, Seed: s.cfg.Seed, MaxPasses: s.cfg.MaxPasses})
	topics := buildTopics(ids, m1, byID)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	topicOf := make(map[string]string, len(ids))
	topicIDs := make([]string, len(topics))
	for i := range topics {
		topicIDs[i] = topics[i].ID
		for _, id := range topics[i].Members {
			topicOf[id] = topics[i].ID
		}
	}
	topicEdges := Aggregate(edges, topicOf, s.cfg.Aggregation)
	if s.cfg.CentroidFloor > 0 {
		topicEdges = append(topicEdges, centroidEdges(topics, topicEdges, s.cfg.CentroidFloor)...)
		graph.SortEdges(topicEdges)
	}

	g2 := graph.FromEdges(topicIDs, topicEdges)
	m2 := Detect(g2, Params{Resolution: s.cfg.L2Resolution, Seed: s.cfg.Seed, MaxPasses: s.cfg.MaxPasses})
	domains := buildDomains(topics, m2)

	domainOf := make(map[string]string, len(topics))
	for i := range domains {
		for _, tid := range domains[i].Members {
			domainOf[tid] = domains[i].ID
		}
	}
	for i := range topics {
		topics[i].Parent = domainOf[topics[i].ID]
	}

	res := &Result{
		Topics:      topics,
		Domains:     domains,
		TopicEdges:  topicEdges,
		DomainEdges: Aggregate(topicEdges, domainOf, s.cfg.Aggregation),
	}
	res.Degenerate = append(res.Degenerate, s.degenerate(hierarchy.LevelTopic, len(ids), len(topics))...)
	res.Degenerate = append(res.Degenerate, s.degenerate(hierarchy.LevelDomain, len(topics), len(domains))...)

	s.logger.Info("Hierarchy clustered",
		zap.Int("entities", len(ids)),
		zap.Int("topics", len(topics)),
		zap.Int("domains", len(domains)),
		zap.Int("topic_edges", len(res.TopicEdges)),
		zap.Int("domain_edges", len(res.DomainEdges)),
		zap.Duration("duration", time.Since(start)),
	)
	return res, nil
}

// degenerate reports a single giant cluster or all singletons over n > 1 nodes.
func (s *Service) degenerate(level hierarchy.Level, nodes, clusters int) []string {
	if nodes <= 1 {
		return nil
	}
	var cond string
	switch clusters {
	case 1:
		cond = ConditionSingleCluster
	case nodes:
		cond = ConditionAllSingletons
	default:
		return nil
	}
	s.logger.Warn("Degenerate clustering",
		zap.String("level", string(level)),
		zap.String("condition", cond),
		zap.Int("nodes", nodes),
		zap.Int("clusters", clusters),
		zap.Error(domain.ErrClusteringDegenerate),
	)
	return []string{string(level) + ":" + cond}
}

// buildTopics groups sorted entity ids by community. Communities are already
// numbered by their smallest member, so ordinals follow member order.
func buildTopics(ids []string, membership []int, byID map[string]*entity.Entity) []hierarchy.Cluster {
	k := 0
	for _, c := range membership {
		k = max(k, c+1)
	}
	topics := make([]hierarchy.Cluster, k)
	for i := range topics {
		topics[i] = hierarchy.Cluster{
			ID:    hierarchy.ClusterID(hierarchy.LevelTopic, i),
			Level: hierarchy.LevelTopic,
			Color: hierarchy.ColorFor(i),
		}
	}
	for i, id := range ids {
		t := &topics[membership[i]]
		t.Members = append(t.Members, id)
	}
	for i := range topics {
		t := &topics[i]
		t.Size = len(t.Members)
		t.Categories = make(map[string]int)
		vectors := make([][]float32, 0, len(t.Members))
		for _, id := range t.Members {
			e := byID[id]
			if cat := e.Category(); cat != "" {
				t.Categories[cat]++
			}
			if v := e.Vector(); len(v) > 0 {
				vectors = append(vectors, v)
			}
		}
		t.DominantCategory = Dominant(t.Categories)
		t.Centroid = centroid(vectors)
	}
	return topics
}

// buildDomains groups topics by community; topics are in ordinal order.
func buildDomains(topics []hierarchy.Cluster, membership []int) []hierarchy.Cluster {
	k := 0
	for _, c := range membership {
		k = max(k, c+1)
	}
	domains := make([]hierarchy.Cluster, k)
	for i := range domains {
		domains[i] = hierarchy.Cluster{
			ID:         hierarchy.ClusterID(hierarchy.LevelDomain, i),
			Level:      hierarchy.LevelDomain,
			Color:      hierarchy.ColorFor(i),
			Categories: make(map[string]int),
		}
	}
	for i := range topics {
		d := &domains[membership[i]]
		d.Members = append(d.Members, topics[i].ID)
		d.Size += topics[i].Size
		for cat, n := range topics[i].Categories {
			d.Categories[cat] += n
		}
	}
	for i := range domains {
		domains[i].DominantCategory = Dominant(domains[i].Categories)
	}
	return domains
}

// Aggregate collapses edges onto their parents. Edges inside one parent are
// dropped. The weight of a parent pair is the sum or mean of its edges and its
// type is the type carrying the most weight.
func Aggregate(edges []graph.Edge, parentOf map[string]string, mode string) []graph.Edge {
	type acc struct {
		sum    float64
		n      int
		byType map[graph.EdgeType]float64
	}
	accs := make(map[[2]string]*acc)
	for _, e := range edges {
		a, ok := parentOf[e.Source]
		if !ok {
			continue
		}
		b, ok := parentOf[e.Target]
		if !ok || a == b {
			continue
		}
		if b < a {
			a, b = b, a
		}
		key := [2]string{a, b}
		x, ok := accs[key]
		if !ok {
			x = &acc{byType: make(map[graph.EdgeType]float64)}
			accs[key] = x
		}
		x.sum += e.Weight
		x.n++
		x.byType[e.Type] += e.Weight
	}

	out := make([]graph.Edge, 0, len(accs))
	for key, x := range accs {
		w := x.sum
		if mode == AggregateMean {
			w /= float64(x.n)
		}
		var (
			top       graph.EdgeType
			topWeight float64
		)
		for _, t := range graph.AllTypes {
			if x.byType[t] > topWeight {
				top, topWeight = t, x.byType[t]
			}
		}
		out = append(out, graph.NewUndirected(key[0], key[1], top, w,
			"aggregate:"+mode+":"+strconv.Itoa(x.n)))
	}
	graph.SortEdges(out)
	return out
}

// centroidEdges links topic pairs with no aggregated edge whose centroids are
// at least floor similar.
func centroidEdges(topics []hierarchy.Cluster, existing []graph.Edge, floor float64) []graph.Edge {
	linked := make(map[[2]string]struct{}, len(existing))
	for _, e := range existing {
		linked[[2]string{e.Source, e.Target}] = struct{}{}
	}
	var out []graph.Edge
	for i := range topics {
		if topics[i].Centroid == nil {
			continue
		}
		for j := i + 1; j < len(topics); j++ {
			if topics[j].Centroid == nil || len(topics[j].Centroid) != len(topics[i].Centroid) {
				continue
			}
			sim := entity.Cosine(topics[i].Centroid, topics[j].Centroid)
			if sim < floor {
				continue
			}
			e := graph.NewUndirected(topics[i].ID, topics[j].ID, graph.EdgeSimilarity, min(sim, 1), "centroid")
			if _, ok := linked[[2]string{e.Source, e.Target}]; ok {
				continue
			}
			out = append(out, e)
		}
	}
	return out
}

// Dominant returns the most frequent category; ties go to the smaller name.
func Dominant(counts map[string]int) string {
	var best string
	var bestN int
	for cat, n := range counts {
		if n > bestN || (n == bestN && strings.Compare(cat, best) < 0) {
			best, bestN = cat, n
		}
	}
	return best
}

func centroid(vectors [][]float32) []float32 {
	if len(vectors) == 0 {
		return nil
	}
	dim := len(vectors[0])
	sum := make([]float64, dim)
	for _, v := range vectors {
		if len(v) != dim {
			return nil
		}
		for i, x := range v {
			sum[i] += float64(x)
		}
	}
	c, ok := entity.Normalize(sum)
	if !ok {
		return nil
	}
	return c
}
