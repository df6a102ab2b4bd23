// Package labeling names topics and domains.
package labeling

import (
	"context"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/zoomgraph/internal/domain"
	"github.com/kailas-cloud/zoomgraph/internal/domain/entity"
	"github.com/kailas-cloud/zoomgraph/internal/domain/graph"
	"github.com/kailas-cloud/zoomgraph/internal/domain/hierarchy"
)

const (
	termsPerLabel = 3
	topCategories = 3
)

// Config controls labeling.
type Config struct {
	SampleSize  int
	Concurrency int
	Timeout     time.Duration
}

// Service assigns cluster labels. Without a labeler every label is statistical;
// with one, the statistical label is the fallback on provider failure.
type Service struct {
	cfg     Config
	labeler domain.Labeler
	logger  *zap.Logger
}

// New creates a labeling service. labeler may be nil.
func New(cfg Config, labeler domain.Labeler, logger *zap.Logger) *Service {
	if cfg.SampleSize <= 0 {
		cfg.SampleSize = 8
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	return &Service{cfg: cfg, labeler: labeler, logger: logger}
}

// Label fills Label on every topic, then on every domain.
// Domain samples are the labels of their topics.
func (s *Service) Label(
	ctx context.Context,
	entities []entity.Entity,
	edges []graph.Edge,
	topics, domains []hierarchy.Cluster,
) error {
	start := time.Now()
	content := make(map[string]string, len(entities))
	for i := range entities {
		content[entities[i].ID()] = entities[i].Content()
	}
	centrality := make(map[string]float64)
	for _, e := range edges {
		centrality[e.Source] += e.Weight
		centrality[e.Target] += e.Weight
	}

	topicSamples := make([][]string, len(topics))
	for i := range topics {
		members := append([]string(nil), topics[i].Members...)
		sort.SliceStable(members, func(a, b int) bool {
			return centrality[members[a]] > centrality[members[b]]
		})
		texts := make([]string, 0, min(len(members), s.cfg.SampleSize))
		for _, id := range members {
			if c := strings.TrimSpace(content[id]); c != "" {
				texts = append(texts, c)
			}
			if len(texts) == s.cfg.SampleSize {
				break
			}
		}
		topicSamples[i] = texts
	}
	fallbacks, err := s.labelLevel(ctx, topics, topicSamples)
	if err != nil {
		return err
	}

	topicLabel := make(map[string]string, len(topics))
	for i := range topics {
		topicLabel[topics[i].ID] = topics[i].Label
	}
	domainSamples := make([][]string, len(domains))
	for i := range domains {
		for _, tid := range domains[i].Members {
			domainSamples[i] = append(domainSamples[i], topicLabel[tid])
		}
	}
	domainFallbacks, err := s.labelLevel(ctx, domains, domainSamples)
	if err != nil {
		return err
	}

	s.logger.Info("Clusters labeled",
		zap.Bool("llm", s.labeler != nil),
		zap.Int("topics", len(topics)),
		zap.Int("domains", len(domains)),
		zap.Int("fallbacks", fallbacks+domainFallbacks),
		zap.Duration("duration", time.Since(start)),
	)
	return nil
}

// labelLevel labels clusters in parallel and returns how many fell back.
func (s *Service) labelLevel(ctx context.Context, clusters []hierarchy.Cluster, samples [][]string) (int, error) {
	for i := range clusters {
		clusters[i].Label = Statistical(&clusters[i], samples[i])
	}
	if s.labeler == nil {
		return 0, nil
	}

	failed := make([]bool, len(clusters))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Concurrency)
	for i := range clusters {
		c := &clusters[i]
		g.Go(func() error {
			lctx := gctx
			if s.cfg.Timeout > 0 {
				var cancel context.CancelFunc
				lctx, cancel = context.WithTimeout(gctx, s.cfg.Timeout)
				defer cancel()
			}
			label, err := s.labeler.Label(lctx, domain.LabelRequest{
				ClusterID:  c.ID,
				Level:      string(c.Level),
				Samples:    samples[i],
				Categories: topCategoryNames(c.Categories, topCategories),
			})
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				failed[i] = true
				s.logger.Warn("Cluster labeling failed, keeping statistical label",
					zap.String("cluster_id", c.ID),
					zap.String("label", c.Label),
					zap.Error(err),
				)
				return nil
			}
			c.Label = label
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}

	var n int
	for _, f := range failed {
		if f {
			n++
		}
	}
	return n, nil
}

// Statistical builds a label from the dominant category and the most frequent
// words of the samples, falling back to the cluster id.
func Statistical(c *hierarchy.Cluster, samples []string) string {
	terms := TopTerms(samples, termsPerLabel)
	switch {
	case c.DominantCategory != "" && len(terms) > 0:
		return c.DominantCategory + ": " + strings.Join(terms, ", ")
	case c.DominantCategory != "":
		return c.DominantCategory
	case len(terms) > 0:
		return strings.Join(terms, ", ")
	default:
		return c.ID
	}
}

func topCategoryNames(counts map[string]int, n int) []string {
	names := make([]string, 0, len(counts))
	for k := range counts {
		names = append(names, k)
	}
	sort.Slice(names, func(i, j int) bool {
		if counts[names[i]] != counts[names[j]] {
			return counts[names[i]] > counts[names[j]]
		}
		return names[i] < names[j]
	})
	if len(names) > n {
		names = names[:n]
	}
	return names
}
