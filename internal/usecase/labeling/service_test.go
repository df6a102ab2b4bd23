package labeling

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kailas-cloud/zoomgraph/internal/domain"
	"github.com/kailas-cloud/zoomgraph/internal/domain/entity"
	"github.com/kailas-cloud/zoomgraph/internal/domain/graph"
	"github.com/kailas-cloud/zoomgraph/internal/domain/hierarchy"
)

// --- Mocks ---

type mockLabeler struct {
	mu      sync.Mutex
	labelFn func(ctx context.Context, req domain.LabelRequest) (string, error)
	reqs    []domain.LabelRequest
}

func (m *mockLabeler) Label(ctx context.Context, req domain.LabelRequest) (string, error) {
	m.mu.Lock()
	m.reqs = append(m.reqs, req)
	m.mu.Unlock()
	return m.labelFn(ctx, req)
}

func fixture() ([]entity.Entity, []graph.Edge, []hierarchy.Cluster, []hierarchy.Cluster) {
	mk := func(id, content string) entity.Entity {
		return entity.Reconstruct(id, content, nil, map[string]string{"category": "decision"}, time.Time{})
	}
	ents := []entity.Entity{
		mk("a", "Redis cache eviction"),
		mk("b", "redis cache warmup"),
		mk("c", "postgres vacuum tuning"),
	}
	edges := []graph.Edge{graph.NewUndirected("a", "b", graph.EdgeSimilarity, 0.9, "knn")}
	topics := []hierarchy.Cluster{
		{ID: "l1-0", Level: hierarchy.LevelTopic, Parent: "l2-0", Members: []string{"a", "b"},
			DominantCategory: "decision", Categories: map[string]int{"decision": 2}},
		{ID: "l1-1", Level: hierarchy.LevelTopic, Parent: "l2-0", Members: []string{"c"}},
	}
	domains := []hierarchy.Cluster{
		{ID: "l2-0", Level: hierarchy.LevelDomain, Members: []string{"l1-0", "l1-1"}},
	}
	return ents, edges, topics, domains
}

// --- Tests ---

func TestLabel_Statistical(t *testing.T) {
	ents, edges, topics, domains := fixture()

	err := New(Config{}, nil, zap.NewNop()).Label(context.Background(), ents, edges, topics, domains)
	require.NoError(t, err)

	assert.Equal(t, "decision: cache, redis, eviction", topics[0].Label)
	assert.Equal(t, "postgres, tuning, vacuum", topics[1].Label)
	assert.NotEmpty(t, domains[0].Label)
}

func TestLabel_LLM(t *testing.T) {
	ents, edges, topics, domains := fixture()
	lab := &mockLabeler{labelFn: func(_ context.Context, req domain.LabelRequest) (string, error) {
		return "Label " + req.ClusterID, nil
	}}

	err := New(Config{Concurrency: 2}, lab, zap.NewNop()).Label(context.Background(), ents, edges, topics, domains)
	require.NoError(t, err)

	assert.Equal(t, "Label l1-0", topics[0].Label)
	assert.Equal(t, "Label l1-1", topics[1].Label)
	assert.Equal(t, "Label l2-0", domains[0].Label)

	for _, r := range lab.reqs {
		if r.ClusterID == "l2-0" {
			assert.Equal(t, []string{"Label l1-0", "Label l1-1"}, r.Samples)
			assert.Equal(t, "l2", r.Level)
		}
		if r.ClusterID == "l1-0" {
			assert.Equal(t, []string{"decision"}, r.Categories)
			assert.Len(t, r.Samples, 2)
		}
	}
}

func TestLabel_FallbackOnProviderError(t *testing.T) {
	ents, edges, topics, domains := fixture()
	lab := &mockLabeler{labelFn: func(_ context.Context, req domain.LabelRequest) (string, error) {
		if req.ClusterID == "l1-0" {
			return "", domain.ErrLabelingFailed
		}
		return "ok", nil
	}}

	err := New(Config{}, lab, zap.NewNop()).Label(context.Background(), ents, edges, topics, domains)
	require.NoError(t, err)

	assert.Equal(t, "decision: cache, redis, eviction", topics[0].Label)
	assert.Equal(t, "ok", topics[1].Label)
}

func TestLabel_Canceled(t *testing.T) {
	ents, edges, topics, domains := fixture()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	lab := &mockLabeler{labelFn: func(ctx context.Context, _ domain.LabelRequest) (string, error) {
		return "", ctx.Err()
	}}

	err := New(Config{}, lab, zap.NewNop()).Label(ctx, ents, edges, topics, domains)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestStatistical_FallsBackToID(t *testing.T) {
	c := &hierarchy.Cluster{ID: "l1-4"}
	assert.Equal(t, "l1-4", Statistical(c, nil))
	c.DominantCategory = "research"
	assert.Equal(t, "research", Statistical(c, []string{"a an of 42"}))
}

func TestTopTerms(t *testing.T) {
	terms := TopTerms([]string{
		"The cache and the cache-layer", "cache layer for 2024 builds", "builds",
	}, 3)
	assert.Equal(t, []string{"builds", "cache", "cache-layer"}, terms)
}
