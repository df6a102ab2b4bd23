package snapshot

import (
	"context"
	"time"

	"github.com/kailas-cloud/zoomgraph/internal/db"
	"github.com/kailas-cloud/zoomgraph/internal/domain/entity"
	"github.com/kailas-cloud/zoomgraph/internal/domain/graph"
	"github.com/kailas-cloud/zoomgraph/internal/domain/hierarchy"
)

const testPrefix = "zg:"

// mockStore implements the consumer interface for tests.
// Unset funcs fall through to an in-memory map.
type mockStore struct {
	getFn  func(ctx context.Context, key string) ([]byte, error)
	setFn  func(ctx context.Context, key string, value []byte) error
	delFn  func(ctx context.Context, key string) error
	hsetFn func(ctx context.Context, key string, fields map[string]string) error

	kv     map[string][]byte
	hashes map[string]map[string]string
	ops    []string
}

func newMockStore() *mockStore {
	return &mockStore{kv: map[string][]byte{}, hashes: map[string]map[string]string{}}
}

func (m *mockStore) Get(ctx context.Context, key string) ([]byte, error) {
	if m.getFn != nil {
		return m.getFn(ctx, key)
	}
	v, ok := m.kv[key]
	if !ok {
		return nil, db.ErrKeyNotFound
	}
	return v, nil
}

func (m *mockStore) Set(ctx context.Context, key string, value []byte) error {
	m.ops = append(m.ops, "SET "+key)
	if m.setFn != nil {
		return m.setFn(ctx, key, value)
	}
	m.kv[key] = value
	return nil
}

func (m *mockStore) Del(ctx context.Context, key string) error {
	m.ops = append(m.ops, "DEL "+key)
	if m.delFn != nil {
		return m.delFn(ctx, key)
	}
	delete(m.kv, key)
	delete(m.hashes, key)
	return nil
}

func (m *mockStore) HSet(ctx context.Context, key string, fields map[string]string) error {
	m.ops = append(m.ops, "HSET "+key)
	if m.hsetFn != nil {
		return m.hsetFn(ctx, key, fields)
	}
	h := m.hashes[key]
	if h == nil {
		h = map[string]string{}
		m.hashes[key] = h
	}
	for k, v := range fields {
		h[k] = v
	}
	return nil
}

func (m *mockStore) HGetAll(_ context.Context, key string) (map[string]string, error) {
	out := map[string]string{}
	for k, v := range m.hashes[key] {
		out[k] = v
	}
	return out, nil
}

func (m *mockStore) HDel(_ context.Context, key string, fields ...string) error {
	m.ops = append(m.ops, "HDEL "+key)
	for _, f := range fields {
		delete(m.hashes[key], f)
	}
	return nil
}

func testArtifacts(runID string, createdAt time.Time) (*hierarchy.Clustering, *hierarchy.Layout) {
	mk := func(id, cat string) entity.Entity {
		return entity.Reconstruct(id, "note "+id, nil,
			map[string]string{"category": cat}, time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC))
	}
	c := &hierarchy.Clustering{
		RunID:     runID,
		CreatedAt: createdAt,
		Params:    map[string]string{"seed": "42"},
		Entities:  []entity.Entity{mk("a", "decision"), mk("b", "decision"), mk("c", "research")},
		Topics: []hierarchy.Cluster{
			{ID: "l1-0", Level: hierarchy.LevelTopic, Label: "decisions", Parent: "l2-0", Members: []string{"a", "b"}, Size: 2},
			{ID: "l1-1", Level: hierarchy.LevelTopic, Label: "research", Parent: "l2-0", Members: []string{"c"}, Size: 1},
		},
		Domains: []hierarchy.Cluster{
			{ID: "l2-0", Level: hierarchy.LevelDomain, Label: "all", Members: []string{"l1-0", "l1-1"}, Size: 3},
		},
		Edges: []graph.Edge{
			graph.NewUndirected("a", "b", graph.EdgeSimilarity, 0.91, "knn"),
			graph.NewUndirected("a", "c", graph.EdgeReference, 1, "references"),
		},
	}
	l := &hierarchy.Layout{
		RunID:    runID,
		Domains:  map[string]hierarchy.Position{"l2-0": {}},
		Topics:   map[string]hierarchy.Position{"l1-0": {X: -10}, "l1-1": {X: 10}},
		Entities: map[string]hierarchy.Position{"a": {X: -1, Y: 0.5}, "b": {X: 1}, "c": {}},
	}
	return c, l
}
