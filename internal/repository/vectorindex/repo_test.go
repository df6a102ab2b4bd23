package vectorindex

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"path"
	"slices"
	"sort"
	"testing"
	"time"

	"github.com/kailas-cloud/zoomgraph/internal/db"
	"github.com/kailas-cloud/zoomgraph/internal/domain/entity"
)

// --- Mocks ---

type mockStore struct {
	hsetMultiFn   func(ctx context.Context, items []db.HashSetItem) error
	createIndexFn func(ctx context.Context, def *db.IndexDefinition) error
	dropIndexFn   func(ctx context.Context, name string) error
	indexExistsFn func(ctx context.Context, name string) (bool, error)
	searchKNNFn   func(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
	scanFn        func(ctx context.Context, pattern string) ([]string, error)
	delFn         func(ctx context.Context, key string) error
}

func (m *mockStore) Scan(ctx context.Context, pattern string) ([]string, error) {
	if m.scanFn != nil {
		return m.scanFn(ctx, pattern)
	}
	return nil, nil
}

func (m *mockStore) Del(ctx context.Context, key string) error {
	if m.delFn != nil {
		return m.delFn(ctx, key)
	}
	return nil
}

func (m *mockStore) HSetMulti(ctx context.Context, items []db.HashSetItem) error {
	if m.hsetMultiFn != nil {
		return m.hsetMultiFn(ctx, items)
	}
	return nil
}

func (m *mockStore) CreateIndex(ctx context.Context, def *db.IndexDefinition) error {
	if m.createIndexFn != nil {
		return m.createIndexFn(ctx, def)
	}
	return nil
}

func (m *mockStore) DropIndex(ctx context.Context, name string) error {
	if m.dropIndexFn != nil {
		return m.dropIndexFn(ctx, name)
	}
	return nil
}

func (m *mockStore) IndexExists(ctx context.Context, name string) (bool, error) {
	if m.indexExistsFn != nil {
		return m.indexExistsFn(ctx, name)
	}
	return false, nil
}

func (m *mockStore) SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error) {
	if m.searchKNNFn != nil {
		return m.searchKNNFn(ctx, q)
	}
	return &db.SearchResult{}, nil
}

// memStore keeps hashes in memory and answers KNN by brute force over every
// hash under the index prefix, the way FT.SEARCH sees the keyspace.
type memStore struct {
	hashes map[string]map[string]string
	prefix string
}

func newMemStore() *memStore {
	return &memStore{hashes: map[string]map[string]string{}}
}

func (m *memStore) HSetMulti(_ context.Context, items []db.HashSetItem) error {
	for _, it := range items {
		m.hashes[it.Key] = it.Fields
	}
	return nil
}

func (m *memStore) CreateIndex(_ context.Context, def *db.IndexDefinition) error {
	m.prefix = def.Prefixes[0]
	return nil
}

func (m *memStore) DropIndex(_ context.Context, _ string) error { return nil }

func (m *memStore) IndexExists(_ context.Context, _ string) (bool, error) { return m.prefix != "", nil }

func (m *memStore) Scan(_ context.Context, pattern string) ([]string, error) {
	var keys []string
	for k := range m.hashes {
		if ok, _ := path.Match(pattern, k); ok {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

func (m *memStore) Del(_ context.Context, key string) error {
	delete(m.hashes, key)
	return nil
}

func (m *memStore) SearchKNN(_ context.Context, q *db.KNNQuery) (*db.SearchResult, error) {
	var entries []db.SearchEntry
	for k, h := range m.hashes {
		if len(k) < len(m.prefix) || k[:len(m.prefix)] != m.prefix {
			continue
		}
		entries = append(entries, db.SearchEntry{
			Key:    k,
			Score:  entity.Cosine(q.Vector, bytesToVector(h["vector"])),
			Fields: map[string]string{"id": h["id"]},
		})
	}
	sort.Slice(entries, func(a, b int) bool {
		if entries[a].Score != entries[b].Score {
			return entries[a].Score > entries[b].Score
		}
		return entries[a].Key < entries[b].Key
	})
	if len(entries) > q.K {
		entries = entries[:q.K]
	}
	return &db.SearchResult{Total: len(entries), Entries: entries}, nil
}

func bytesToVector(s string) []float32 {
	b := []byte(s)
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v
}

func entities(n int) []entity.Entity {
	out := make([]entity.Entity, n)
	for i := range out {
		out[i] = entity.Reconstruct(fmt.Sprintf("e%04d", i), "", []float32{1, 0, 0}, nil, time.Time{})
	}
	return out
}

// --- Tests ---

func TestBuild_RecreatesIndexAndBatches(t *testing.T) {
	var dropped, created bool
	var batches []int
	ms := &mockStore{
		indexExistsFn: func(_ context.Context, _ string) (bool, error) { return true, nil },
		dropIndexFn: func(_ context.Context, name string) error {
			dropped = name == "zg:vec:idx"
			return nil
		},
		createIndexFn: func(_ context.Context, def *db.IndexDefinition) error {
			created = def.Fields[0].VectorDim == 3 && def.Prefixes[0] == "zg:vec:"
			return nil
		},
		hsetMultiFn: func(_ context.Context, items []db.HashSetItem) error {
			batches = append(batches, len(items))
			return nil
		},
	}
	r := New(ms, "zg:", HNSWConfig{})

	if err := r.Build(context.Background(), entities(520)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !dropped || !created {
		t.Errorf("dropped=%v created=%v", dropped, created)
	}
	if len(batches) != 2 || batches[0] != 500 || batches[1] != 20 {
		t.Errorf("batches = %v", batches)
	}
}

func TestBuild_CreateError(t *testing.T) {
	ms := &mockStore{
		createIndexFn: func(_ context.Context, _ *db.IndexDefinition) error {
			return errors.New("unknown command FT.CREATE")
		},
	}
	r := New(ms, "zg:", HNSWConfig{})
	if err := r.Build(context.Background(), entities(2)); err == nil {
		t.Fatal("expected error")
	}
}

func TestNeighbors_MapsHits(t *testing.T) {
	ms := &mockStore{
		searchKNNFn: func(_ context.Context, q *db.KNNQuery) (*db.SearchResult, error) {
			if q.K != 5 || q.IndexName != "zg:vec:idx" {
				t.Errorf("unexpected query %+v", q)
			}
			return &db.SearchResult{Total: 2, Entries: []db.SearchEntry{
				{Key: "zg:vec:a", Score: 0.99, Fields: map[string]string{"id": "a"}},
				{Key: "zg:vec:b", Score: 0.85, Fields: map[string]string{}},
			}}, nil
		},
	}
	r := New(ms, "zg:", HNSWConfig{})

	got, err := r.Neighbors(context.Background(), []float32{1, 0, 0}, 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 || got[0].ID != "a" || got[1].ID != "b" || got[1].Similarity != 0.85 {
		t.Errorf("neighbors = %+v", got)
	}
}

func TestBuild_DropsVectorsOfEarlierRuns(t *testing.T) {
	ctx := context.Background()
	current := []entity.Entity{
		entity.Reconstruct("a", "", []float32{1, 0, 0}, nil, time.Time{}),
		entity.Reconstruct("b", "", []float32{0.9, 0.1, 0}, nil, time.Time{}),
		entity.Reconstruct("c", "", []float32{0, 1, 0}, nil, time.Time{}),
	}
	// An earlier run left near-duplicates of "a" in the keyspace.
	earlier := []entity.Entity{
		entity.Reconstruct("old-1", "", []float32{1, 0.001, 0}, nil, time.Time{}),
		entity.Reconstruct("old-2", "", []float32{1, 0.002, 0}, nil, time.Time{}),
		current[0],
	}

	clean := newMemStore()
	if err := New(clean, "zg:", HNSWConfig{}).Build(ctx, current); err != nil {
		t.Fatalf("build on clean keyspace: %v", err)
	}

	reused := newMemStore()
	r := New(reused, "zg:", HNSWConfig{})
	if err := r.Build(ctx, earlier); err != nil {
		t.Fatalf("earlier build: %v", err)
	}
	if err := r.Build(ctx, current); err != nil {
		t.Fatalf("rebuild: %v", err)
	}

	keys, _ := reused.Scan(ctx, "zg:vec:*")
	slices.Sort(keys)
	if want := []string{"zg:vec:a", "zg:vec:b", "zg:vec:c"}; !slices.Equal(keys, want) {
		t.Errorf("keys after rebuild = %v, want %v", keys, want)
	}

	want, err := New(clean, "zg:", HNSWConfig{}).Neighbors(ctx, current[0].Vector(), 2)
	if err != nil {
		t.Fatal(err)
	}
	got, err := r.Neighbors(ctx, current[0].Vector(), 2)
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(got, want) {
		t.Errorf("neighbors on reused keyspace = %+v, want %+v", got, want)
	}
	if len(got) != 2 || got[0].ID != "a" || got[1].ID != "b" {
		t.Errorf("neighbors = %+v", got)
	}
}

func TestBuild_ScanError(t *testing.T) {
	ms := &mockStore{
		scanFn: func(_ context.Context, _ string) ([]string, error) {
			return nil, errors.New("connection reset")
		},
		createIndexFn: func(_ context.Context, _ *db.IndexDefinition) error {
			t.Error("index must not be created after a failed prune")
			return nil
		},
	}
	if err := New(ms, "zg:", HNSWConfig{}).Build(context.Background(), entities(2)); err == nil {
		t.Fatal("expected error")
	}
}
