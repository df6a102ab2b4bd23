// Package vectorindex maintains an FT HNSW index over entity vectors for
// approximate nearest-neighbor candidate search.
package vectorindex

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/kailas-cloud/zoomgraph/internal/db"
	"github.com/kailas-cloud/zoomgraph/internal/domain/entity"
	"github.com/kailas-cloud/zoomgraph/internal/domain/graph"
)

const (
	vectorField = "vector"
	idField     = "id"
	batchSize   = 500
)

// store is the consumer interface for the vector index (ISP).
type store interface {
	HSetMulti(ctx context.Context, items []db.HashSetItem) error
	Scan(ctx context.Context, pattern string) ([]string, error)
	Del(ctx context.Context, key string) error
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	DropIndex(ctx context.Context, name string) error
	IndexExists(ctx context.Context, name string) (bool, error)
	SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
}

// HNSWConfig HNSW index parameters.
type HNSWConfig struct {
	M           int
	EFConstruct int
}

// Repo implements the similarity builder's neighbor index on FT.SEARCH.
type Repo struct {
	store     store
	indexName string
	keyPrefix string
	hnsw      HNSWConfig
}

// New creates a vector index repository under the given key prefix.
func New(s store, prefix string, hnsw HNSWConfig) *Repo {
	if hnsw.M <= 0 {
		hnsw.M = 16
	}
	if hnsw.EFConstruct <= 0 {
		hnsw.EFConstruct = 200
	}
	return &Repo{
		store:     s,
		indexName: prefix + "vec:idx",
		keyPrefix: prefix + "vec:",
		hnsw:      hnsw,
	}
}

// Build (re)creates the index for the given entities. Vectors of entities
// that are not part of this set are removed first, so the index holds
// exactly the current entities.
func (r *Repo) Build(ctx context.Context, entities []entity.Entity) error {
	if err := r.prune(ctx, entities); err != nil {
		return err
	}
	if len(entities) == 0 {
		return nil
	}
	dim := len(entities[0].Vector())

	exists, err := r.store.IndexExists(ctx, r.indexName)
	if err != nil {
		return fmt.Errorf("check index %s: %w", r.indexName, err)
	}
	if exists {
		if err := r.store.DropIndex(ctx, r.indexName); err != nil && !errors.Is(err, db.ErrIndexNotFound) {
			return fmt.Errorf("drop index %s: %w", r.indexName, err)
		}
	}

	def, err := db.NewVectorIndex(r.indexName, r.keyPrefix, vectorField, dim, r.hnsw.M, r.hnsw.EFConstruct)
	if err != nil {
		return fmt.Errorf("define index: %w", err)
	}
	if err := r.store.CreateIndex(ctx, def); err != nil {
		return fmt.Errorf("create index %s: %w", r.indexName, err)
	}

	items := make([]db.HashSetItem, 0, batchSize)
	for i := range entities {
		e := &entities[i]
		items = append(items, db.HashSetItem{
			Key: r.keyPrefix + e.ID(),
			Fields: map[string]string{
				idField:     e.ID(),
				vectorField: db.VectorToBytes(e.Vector()),
			},
		})
		if len(items) == batchSize {
			if err := r.store.HSetMulti(ctx, items); err != nil {
				return fmt.Errorf("index vectors: %w", err)
			}
			items = items[:0]
		}
	}
	if len(items) > 0 {
		if err := r.store.HSetMulti(ctx, items); err != nil {
			return fmt.Errorf("index vectors: %w", err)
		}
	}
	return nil
}

// prune deletes vector hashes whose id is not among entities.
func (r *Repo) prune(ctx context.Context, entities []entity.Entity) error {
	keep := make(map[string]struct{}, len(entities))
	for i := range entities {
		keep[r.keyPrefix+entities[i].ID()] = struct{}{}
	}

	keys, err := r.store.Scan(ctx, r.keyPrefix+"*")
	if err != nil {
		return fmt.Errorf("scan vectors: %w", err)
	}
	for _, key := range keys {
		if _, ok := keep[key]; ok {
			continue
		}
		if err := r.store.Del(ctx, key); err != nil {
			return fmt.Errorf("delete stale vector %s: %w", key, err)
		}
	}
	return nil
}

// Neighbors returns up to k approximate nearest neighbors of vec, most similar first.
func (r *Repo) Neighbors(ctx context.Context, vec []float32, k int) ([]graph.Neighbor, error) {
	sr, err := r.store.SearchKNN(ctx, &db.KNNQuery{
		IndexName:    r.indexName,
		VectorField:  vectorField,
		Vector:       vec,
		K:            k,
		ReturnFields: []string{idField, "__vector_score"},
	})
	if err != nil {
		return nil, fmt.Errorf("search knn: %w", err)
	}

	out := make([]graph.Neighbor, 0, len(sr.Entries))
	for _, entry := range sr.Entries {
		id := entry.Fields[idField]
		if id == "" {
			id = strings.TrimPrefix(entry.Key, r.keyPrefix)
		}
		out = append(out, graph.Neighbor{ID: id, Similarity: entry.Score})
	}
	return out, nil
}
