package pipeline

import (
	"context"

	"github.com/kailas-cloud/zoomgraph/internal/domain/entity"
	"github.com/kailas-cloud/zoomgraph/internal/domain/graph"
	"github.com/kailas-cloud/zoomgraph/internal/domain/hierarchy"
	"github.com/kailas-cloud/zoomgraph/internal/usecase/clustering"
	"github.com/kailas-cloud/zoomgraph/internal/usecase/layout"
)

// Source yields the raw entity records of one run.
type Source interface {
	Records(ctx context.Context) ([]entity.Record, error)
}

// SimilarityBuilder builds kNN similarity edges.
type SimilarityBuilder interface {
	Build(ctx context.Context, entities []entity.Entity) ([]graph.Edge, error)
}

// Enricher adds strategy edges and applies the per-node cap.
type Enricher interface {
	Enrich(similarity []graph.Edge, entities []entity.Entity) []graph.Edge
}

// Clusterer builds the topic/domain hierarchy.
type Clusterer interface {
	Cluster(ctx context.Context, entities []entity.Entity, edges []graph.Edge) (*clustering.Result, error)
}

// ClusterLabeler names topics and domains in place.
type ClusterLabeler interface {
	Label(ctx context.Context, entities []entity.Entity, edges []graph.Edge, topics, domains []hierarchy.Cluster) error
}

// Layouter computes per-level positions.
type Layouter interface {
	Layout(ctx context.Context, in layout.Input) (*hierarchy.Layout, error)
}

// SnapshotStore persists hierarchy snapshots.
type SnapshotStore interface {
	Publish(ctx context.Context, c *hierarchy.Clustering, l *hierarchy.Layout) error
	CurrentRunID(ctx context.Context) (string, error)
	Load(ctx context.Context, runID string) (*hierarchy.Clustering, *hierarchy.Layout, error)
	Prune(ctx context.Context, keep int) ([]string, error)
}
