package similarity

import (
	"context"

	"github.com/kailas-cloud/zoomgraph/internal/domain/entity"
	"github.com/kailas-cloud/zoomgraph/internal/domain/graph"
)

// NeighborIndex supplies approximate nearest-neighbor candidates.
type NeighborIndex interface {
	Build(ctx context.Context, entities []entity.Entity) error
	Neighbors(ctx context.Context, vec []float32, k int) ([]graph.Neighbor, error)
}
