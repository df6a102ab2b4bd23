package enrichment

import (
	"github.com/kailas-cloud/zoomgraph/internal/domain/entity"
	"github.com/kailas-cloud/zoomgraph/internal/domain/graph"
)

// Strategy contributes typed edges derived from entity attributes.
// Implementations are pure: the same entities always yield the same edges.
type Strategy interface {
	Name() string
	Edges(entities []entity.Entity) []graph.Edge
}
