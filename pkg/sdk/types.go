package zoomgraph

import (
	"github.com/kailas-cloud/zoomgraph/internal/domain/hierarchy"
	queryuc "github.com/kailas-cloud/zoomgraph/internal/usecase/query"
)

// Query results, shared with the HTTP service.
type (
	Overview             = queryuc.Overview
	ClusterView          = queryuc.ClusterView
	DomainDetail         = queryuc.DomainDetail
	TopicPage            = queryuc.TopicPage
	EntitySummary        = queryuc.EntitySummary
	EntityDetail         = queryuc.EntityDetail
	SearchResult         = queryuc.SearchResult
	Stats                = queryuc.Stats
	Neighbor             = queryuc.Neighbor
	Path                 = queryuc.Path
	Centrality           = queryuc.Centrality
	EntityCentrality     = queryuc.EntityCentrality
	TemporalDistribution = queryuc.TemporalDistribution
	Position             = hierarchy.Position
	RunInfo              = hierarchy.RunInfo
)

// Cluster levels accepted by Clusters.
const (
	LevelTopic  = string(hierarchy.LevelTopic)
	LevelDomain = string(hierarchy.LevelDomain)
)

// HealthStatus represents the aggregated system health.
type HealthStatus struct {
	Status string            // "ok", "degraded"
	Checks map[string]string // component → "ok"/"error"/"pending"
}
