package query

import (
	"time"

	"github.com/kailas-cloud/zoomgraph/internal/domain/graph"
	"github.com/kailas-cloud/zoomgraph/internal/domain/hierarchy"
)

// Relations of a neighbor or of two entities in the hierarchy.
const (
	RelationEdge        = "edge"
	RelationSameTopic   = "same_topic"
	RelationSameDomain  = "same_domain"
	RelationCrossDomain = "cross_domain"
)

// Fill weights for co-members that are not linked by an edge.
const (
	sameTopicWeight  = 1.0
	sameDomainWeight = 0.5
)

// ClusterView is a cluster as seen at one zoom level.
type ClusterView struct {
	ID               string
	Level            hierarchy.Level
	Label            string
	Color            string
	Parent           string
	Size             int
	Members          int
	DominantCategory string
	Position         hierarchy.Position
}

// Overview is the outermost zoom level: every domain.
type Overview struct {
	RunID         string
	CreatedAt     time.Time
	TotalEntities int
	Domains       []ClusterView
}

// DomainDetail holds one domain and its topics, positioned in the domain's own layout.
type DomainDetail struct {
	Domain ClusterView
	Topics []ClusterView
}

// EntitySummary is the compact entity form used in listings.
type EntitySummary struct {
	ID       string
	Preview  string
	Category string
	TopicID  string
	DomainID string
	Position hierarchy.Position
}

// TopicPage is one page of a topic's entities, ordered by id.
type TopicPage struct {
	Topic    ClusterView
	Entities []EntitySummary
	Total    int
	Limit    int
	Offset   int
	HasMore  bool
}

// EntityDetail is the full entity with its placement and edges.
type EntityDetail struct {
	ID        string
	Content   string
	Category  string
	Agent     string
	Source    string
	CreatedAt time.Time
	Metadata  map[string]string
	TopicID   string
	DomainID  string
	Position  hierarchy.Position
	Edges     []graph.Edge
}

// SearchResult holds the entities matching a text query.
type SearchResult struct {
	Query    string
	Total    int
	Entities []EntitySummary
}

// Stats summarizes the served snapshot.
type Stats struct {
	RunID      string
	CreatedAt  time.Time
	Entities   int
	Edges      int
	Topics     int
	Domains    int
	EdgeTypes  map[graph.EdgeType]int
	Categories map[string]int
	Degenerate []string
	Params     map[string]string
}

// Neighbor is an entity related to another one.
type Neighbor struct {
	EntitySummary
	Relation string
	EdgeType graph.EdgeType
	Weight   float64
}

// Ancestry is the topic and domain above an entity.
type Ancestry struct {
	EntityID string
	TopicID  string
	DomainID string
}

// Path relates two entities through the hierarchy.
type Path struct {
	Relation string
	// Nodes runs from the first entity through the shared or bridging clusters to the second.
	Nodes []string
	From  Ancestry
	To    Ancestry
}

// PeriodCount is the number of dated entities in one calendar month.
type PeriodCount struct {
	Period string // YYYY-MM
	Count  int
}

// TemporalDistribution buckets dated entities by month.
type TemporalDistribution struct {
	Dated   int
	Min     time.Time
	Max     time.Time
	Periods []PeriodCount
}

// CentralityMetric names the centrality measure served by Centrality.
const CentralityMetric = "degree_centrality"

// EntityCentrality is the connectedness of one entity in the enriched graph.
type EntityCentrality struct {
	ID string
	// Degree counts distinct neighbors; parallel edges of different types count once.
	Degree int
	// Weighted sums the weight of every incident edge.
	Weighted float64
	// Value is Degree normalized by the number of other entities.
	Value float64
}

// Centrality holds degree centrality for every entity, ordered by id.
type Centrality struct {
	Metric string
	Values []EntityCentrality
}
