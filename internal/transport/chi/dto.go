package chi

import (
	"time"

	"github.com/kailas-cloud/zoomgraph/internal/domain/graph"
	queryuc "github.com/kailas-cloud/zoomgraph/internal/usecase/query"
)

// ErrorCode classifies an error response.
type ErrorCode string

// Error codes returned by the API.
const (
	ErrorCodeBadRequest          ErrorCode = "bad_request"
	ErrorCodeUnauthorized        ErrorCode = "unauthorized"
	ErrorCodeClusterNotFound     ErrorCode = "cluster_not_found"
	ErrorCodeEntityNotFound      ErrorCode = "entity_not_found"
	ErrorCodeNotFound            ErrorCode = "not_found"
	ErrorCodeSnapshotUnavailable ErrorCode = "snapshot_unavailable"
	ErrorCodeInternalError       ErrorCode = "internal_error"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

type clusterDTO struct {
	ID               string  `json:"id"`
	Level            string  `json:"level"`
	Label            string  `json:"label"`
	Color            string  `json:"color"`
	Parent           string  `json:"parent,omitempty"`
	Size             int     `json:"size"`
	Members          int     `json:"members"`
	DominantCategory string  `json:"dominant_category,omitempty"`
	X                float64 `json:"x"`
	Y                float64 `json:"y"`
}

type overviewResponse struct {
	RunID         string       `json:"run_id"`
	CreatedAt     time.Time    `json:"created_at"`
	TotalClusters int          `json:"total_clusters"`
	TotalEntities int          `json:"total_entities"`
	Clusters      []clusterDTO `json:"clusters"`
}

type domainResponse struct {
	Domain clusterDTO   `json:"domain"`
	Topics []clusterDTO `json:"topics"`
}

type entitySummaryDTO struct {
	ID       string  `json:"id"`
	Preview  string  `json:"content_preview"`
	Category string  `json:"category,omitempty"`
	TopicID  string  `json:"topic_id"`
	DomainID string  `json:"domain_id"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
}

type topicResponse struct {
	Topic    clusterDTO         `json:"topic"`
	Total    int                `json:"total"`
	Limit    int                `json:"limit"`
	Offset   int                `json:"offset"`
	HasMore  bool               `json:"has_more"`
	Entities []entitySummaryDTO `json:"entities"`
}

type edgeDTO struct {
	Source     string  `json:"source"`
	Target     string  `json:"target"`
	Type       string  `json:"type"`
	Weight     float64 `json:"weight"`
	Provenance string  `json:"provenance,omitempty"`
	Directed   bool    `json:"directed,omitempty"`
}

type entityResponse struct {
	ID        string            `json:"id"`
	Content   string            `json:"content"`
	Category  string            `json:"category,omitempty"`
	Agent     string            `json:"agent,omitempty"`
	Source    string            `json:"source,omitempty"`
	CreatedAt *time.Time        `json:"created_at,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	TopicID   string            `json:"topic_id"`
	DomainID  string            `json:"domain_id"`
	X         float64           `json:"x"`
	Y         float64           `json:"y"`
	Edges     []edgeDTO         `json:"edges"`
}

type searchResponse struct {
	Query        string             `json:"query"`
	TotalResults int                `json:"total_results"`
	Results      []entitySummaryDTO `json:"results"`
}

type statsResponse struct {
	RunID      string            `json:"run_id"`
	CreatedAt  time.Time         `json:"created_at"`
	Entities   int               `json:"total_entities"`
	Edges      int               `json:"total_edges"`
	Topics     int               `json:"total_topics"`
	Domains    int               `json:"total_domains"`
	EdgeTypes  map[string]int    `json:"edge_types"`
	Categories map[string]int    `json:"categories"`
	Degenerate []string          `json:"degenerate"`
	Params     map[string]string `json:"params,omitempty"`
}

type clustersResponse struct {
	Level         string       `json:"level"`
	TotalClusters int          `json:"total_clusters"`
	Clusters      []clusterDTO `json:"clusters"`
}

type neighborDTO struct {
	entitySummaryDTO
	Relation string  `json:"relationship"`
	EdgeType string  `json:"edge_type,omitempty"`
	Weight   float64 `json:"weight"`
}

type neighborsResponse struct {
	EntityID  string        `json:"entity_id"`
	Total     int           `json:"total_neighbors"`
	Neighbors []neighborDTO `json:"neighbors"`
}

type ancestryDTO struct {
	EntityID string `json:"entity_id"`
	TopicID  string `json:"topic_id"`
	DomainID string `json:"domain_id"`
}

type pathResponse struct {
	PathType   string      `json:"path_type"`
	PathLength int         `json:"path_length"`
	Path       []string    `json:"path"`
	From       ancestryDTO `json:"from"`
	To         ancestryDTO `json:"to"`
}

type periodDTO struct {
	Period string `json:"period"`
	Count  int    `json:"count"`
}

type dateRangeDTO struct {
	Min time.Time `json:"min"`
	Max time.Time `json:"max"`
}

type temporalResponse struct {
	HasTemporalData bool          `json:"has_temporal_data"`
	TotalWithDates  int           `json:"total_with_dates"`
	DateRange       *dateRangeDTO `json:"date_range,omitempty"`
	Distribution    []periodDTO   `json:"distribution"`
}

type centralityDTO struct {
	Degree   int     `json:"degree"`
	Weighted float64 `json:"weighted_degree"`
	Value    float64 `json:"value"`
}

type centralityResponse struct {
	Metric     string                   `json:"metric"`
	TotalNodes int                      `json:"total_nodes"`
	Values     map[string]centralityDTO `json:"values"`
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

func clusterToDTO(c queryuc.ClusterView) clusterDTO {
	return clusterDTO{
		ID:               c.ID,
		Level:            string(c.Level),
		Label:            c.Label,
		Color:            c.Color,
		Parent:           c.Parent,
		Size:             c.Size,
		Members:          c.Members,
		DominantCategory: c.DominantCategory,
		X:                c.Position.X,
		Y:                c.Position.Y,
	}
}

func clustersToDTO(cs []queryuc.ClusterView) []clusterDTO {
	out := make([]clusterDTO, len(cs))
	for i, c := range cs {
		out[i] = clusterToDTO(c)
	}
	return out
}

func summaryToDTO(e queryuc.EntitySummary) entitySummaryDTO {
	return entitySummaryDTO{
		ID:       e.ID,
		Preview:  e.Preview,
		Category: e.Category,
		TopicID:  e.TopicID,
		DomainID: e.DomainID,
		X:        e.Position.X,
		Y:        e.Position.Y,
	}
}

func summariesToDTO(es []queryuc.EntitySummary) []entitySummaryDTO {
	out := make([]entitySummaryDTO, len(es))
	for i, e := range es {
		out[i] = summaryToDTO(e)
	}
	return out
}

func edgesToDTO(edges []graph.Edge) []edgeDTO {
	out := make([]edgeDTO, len(edges))
	for i, e := range edges {
		out[i] = edgeDTO{
			Source:     e.Source,
			Target:     e.Target,
			Type:       string(e.Type),
			Weight:     e.Weight,
			Provenance: e.Provenance,
			Directed:   e.Directed,
		}
	}
	return out
}

func entityToDTO(e *queryuc.EntityDetail) entityResponse {
	resp := entityResponse{
		ID:       e.ID,
		Content:  e.Content,
		Category: e.Category,
		Agent:    e.Agent,
		Source:   e.Source,
		Metadata: e.Metadata,
		TopicID:  e.TopicID,
		DomainID: e.DomainID,
		X:        e.Position.X,
		Y:        e.Position.Y,
		Edges:    edgesToDTO(e.Edges),
	}
	if !e.CreatedAt.IsZero() {
		ts := e.CreatedAt
		resp.CreatedAt = &ts
	}
	return resp
}

func statsToDTO(s *queryuc.Stats) statsResponse {
	edgeTypes := make(map[string]int, len(s.EdgeTypes))
	for t, n := range s.EdgeTypes {
		edgeTypes[string(t)] = n
	}
	degenerate := s.Degenerate
	if degenerate == nil {
		degenerate = []string{}
	}
	return statsResponse{
		RunID:      s.RunID,
		CreatedAt:  s.CreatedAt,
		Entities:   s.Entities,
		Edges:      s.Edges,
		Topics:     s.Topics,
		Domains:    s.Domains,
		EdgeTypes:  edgeTypes,
		Categories: s.Categories,
		Degenerate: degenerate,
		Params:     s.Params,
	}
}

func ancestryToDTO(a queryuc.Ancestry) ancestryDTO {
	return ancestryDTO{EntityID: a.EntityID, TopicID: a.TopicID, DomainID: a.DomainID}
}

func temporalToDTO(td *queryuc.TemporalDistribution) temporalResponse {
	resp := temporalResponse{
		HasTemporalData: td.Dated > 0,
		TotalWithDates:  td.Dated,
		Distribution:    make([]periodDTO, len(td.Periods)),
	}
	if td.Dated > 0 {
		resp.DateRange = &dateRangeDTO{Min: td.Min, Max: td.Max}
	}
	for i, p := range td.Periods {
		resp.Distribution[i] = periodDTO{Period: p.Period, Count: p.Count}
	}
	return resp
}


func centralityToDTO(c *queryuc.Centrality) centralityResponse {
	resp := centralityResponse{
		Metric:     c.Metric,
		TotalNodes: len(c.Values),
		Values:     make(map[string]centralityDTO, len(c.Values)),
	}
	for _, v := range c.Values {
		resp.Values[v.ID] = centralityDTO{Degree: v.Degree, Weighted: v.Weighted, Value: v.Value}
	}
	return resp
}
