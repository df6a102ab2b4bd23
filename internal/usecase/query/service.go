// Package query serves progressive, read-only views of the current hierarchy snapshot.
// Every operation reads one snapshot reference, so a concurrent swap is never observed mid-call.
package query

import (
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/kailas-cloud/zoomgraph/internal/domain"
	"github.com/kailas-cloud/zoomgraph/internal/domain/graph"
	"github.com/kailas-cloud/zoomgraph/internal/domain/hierarchy"
)

const (
	previewRunes   = 200
	minSearchRunes = 2
)

// Limits bounds paginated and capped responses. Zero values take defaults.
type Limits struct {
	DefaultPageSize    int
	MaxPageSize        int
	DefaultSearchLimit int
	MaxSearchLimit     int
	DefaultNeighbors   int
	MaxNeighbors       int
}

func (l *Limits) applyDefaults() {
	if l.DefaultPageSize <= 0 {
		l.DefaultPageSize = 100
	}
	if l.MaxPageSize <= 0 {
		l.MaxPageSize = 1000
	}
	if l.DefaultSearchLimit <= 0 {
		l.DefaultSearchLimit = 20
	}
	if l.MaxSearchLimit <= 0 {
		l.MaxSearchLimit = 100
	}
	if l.DefaultNeighbors <= 0 {
		l.DefaultNeighbors = 20
	}
	if l.MaxNeighbors <= 0 {
		l.MaxNeighbors = 100
	}
}

// Service answers zoom-level queries.
type Service struct {
	snapshots SnapshotSource
	limits    Limits
}

// New creates a query service.
func New(snapshots SnapshotSource, limits Limits) *Service {
	limits.applyDefaults()
	return &Service{snapshots: snapshots, limits: limits}
}

func (s *Service) current() (*hierarchy.Snapshot, error) {
	snap := s.snapshots.Current()
	if snap == nil {
		return nil, domain.ErrSnapshotUnavailable
	}
	return snap, nil
}

// Overview returns every domain positioned in the domain-level layout.
func (s *Service) Overview() (*Overview, error) {
	snap, err := s.current()
	if err != nil {
		return nil, err
	}
	domains := snap.Domains()
	out := &Overview{
		RunID:         snap.RunID(),
		CreatedAt:     snap.CreatedAt(),
		TotalEntities: snap.EntityCount(),
		Domains:       make([]ClusterView, len(domains)),
	}
	for i, d := range domains {
		out.Domains[i] = clusterView(d, snap.DomainPosition(d.ID))
	}
	return out, nil
}

// ExpandDomain returns the topics of a domain positioned in that domain's own layout.
func (s *Service) ExpandDomain(domainID string) (*DomainDetail, error) {
	snap, err := s.current()
	if err != nil {
		return nil, err
	}
	d, ok := snap.Domain(domainID)
	if !ok {
		return nil, fmt.Errorf("domain %q: %w", domainID, domain.ErrClusterNotFound)
	}
	topics := snap.TopicsOf(domainID)
	out := &DomainDetail{
		Domain: clusterView(d, snap.DomainPosition(d.ID)),
		Topics: make([]ClusterView, len(topics)),
	}
	for i, t := range topics {
		out.Topics[i] = clusterView(t, snap.TopicPosition(t.ID))
	}
	return out, nil
}

// ExpandTopic returns one page of a topic's entities ordered by id.
// A zero limit takes the default; an offset past the end yields an empty page.
func (s *Service) ExpandTopic(topicID string, limit, offset int) (*TopicPage, error) {
	if limit == 0 {
		limit = s.limits.DefaultPageSize
	}
	if limit < 0 || limit > s.limits.MaxPageSize {
		return nil, fmt.Errorf("%w: limit must be between 1 and %d", domain.ErrInvalidInput, s.limits.MaxPageSize)
	}
	if offset < 0 {
		return nil, fmt.Errorf("%w: offset must not be negative", domain.ErrInvalidInput)
	}

	snap, err := s.current()
	if err != nil {
		return nil, err
	}
	t, ok := snap.Topic(topicID)
	if !ok {
		return nil, fmt.Errorf("topic %q: %w", topicID, domain.ErrClusterNotFound)
	}

	total := len(t.Members)
	start := min(offset, total)
	end := min(start+limit, total)
	page := &TopicPage{
		Topic:    clusterView(t, snap.TopicPosition(t.ID)),
		Entities: make([]EntitySummary, 0, end-start),
		Total:    total,
		Limit:    limit,
		Offset:   offset,
		HasMore:  end < total,
	}
	for _, id := range t.Members[start:end] {
		page.Entities = append(page.Entities, summary(snap, id))
	}
	return page, nil
}

// GetEntity returns the full detail of one entity.
func (s *Service) GetEntity(entityID string) (*EntityDetail, error) {
	snap, err := s.current()
	if err != nil {
		return nil, err
	}
	e, ok := snap.Entity(entityID)
	if !ok {
		return nil, fmt.Errorf("entity %q: %w", entityID, domain.ErrEntityNotFound)
	}
	topicID, _ := snap.TopicOf(entityID)
	domainID, _ := snap.DomainOf(topicID)
	return &EntityDetail{
		ID:        e.ID(),
		Content:   e.Content(),
		Category:  e.Category(),
		Agent:     e.Agent(),
		Source:    e.Source(),
		CreatedAt: e.CreatedAt(),
		Metadata:  e.Metadata(),
		TopicID:   topicID,
		DomainID:  domainID,
		Position:  snap.EntityPosition(entityID),
		Edges:     snap.EntityEdges(entityID),
	}, nil
}

// Search finds entities whose content or id contains q, case-insensitively, in id order.
func (s *Service) Search(q string, limit int) (*SearchResult, error) {
	q = strings.TrimSpace(q)
	if utf8.RuneCountInString(q) < minSearchRunes {
		return nil, fmt.Errorf("%w: query must have at least %d characters", domain.ErrInvalidInput, minSearchRunes)
	}
	if limit == 0 {
		limit = s.limits.DefaultSearchLimit
	}
	if limit < 0 || limit > s.limits.MaxSearchLimit {
		return nil, fmt.Errorf("%w: limit must be between 1 and %d", domain.ErrInvalidInput, s.limits.MaxSearchLimit)
	}

	snap, err := s.current()
	if err != nil {
		return nil, err
	}
	needle := strings.ToLower(q)
	out := &SearchResult{Query: q}
	for _, id := range snap.EntityIDs() {
		e, _ := snap.Entity(id)
		if !strings.Contains(strings.ToLower(e.Content()), needle) && !strings.Contains(strings.ToLower(id), needle) {
			continue
		}
		out.Total++
		if len(out.Entities) < limit {
			out.Entities = append(out.Entities, summary(snap, id))
		}
	}
	return out, nil
}

// Stats summarizes the served snapshot.
func (s *Service) Stats() (*Stats, error) {
	snap, err := s.current()
	if err != nil {
		return nil, err
	}
	edgeCounts := snap.EdgeCounts()
	var edges int
	for _, n := range edgeCounts {
		edges += n
	}
	return &Stats{
		RunID:      snap.RunID(),
		CreatedAt:  snap.CreatedAt(),
		Entities:   snap.EntityCount(),
		Edges:      edges,
		Topics:     len(snap.Topics()),
		Domains:    len(snap.Domains()),
		EdgeTypes:  edgeCounts,
		Categories: snap.CategoryCounts(),
		Degenerate: snap.Degenerate(),
		Params:     snap.Params(),
	}, nil
}

// Clusters lists every cluster of a level, largest first, ties by id.
func (s *Service) Clusters(level string) ([]ClusterView, error) {
	lvl, err := hierarchy.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrInvalidInput, err)
	}
	snap, err := s.current()
	if err != nil {
		return nil, err
	}

	var clusters []*hierarchy.Cluster
	pos := snap.TopicPosition
	if lvl == hierarchy.LevelDomain {
		clusters, pos = snap.Domains(), snap.DomainPosition
	} else {
		clusters = snap.Topics()
	}
	out := make([]ClusterView, len(clusters))
	for i, c := range clusters {
		out[i] = clusterView(c, pos(c.ID))
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Size != out[j].Size {
			return out[i].Size > out[j].Size
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// Neighbors returns the entities linked to entityID by an edge, heaviest first,
// then fills up to max with same-topic and same-domain co-members in id order.
func (s *Service) Neighbors(entityID string, maxNeighbors int) ([]Neighbor, error) {
	if maxNeighbors == 0 {
		maxNeighbors = s.limits.DefaultNeighbors
	}
	if maxNeighbors < 0 || maxNeighbors > s.limits.MaxNeighbors {
		return nil, fmt.Errorf("%w: max must be between 1 and %d", domain.ErrInvalidInput, s.limits.MaxNeighbors)
	}
	snap, err := s.current()
	if err != nil {
		return nil, err
	}
	if _, ok := snap.Entity(entityID); !ok {
		return nil, fmt.Errorf("entity %q: %w", entityID, domain.ErrEntityNotFound)
	}

	linked := strongestLinks(entityID, snap.EntityEdges(entityID))
	seen := map[string]bool{entityID: true}
	out := make([]Neighbor, 0, maxNeighbors)
	for _, e := range linked {
		if len(out) == maxNeighbors {
			return out, nil
		}
		id := e.Other(entityID)
		seen[id] = true
		out = append(out, Neighbor{
			EntitySummary: summary(snap, id),
			Relation:      RelationEdge,
			EdgeType:      e.Type,
			Weight:        e.Weight,
		})
	}

	fill := func(members []string, relation string, weight float64) {
		for _, id := range members {
			if len(out) == maxNeighbors {
				return
			}
			if seen[id] {
				continue
			}
			seen[id] = true
			out = append(out, Neighbor{EntitySummary: summary(snap, id), Relation: relation, Weight: weight})
		}
	}
	topicID, _ := snap.TopicOf(entityID)
	if t, ok := snap.Topic(topicID); ok {
		fill(t.Members, RelationSameTopic, sameTopicWeight)
	}
	if domainID, ok := snap.DomainOf(topicID); ok {
		for _, t := range snap.TopicsOf(domainID) {
			if t.ID != topicID {
				fill(t.Members, RelationSameDomain, sameDomainWeight)
			}
		}
	}
	return out, nil
}

// strongestLinks keeps the heaviest edge per neighbor, ordered by weight then neighbor id.
func strongestLinks(entityID string, edges []graph.Edge) []graph.Edge {
	best := make(map[string]graph.Edge, len(edges))
	for _, e := range edges {
		id := e.Other(entityID)
		if id == entityID {
			continue
		}
		if cur, ok := best[id]; !ok || e.Weight > cur.Weight ||
			(e.Weight == cur.Weight && e.Type.Priority() < cur.Type.Priority()) {
			best[id] = e
		}
	}
	out := make([]graph.Edge, 0, len(best))
	for _, e := range best {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Weight != out[j].Weight {
			return out[i].Weight > out[j].Weight
		}
		return out[i].Other(entityID) < out[j].Other(entityID)
	})
	return out
}

// Path relates two entities through their topics and domains.
func (s *Service) Path(fromID, toID string) (*Path, error) {
	snap, err := s.current()
	if err != nil {
		return nil, err
	}
	from, err := ancestry(snap, fromID)
	if err != nil {
		return nil, err
	}
	to, err := ancestry(snap, toID)
	if err != nil {
		return nil, err
	}

	p := &Path{From: from, To: to}
	switch {
	case from.TopicID == to.TopicID:
		p.Relation = RelationSameTopic
		p.Nodes = []string{fromID, from.TopicID, toID}
	case from.DomainID == to.DomainID:
		p.Relation = RelationSameDomain
		p.Nodes = []string{fromID, from.TopicID, from.DomainID, to.TopicID, toID}
	default:
		p.Relation = RelationCrossDomain
		p.Nodes = []string{fromID, from.TopicID, from.DomainID, to.DomainID, to.TopicID, toID}
	}
	if fromID == toID {
		p.Nodes = []string{fromID}
	}
	return p, nil
}

func ancestry(snap *hierarchy.Snapshot, entityID string) (Ancestry, error) {
	topicID, ok := snap.TopicOf(entityID)
	if !ok {
		return Ancestry{}, fmt.Errorf("entity %q: %w", entityID, domain.ErrEntityNotFound)
	}
	domainID, _ := snap.DomainOf(topicID)
	return Ancestry{EntityID: entityID, TopicID: topicID, DomainID: domainID}, nil
}

// TemporalDistribution counts dated entities per UTC calendar month, ascending.
func (s *Service) TemporalDistribution() (*TemporalDistribution, error) {
	snap, err := s.current()
	if err != nil {
		return nil, err
	}
	out := &TemporalDistribution{}
	counts := make(map[string]int)
	for _, id := range snap.EntityIDs() {
		e, _ := snap.Entity(id)
		ts := e.CreatedAt()
		if ts.IsZero() {
			continue
		}
		ts = ts.UTC()
		if out.Dated == 0 || ts.Before(out.Min) {
			out.Min = ts
		}
		if out.Dated == 0 || ts.After(out.Max) {
			out.Max = ts
		}
		out.Dated++
		counts[ts.Format("2006-01")]++
	}
	out.Periods = make([]PeriodCount, 0, len(counts))
	for period, n := range counts {
		out.Periods = append(out.Periods, PeriodCount{Period: period, Count: n})
	}
	sort.Slice(out.Periods, func(i, j int) bool { return out.Periods[i].Period < out.Periods[j].Period })
	return out, nil
}

// Centrality returns degree centrality for every entity.
func (s *Service) Centrality() (*Centrality, error) {
	snap, err := s.current()
	if err != nil {
		return nil, err
	}
	ids := snap.EntityIDs()
	out := &Centrality{Metric: CentralityMetric, Values: make([]EntityCentrality, len(ids))}
	others := float64(len(ids) - 1)
	for i, id := range ids {
		seen := make(map[string]struct{})
		var weighted float64
		for _, e := range snap.EntityEdges(id) {
			seen[e.Other(id)] = struct{}{}
			weighted += e.Weight
		}
		c := EntityCentrality{ID: id, Degree: len(seen), Weighted: weighted}
		if others > 0 {
			c.Value = float64(c.Degree) / others
		}
		out.Values[i] = c
	}
	return out, nil
}

func clusterView(c *hierarchy.Cluster, pos hierarchy.Position) ClusterView {
	return ClusterView{
		ID:               c.ID,
		Level:            c.Level,
		Label:            c.Label,
		Color:            c.Color,
		Parent:           c.Parent,
		Size:             c.Size,
		Members:          len(c.Members),
		DominantCategory: c.DominantCategory,
		Position:         pos,
	}
}

func summary(snap *hierarchy.Snapshot, id string) EntitySummary {
	e, _ := snap.Entity(id)
	topicID, _ := snap.TopicOf(id)
	domainID, _ := snap.DomainOf(topicID)
	return EntitySummary{
		ID:       id,
		Preview:  preview(e.Content()),
		Category: e.Category(),
		TopicID:  topicID,
		DomainID: domainID,
		Position: snap.EntityPosition(id),
	}
}

func preview(s string) string {
	if utf8.RuneCountInString(s) <= previewRunes {
		return s
	}
	return string([]rune(s)[:previewRunes])
}
