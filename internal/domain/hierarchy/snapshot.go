package hierarchy

import (
	"fmt"
	"sort"
	"time"

	"github.com/kailas-cloud/zoomgraph/internal/domain"
	"github.com/kailas-cloud/zoomgraph/internal/domain/entity"
	"github.com/kailas-cloud/zoomgraph/internal/domain/graph"
)

// Clustering is the clustering artifact of one pipeline run.
type Clustering struct {
	RunID     string
	CreatedAt time.Time
	Params    map[string]string
	// Entities are sorted by id; vectors are not carried.
	Entities []entity.Entity
	Topics   []Cluster
	Domains  []Cluster
	// Edges is the enriched entity-level edge list.
	Edges []graph.Edge
	// TopicEdges and DomainEdges are the aggregated cluster-level graphs.
	TopicEdges  []graph.Edge
	DomainEdges []graph.Edge
	// Degenerate lists the degenerate conditions detected during clustering.
	Degenerate []string
}

// Layout is the layout artifact of one pipeline run.
type Layout struct {
	RunID string
	// Domains holds positions in the domain-level layout.
	Domains map[string]Position
	// Topics holds positions within each topic's own domain layout.
	Topics map[string]Position
	// Entities holds positions within each entity's own topic layout.
	Entities map[string]Position
}

// Snapshot is one immutable, validated hierarchy plus layout.
// It is safe for concurrent readers; nothing mutates it after NewSnapshot.
type Snapshot struct {
	runID      string
	createdAt  time.Time
	params     map[string]string
	degenerate []string

	entities  map[string]*entity.Entity
	entityIDs []string

	topics         map[string]*Cluster
	topicOrder     []string
	domains        map[string]*Cluster
	domainOrder    []string
	topicOf        map[string]string
	edgesByEntity  map[string][]graph.Edge
	edgeCounts     map[graph.EdgeType]int
	categoryCounts map[string]int

	layout Layout
}

// NewSnapshot validates both artifacts against each other and builds lookup indexes.
func NewSnapshot(c *Clustering, l *Layout) (*Snapshot, error) {
	if c == nil || l == nil {
		return nil, fmt.Errorf("%w: missing artifact", domain.ErrSnapshotInvalid)
	}
	if c.RunID == "" || c.RunID != l.RunID {
		return nil, fmt.Errorf("%w: clustering run %q, layout run %q",
			domain.ErrSnapshotMismatch, c.RunID, l.RunID)
	}

	s := &Snapshot{
		runID:          c.RunID,
		createdAt:      c.CreatedAt,
		params:         c.Params,
		degenerate:     c.Degenerate,
		entities:       make(map[string]*entity.Entity, len(c.Entities)),
		entityIDs:      make([]string, 0, len(c.Entities)),
		topics:         make(map[string]*Cluster, len(c.Topics)),
		topicOrder:     make([]string, 0, len(c.Topics)),
		domains:        make(map[string]*Cluster, len(c.Domains)),
		domainOrder:    make([]string, 0, len(c.Domains)),
		topicOf:        make(map[string]string, len(c.Entities)),
		edgesByEntity:  make(map[string][]graph.Edge),
		edgeCounts:     graph.CountByType(c.Edges),
		categoryCounts: make(map[string]int),
		layout:         *l,
	}

	for i := range c.Entities {
		e := &c.Entities[i]
		if _, dup := s.entities[e.ID()]; dup {
			return nil, invalid("duplicate entity %q", e.ID())
		}
		s.entities[e.ID()] = e
		s.entityIDs = append(s.entityIDs, e.ID())
		if cat := e.Category(); cat != "" {
			s.categoryCounts[cat]++
		}
	}
	sort.Strings(s.entityIDs)

	for i := range c.Domains {
		d := &c.Domains[i]
		if d.Level != LevelDomain {
			return nil, invalid("cluster %q listed as domain has level %q", d.ID, d.Level)
		}
		if _, dup := s.domains[d.ID]; dup {
			return nil, invalid("duplicate domain %q", d.ID)
		}
		s.domains[d.ID] = d
		s.domainOrder = append(s.domainOrder, d.ID)
	}

	if err := s.indexTopics(c.Topics); err != nil {
		return nil, err
	}
	if err := s.checkDomains(); err != nil {
		return nil, err
	}
	if err := s.checkPositions(); err != nil {
		return nil, err
	}

	for _, e := range c.Edges {
		s.edgesByEntity[e.Source] = append(s.edgesByEntity[e.Source], e)
		if e.Target != e.Source {
			s.edgesByEntity[e.Target] = append(s.edgesByEntity[e.Target], e)
		}
	}

	return s, nil
}

func (s *Snapshot) indexTopics(topics []Cluster) error {
	for i := range topics {
		t := &topics[i]
		if t.Level != LevelTopic {
			return invalid("cluster %q listed as topic has level %q", t.ID, t.Level)
		}
		if _, dup := s.topics[t.ID]; dup {
			return invalid("duplicate topic %q", t.ID)
		}
		if _, ok := s.domains[t.Parent]; !ok {
			return invalid("topic %q has unknown parent %q", t.ID, t.Parent)
		}
		if len(t.Members) == 0 {
			return invalid("topic %q is empty", t.ID)
		}
		for _, id := range t.Members {
			if _, ok := s.entities[id]; !ok {
				return invalid("topic %q names unknown entity %q", t.ID, id)
			}
			if prev, dup := s.topicOf[id]; dup {
				return invalid("entity %q belongs to topics %q and %q", id, prev, t.ID)
			}
			s.topicOf[id] = t.ID
		}
		s.topics[t.ID] = t
		s.topicOrder = append(s.topicOrder, t.ID)
	}
	if len(s.topicOf) != len(s.entities) {
		for _, id := range s.entityIDs {
			if _, ok := s.topicOf[id]; !ok {
				return invalid("entity %q has no topic", id)
			}
		}
	}
	return nil
}

func (s *Snapshot) checkDomains() error {
	seen := make(map[string]string, len(s.topics))
	for _, did := range s.domainOrder {
		d := s.domains[did]
		for _, tid := range d.Members {
			t, ok := s.topics[tid]
			if !ok {
				return invalid("domain %q names unknown topic %q", did, tid)
			}
			if prev, dup := seen[tid]; dup {
				return invalid("topic %q belongs to domains %q and %q", tid, prev, did)
			}
			if t.Parent != did {
				return invalid("topic %q parent %q disagrees with domain %q", tid, t.Parent, did)
			}
			seen[tid] = did
		}
	}
	if len(seen) != len(s.topics) {
		return invalid("%d topics are not listed under any domain", len(s.topics)-len(seen))
	}
	return nil
}

func (s *Snapshot) checkPositions() error {
	check := func(kind string, ids []string, positions map[string]Position) error {
		for _, id := range ids {
			p, ok := positions[id]
			if !ok {
				return invalid("%s %q has no position", kind, id)
			}
			if !p.Finite() {
				return invalid("%s %q has non-finite position", kind, id)
			}
		}
		return nil
	}
	if err := check("domain", s.domainOrder, s.layout.Domains); err != nil {
		return err
	}
	if err := check("topic", s.topicOrder, s.layout.Topics); err != nil {
		return err
	}
	return check("entity", s.entityIDs, s.layout.Entities)
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", domain.ErrSnapshotInvalid, fmt.Sprintf(format, args...))
}

// RunID returns the pipeline run that produced the snapshot.
func (s *Snapshot) RunID() string { return s.runID }

// CreatedAt returns the run completion time.
func (s *Snapshot) CreatedAt() time.Time { return s.createdAt }

// Params returns the pipeline parameters recorded with the run.
func (s *Snapshot) Params() map[string]string { return s.params }

// Degenerate returns the degenerate clustering conditions of the run.
func (s *Snapshot) Degenerate() []string { return s.degenerate }

// EntityCount returns the number of entities.
func (s *Snapshot) EntityCount() int { return len(s.entityIDs) }

// EntityIDs returns all entity ids, sorted.
func (s *Snapshot) EntityIDs() []string { return s.entityIDs }

// Entity looks up an entity by id.
func (s *Snapshot) Entity(id string) (*entity.Entity, bool) {
	e, ok := s.entities[id]
	return e, ok
}

// Domains returns all domains in artifact order.
func (s *Snapshot) Domains() []*Cluster {
	out := make([]*Cluster, len(s.domainOrder))
	for i, id := range s.domainOrder {
		out[i] = s.domains[id]
	}
	return out
}

// Topics returns all topics in artifact order.
func (s *Snapshot) Topics() []*Cluster {
	out := make([]*Cluster, len(s.topicOrder))
	for i, id := range s.topicOrder {
		out[i] = s.topics[id]
	}
	return out
}

// Domain looks up a domain by id.
func (s *Snapshot) Domain(id string) (*Cluster, bool) {
	d, ok := s.domains[id]
	return d, ok
}

// Topic looks up a topic by id.
func (s *Snapshot) Topic(id string) (*Cluster, bool) {
	t, ok := s.topics[id]
	return t, ok
}

// TopicsOf returns the topics of a domain in member order.
func (s *Snapshot) TopicsOf(domainID string) []*Cluster {
	d, ok := s.domains[domainID]
	if !ok {
		return nil
	}
	out := make([]*Cluster, 0, len(d.Members))
	for _, tid := range d.Members {
		out = append(out, s.topics[tid])
	}
	return out
}

// TopicOf returns the topic id of an entity.
func (s *Snapshot) TopicOf(entityID string) (string, bool) {
	t, ok := s.topicOf[entityID]
	return t, ok
}

// DomainOf returns the domain id of a topic.
func (s *Snapshot) DomainOf(topicID string) (string, bool) {
	t, ok := s.topics[topicID]
	if !ok {
		return "", false
	}
	return t.Parent, true
}

// DomainPosition returns a domain's position in the domain layout.
func (s *Snapshot) DomainPosition(id string) Position { return s.layout.Domains[id] }

// TopicPosition returns a topic's position within its domain layout.
func (s *Snapshot) TopicPosition(id string) Position { return s.layout.Topics[id] }

// EntityPosition returns an entity's position within its topic layout.
func (s *Snapshot) EntityPosition(id string) Position { return s.layout.Entities[id] }

// Layout returns the layout artifact.
func (s *Snapshot) Layout() Layout { return s.layout }

// EntityEdges returns all edges touching an entity.
func (s *Snapshot) EntityEdges(id string) []graph.Edge { return s.edgesByEntity[id] }

// EdgeCounts returns edge totals by type.
func (s *Snapshot) EdgeCounts() map[graph.EdgeType]int { return s.edgeCounts }

// CategoryCounts returns entity totals by category.
func (s *Snapshot) CategoryCounts() map[string]int { return s.categoryCounts }
