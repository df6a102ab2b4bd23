// Package pipeline runs one offline build: load, embed, graph, enrich, cluster,
// label, lay out and publish. A run either publishes a complete snapshot or nothing.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kailas-cloud/zoomgraph/internal/domain"
	"github.com/kailas-cloud/zoomgraph/internal/domain/entity"
	"github.com/kailas-cloud/zoomgraph/internal/domain/graph"
	"github.com/kailas-cloud/zoomgraph/internal/domain/hierarchy"
	"github.com/kailas-cloud/zoomgraph/internal/metrics"
	"github.com/kailas-cloud/zoomgraph/internal/usecase/embedding"
	"github.com/kailas-cloud/zoomgraph/internal/usecase/layout"
)

// maxReportedInputErrors bounds the validation errors joined into one failure.
const maxReportedInputErrors = 20

// Deps are the stage implementations of a run.
type Deps struct {
	Source     Source
	Embedder   domain.Embedder // optional: fills records without vectors
	Similarity SimilarityBuilder
	Enricher   Enricher
	Clusterer  Clusterer
	Labeler    ClusterLabeler
	Layouter   Layouter
	Store      SnapshotStore
	Metrics    *metrics.Pipeline
	Logger     *zap.Logger
}

// Config controls run-level policy.
type Config struct {
	RetainRuns int
	WarmStart  bool
	// Params are recorded with the snapshot for operators.
	Params map[string]string
}

// Service orchestrates pipeline runs.
type Service struct {
	Deps
	cfg Config
	now func() time.Time
}

// New creates a pipeline service.
func New(deps Deps, cfg Config) *Service {
	return &Service{Deps: deps, cfg: cfg, now: time.Now}
}

// Run executes one pipeline run and returns the published run summary.
func (s *Service) Run(ctx context.Context) (*hierarchy.RunInfo, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("run id: %w", err)
	}
	runID := id.String()
	log := s.Logger.With(zap.String("run_id", runID))
	start := time.Now()
	log.Info("Pipeline run started")

	info, err := s.run(ctx, runID, log)
	if err != nil {
		s.Metrics.RunFinished("failed")
		log.Error("Pipeline run failed", zap.Duration("duration", time.Since(start)), zap.Error(err))
		return nil, err
	}
	s.Metrics.RunFinished("published")
	log.Info("Pipeline run published",
		zap.Int("entities", info.Entities),
		zap.Int("edges", info.Edges),
		zap.Int("topics", info.Topics),
		zap.Int("domains", info.Domains),
		zap.Duration("duration", time.Since(start)),
	)
	return info, nil
}

//nolint:gocyclo // linear stage sequence
func (s *Service) run(ctx context.Context, runID string, log *zap.Logger) (*hierarchy.RunInfo, error) {
	t := time.Now()
	records, err := s.Source.Records(ctx)
	if err != nil {
		return nil, fmt.Errorf("load records: %w", err)
	}
	s.stageDone(log, "load", t, zap.Int("records", len(records)))

	if s.Embedder != nil {
		t = time.Now()
		n, err := embedding.Fill(ctx, s.Embedder, records)
		if err != nil {
			return nil, fmt.Errorf("embed records: %w", err)
		}
		s.stageDone(log, "embed", t, zap.Int("embedded", n))
	}

	t = time.Now()
	entities, err := Validate(records)
	if err != nil {
		return nil, err
	}
	s.stageDone(log, "validate", t, zap.Int("entities", len(entities)))

	t = time.Now()
	simEdges, err := s.Similarity.Build(ctx, entities)
	if err != nil {
		return nil, fmt.Errorf("similarity graph: %w", err)
	}
	s.stageDone(log, "similarity", t, zap.Int("edges", len(simEdges)))

	t = time.Now()
	edges := s.Enricher.Enrich(simEdges, entities)
	s.stageDone(log, "enrichment", t, zap.Int("edges", len(edges)))

	t = time.Now()
	res, err := s.Clusterer.Cluster(ctx, entities, edges)
	if err != nil {
		return nil, fmt.Errorf("clustering: %w", err)
	}
	s.stageDone(log, "clustering", t, zap.Int("topics", len(res.Topics)), zap.Int("domains", len(res.Domains)))
	for _, d := range res.Degenerate {
		level, cond, _ := strings.Cut(d, ":")
		s.Metrics.Degenerate(level, cond)
	}

	t = time.Now()
	if err := s.Labeler.Label(ctx, entities, edges, res.Topics, res.Domains); err != nil {
		return nil, fmt.Errorf("labeling: %w", err)
	}
	s.stageDone(log, "labeling", t)

	t = time.Now()
	l, err := s.Layouter.Layout(ctx, layout.Input{
		RunID:       runID,
		Entities:    entities,
		Edges:       edges,
		Topics:      res.Topics,
		Domains:     res.Domains,
		TopicEdges:  res.TopicEdges,
		DomainEdges: res.DomainEdges,
		Previous:    s.previousLayout(ctx, log),
	})
	if err != nil {
		return nil, fmt.Errorf("layout: %w", err)
	}
	s.stageDone(log, "layout", t)

	c := &hierarchy.Clustering{
		RunID:       runID,
		CreatedAt:   s.now().UTC(),
		Params:      s.cfg.Params,
		Entities:    stripVectors(entities),
		Topics:      res.Topics,
		Domains:     res.Domains,
		Edges:       edges,
		TopicEdges:  res.TopicEdges,
		DomainEdges: res.DomainEdges,
		Degenerate:  res.Degenerate,
	}
	if _, err := hierarchy.NewSnapshot(c, l); err != nil {
		return nil, fmt.Errorf("built snapshot rejected: %w", err)
	}

	t = time.Now()
	if err := s.Store.Publish(ctx, c, l); err != nil {
		return nil, fmt.Errorf("publish: %w", err)
	}
	s.stageDone(log, "publish", t)

	if s.cfg.RetainRuns > 0 {
		pruned, err := s.Store.Prune(ctx, s.cfg.RetainRuns)
		if err != nil {
			log.Warn("Pruning old runs failed", zap.Error(err))
		} else if len(pruned) > 0 {
			log.Info("Old runs pruned", zap.Strings("run_ids", pruned))
		}
	}

	s.Metrics.SetEntities(len(entities))
	for typ, n := range graph.CountByType(edges) {
		s.Metrics.SetEdges(string(typ), n)
	}
	s.Metrics.SetClusters(string(hierarchy.LevelTopic), len(res.Topics))
	s.Metrics.SetClusters(string(hierarchy.LevelDomain), len(res.Domains))

	info := c.Info()
	info.Current = true
	return &info, nil
}

// previousLayout returns the published layout for warm start, or nil.
// Warm start is best effort: a missing or unreadable run starts from scratch.
func (s *Service) previousLayout(ctx context.Context, log *zap.Logger) *hierarchy.Layout {
	if !s.cfg.WarmStart {
		return nil
	}
	runID, err := s.Store.CurrentRunID(ctx)
	if err != nil {
		if !errors.Is(err, domain.ErrSnapshotUnavailable) {
			log.Warn("Warm start skipped", zap.Error(err))
		}
		return nil
	}
	_, l, err := s.Store.Load(ctx, runID)
	if err != nil {
		log.Warn("Warm start skipped", zap.String("previous_run_id", runID), zap.Error(err))
		return nil
	}
	log.Info("Warm start from previous run", zap.String("previous_run_id", runID))
	return l
}

func (s *Service) stageDone(log *zap.Logger, stage string, start time.Time, fields ...zap.Field) {
	d := time.Since(start)
	s.Metrics.ObserveStage(stage, d)
	log.Info("Stage completed", append([]zap.Field{zap.String("stage", stage), zap.Duration("duration", d)}, fields...)...)
}

// Validate turns records into entities, rejecting the whole batch on any
// invalid or duplicate record.
func Validate(records []entity.Record) ([]entity.Entity, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: no records", domain.ErrInvalidInput)
	}
	entities := make([]entity.Entity, 0, len(records))
	seen := make(map[string]struct{}, len(records))
	var errs []error
	for _, rec := range records {
		e, err := entity.New(rec)
		if err == nil {
			if _, dup := seen[e.ID()]; dup {
				err = domain.NewInputError(e.ID(), "id", "duplicate")
			}
		}
		if err != nil {
			if len(errs) < maxReportedInputErrors {
				errs = append(errs, err)
			}
			continue
		}
		seen[e.ID()] = struct{}{}
		entities = append(entities, e)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	if dim := len(entities[0].Vector()); dim > 0 {
		for i := range entities {
			if len(entities[i].Vector()) != dim {
				return nil, domain.NewInputError(entities[i].ID(), "embeddings", "dimension differs from other entities")
			}
		}
	}
	return entities, nil
}

func stripVectors(entities []entity.Entity) []entity.Entity {
	out := make([]entity.Entity, len(entities))
	for i := range entities {
		e := &entities[i]
		out[i] = entity.Reconstruct(e.ID(), e.Content(), nil, e.Metadata(), e.CreatedAt())
	}
	return out
}
