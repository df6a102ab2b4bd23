package main

import (
	"context"
	"fmt"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kailas-cloud/zoomgraph/internal/config"
	"github.com/kailas-cloud/zoomgraph/internal/db"
	"github.com/kailas-cloud/zoomgraph/internal/domain"
	"github.com/kailas-cloud/zoomgraph/internal/metrics"
	"github.com/kailas-cloud/zoomgraph/internal/repository/embcache"
	"github.com/kailas-cloud/zoomgraph/internal/repository/vectorindex"
	"github.com/kailas-cloud/zoomgraph/internal/source/jsonl"
	"github.com/kailas-cloud/zoomgraph/internal/source/parquet"
	"github.com/kailas-cloud/zoomgraph/internal/source/postgres"
	openaiTransport "github.com/kailas-cloud/zoomgraph/internal/transport/openai"
	"github.com/kailas-cloud/zoomgraph/internal/usecase/clustering"
	embeddinguc "github.com/kailas-cloud/zoomgraph/internal/usecase/embedding"
	"github.com/kailas-cloud/zoomgraph/internal/usecase/enrichment"
	"github.com/kailas-cloud/zoomgraph/internal/usecase/labeling"
	"github.com/kailas-cloud/zoomgraph/internal/usecase/layout"
	"github.com/kailas-cloud/zoomgraph/internal/usecase/pipeline"
	"github.com/kailas-cloud/zoomgraph/internal/usecase/similarity"
)

var (
	buildSourceKind string
	buildSourcePath string
	buildLimit      int
)

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Run the offline pipeline once and publish a new snapshot",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx, "build")
		if err != nil {
			return err
		}
		defer a.Close()

		if cmd.Flags().Changed("source") {
			a.cfg.Source.Kind = buildSourceKind
		}
		if cmd.Flags().Changed("path") {
			a.cfg.Source.Path = buildSourcePath
		}
		if cmd.Flags().Changed("limit") {
			a.cfg.Source.Limit = buildLimit
		}

		return runBuild(ctx, a)
	},
}

func init() {
	buildCmd.Flags().StringVar(&buildSourceKind, "source", "", "entity source kind: jsonl, parquet, postgres")
	buildCmd.Flags().StringVar(&buildSourcePath, "path", "", "jsonl file, parquet file or parquet directory")
	buildCmd.Flags().IntVar(&buildLimit, "limit", 0, "read at most this many records (0 = all)")
}

func runBuild(ctx context.Context, a *app) error {
	cfg := a.cfg
	logger := a.logger

	src, closeSrc, err := openSource(cfg.Source)
	if err != nil {
		return err
	}
	defer closeSrc()

	metrics.RegisterClientMetrics()

	var embedder domain.Embedder
	if cfg.Embedding.Enabled {
		embedder = buildEmbedder(cfg.Embedding, cfg.Storage.KeyPrefix, a.store, logger)
		logger.Info("Embedder created",
			zap.String("model", cfg.Embedding.Model),
			zap.Int("dimensions", cfg.Embedding.Dimensions),
			zap.Bool("cache", cfg.Embedding.Cache),
		)
	}

	// Typed nil must not leak into the interface: badger has no FT search.
	var index similarity.NeighborIndex
	if vs, ok := a.store.(db.VectorStore); ok {
		index = vectorindex.New(vs, cfg.Storage.KeyPrefix, vectorindex.HNSWConfig{
			M:           cfg.Similarity.HNSWM,
			EFConstruct: cfg.Similarity.HNSWEFConstruct,
		})
	}

	var labeler domain.Labeler
	if cfg.Labeling.Provider == "openai" {
		labeler = openaiTransport.NewChatLabeler(&openaiTransport.Config{
			APIKey:  cfg.Labeling.APIKey,
			BaseURL: cfg.Labeling.BaseURL,
			Model:   cfg.Labeling.Model,
			Logger:  logger.Named("labeler"),
		})
	}

	svc := pipeline.New(pipeline.Deps{
		Source:   src,
		Embedder: embedder,
		Similarity: similarity.New(similarity.Config{
			K:              cfg.Similarity.K,
			Floor:          cfg.Similarity.Floor,
			HighlySimilar:  cfg.Similarity.HighlySimilar,
			ExactThreshold: cfg.Similarity.ExactThreshold,
			Workers:        cfg.Similarity.Workers,
		}, index, logger.Named("similarity")),
		Enricher: enrichment.New(cfg.Enrichment.MaxEdgesPerNode, logger.Named("enrichment"),
			strategies(cfg.Enrichment)...),
		Clusterer: clustering.New(clustering.Config{
			L1Resolution:  cfg.Clustering.L1Resolution,
			L2Resolution:  cfg.Clustering.L2Resolution,
			Seed:          cfg.Clustering.Seed,
			MaxPasses:     cfg.Clustering.MaxPasses,
			Aggregation:   cfg.Clustering.Aggregation,
			CentroidFloor: cfg.Clustering.CentroidFloor,
		}, logger.Named("clustering")),
		Labeler: labeling.New(labeling.Config{
			SampleSize:  cfg.Labeling.SampleSize,
			Concurrency: cfg.Labeling.Concurrency,
			Timeout:     time.Duration(cfg.Labeling.TimeoutSec) * time.Second,
		}, labeler, logger.Named("labeling")),
		Layouter: layout.New(layout.Config{
			DomainIterations: cfg.Layout.DomainIterations,
			TopicIterations:  cfg.Layout.TopicIterations,
			EntityIterations: cfg.Layout.EntityIterations,
			Epsilon:          cfg.Layout.Epsilon,
			Gravity:          cfg.Layout.Gravity,
			Extent:           cfg.Layout.Extent,
			LargeGraphNodes:  cfg.Layout.LargeGraphNodes,
			BarnesHutNodes:   cfg.Layout.BarnesHutNodes,
			WarmStart:        cfg.Layout.WarmStart,
			Workers:          cfg.Layout.Workers,
			Seed:             cfg.Clustering.Seed,
			Tiers:            cfg.Layout.Tiers,
		}, logger.Named("layout")),
		Store:   a.repo,
		Metrics: metrics.NewPipeline(prometheus.DefaultRegisterer),
		Logger:  logger.Named("pipeline"),
	}, pipeline.Config{
		RetainRuns: cfg.Storage.RetainRuns,
		WarmStart:  cfg.Layout.WarmStart,
		Params:     runParams(cfg),
	})

	info, err := svc.Run(ctx)
	if err != nil {
		return fmt.Errorf("pipeline run: %w", err)
	}
	fmt.Printf("published run %s: %d entities, %d edges, %d topics, %d domains\n",
		info.RunID, info.Entities, info.Edges, info.Topics, info.Domains)
	return nil
}

// openSource returns the configured entity source and its cleanup.
func openSource(cfg config.SourceConfig) (pipeline.Source, func(), error) {
	noop := func() {}
	switch cfg.Kind {
	case "jsonl":
		if cfg.Path == "" {
			return nil, noop, fmt.Errorf("source.path is required for kind %q", cfg.Kind)
		}
		return jsonl.New(cfg.Path, cfg.Limit), noop, nil
	case "parquet":
		if cfg.Path == "" {
			return nil, noop, fmt.Errorf("source.path is required for kind %q", cfg.Kind)
		}
		return parquet.New(cfg.Path, cfg.Limit), noop, nil
	case "postgres":
		src, err := postgres.Open(cfg.DSN, cfg.Table, cfg.Limit)
		if err != nil {
			return nil, noop, err
		}
		return src, func() { _ = src.Close() }, nil
	default:
		return nil, noop, fmt.Errorf("unknown source kind %q", cfg.Kind)
	}
}

// buildEmbedder assembles the decorator chain: OpenAI -> Cached -> Instrumented -> Instruction.
func buildEmbedder(cfg config.EmbeddingConfig, keyPrefix string, store db.Store, logger *zap.Logger) domain.Embedder {
	base := openaiTransport.NewEmbedder(&openaiTransport.Config{
		APIKey:     cfg.APIKey,
		BaseURL:    cfg.BaseURL,
		Model:      cfg.Model,
		Dimensions: cfg.Dimensions,
		Logger:     logger.Named("embedder"),
	})

	var embedder domain.Embedder = base
	if cfg.Cache {
		embedder = embcache.New(base, store, keyPrefix, cfg.Model, metrics.EmbeddingCacheTotal, logger)
	}

	embedder = embeddinguc.NewInstrumentedEmbedder(embedder, cfg.Model, cfg.Concurrency, logger)

	// Outermost, so the cache key includes the instruction.
	if cfg.Instruction != "" {
		return domain.NewInstructionEmbedder(embedder, cfg.Instruction)
	}
	return embedder
}

func strategies(cfg config.EnrichmentConfig) []enrichment.Strategy {
	var out []enrichment.Strategy
	if config.Enabled(cfg.References.Enabled) {
		out = append(out, enrichment.References{})
	}
	if config.Enabled(cfg.Metadata.Enabled) {
		out = append(out, enrichment.Metadata{
			Keys:     cfg.Metadata.Keys,
			Weight:   cfg.Metadata.Weight,
			Fanout:   cfg.Metadata.Fanout,
			MaxGroup: cfg.Metadata.MaxGroup,
		})
	}
	if config.Enabled(cfg.Temporal.Enabled) {
		out = append(out, enrichment.Temporal{
			Window: time.Duration(cfg.Temporal.WindowSec) * time.Second,
			Weight: cfg.Temporal.Weight,
		})
	}
	if cfg.Hub.EntityID != "" {
		out = append(out, enrichment.Hub{
			EntityID:   cfg.Hub.EntityID,
			Categories: cfg.Hub.Categories,
			Weight:     cfg.Hub.Weight,
		})
	}
	return out
}

// runParams records the parameters that shape a run's output.
func runParams(cfg config.Config) map[string]string {
	f := func(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }
	return map[string]string{
		"source":             cfg.Source.Kind,
		"similarity.k":       strconv.Itoa(cfg.Similarity.K),
		"similarity.floor":   f(cfg.Similarity.Floor),
		"enrichment.cap":     strconv.Itoa(cfg.Enrichment.MaxEdgesPerNode),
		"clustering.l1":      f(cfg.Clustering.L1Resolution),
		"clustering.l2":      f(cfg.Clustering.L2Resolution),
		"clustering.seed":    strconv.FormatInt(cfg.Clustering.Seed, 10),
		"clustering.agg":     cfg.Clustering.Aggregation,
		"labeling.provider":  cfg.Labeling.Provider,
		"layout.warm_start":  strconv.FormatBool(cfg.Layout.WarmStart),
		"layout.large_graph": strconv.Itoa(cfg.Layout.LargeGraphNodes),
	}
}
