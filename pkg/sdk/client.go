package zoomgraph

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/kailas-cloud/zoomgraph/internal/db"
	dbBadger "github.com/kailas-cloud/zoomgraph/internal/db/badger"
	dbRedis "github.com/kailas-cloud/zoomgraph/internal/db/redis"
	"github.com/kailas-cloud/zoomgraph/internal/metrics"
	snapshotrepo "github.com/kailas-cloud/zoomgraph/internal/repository/snapshot"
	"github.com/kailas-cloud/zoomgraph/internal/snapshot"
	healthuc "github.com/kailas-cloud/zoomgraph/internal/usecase/health"
	queryuc "github.com/kailas-cloud/zoomgraph/internal/usecase/query"
)

const (
	defaultReadinessTimeout = 10 * time.Second
	defaultKeyPrefix        = "zoomgraph:"
)

// Client is the zoomgraph SDK entry point.
type Client struct {
	store   db.Store
	repo    *snapshotrepo.Repo
	holder  *snapshot.Holder
	watcher *snapshot.Watcher
	query   *queryuc.Service
	health  *healthuc.Service
	obs     *observer
}

// New connects to the store and loads the current run.
// Nothing published yet is not an error: queries return ErrSnapshotUnavailable
// until Refresh finds a run.
func New(ctx context.Context, opts ...Option) (*Client, error) {
	cfg := &clientConfig{}
	for _, o := range opts {
		o.apply(cfg)
	}

	if cfg.driver == "" {
		return nil, errors.New("zoomgraph: store required (use WithValkey, WithRedis or WithBadger)")
	}

	store, err := createStore(cfg)
	if err != nil {
		return nil, err
	}

	if err := store.WaitForReady(ctx, defaultReadinessTimeout); err != nil {
		store.Close()
		return nil, fmt.Errorf("zoomgraph: database not ready: %w", err)
	}

	obs, err := newObserver(cfg.logger, cfg.metricsReg)
	if err != nil {
		store.Close()
		return nil, err
	}

	c := wireClient(store, cfg, obs)
	if _, err := c.Refresh(ctx); err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}

func createStore(cfg *clientConfig) (db.Store, error) {
	switch cfg.driver {
	case "valkey", "redis":
		s, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.addrs,
			Password: cfg.password,
		})
		if err != nil {
			return nil, fmt.Errorf("zoomgraph: create %s store: %w", cfg.driver, err)
		}
		return s, nil
	case "badger":
		s, err := dbBadger.NewStore(dbBadger.Config{Path: cfg.path})
		if err != nil {
			return nil, fmt.Errorf("zoomgraph: open badger store: %w", err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("zoomgraph: unknown driver %q", cfg.driver)
	}
}

func wireClient(store db.Store, cfg *clientConfig, obs *observer) *Client {
	prefix := cfg.keyPrefix
	if prefix == "" {
		prefix = defaultKeyPrefix
	}
	repo := snapshotrepo.New(store, prefix)
	holder := snapshot.NewHolder()

	// Watcher metrics stay private; operation metrics go to the caller's registerer.
	watcher := snapshot.NewWatcher(repo, holder, 0, metrics.NewSnapshot(prometheus.NewRegistry()), zap.NewNop())

	return &Client{
		store:   store,
		repo:    repo,
		holder:  holder,
		watcher: watcher,
		query: queryuc.New(holder, queryuc.Limits{
			MaxPageSize:    cfg.maxPageSize,
			MaxSearchLimit: cfg.maxSearchLimit,
			MaxNeighbors:   cfg.maxNeighbors,
		}),
		health: healthuc.New(store, holder),
		obs:    obs,
	}
}

// Close releases all resources.
func (c *Client) Close() {
	if c.store != nil {
		c.store.Close()
	}
}

// Refresh loads the current run if it differs from the loaded one and
// reports whether the client switched runs. Queries in flight keep the
// snapshot they started with.
func (c *Client) Refresh(ctx context.Context) (bool, error) {
	return observed(c.obs, "refresh", func() (bool, error) {
		swapped, err := c.watcher.Refresh(ctx)
		if err != nil {
			return false, fmt.Errorf("refresh: %w", err)
		}
		return swapped, nil
	})
}

// RunID returns the loaded run, or "" when nothing is loaded.
func (c *Client) RunID() string {
	if s := c.holder.Current(); s != nil {
		return s.RunID()
	}
	return ""
}

// Runs lists published runs, newest first.
func (c *Client) Runs(ctx context.Context) ([]RunInfo, error) {
	return observed(c.obs, "runs", func() ([]RunInfo, error) {
		runs, err := c.repo.ListRuns(ctx)
		if err != nil {
			return nil, fmt.Errorf("list runs: %w", err)
		}
		return runs, nil
	})
}

// Health checks the store and whether a snapshot is loaded.
func (c *Client) Health(ctx context.Context) HealthStatus {
	report := c.health.Check(ctx)
	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}
	return HealthStatus{
		Status: string(report.Status),
		Checks: checks,
	}
}

// Overview returns every domain with its position.
func (c *Client) Overview() (*Overview, error) {
	return observed(c.obs, "overview", c.query.Overview)
}

// ExpandDomain returns the topics of one domain.
func (c *Client) ExpandDomain(domainID string) (*DomainDetail, error) {
	return observed(c.obs, "expand_domain", func() (*DomainDetail, error) {
		return c.query.ExpandDomain(domainID)
	})
}

// ExpandTopic returns one page of a topic's entities. limit 0 takes the default.
func (c *Client) ExpandTopic(topicID string, limit, offset int) (*TopicPage, error) {
	return observed(c.obs, "expand_topic", func() (*TopicPage, error) {
		return c.query.ExpandTopic(topicID, limit, offset)
	})
}

// GetEntity returns one entity with its edges.
func (c *Client) GetEntity(entityID string) (*EntityDetail, error) {
	return observed(c.obs, "get_entity", func() (*EntityDetail, error) {
		return c.query.GetEntity(entityID)
	})
}

// Search matches entity content and ids case-insensitively.
func (c *Client) Search(q string, limit int) (*SearchResult, error) {
	return observed(c.obs, "search", func() (*SearchResult, error) {
		return c.query.Search(q, limit)
	})
}

// Stats summarizes the loaded snapshot.
func (c *Client) Stats() (*Stats, error) {
	return observed(c.obs, "stats", c.query.Stats)
}

// Clusters lists every cluster of a level (LevelTopic or LevelDomain).
func (c *Client) Clusters(level string) ([]ClusterView, error) {
	return observed(c.obs, "clusters", func() ([]ClusterView, error) {
		return c.query.Clusters(level)
	})
}

// Neighbors returns the strongest related entities of one entity.
func (c *Client) Neighbors(entityID string, maxNeighbors int) ([]Neighbor, error) {
	return observed(c.obs, "neighbors", func() ([]Neighbor, error) {
		return c.query.Neighbors(entityID, maxNeighbors)
	})
}

// Path describes how two entities are connected through the hierarchy.
func (c *Client) Path(fromID, toID string) (*Path, error) {
	return observed(c.obs, "path", func() (*Path, error) {
		return c.query.Path(fromID, toID)
	})
}

// TemporalDistribution counts dated entities per month.
func (c *Client) TemporalDistribution() (*TemporalDistribution, error) {
	return observed(c.obs, "temporal_distribution", c.query.TemporalDistribution)
}

// Centrality returns degree centrality for every entity, ordered by id.
func (c *Client) Centrality() (*Centrality, error) {
	return observed(c.obs, "centrality", c.query.Centrality)
}
