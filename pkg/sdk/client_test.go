package zoomgraph

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	dbBadger "github.com/kailas-cloud/zoomgraph/internal/db/badger"
	"github.com/kailas-cloud/zoomgraph/internal/domain/entity"
	"github.com/kailas-cloud/zoomgraph/internal/domain/graph"
	"github.com/kailas-cloud/zoomgraph/internal/domain/hierarchy"
	snapshotrepo "github.com/kailas-cloud/zoomgraph/internal/repository/snapshot"
)

func artifacts(runID string, created time.Time) (*hierarchy.Clustering, *hierarchy.Layout) {
	c := &hierarchy.Clustering{
		RunID:     runID,
		CreatedAt: created,
		Entities: []entity.Entity{
			entity.Reconstruct("a1", "cache warmup notes", nil, map[string]string{"category": "decision"}, created),
			entity.Reconstruct("a2", "cache eviction", nil, nil, time.Time{}),
			entity.Reconstruct("b1", "vacuum tuning", nil, nil, time.Time{}),
		},
		Topics: []hierarchy.Cluster{
			{ID: "l1-0", Level: hierarchy.LevelTopic, Label: "cache", Parent: "l2-0", Members: []string{"a1", "a2"}, Size: 2},
			{ID: "l1-1", Level: hierarchy.LevelTopic, Label: "vacuum", Parent: "l2-1", Members: []string{"b1"}, Size: 1},
		},
		Domains: []hierarchy.Cluster{
			{ID: "l2-0", Level: hierarchy.LevelDomain, Label: "caching", Members: []string{"l1-0"}, Size: 2},
			{ID: "l2-1", Level: hierarchy.LevelDomain, Label: "storage", Members: []string{"l1-1"}, Size: 1},
		},
		Edges: []graph.Edge{graph.NewUndirected("a1", "a2", graph.EdgeSimilarity, 0.9, "knn")},
	}
	l := &hierarchy.Layout{
		RunID:    runID,
		Domains:  map[string]hierarchy.Position{"l2-0": {X: -1}, "l2-1": {X: 1}},
		Topics:   map[string]hierarchy.Position{"l1-0": {}, "l1-1": {}},
		Entities: map[string]hierarchy.Position{"a1": {X: 1}, "a2": {X: -1}, "b1": {}},
	}
	return c, l
}

func newTestClient(t *testing.T, opts ...Option) (*Client, *snapshotrepo.Repo) {
	t.Helper()
	store, err := dbBadger.NewInMemoryStore()
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	cfg := &clientConfig{}
	for _, o := range opts {
		o.apply(cfg)
	}
	obs, err := newObserver(cfg.logger, cfg.metricsReg)
	if err != nil {
		t.Fatalf("observer: %v", err)
	}
	c := wireClient(store, cfg, obs)
	t.Cleanup(c.Close)
	return c, snapshotrepo.New(store, defaultKeyPrefix)
}

func TestNew_NoStore(t *testing.T) {
	if _, err := New(context.Background()); err == nil {
		t.Fatal("expected error when no store configured")
	}
}

func TestCreateStore_UnknownDriver(t *testing.T) {
	if _, err := createStore(&clientConfig{driver: "unknown"}); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}

func TestClientOptions(t *testing.T) {
	cfg := &clientConfig{}
	for _, o := range []Option{
		WithRedis("localhost:6379", "pw"),
		WithKeyPrefix("zg:"),
		WithMaxPageSize(50),
		WithMaxSearchLimit(10),
		WithMaxNeighbors(5),
	} {
		o.apply(cfg)
	}
	if cfg.driver != "redis" || cfg.addrs[0] != "localhost:6379" || cfg.password != "pw" {
		t.Errorf("redis option not applied: %+v", cfg)
	}
	if cfg.keyPrefix != "zg:" || cfg.maxPageSize != 50 || cfg.maxSearchLimit != 10 || cfg.maxNeighbors != 5 {
		t.Errorf("limits not applied: %+v", cfg)
	}

	WithBadger("/tmp/zg").apply(cfg)
	if cfg.driver != "badger" || cfg.path != "/tmp/zg" {
		t.Errorf("badger option not applied: %+v", cfg)
	}
}

func TestClient_NothingPublished(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()

	swapped, err := c.Refresh(ctx)
	if err != nil || swapped {
		t.Fatalf("Refresh = %v, %v; want false, nil", swapped, err)
	}
	if _, err := c.Overview(); !errors.Is(err, ErrSnapshotUnavailable) {
		t.Errorf("Overview err = %v, want ErrSnapshotUnavailable", err)
	}
	if h := c.Health(ctx); h.Status != "degraded" || h.Checks["snapshot"] != "pending" {
		t.Errorf("Health = %+v", h)
	}
}

func TestClient_QueriesAndRefresh(t *testing.T) {
	c, repo := newTestClient(t)
	ctx := context.Background()
	created := time.Date(2026, 4, 2, 8, 0, 0, 0, time.UTC)

	c1, l1 := artifacts("run-1", created)
	if err := repo.Publish(ctx, c1, l1); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if swapped, err := c.Refresh(ctx); err != nil || !swapped {
		t.Fatalf("Refresh = %v, %v; want true, nil", swapped, err)
	}
	if c.RunID() != "run-1" {
		t.Fatalf("RunID = %q", c.RunID())
	}

	ov, err := c.Overview()
	if err != nil {
		t.Fatal(err)
	}
	if ov.TotalEntities != 3 || len(ov.Domains) != 2 {
		t.Errorf("unexpected overview %+v", ov)
	}

	page, err := c.ExpandTopic("l1-0", 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	if page.Total != 2 || page.Entities[0].ID != "a1" {
		t.Errorf("unexpected page %+v", page)
	}

	e, err := c.GetEntity("a1")
	if err != nil {
		t.Fatal(err)
	}
	if e.DomainID != "l2-0" || len(e.Edges) != 1 {
		t.Errorf("unexpected entity %+v", e)
	}
	if _, err := c.GetEntity("zz"); !errors.Is(err, ErrEntityNotFound) {
		t.Errorf("GetEntity(zz) err = %v", err)
	}

	res, err := c.Search("cache", 0)
	if err != nil || res.Total != 2 {
		t.Errorf("Search = %+v, %v", res, err)
	}

	cent, err := c.Centrality()
	if err != nil || len(cent.Values) != 3 || cent.Values[0].Degree != 1 {
		t.Errorf("Centrality = %+v, %v", cent, err)
	}

	p, err := c.Path("a1", "b1")
	if err != nil || len(p.Nodes) != 6 {
		t.Errorf("Path = %+v, %v", p, err)
	}

	// A second publish is picked up on the next refresh only.
	c2, l2 := artifacts("run-2", created.Add(time.Hour))
	if err := repo.Publish(ctx, c2, l2); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if c.RunID() != "run-1" {
		t.Errorf("run switched before refresh")
	}
	if swapped, err := c.Refresh(ctx); err != nil || !swapped {
		t.Fatalf("second Refresh = %v, %v", swapped, err)
	}
	if c.RunID() != "run-2" {
		t.Errorf("RunID = %q, want run-2", c.RunID())
	}

	runs, err := c.Runs(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 2 || runs[0].RunID != "run-2" || !runs[0].Current {
		t.Errorf("unexpected runs %+v", runs)
	}
}

func TestClient_Observability(t *testing.T) {
	var logs bytes.Buffer
	reg := prometheus.NewRegistry()
	logger := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	c, _ := newTestClient(t, WithLogger(logger), WithPrometheus(reg))

	_, _ = c.Overview()
	_, _ = c.Overview()

	if got := testutil.ToFloat64(c.obs.metrics.operations.WithLabelValues("overview", "error")); got != 2 {
		t.Errorf("overview errors = %v, want 2", got)
	}
	if !strings.Contains(logs.String(), "operation failed") {
		t.Errorf("expected failure log, got %q", logs.String())
	}

	// A second client on the same registerer reuses the collectors.
	if _, err := newObserver(nil, reg); err != nil {
		t.Errorf("reuse registerer: %v", err)
	}
}
