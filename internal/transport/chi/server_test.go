package chi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"

	"github.com/kailas-cloud/zoomgraph/internal/domain/entity"
	"github.com/kailas-cloud/zoomgraph/internal/domain/graph"
	"github.com/kailas-cloud/zoomgraph/internal/domain/hierarchy"
	"github.com/kailas-cloud/zoomgraph/internal/metrics"
	"github.com/kailas-cloud/zoomgraph/internal/snapshot"
	healthuc "github.com/kailas-cloud/zoomgraph/internal/usecase/health"
	queryuc "github.com/kailas-cloud/zoomgraph/internal/usecase/query"
)

// --- Mocks ---

type mockPinger struct{ err error }

func (m *mockPinger) Ping(_ context.Context) error { return m.err }

// --- Fixtures ---

func testSnapshot(t *testing.T) *hierarchy.Snapshot {
	t.Helper()
	created := time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC)
	c := &hierarchy.Clustering{
		RunID:     "run-1",
		CreatedAt: created,
		Entities: []entity.Entity{
			entity.Reconstruct("a1", "Redis session cache", nil, map[string]string{"category": "decision"}, created),
			entity.Reconstruct("a2", "Cache eviction is LRU", nil, map[string]string{"category": "decision"}, time.Time{}),
			entity.Reconstruct("b1", "Postgres vacuum tuning", nil, nil, time.Time{}),
		},
		Topics: []hierarchy.Cluster{
			{ID: "l1-0", Level: hierarchy.LevelTopic, Label: "cache", Parent: "l2-0", Members: []string{"a1", "a2"}, Size: 2},
			{ID: "l1-1", Level: hierarchy.LevelTopic, Label: "postgres", Parent: "l2-1", Members: []string{"b1"}, Size: 1},
		},
		Domains: []hierarchy.Cluster{
			{ID: "l2-0", Level: hierarchy.LevelDomain, Label: "caching", Members: []string{"l1-0"}, Size: 2},
			{ID: "l2-1", Level: hierarchy.LevelDomain, Label: "storage", Members: []string{"l1-1"}, Size: 1},
		},
		Edges: []graph.Edge{
			graph.NewUndirected("a1", "a2", graph.EdgeSimilarity, 0.9, "similarity"),
		},
	}
	l := &hierarchy.Layout{
		RunID:    "run-1",
		Domains:  map[string]hierarchy.Position{"l2-0": {X: -5}, "l2-1": {X: 5}},
		Topics:   map[string]hierarchy.Position{"l1-0": {}, "l1-1": {}},
		Entities: map[string]hierarchy.Position{"a1": {X: 1}, "a2": {X: -1}, "b1": {}},
	}
	snap, err := hierarchy.NewSnapshot(c, l)
	if err != nil {
		t.Fatalf("NewSnapshot: %v", err)
	}
	return snap
}

func newTestRouter(t *testing.T, loaded bool, keys ...string) http.Handler {
	t.Helper()
	holder := snapshot.NewHolder()
	if loaded {
		holder.Swap(testSnapshot(t))
	}
	srv := NewServer(
		queryuc.New(holder, queryuc.Limits{}),
		healthuc.New(&mockPinger{}, holder),
		zap.NewNop(),
	)
	return NewRouter(srv, RouterConfig{APIKeys: keys}, zap.NewNop())
}

func do(t *testing.T, h http.Handler, path string, out any) int {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, http.NoBody)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if ct := rr.Header().Get("Content-Type"); out != nil && ct != "application/json" {
		t.Fatalf("%s: content type %q", path, ct)
	}
	if out != nil {
		if err := json.NewDecoder(rr.Body).Decode(out); err != nil {
			t.Fatalf("%s: decode: %v", path, err)
		}
	}
	return rr.Code
}

// --- Tests ---

func TestOverview(t *testing.T) {
	h := newTestRouter(t, true)

	var resp overviewResponse
	if code := do(t, h, "/api/overview", &resp); code != http.StatusOK {
		t.Fatalf("status %d", code)
	}
	if resp.RunID != "run-1" || resp.TotalEntities != 3 || resp.TotalClusters != 2 {
		t.Errorf("unexpected overview %+v", resp)
	}
	if resp.Clusters[0].ID != "l2-0" || resp.Clusters[0].X != -5 {
		t.Errorf("unexpected first domain %+v", resp.Clusters[0])
	}
}

func TestDomainAndTopic(t *testing.T) {
	h := newTestRouter(t, true)

	var d domainResponse
	if code := do(t, h, "/api/domains/l2-0", &d); code != http.StatusOK {
		t.Fatalf("domain status %d", code)
	}
	if len(d.Topics) != 1 || d.Topics[0].ID != "l1-0" {
		t.Errorf("unexpected topics %+v", d.Topics)
	}

	var page topicResponse
	if code := do(t, h, "/api/topics/l1-0?limit=1&offset=0", &page); code != http.StatusOK {
		t.Fatalf("topic status %d", code)
	}
	if page.Total != 2 || len(page.Entities) != 1 || !page.HasMore {
		t.Errorf("unexpected page %+v", page)
	}
	if page.Entities[0].ID != "a1" || page.Entities[0].TopicID != "l1-0" {
		t.Errorf("unexpected entity %+v", page.Entities[0])
	}
}

func TestEntityAndNeighbors(t *testing.T) {
	h := newTestRouter(t, true)

	var e entityResponse
	if code := do(t, h, "/api/entities/a1", &e); code != http.StatusOK {
		t.Fatalf("entity status %d", code)
	}
	if e.Category != "decision" || e.DomainID != "l2-0" || len(e.Edges) != 1 || e.CreatedAt == nil {
		t.Errorf("unexpected entity %+v", e)
	}

	var n neighborsResponse
	if code := do(t, h, "/api/entities/a1/neighbors?max=5", &n); code != http.StatusOK {
		t.Fatalf("neighbors status %d", code)
	}
	if n.Total != 1 || n.Neighbors[0].ID != "a2" || n.Neighbors[0].EdgeType != "similarity" {
		t.Errorf("unexpected neighbors %+v", n)
	}
}

func TestSearchStatsClusters(t *testing.T) {
	h := newTestRouter(t, true)

	var s searchResponse
	if code := do(t, h, "/api/search?q=cache", &s); code != http.StatusOK {
		t.Fatalf("search status %d", code)
	}
	if s.TotalResults != 2 {
		t.Errorf("search total = %d, want 2", s.TotalResults)
	}

	var st statsResponse
	if code := do(t, h, "/api/stats", &st); code != http.StatusOK {
		t.Fatalf("stats status %d", code)
	}
	if st.Edges != 1 || st.EdgeTypes["similarity"] != 1 || st.Categories["decision"] != 2 {
		t.Errorf("unexpected stats %+v", st)
	}

	var cs clustersResponse
	if code := do(t, h, "/api/clusters/l1", &cs); code != http.StatusOK {
		t.Fatalf("clusters status %d", code)
	}
	if cs.TotalClusters != 2 || cs.Clusters[0].ID != "l1-0" {
		t.Errorf("unexpected clusters %+v", cs)
	}
}

func TestPathAndTemporal(t *testing.T) {
	h := newTestRouter(t, true)

	var p pathResponse
	if code := do(t, h, "/api/path/a1/b1", &p); code != http.StatusOK {
		t.Fatalf("path status %d", code)
	}
	if p.PathType != queryuc.RelationCrossDomain || p.PathLength != 5 {
		t.Errorf("unexpected path %+v", p)
	}

	var td temporalResponse
	if code := do(t, h, "/api/temporal-distribution", &td); code != http.StatusOK {
		t.Fatalf("temporal status %d", code)
	}
	if !td.HasTemporalData || td.TotalWithDates != 1 || td.Distribution[0].Period != "2026-01" {
		t.Errorf("unexpected distribution %+v", td)
	}
}

func TestCentrality(t *testing.T) {
	h := newTestRouter(t, true)

	var resp centralityResponse
	if code := do(t, h, "/api/centrality", &resp); code != http.StatusOK {
		t.Fatalf("status %d", code)
	}
	if resp.Metric != "degree_centrality" || resp.TotalNodes != 3 {
		t.Errorf("unexpected centrality %+v", resp)
	}
	if a1 := resp.Values["a1"]; a1.Degree != 1 || a1.Value != 0.5 || a1.Weighted != 0.9 {
		t.Errorf("a1 = %+v", a1)
	}
	if b1 := resp.Values["b1"]; b1.Degree != 0 || b1.Value != 0 {
		t.Errorf("b1 = %+v", b1)
	}
}

func TestRouterMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	holder := snapshot.NewHolder()
	holder.Swap(testSnapshot(t))
	srv := NewServer(queryuc.New(holder, queryuc.Limits{}), healthuc.New(&mockPinger{}, holder), zap.NewNop())
	h := NewRouter(srv, RouterConfig{Metrics: metrics.NewHTTP(reg)}, zap.NewNop())

	do(t, h, "/api/topics/l1-0", nil)
	do(t, h, "/api/topics/l1-1", nil)
	do(t, h, "/api/topics/l1-9", nil)
	do(t, h, "/api/clusters/l2", nil)

	want := map[string]float64{
		`zoomgraph_http_requests_total{method="GET",route="/api/topics/{id}",status="200"}`:      2,
		`zoomgraph_http_requests_total{method="GET",route="/api/topics/{id}",status="404"}`:      1,
		`zoomgraph_http_requests_total{method="GET",route="/api/clusters/{level}",status="200"}`: 1,
		`zoomgraph_http_zoom_requests_total{level="topic"}`:                                       2,
	}
	families, err := reg.Gather()
	if err != nil {
		t.Fatal(err)
	}
	got := map[string]float64{}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			if m.GetCounter() == nil {
				continue
			}
			key := mf.GetName() + "{"
			for i, lp := range m.GetLabel() {
				if i > 0 {
					key += ","
				}
				key += lp.GetName() + `="` + lp.GetValue() + `"`
			}
			got[key+"}"] = m.GetCounter().GetValue()
		}
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("%s = %v, want %v", k, got[k], v)
		}
	}
	if n := testutil.CollectAndCount(reg, "zoomgraph_http_request_duration_seconds"); n != 3 {
		t.Errorf("duration series = %d, want 3", n)
	}
}

func TestErrorMapping(t *testing.T) {
	h := newTestRouter(t, true)

	tests := []struct {
		path   string
		status int
		code   ErrorCode
	}{
		{"/api/domains/l2-9", http.StatusNotFound, ErrorCodeClusterNotFound},
		{"/api/topics/l1-9", http.StatusNotFound, ErrorCodeClusterNotFound},
		{"/api/entities/zz", http.StatusNotFound, ErrorCodeEntityNotFound},
		{"/api/topics/l1-0?limit=-1", http.StatusBadRequest, ErrorCodeBadRequest},
		{"/api/topics/l1-0?limit=abc", http.StatusBadRequest, ErrorCodeBadRequest},
		{"/api/search", http.StatusBadRequest, ErrorCodeBadRequest},
		{"/api/search?q=a", http.StatusBadRequest, ErrorCodeBadRequest},
		{"/api/clusters/l3", http.StatusBadRequest, ErrorCodeBadRequest},
		{"/api/nope", http.StatusNotFound, ErrorCodeNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			var resp ErrorResponse
			if code := do(t, h, tt.path, &resp); code != tt.status {
				t.Errorf("status = %d, want %d", code, tt.status)
			}
			if resp.Code != tt.code {
				t.Errorf("code = %s, want %s", resp.Code, tt.code)
			}
		})
	}
}

func TestSnapshotUnavailable(t *testing.T) {
	h := newTestRouter(t, false)

	var resp ErrorResponse
	if code := do(t, h, "/api/overview", &resp); code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", code)
	}
	if resp.Code != ErrorCodeSnapshotUnavailable {
		t.Errorf("code = %s", resp.Code)
	}

	var health healthResponse
	if code := do(t, h, "/health", &health); code != http.StatusServiceUnavailable {
		t.Errorf("health status = %d, want 503", code)
	}
	if health.Checks["snapshot"] != string(healthuc.CheckPending) {
		t.Errorf("snapshot check = %q", health.Checks["snapshot"])
	}
}

func TestHealthAndAuth(t *testing.T) {
	h := newTestRouter(t, true, "secret")

	var health healthResponse
	if code := do(t, h, "/health", &health); code != http.StatusOK {
		t.Errorf("health status = %d, want 200", code)
	}
	if code := do(t, h, "/api/overview", nil); code != http.StatusUnauthorized {
		t.Errorf("unauthenticated status = %d, want 401", code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/overview", http.NoBody)
	req.Header.Set("Authorization", "Bearer secret")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Errorf("authenticated status = %d, want 200", rr.Code)
	}
	if rr.Header().Get("X-Request-ID") == "" {
		t.Error("missing X-Request-ID header")
	}
}

func TestInternalErrorIsMasked(t *testing.T) {
	srv := NewServer(nil, nil, zap.NewNop())
	req := httptest.NewRequest(http.MethodGet, "/api/overview", http.NoBody)
	rr := httptest.NewRecorder()
	srv.handleDomainError(rr, req, errors.New("redis: connection refused"))

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rr.Code)
	}
	var resp ErrorResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Code != ErrorCodeInternalError || resp.Message != "internal error" {
		t.Errorf("unexpected body %+v", resp)
	}
}

func TestPanicRecovered(t *testing.T) {
	h := jsonRecoverer(zap.NewNop())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	var resp ErrorResponse
	if code := do(t, h, "/", &resp); code != http.StatusInternalServerError {
		t.Errorf("status = %d", code)
	}
	if resp.Code != ErrorCodeInternalError {
		t.Errorf("code = %s", resp.Code)
	}
}
