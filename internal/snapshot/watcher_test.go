package snapshot

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/kailas-cloud/zoomgraph/internal/domain"
	"github.com/kailas-cloud/zoomgraph/internal/domain/entity"
	"github.com/kailas-cloud/zoomgraph/internal/domain/hierarchy"
	"github.com/kailas-cloud/zoomgraph/internal/metrics"
)

// --- Mocks ---

type mockLoader struct {
	currentFn func(ctx context.Context) (string, error)
	loadFn    func(ctx context.Context, runID string) (*hierarchy.Snapshot, error)
	loads     int
}

func (m *mockLoader) CurrentRunID(ctx context.Context) (string, error) {
	return m.currentFn(ctx)
}

func (m *mockLoader) LoadSnapshot(ctx context.Context, runID string) (*hierarchy.Snapshot, error) {
	m.loads++
	return m.loadFn(ctx, runID)
}

// --- Helpers ---

func testSnapshot(t *testing.T, runID string) *hierarchy.Snapshot {
	t.Helper()
	snap, err := hierarchy.NewSnapshot(&hierarchy.Clustering{
		RunID:     runID,
		CreatedAt: time.Unix(1_700_000_000, 0),
		Entities:  []entity.Entity{entity.Reconstruct("e1", "one", nil, nil, time.Time{})},
		Topics:    []hierarchy.Cluster{{ID: "l1-0", Level: hierarchy.LevelTopic, Parent: "l2-0", Members: []string{"e1"}, Size: 1}},
		Domains:   []hierarchy.Cluster{{ID: "l2-0", Level: hierarchy.LevelDomain, Members: []string{"l1-0"}, Size: 1}},
	}, &hierarchy.Layout{
		RunID:    runID,
		Domains:  map[string]hierarchy.Position{"l2-0": {}},
		Topics:   map[string]hierarchy.Position{"l1-0": {}},
		Entities: map[string]hierarchy.Position{"e1": {}},
	})
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	return snap
}

func newWatcher(loader Loader) (*Watcher, *Holder) {
	h := NewHolder()
	return NewWatcher(loader, h, time.Millisecond, metrics.NewSnapshot(prometheus.NewRegistry()), zap.NewNop()), h
}

// --- Tests ---

func TestRefresh_NothingPublished(t *testing.T) {
	loader := &mockLoader{
		currentFn: func(context.Context) (string, error) { return "", domain.ErrSnapshotUnavailable },
	}
	w, h := newWatcher(loader)

	swapped, err := w.Refresh(context.Background())
	if err != nil || swapped {
		t.Fatalf("Refresh() = %v, %v; want false, nil", swapped, err)
	}
	if h.Loaded() {
		t.Error("holder should stay empty")
	}
}

func TestRefresh_SwapsOnlyOnNewRun(t *testing.T) {
	current := "run-1"
	loader := &mockLoader{
		currentFn: func(context.Context) (string, error) { return current, nil },
	}
	loader.loadFn = func(_ context.Context, runID string) (*hierarchy.Snapshot, error) {
		return testSnapshot(t, runID), nil
	}
	w, h := newWatcher(loader)
	ctx := context.Background()

	if swapped, err := w.Refresh(ctx); err != nil || !swapped {
		t.Fatalf("first Refresh() = %v, %v", swapped, err)
	}
	if swapped, _ := w.Refresh(ctx); swapped {
		t.Error("same run must not be reloaded")
	}
	if loader.loads != 1 {
		t.Errorf("loads = %d, want 1", loader.loads)
	}

	current = "run-2"
	if swapped, err := w.Refresh(ctx); err != nil || !swapped {
		t.Fatalf("second Refresh() = %v, %v", swapped, err)
	}
	if got := h.Current().RunID(); got != "run-2" {
		t.Errorf("served run = %s, want run-2", got)
	}
}

func TestRefresh_FailedLoadKeepsPrevious(t *testing.T) {
	current := "run-1"
	loader := &mockLoader{
		currentFn: func(context.Context) (string, error) { return current, nil },
	}
	loader.loadFn = func(_ context.Context, runID string) (*hierarchy.Snapshot, error) {
		if runID == "run-2" {
			return nil, domain.ErrSnapshotMismatch
		}
		return testSnapshot(t, runID), nil
	}
	w, h := newWatcher(loader)
	ctx := context.Background()

	if _, err := w.Refresh(ctx); err != nil {
		t.Fatal(err)
	}
	current = "run-2"
	_, err := w.Refresh(ctx)
	if !errors.Is(err, domain.ErrSnapshotMismatch) {
		t.Fatalf("error = %v, want ErrSnapshotMismatch", err)
	}
	if got := h.Current().RunID(); got != "run-1" {
		t.Errorf("served run = %s, want run-1", got)
	}
}

func TestRefresh_StoreError(t *testing.T) {
	loader := &mockLoader{
		currentFn: func(context.Context) (string, error) { return "", errors.New("connection refused") },
	}
	w, _ := newWatcher(loader)

	if _, err := w.Refresh(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

func TestRun_PicksUpPublishedRun(t *testing.T) {
	loader := &mockLoader{
		currentFn: func(context.Context) (string, error) { return "run-1", nil },
	}
	loader.loadFn = func(_ context.Context, runID string) (*hierarchy.Snapshot, error) {
		return testSnapshot(t, runID), nil
	}
	w, h := newWatcher(loader)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for !h.Loaded() {
		select {
		case <-deadline:
			t.Fatal("watcher never loaded the run")
		case <-time.After(time.Millisecond):
		}
	}
	cancel()
	<-done
}

func TestFailureReason(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{domain.ErrSnapshotMismatch, "mismatch"},
		{domain.ErrSnapshotInvalid, "invalid"},
		{domain.ErrRunNotFound, "not_found"},
		{errors.New("io"), "store"},
	}
	for _, tt := range tests {
		if got := failureReason(tt.err); got != tt.want {
			t.Errorf("failureReason(%v) = %s, want %s", tt.err, got, tt.want)
		}
	}
}
