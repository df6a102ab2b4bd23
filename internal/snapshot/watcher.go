package snapshot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/zoomgraph/internal/domain"
	"github.com/kailas-cloud/zoomgraph/internal/domain/hierarchy"
	"github.com/kailas-cloud/zoomgraph/internal/metrics"
)

// Loader reads published runs from the hierarchy store.
type Loader interface {
	CurrentRunID(ctx context.Context) (string, error)
	LoadSnapshot(ctx context.Context, runID string) (*hierarchy.Snapshot, error)
}

// Watcher polls the current run pointer and swaps newly published runs into a Holder.
// A run that fails to load or validate is skipped; the previous snapshot keeps serving.
type Watcher struct {
	loader   Loader
	holder   *Holder
	interval time.Duration
	metrics  *metrics.Snapshot
	logger   *zap.Logger
}

// NewWatcher creates a watcher. interval <= 0 defaults to 30s.
func NewWatcher(loader Loader, holder *Holder, interval time.Duration, m *metrics.Snapshot, logger *zap.Logger) *Watcher {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Watcher{loader: loader, holder: holder, interval: interval, metrics: m, logger: logger}
}

// Refresh loads the current run if it differs from the served one.
// It reports whether a swap happened. Nothing published yet is not an error.
func (w *Watcher) Refresh(ctx context.Context) (bool, error) {
	runID, err := w.loader.CurrentRunID(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrSnapshotUnavailable) {
			return false, nil
		}
		w.metrics.LoadFailed("store")
		return false, fmt.Errorf("current run: %w", err)
	}
	if cur := w.holder.Current(); cur != nil && cur.RunID() == runID {
		return false, nil
	}

	snap, err := w.loader.LoadSnapshot(ctx, runID)
	if err != nil {
		w.metrics.LoadFailed(failureReason(err))
		return false, fmt.Errorf("load run %s: %w", runID, err)
	}

	prev := w.holder.Swap(snap)
	w.metrics.Swapped(snap.CreatedAt(), snap.EntityCount())
	fields := []zap.Field{
		zap.String("run_id", runID),
		zap.Int("entities", snap.EntityCount()),
		zap.Int("topics", len(snap.Topics())),
		zap.Int("domains", len(snap.Domains())),
	}
	if prev != nil {
		fields = append(fields, zap.String("previous_run_id", prev.RunID()))
	}
	w.logger.Info("Snapshot swapped", fields...)
	return true, nil
}

// Run refreshes until ctx is canceled.
func (w *Watcher) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := w.Refresh(ctx); err != nil && ctx.Err() == nil {
				w.logger.Warn("Snapshot refresh failed", zap.Error(err))
			}
		}
	}
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrSnapshotMismatch):
		return "mismatch"
	case errors.Is(err, domain.ErrSnapshotInvalid):
		return "invalid"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	default:
		return "store"
	}
}
