// Package snapshot is the Hierarchy Store: clustering and layout artifacts
// keyed by run id, plus a current-run pointer written last.
package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/kailas-cloud/zoomgraph/internal/db"
	"github.com/kailas-cloud/zoomgraph/internal/domain"
	"github.com/kailas-cloud/zoomgraph/internal/domain/hierarchy"
)

// store is the consumer interface for the hierarchy store (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Del(ctx context.Context, key string) error
	HSet(ctx context.Context, key string, fields map[string]string) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HDel(ctx context.Context, key string, fields ...string) error
}

// Repo persists hierarchy snapshots.
type Repo struct {
	store  store
	prefix string
}

// New creates a hierarchy store repository. prefix namespaces every key (e.g. "zoomgraph:").
func New(s store, prefix string) *Repo {
	return &Repo{store: s, prefix: prefix}
}

func (r *Repo) clusteringKey(runID string) string { return r.prefix + "run:" + runID + ":clustering" }
func (r *Repo) layoutKey(runID string) string     { return r.prefix + "run:" + runID + ":layout" }
func (r *Repo) runsKey() string                   { return r.prefix + "runs" }
func (r *Repo) currentKey() string                { return r.prefix + "current" }

// Publish stores both artifacts and then moves the current pointer to the run.
// Readers never see the run before both artifacts are written; on failure the
// partial artifacts are removed and the previous run stays current.
func (r *Repo) Publish(ctx context.Context, c *hierarchy.Clustering, l *hierarchy.Layout) error {
	if c.RunID == "" || c.RunID != l.RunID {
		return fmt.Errorf("%w: clustering run %q, layout run %q", domain.ErrSnapshotMismatch, c.RunID, l.RunID)
	}
	runID := c.RunID

	cdata, err := encodeClustering(c)
	if err != nil {
		return err
	}
	ldata, err := encodeLayout(l)
	if err != nil {
		return err
	}
	info, err := json.Marshal(c.Info())
	if err != nil {
		return fmt.Errorf("marshal run info: %w", err)
	}

	if err := r.store.Set(ctx, r.clusteringKey(runID), cdata); err != nil {
		return errors.Join(fmt.Errorf("store clustering %s: %w", runID, err), r.discard(ctx, runID))
	}
	if err := r.store.Set(ctx, r.layoutKey(runID), ldata); err != nil {
		return errors.Join(fmt.Errorf("store layout %s: %w", runID, err), r.discard(ctx, runID))
	}
	if err := r.store.HSet(ctx, r.runsKey(), map[string]string{runID: string(info)}); err != nil {
		return errors.Join(fmt.Errorf("register run %s: %w", runID, err), r.discard(ctx, runID))
	}
	if err := r.store.Set(ctx, r.currentKey(), []byte(runID)); err != nil {
		return r.settlePointer(ctx, runID, fmt.Errorf("set current run %s: %w", runID, err))
	}
	return nil
}

// settlePointer resolves a failed write of the current pointer. The write may
// still have landed, so the run is discarded only once the pointer is known
// to name another run.
func (r *Repo) settlePointer(ctx context.Context, runID string, setErr error) error {
	cur, err := r.CurrentRunID(ctx)
	switch {
	case err == nil && cur == runID:
		return nil
	case err == nil || errors.Is(err, domain.ErrSnapshotUnavailable):
		return errors.Join(setErr, r.discard(ctx, runID))
	default:
		return errors.Join(setErr, fmt.Errorf("re-read current run: %w", err))
	}
}

// discard removes every trace of a run.
func (r *Repo) discard(ctx context.Context, runID string) error {
	return errors.Join(
		r.store.Del(ctx, r.clusteringKey(runID)),
		r.store.Del(ctx, r.layoutKey(runID)),
		r.store.HDel(ctx, r.runsKey(), runID),
	)
}

// CurrentRunID returns the id of the current run.
// Returns domain.ErrSnapshotUnavailable when nothing was published yet.
func (r *Repo) CurrentRunID(ctx context.Context) (string, error) {
	data, err := r.store.Get(ctx, r.currentKey())
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return "", domain.ErrSnapshotUnavailable
		}
		return "", fmt.Errorf("get current run: %w", err)
	}
	if len(data) == 0 {
		return "", domain.ErrSnapshotUnavailable
	}
	return string(data), nil
}

// Load reads both artifacts of a run and checks they belong to it.
func (r *Repo) Load(ctx context.Context, runID string) (*hierarchy.Clustering, *hierarchy.Layout, error) {
	cdata, err := r.get(ctx, r.clusteringKey(runID))
	if err != nil {
		return nil, nil, fmt.Errorf("load clustering %s: %w", runID, err)
	}
	ldata, err := r.get(ctx, r.layoutKey(runID))
	if err != nil {
		return nil, nil, fmt.Errorf("load layout %s: %w", runID, err)
	}

	c, err := decodeClustering(cdata)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", domain.ErrSnapshotInvalid, err)
	}
	l, err := decodeLayout(ldata)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", domain.ErrSnapshotInvalid, err)
	}
	if c.RunID != runID || l.RunID != runID {
		return nil, nil, fmt.Errorf("%w: requested %q, clustering %q, layout %q",
			domain.ErrSnapshotMismatch, runID, c.RunID, l.RunID)
	}
	return c, l, nil
}

// LoadSnapshot loads a run and validates it into a servable snapshot.
func (r *Repo) LoadSnapshot(ctx context.Context, runID string) (*hierarchy.Snapshot, error) {
	c, l, err := r.Load(ctx, runID)
	if err != nil {
		return nil, err
	}
	return hierarchy.NewSnapshot(c, l)
}

// LoadCurrent loads the snapshot of the current run.
func (r *Repo) LoadCurrent(ctx context.Context) (*hierarchy.Snapshot, error) {
	runID, err := r.CurrentRunID(ctx)
	if err != nil {
		return nil, err
	}
	return r.LoadSnapshot(ctx, runID)
}

func (r *Repo) get(ctx context.Context, key string) ([]byte, error) {
	data, err := r.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return nil, domain.ErrRunNotFound
		}
		return nil, err
	}
	return data, nil
}

// ListRuns returns registered runs, newest first.
func (r *Repo) ListRuns(ctx context.Context) ([]hierarchy.RunInfo, error) {
	m, err := r.store.HGetAll(ctx, r.runsKey())
	if err != nil {
		return nil, fmt.Errorf("hgetall runs: %w", err)
	}

	current, err := r.CurrentRunID(ctx)
	if err != nil && !errors.Is(err, domain.ErrSnapshotUnavailable) {
		return nil, err
	}

	runs := make([]hierarchy.RunInfo, 0, len(m))
	for id, raw := range m {
		var info hierarchy.RunInfo
		if err := json.Unmarshal([]byte(raw), &info); err != nil {
			return nil, fmt.Errorf("parse run %s: %w", id, err)
		}
		info.RunID = id
		info.Current = id == current
		runs = append(runs, info)
	}

	sort.Slice(runs, func(i, j int) bool {
		if !runs[i].CreatedAt.Equal(runs[j].CreatedAt) {
			return runs[i].CreatedAt.After(runs[j].CreatedAt)
		}
		return runs[i].RunID > runs[j].RunID
	})
	return runs, nil
}

// Prune deletes all but the newest keep runs. The current run is never deleted.
// Returns the ids of the deleted runs.
func (r *Repo) Prune(ctx context.Context, keep int) ([]string, error) {
	if keep < 1 {
		keep = 1
	}
	runs, err := r.ListRuns(ctx)
	if err != nil {
		return nil, err
	}

	var deleted []string
	kept := 0
	for _, run := range runs {
		if run.Current || kept < keep {
			kept++
			continue
		}
		if err := r.discard(ctx, run.RunID); err != nil {
			return deleted, fmt.Errorf("delete run %s: %w", run.RunID, err)
		}
		deleted = append(deleted, run.RunID)
	}
	return deleted, nil
}
