package query

import "github.com/kailas-cloud/zoomgraph/internal/domain/hierarchy"

// SnapshotSource yields the snapshot being served, or nil before the first load.
type SnapshotSource interface {
	Current() *hierarchy.Snapshot
}
