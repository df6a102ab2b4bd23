package health

import "context"

// DBPinger checks database availability.
type DBPinger interface {
	Ping(ctx context.Context) error
}

// SnapshotChecker reports whether a servable snapshot is loaded.
type SnapshotChecker interface {
	Loaded() bool
}
