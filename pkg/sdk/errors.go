package zoomgraph

import "github.com/kailas-cloud/zoomgraph/internal/domain"

// Sentinel errors re-exported from the domain layer.
// Use errors.Is() to check.
var (
	ErrNotFound            = domain.ErrNotFound
	ErrClusterNotFound     = domain.ErrClusterNotFound
	ErrEntityNotFound      = domain.ErrEntityNotFound
	ErrRunNotFound         = domain.ErrRunNotFound
	ErrInvalidInput        = domain.ErrInvalidInput
	ErrSnapshotUnavailable = domain.ErrSnapshotUnavailable
	ErrSnapshotMismatch    = domain.ErrSnapshotMismatch
	ErrSnapshotInvalid     = domain.ErrSnapshotInvalid
)
