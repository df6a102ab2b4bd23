package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound signals a missing resource.
	ErrNotFound = errors.New("not found")
	// ErrClusterNotFound signals an unknown cluster id in the loaded snapshot.
	ErrClusterNotFound = fmt.Errorf("cluster %w", ErrNotFound)
	// ErrEntityNotFound signals an unknown entity id in the loaded snapshot.
	ErrEntityNotFound = fmt.Errorf("entity %w", ErrNotFound)
	// ErrRunNotFound signals a run id with no persisted artifacts.
	ErrRunNotFound = fmt.Errorf("run %w", ErrNotFound)

	// ErrInvalidInput signals malformed pipeline input or request arguments.
	ErrInvalidInput = errors.New("invalid input")
	// ErrSnapshotUnavailable signals that no valid snapshot is loaded yet.
	ErrSnapshotUnavailable = errors.New("snapshot unavailable")
	// ErrSnapshotMismatch signals artifacts that belong to different runs.
	ErrSnapshotMismatch = errors.New("snapshot artifacts mismatch")
	// ErrSnapshotInvalid signals a snapshot that breaks hierarchy invariants.
	ErrSnapshotInvalid = errors.New("snapshot invalid")
	// ErrClusteringDegenerate signals a single giant cluster or all singletons.
	ErrClusteringDegenerate = errors.New("clustering degenerate")
	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
	// ErrLabelingFailed signals a cluster labeling provider failure.
	ErrLabelingFailed = errors.New("labeling failed")
	// ErrVectorIndexUnsupported signals a backend without vector search.
	ErrVectorIndexUnsupported = errors.New("vector index not supported by backend")
)

// InputError wraps ErrInvalidInput with the offending entity and field.
type InputError struct {
	EntityID string
	Field    string
	Reason   string
}

func (e *InputError) Error() string {
	if e.EntityID == "" {
		return fmt.Sprintf("%s: %s: %s", ErrInvalidInput.Error(), e.Field, e.Reason)
	}
	return fmt.Sprintf("%s: entity %q: %s: %s", ErrInvalidInput.Error(), e.EntityID, e.Field, e.Reason)
}

func (e *InputError) Unwrap() error { return ErrInvalidInput }

// NewInputError creates an input error for the given entity field.
func NewInputError(entityID, field, reason string) error {
	return &InputError{EntityID: entityID, Field: field, Reason: reason}
}
