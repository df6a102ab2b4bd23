// Package snapshot keeps the served hierarchy snapshot current.
package snapshot

import (
	"sync/atomic"

	"github.com/kailas-cloud/zoomgraph/internal/domain/hierarchy"
)

// Holder publishes one immutable snapshot to concurrent readers.
// Readers see either the previous or the next snapshot in full.
type Holder struct {
	p atomic.Pointer[hierarchy.Snapshot]
}

// NewHolder creates an empty holder.
func NewHolder() *Holder { return &Holder{} }

// Current returns the served snapshot, or nil before the first load.
func (h *Holder) Current() *hierarchy.Snapshot { return h.p.Load() }

// Loaded reports whether a snapshot is being served.
func (h *Holder) Loaded() bool { return h.p.Load() != nil }

// Swap replaces the served snapshot and returns the previous one.
func (h *Holder) Swap(s *hierarchy.Snapshot) *hierarchy.Snapshot { return h.p.Swap(s) }
