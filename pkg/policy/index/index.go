// Package index holds the single current PolicySet behind a lock-free
// atomic reference: one writer (the Watcher), many readers, no locking on
// the read path.
package index

import (
	"sync/atomic"

	"aegis-hq/aegis/pkg/policy/ast"
)

// Index is the Policy Index (B). The zero value is not usable; construct
// with New.
type Index struct {
	current atomic.Pointer[ast.PolicySet]
}

// New constructs an Index, optionally seeded with an initial snapshot.
func New(initial *ast.PolicySet) *Index {
	idx := &Index{}
	if initial == nil {
		initial = &ast.PolicySet{Agents: map[string]ast.AgentRule{}}
	}
	idx.current.Store(initial)
	return idx
}

// Current returns the current snapshot. Non-blocking: readers take no lock.
func (idx *Index) Current() *ast.PolicySet {
	return idx.current.Load()
}

// Swap publishes a new snapshot. This is the only call path from the
// Watcher; it is a single atomic pointer store, never an in-place edit, so
// a concurrent reader either sees the entire pre- or post-swap snapshot
// and never a torn read.
func (idx *Index) Swap(next *ast.PolicySet) {
	idx.current.Store(next)
}
