// Package tracker implements the hierarchical memory-tracker tree that the
// MemTable's arena reports consumption to. It mirrors the external
// "memory tracker tree" collaborator from spec.md §6: a parent/child tree
// with consume(bytes) -> ok|over_limit and release(bytes).
//
// A Tracker with no limit (NewRoot with a negative byte count) never
// rejects; this is the shape of the root of a process-wide tracker tree in
// the surrounding load pipeline, which this package does not implement —
// only the contract it is bound by.
package tracker

import (
	"sync/atomic"

	"github.com/cockroachdb/errors"
)

// ErrOverLimit is returned by Consume when the request would push this
// tracker, or one of its ancestors, over its configured limit.
var ErrOverLimit = errors.New("tracker: over memory limit")

// Tracker is one node in a parent/child accounting tree. Each MemTable's
// arena reports to exactly one Tracker (its own child node, see
// memtable.Options), and that Tracker reports to the surrounding system's
// tracker tree through parent.
//
// Tracker is safe for concurrent use, matching the level of contention the
// spec requires of the "shared resources" crossing MemTable boundaries
// (spec.md §5): many MemTables, each single-writer internally, may share
// ancestor Trackers.
type Tracker struct {
	name     string
	parent   *Tracker
	limit    int64 // bytes; negative means unlimited
	consumed int64 // atomic
}

// NewRoot creates a tracker with no parent. A negative limitBytes means
// unlimited.
func NewRoot(name string, limitBytes int64) *Tracker {
	return &Tracker{name: name, limit: limitBytes}
}

// NewChild creates a tracker bound under t. A negative limitBytes means the
// child has no limit of its own (it still defers to ancestor limits).
func (t *Tracker) NewChild(name string, limitBytes int64) *Tracker {
	return &Tracker{name: name, parent: t, limit: limitBytes}
}

// Name returns the tracker's label, for diagnostics.
func (t *Tracker) Name() string { return t.name }

// Consumption returns the bytes currently charged to this tracker.
func (t *Tracker) Consumption() int64 {
	return atomic.LoadInt64(&t.consumed)
}

// Consume charges bytes against this tracker and every ancestor. If any
// tracker in the chain (this one or an ancestor) would exceed its limit,
// the whole charge is rolled back and ErrOverLimit is returned — partial
// consumption is never left behind.
func (t *Tracker) Consume(bytes int64) error {
	if bytes < 0 {
		panic("tracker: Consume called with negative byte count")
	}
	if bytes == 0 {
		return nil
	}

	// Walk from this node to the root, charging as we go. On failure, walk
	// back and undo everything already charged.
	var chain []*Tracker
	for n := t; n != nil; n = n.parent {
		newVal := atomic.AddInt64(&n.consumed, bytes)
		if n.limit >= 0 && newVal > n.limit {
			atomic.AddInt64(&n.consumed, -bytes)
			for _, done := range chain {
				atomic.AddInt64(&done.consumed, -bytes)
			}
			return errors.Wrapf(ErrOverLimit, "tracker %q: %d+%d exceeds limit %d", n.name, newVal-bytes, bytes, n.limit)
		}
		chain = append(chain, n)
	}
	return nil
}

// Release gives back bytes previously charged via Consume, propagating the
// release to every ancestor.
func (t *Tracker) Release(bytes int64) {
	if bytes < 0 {
		panic("tracker: Release called with negative byte count")
	}
	for n := t; n != nil; n = n.parent {
		atomic.AddInt64(&n.consumed, -bytes)
	}
}
