// Package arena implements the MemTable's bump-style region allocator.
//
// It is adapted from the teacher's arenaskl.Arena (a fixed-size,
// lock-free, offset-addressed arena used by a concurrent skiplist). Two
// deliberate simplifications follow from spec.md §5 ("single producer
// thread... no internal synchronization primitives are required, and none
// should be added") and from this MemTable having no on-disk or
// shared-memory representation of its own (spec.md §6: "no wire/file
// format of its own"):
//
//   - No atomics: the teacher's Arena is read and bumped by concurrent
//     goroutines via atomic.AddUint32; this Allocator has exactly one
//     writer, so a plain counter suffices.
//   - No offset indirection: the teacher stores byte offsets into one
//     fixed-size buffer and translates them back to pointers with
//     GetPointer(offset), because its skiplist nodes must be
//     CAS-addressable across goroutines and because a fixed arena can be
//     sized once up front. This MemTable's budget is policed by an
//     external, dynamically-consulted memory tracker rather than a fixed
//     capacity, so the arena grows by acquiring additional fixed-size
//     slabs on demand; each slab is a []byte from make() that is never
//     moved or resized once allocated, so direct Go pointers/slices into a
//     slab stay valid for the Allocator's lifetime (this is what gives row
//     buffers their stable addresses, spec.md invariant I1/P7).
package arena

import (
	"github.com/olapcore/memtable/status"
	"github.com/olapcore/memtable/tracker"
)

// DefaultSlabSize is the chunk size a new Allocator grows by by default,
// chosen to amortize the per-slab tracker.Consume call over many row
// insertions without wasting too much space on a near-empty MemTable.
const DefaultSlabSize = 2 << 20 // 2 MiB

const defaultAlign = 8

// Allocator is a bump allocator backed by a chain of slabs, each charged to
// a tracker.Tracker. It hands out byte regions (Allocate) for row buffers
// and variable-length payloads, and can also simply charge bytes with no
// backing allocation (Charge) for memory whose real storage is an ordinary
// Go object (see skl's list nodes, agg's complex aggregate objects) but whose
// footprint must still count against the MemTable's budget per invariant
// I4.
type Allocator struct {
	tracker  *tracker.Tracker
	slabSize uint32

	slabs    [][]byte
	cur      []byte // tail of the current slab not yet handed out
	consumed uint32 // total bytes charged, including slab and charge-only overhead
}

// New returns an Allocator that charges slabs to t as it grows, in chunks
// of slabSize bytes (DefaultSlabSize if slabSize is 0).
func New(t *tracker.Tracker, slabSize uint32) *Allocator {
	if slabSize == 0 {
		slabSize = DefaultSlabSize
	}
	return &Allocator{tracker: t, slabSize: slabSize}
}

// Consumed returns the arena's total reported consumption. Allocate and
// Charge only ever raise it (I4); Uncharge and Release lower it.
func (a *Allocator) Consumed() uint32 {
	return a.consumed
}

// Allocate returns n contiguous, 8-byte-aligned bytes valid for the
// Allocator's lifetime. It never returns a previously returned region.
func (a *Allocator) Allocate(n uint32) ([]byte, error) {
	if n == 0 {
		return nil, nil
	}
	padded := align(n, defaultAlign)
	if uint32(len(a.cur)) < padded {
		if err := a.growFor(padded); err != nil {
			return nil, err
		}
	}
	buf := a.cur[:n:n]
	a.cur = a.cur[padded:]
	return buf, nil
}

// Charge accounts n bytes against the arena's budget without returning a
// backing allocation. Used for the memory footprint of plain Go objects
// (skiplist node towers, in-progress HLL/bitmap aggregate state) that are
// not, and should not be, carved out of a manually managed byte slab —
// doing so would hide live pointers from the garbage collector.
func (a *Allocator) Charge(n uint32) error {
	if n == 0 {
		return nil
	}
	if err := a.tracker.Consume(int64(n)); err != nil {
		return status.MemLimitExceeded(err)
	}
	a.consumed += n
	return nil
}

// Uncharge reverses a prior Charge, returning n bytes to the tracker. The
// aggregators' Finalize methods do not call it: a finalized object's charge
// stays on the arena until Release.
func (a *Allocator) Uncharge(n uint32) {
	if n == 0 {
		return
	}
	a.tracker.Release(int64(n))
	if n > a.consumed {
		n = a.consumed
	}
	a.consumed -= n
}

// Release gives back the Allocator's entire consumption to its tracker.
// Called once, when the MemTable owning this Allocator is destroyed.
func (a *Allocator) Release() {
	if a.consumed == 0 {
		return
	}
	a.tracker.Release(int64(a.consumed))
	a.slabs = nil
	a.cur = nil
	a.consumed = 0
}

func (a *Allocator) growFor(need uint32) error {
	size := a.slabSize
	if need > size {
		size = need
	}
	if err := a.tracker.Consume(int64(size)); err != nil {
		return status.MemLimitExceeded(err)
	}
	slab := make([]byte, size)
	a.slabs = append(a.slabs, slab)
	a.cur = slab
	a.consumed += size
	return nil
}

func align(n, to uint32) uint32 {
	return (n + to - 1) &^ (to - 1)
}
