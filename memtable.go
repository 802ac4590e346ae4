// Package memtable implements the in-memory write buffer of a columnar
// OLAP storage engine: an ordered, aggregating index over arena-allocated
// rows that drains, in key order, into a downstream rowset writer.
//
// A MemTable is bound to one schema and one keys-type for its lifetime,
// written by exactly one producer goroutine, and flushed by that same
// goroutine — see package skl's doc comment for why no internal
// synchronization is used.
package memtable

import (
	"time"

	"github.com/cockroachdb/errors"

	"github.com/olapcore/memtable/agg"
	"github.com/olapcore/memtable/arena"
	"github.com/olapcore/memtable/internal/logging"
	"github.com/olapcore/memtable/memtablemetrics"
	"github.com/olapcore/memtable/schema"
	"github.com/olapcore/memtable/skl"
	"github.com/olapcore/memtable/status"
	"github.com/olapcore/memtable/tracker"
)

// RowsetWriter is the downstream sink a MemTable drains into on flush. The
// writer must not assume a *schema.Row passed to AddRow outlives the call
// unless it copies the row's contents.
type RowsetWriter interface {
	AddRow(row *schema.Row) error
	Flush() error
}

// state is the MemTable's lifecycle: OPEN -> FLUSHING -> CLOSED.
type state int

const (
	stateOpen state = iota
	stateFlushing
	stateClosed
)

// Options groups a MemTable's construction parameters. Call EnsureDefaults
// before use; New does this for you.
type Options struct {
	// TabletID identifies the tablet/partition this MemTable belongs to,
	// carried through for logging only.
	TabletID int64

	Schema   *schema.Schema
	KeysType schema.KeysType

	// Slots maps each schema column to where its value lives in an
	// incoming Tuple.
	Slots []schema.SlotDescriptor

	Writer RowsetWriter

	// Parent is the memory tracker this MemTable's own arena tracker is
	// created as a child of (spec.md §12.1: "wraps the caller's
	// mem_tracker in a new child tracker named 'memtable'").
	Parent *tracker.Tracker
	// MemLimit bounds this MemTable's own tracker; -1 means unlimited
	// (still subject to Parent's limit).
	MemLimit int64

	// SlabSize overrides arena.DefaultSlabSize; 0 means use the default.
	SlabSize uint32

	Logger  logging.Logger
	Metrics *memtablemetrics.Metrics
}

// EnsureDefaults fills zero-value fields with defaults and returns the
// (possibly modified) Options.
func (o *Options) EnsureDefaults() *Options {
	if o.Logger == nil {
		o.Logger = logging.DefaultLogger{}
	}
	if o.Parent == nil {
		o.Parent = tracker.NewRoot("root", -1)
	}
	if o.Metrics == nil {
		o.Metrics = memtablemetrics.New(nil)
	}
	return o
}

// MemTable is the ingest/flush coordinator: the public façade described by
// spec.md §4.5.
type MemTable struct {
	opts   *Options
	schema *schema.Schema
	cmp    *schema.Comparator
	aggs   []agg.Aggregator

	tracker *tracker.Tracker
	arena   *arena.Allocator
	index   *skl.List[*schema.Row]

	scratch      *schema.Row
	needsScratch bool
	state        state
}

// New constructs an empty, OPEN MemTable bound to opts.
func New(opts *Options) (*MemTable, error) {
	opts.EnsureDefaults()
	if opts.Schema == nil {
		return nil, errors.New("memtable: Options.Schema is required")
	}
	if opts.Writer == nil {
		return nil, errors.New("memtable: Options.Writer is required")
	}

	t := opts.Parent.NewChild("memtable", opts.MemLimit)
	a := arena.New(t, opts.SlabSize)
	cmp := schema.NewComparator(opts.Schema)

	aggs := make([]agg.Aggregator, opts.Schema.NumColumns())
	for i := range aggs {
		aggs[i] = agg.Dispatch(opts.Schema.Column(i))
	}

	m := &MemTable{
		opts:    opts,
		schema:  opts.Schema,
		cmp:     cmp,
		aggs:    aggs,
		tracker: t,
		arena:   a,
	}

	// m.cmp.Equal gates skl's collision candidates: it checks the cached
	// xxhash digest of each row's key columns before falling back to
	// m.compareRows' full column-by-column comparison, so the fast-reject
	// actually runs on the insert path instead of sitting unused.
	m.index = skl.New[*schema.Row](m.compareRows, m.chargeNode, m.cmp.Equal)

	scratch, err := schema.NewRow(opts.Schema, a)
	if err != nil {
		return nil, err
	}
	m.scratch = scratch
	return m, nil
}

func (m *MemTable) compareRows(a, b *schema.Row) int {
	return m.cmp.Compare(a, b)
}

func (m *MemTable) chargeNode(n uint32) error {
	return m.arena.Charge(n)
}

// ensureScratch allocates a fresh scratch row if the previous one was
// handed off to the index and no replacement has been obtained yet. Called
// at the top of Insert so a failed allocation is retried on the next call
// rather than leaving m.scratch aliasing a row the index already owns.
func (m *MemTable) ensureScratch() error {
	if !m.needsScratch {
		return nil
	}
	fresh, err := schema.NewRow(m.schema, m.arena)
	if err != nil {
		return err
	}
	m.scratch = fresh
	m.needsScratch = false
	return nil
}

// Insert encodes tuple into the MemTable, per spec.md §4.5 step 1-5.
// Valid only while the MemTable is OPEN.
func (m *MemTable) Insert(tuple schema.Tuple) error {
	if m.state != stateOpen {
		status.AssertInvariant(false, "memtable: Insert called while not OPEN")
	}
	if err := m.ensureScratch(); err != nil {
		return err
	}

	for i := 0; i < m.schema.NumColumns(); i++ {
		slot := m.opts.Slots[i]
		isNull := tuple.IsNull(slot)
		var raw []byte
		if !isNull {
			raw = tuple.Slot(slot)
		}
		if err := m.aggs[i].Consume(m.scratch, m.schema.Column(i), raw, isNull, m.arena); err != nil {
			return err
		}
	}

	mode := keysTypeToMode(m.opts.KeysType)
	inserted, existing, collided, err := m.index.Insert(m.scratch, mode)
	if err != nil {
		return err
	}

	switch {
	case inserted:
		// The scratch buffer is now permanently owned by the index; a
		// fresh one must back the next incoming row. The row itself is
		// fully absorbed regardless of whether the replacement below
		// succeeds (spec.md §4.6: "the new row is fully absorbed or it
		// is not in the index at all" — never a partial state), so a
		// failure here is reported but does not leave m.scratch aliasing
		// a row the index already owns: needsScratch defers the retry to
		// the top of the next Insert call.
		m.scratch = nil
		m.needsScratch = true

	case collided && m.opts.KeysType == schema.AggKeys:
		for i := m.schema.NumKeyColumns; i < m.schema.NumColumns(); i++ {
			if err := m.aggs[i].AggUpdate(existing, m.scratch, m.schema.Column(i), m.arena); err != nil {
				return err
			}
		}
		// scratch is reused for the next row as-is.

	case collided && m.opts.KeysType == schema.UniqueKeys:
		// The index already swapped the pointer, so it now owns the
		// scratch buffer and a fresh one is needed; the replaced row is
		// unreachable (still arena-owned, per spec.md §4.5 step 5).
		m.scratch = nil
		m.needsScratch = true

	default:
		status.AssertInvariant(false, "memtable: index.Insert returned neither inserted nor a recognized collision")
	}

	return m.ensureScratch()
}

// MemoryUsage returns this MemTable's current arena consumption in bytes
// (spec.md invariant I4).
func (m *MemTable) MemoryUsage() int64 {
	return int64(m.arena.Consumed())
}

// Flush drains the index in ascending key order into the rowset writer,
// per spec.md §4.5. It transitions OPEN -> FLUSHING -> CLOSED.
func (m *MemTable) Flush() error {
	if m.state == stateClosed {
		return nil
	}
	m.state = stateFlushing
	m.opts.Logger.Infof("memtable: tablet %d flush started", m.opts.TabletID)
	start := time.Now()

	var firstErr error
	it := m.index.Iter()
	for it.Next() {
		row := it.Value()
		for i := 0; i < m.schema.NumColumns(); i++ {
			if err := m.aggs[i].Finalize(row, m.schema.Column(i), m.arena); err != nil {
				firstErr = status.WriterError(err)
				break
			}
		}
		if firstErr != nil {
			break
		}
		if err := m.opts.Writer.AddRow(row); err != nil {
			firstErr = status.WriterError(err)
			break
		}
	}

	if firstErr == nil {
		if err := m.opts.Writer.Flush(); err != nil {
			firstErr = status.WriterError(err)
		}
	}

	elapsed := time.Since(start)
	m.opts.Metrics.RecordFlush(elapsed)
	m.state = stateClosed

	if firstErr != nil {
		m.opts.Logger.Infof("memtable: tablet %d flush failed after %s: %v", m.opts.TabletID, elapsed, firstErr)
		return firstErr
	}
	m.opts.Logger.Infof("memtable: tablet %d flush completed in %s", m.opts.TabletID, elapsed)
	return nil
}

// Close flushes the MemTable if it has not already been flushed. Re-entrant:
// calling Close on an already-CLOSED MemTable is a no-op.
func (m *MemTable) Close() error {
	if m.state == stateClosed {
		return nil
	}
	return m.Flush()
}

func keysTypeToMode(kt schema.KeysType) skl.Mode {
	switch kt {
	case schema.DupKeys:
		return skl.ModeDuplicate
	case schema.UniqueKeys:
		return skl.ModeReplace
	case schema.AggKeys:
		return skl.ModeMerge
	default:
		status.AssertInvariant(false, "memtable: unknown KeysType %v", kt)
		panic("unreachable")
	}
}
