package memtable

import (
	"encoding/binary"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/olapcore/memtable/schema"
	"github.com/olapcore/memtable/status"
	"github.com/olapcore/memtable/tracker"
)

var errWriterBoom = errors.New("fake writer: boom")

// fakeTuple is a Tuple backed by parallel null/value slices, one entry per
// schema column, indexed by SlotDescriptor.TupleOffset.
type fakeTuple struct {
	null []bool
	val  [][]byte
}

func (t *fakeTuple) IsNull(slot schema.SlotDescriptor) bool { return t.null[slot.TupleOffset] }
func (t *fakeTuple) Slot(slot schema.SlotDescriptor) []byte { return t.val[slot.TupleOffset] }

func row(k int64, kNull bool, v int64, vNull bool) *fakeTuple {
	return &fakeTuple{
		null: []bool{kNull, vNull},
		val:  [][]byte{i64(k), i64(v)},
	}
}

func i64(v int64) []byte {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, uint64(v))
	return b
}

func identitySlots() []schema.SlotDescriptor {
	return []schema.SlotDescriptor{{TupleOffset: 0}, {TupleOffset: 1}}
}

type capturedRow struct {
	kNull bool
	k     int64
	vNull bool
	v     int64
}

type fakeWriter struct {
	rows      []capturedRow
	flushed   bool
	failAfter int // fail the (failAfter+1)'th AddRow call if >= 0
	calls     int
}

func (w *fakeWriter) AddRow(r *schema.Row) error {
	if w.failAfter >= 0 && w.calls == w.failAfter {
		w.calls++
		return errWriterBoom
	}
	w.calls++
	cr := capturedRow{kNull: r.IsNull(0), vNull: r.IsNull(1)}
	if !cr.kNull {
		cr.k = r.Int64(0)
	}
	if !cr.vNull {
		cr.v = r.Int64(1)
	}
	w.rows = append(w.rows, cr)
	return nil
}

func (w *fakeWriter) Flush() error {
	w.flushed = true
	return nil
}

func newKVSchema(t *testing.T, keysType schema.KeysType, vAgg schema.AggFunc, kNullable bool) *schema.Schema {
	t.Helper()
	s, err := schema.New([]schema.Column{
		{Name: "k", Index: 0, Type: schema.TypeInt64, IsKey: true, Nullable: kNullable},
		{Name: "v", Index: 1, Type: schema.TypeInt64, Agg: vAgg},
	}, 1)
	require.NoError(t, err)
	return s
}

func newTestMemTable(t *testing.T, s *schema.Schema, keysType schema.KeysType, w RowsetWriter, limit int64) *MemTable {
	t.Helper()
	opts := &Options{
		Schema:   s,
		KeysType: keysType,
		Slots:    identitySlots(),
		Writer:   w,
		Parent:   tracker.NewRoot("root", -1),
		MemLimit: limit,
	}
	m, err := New(opts)
	require.NoError(t, err)
	return m
}

func TestDupKeysTrivialSort(t *testing.T) {
	s := newKVSchema(t, schema.DupKeys, schema.AggNone, false)
	w := &fakeWriter{failAfter: -1}
	m := newTestMemTable(t, s, schema.DupKeys, w, -1)

	require.NoError(t, m.Insert(row(3, false, 10, false)))
	require.NoError(t, m.Insert(row(1, false, 20, false)))
	require.NoError(t, m.Insert(row(2, false, 30, false)))
	require.Greater(t, m.MemoryUsage(), int64(0))

	require.NoError(t, m.Flush())
	require.True(t, w.flushed)
	require.Equal(t, []capturedRow{
		{k: 1, v: 20}, {k: 2, v: 30}, {k: 3, v: 10},
	}, w.rows)
}

func TestUniqueKeysLaterWins(t *testing.T) {
	s := newKVSchema(t, schema.UniqueKeys, schema.AggReplace, false)
	// v's Agg field is irrelevant under UNIQUE_KEYS (the index itself
	// replaces the pointer; per-column agg_update is never invoked).
	w := &fakeWriter{failAfter: -1}
	m := newTestMemTable(t, s, schema.UniqueKeys, w, -1)

	require.NoError(t, m.Insert(row(1, false, 100, false)))
	require.NoError(t, m.Insert(row(1, false, 200, false)))
	require.NoError(t, m.Insert(row(2, false, 5, false)))
	require.NoError(t, m.Insert(row(1, false, 300, false)))

	require.NoError(t, m.Flush())
	require.Equal(t, []capturedRow{
		{k: 1, v: 300}, {k: 2, v: 5},
	}, w.rows)
}

func TestAggKeysSum(t *testing.T) {
	s := newKVSchema(t, schema.AggKeys, schema.AggSum, false)
	w := &fakeWriter{failAfter: -1}
	m := newTestMemTable(t, s, schema.AggKeys, w, -1)

	require.NoError(t, m.Insert(row(5, false, 1, false)))
	require.NoError(t, m.Insert(row(5, false, 2, false)))
	require.NoError(t, m.Insert(row(5, false, 4, false)))
	require.NoError(t, m.Insert(row(6, false, 10, false)))

	require.NoError(t, m.Flush())
	require.Equal(t, []capturedRow{
		{k: 5, v: 7}, {k: 6, v: 10},
	}, w.rows)
}

func TestAggKeysReplace(t *testing.T) {
	s := newKVSchema(t, schema.AggKeys, schema.AggReplace, false)
	w := &fakeWriter{failAfter: -1}
	m := newTestMemTable(t, s, schema.AggKeys, w, -1)

	require.NoError(t, m.Insert(row(5, false, 1, false)))
	require.NoError(t, m.Insert(row(5, false, 2, false)))
	require.NoError(t, m.Insert(row(5, false, 4, false)))

	require.NoError(t, m.Flush())
	require.Equal(t, []capturedRow{{k: 5, v: 4}}, w.rows)
}

func TestNullFirstOrdering(t *testing.T) {
	s := newKVSchema(t, schema.DupKeys, schema.AggNone, true)
	w := &fakeWriter{failAfter: -1}
	m := newTestMemTable(t, s, schema.DupKeys, w, -1)

	require.NoError(t, m.Insert(row(0, true, 1, false)))
	require.NoError(t, m.Insert(row(2, false, 2, false)))
	require.NoError(t, m.Insert(row(0, true, 3, false)))

	require.NoError(t, m.Flush())
	require.Equal(t, []capturedRow{
		{kNull: true, v: 1}, {kNull: true, v: 3}, {k: 2, v: 2},
	}, w.rows)
}

func TestMemoryLimitRefusalThenSuccessfulFlush(t *testing.T) {
	s := newKVSchema(t, schema.DupKeys, schema.AggNone, false)
	w := &fakeWriter{failAfter: -1}
	// One slab (4096B) is large enough to back every row buffer this test
	// allocates without ever growing again; the budget on top of it only
	// leaves room for a handful of skip-list node charges. This makes the
	// index's own node-charge check — not a row-buffer allocation — the
	// deterministic rejection point, so a rejected row is cleanly never
	// absorbed into the index (spec.md §4.6).
	const slabSize = 4096
	opts := &Options{
		Schema:   s,
		KeysType: schema.DupKeys,
		Slots:    identitySlots(),
		Writer:   w,
		Parent:   tracker.NewRoot("root", -1),
		MemLimit: slabSize + 160,
		SlabSize: slabSize,
	}
	m, err := New(opts)
	require.NoError(t, err)

	inserted := 0
	var limitErr error
	for i := 0; i < 10_000; i++ {
		err := m.Insert(row(int64(i), false, int64(i), false))
		if err != nil {
			limitErr = err
			break
		}
		inserted++
	}
	require.Error(t, limitErr)
	require.True(t, status.IsMemLimitExceeded(limitErr))
	require.Greater(t, inserted, 0)

	require.NoError(t, m.Flush())
	require.Len(t, w.rows, inserted)
	for i, r := range w.rows {
		require.Equal(t, int64(i), r.k)
	}
}

func TestFlushOnEmptyMemTableStillCountsOnce(t *testing.T) {
	s := newKVSchema(t, schema.DupKeys, schema.AggNone, false)
	w := &fakeWriter{failAfter: -1}
	m := newTestMemTable(t, s, schema.DupKeys, w, -1)

	require.NoError(t, m.Flush())
	require.Empty(t, w.rows)
	require.True(t, w.flushed)
	require.Equal(t, float64(1), testutil.ToFloat64(m.opts.Metrics.FlushTotal))
}

func TestWriterErrorAbortsFlush(t *testing.T) {
	s := newKVSchema(t, schema.DupKeys, schema.AggNone, false)
	w := &fakeWriter{failAfter: 1}
	m := newTestMemTable(t, s, schema.DupKeys, w, -1)

	require.NoError(t, m.Insert(row(1, false, 1, false)))
	require.NoError(t, m.Insert(row(2, false, 2, false)))
	require.NoError(t, m.Insert(row(3, false, 3, false)))

	err := m.Flush()
	require.Error(t, err)
	require.True(t, status.IsWriterError(err))

	// Re-entrant Close after a failed Flush is a no-op, matching the
	// state machine's re-entrant CLOSED->CLOSED contract.
	require.NoError(t, m.Close())
}

func TestCloseIsReentrant(t *testing.T) {
	s := newKVSchema(t, schema.DupKeys, schema.AggNone, false)
	w := &fakeWriter{failAfter: -1}
	m := newTestMemTable(t, s, schema.DupKeys, w, -1)

	require.NoError(t, m.Insert(row(1, false, 1, false)))
	require.NoError(t, m.Close())
	require.True(t, w.flushed)
	require.NoError(t, m.Close())
	require.Len(t, w.rows, 1)
}
