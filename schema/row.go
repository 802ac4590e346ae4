package schema

import (
	"encoding/binary"
	"math"

	"github.com/olapcore/memtable/arena"
)

// AuxValue holds an out-of-line column's state: either a finalized byte
// payload (ready for the rowset writer) or, while AGG_KEYS accumulation is
// still in progress, a live complex aggregate object (e.g. a
// *roaring.Bitmap or *hyperloglog.Sketch — see package agg) that has not
// yet been finalized into bytes. Exactly one of Bytes/Obj is meaningful at
// a time; agg.Aggregator.Finalize transitions Obj -> Bytes.
type AuxValue struct {
	Null  bool
	Bytes []byte
	Obj   interface{}
}

// auxOverhead is the estimated heap footprint of one AuxValue slot, charged
// to the arena per invariant I4 even though the slice header itself lives
// on the Go heap rather than in a manually managed byte slab (see
// arena.Allocator's doc comment for why: real pointers must stay visible
// to the garbage collector).
const auxOverhead = 40

// Row is a schema-driven view over one row's storage: a contiguous
// arena-allocated null bitmap and fixed-width region, plus out-of-line
// slots for variable-length and complex-aggregate columns. Row buffers are
// allocated once from a MemTable's arena and never moved (spec.md I1/P7).
type Row struct {
	Schema *Schema
	Null   []byte
	Fixed  []byte
	Aux    []AuxValue

	digest      uint64
	digestValid bool
}

// NewRow allocates a zeroed row buffer for s from a.
func NewRow(s *Schema, a *arena.Allocator) (*Row, error) {
	null, err := a.Allocate(uint32(s.nullBitmapBytes))
	if err != nil {
		return nil, err
	}
	fixed, err := a.Allocate(uint32(s.fixedSize))
	if err != nil {
		return nil, err
	}
	var aux []AuxValue
	if s.numAux > 0 {
		if err := a.Charge(uint32(s.numAux) * auxOverhead); err != nil {
			return nil, err
		}
		aux = make([]AuxValue, s.numAux)
	}
	return &Row{Schema: s, Null: null, Fixed: fixed, Aux: aux}, nil
}

// IsNull reports whether column i is null.
func (r *Row) IsNull(i int) bool {
	if r.Schema.Columns[i].Type.IsOutOfLine() {
		return r.Aux[r.Schema.auxIndex[i]].Null
	}
	return r.Null[i/8]&(1<<uint(i%8)) != 0
}

// SetNull marks column i null or non-null. Every Aggregator.Consume
// implementation calls this first, for every column, so it doubles as the
// hook that invalidates a stale key digest whenever a scratch row is
// re-consumed into in place (spec.md §4.5's AGG_KEYS
// collision path reuses the scratch buffer in place).
func (r *Row) SetNull(i int, null bool) {
	r.digestValid = false
	if r.Schema.Columns[i].Type.IsOutOfLine() {
		r.Aux[r.Schema.auxIndex[i]].Null = null
		return
	}
	if null {
		r.Null[i/8] |= 1 << uint(i%8)
	} else {
		r.Null[i/8] &^= 1 << uint(i%8)
	}
}

// FixedSlot returns the byte range backing a fixed-width column.
func (r *Row) FixedSlot(i int) []byte {
	off := r.Schema.fixedOffset[i]
	w := r.Schema.Columns[i].Type.FixedWidth()
	return r.Fixed[off : off+w]
}

// AuxSlot returns the out-of-line slot backing column i.
func (r *Row) AuxSlot(i int) *AuxValue {
	return &r.Aux[r.Schema.auxIndex[i]]
}

// --- typed fixed-width accessors ---

func (r *Row) SetBool(i int, v bool) {
	if v {
		r.FixedSlot(i)[0] = 1
	} else {
		r.FixedSlot(i)[0] = 0
	}
}

func (r *Row) Bool(i int) bool { return r.FixedSlot(i)[0] != 0 }

func (r *Row) SetInt32(i int, v int32) {
	binary.LittleEndian.PutUint32(r.FixedSlot(i), uint32(v))
}

func (r *Row) Int32(i int) int32 {
	return int32(binary.LittleEndian.Uint32(r.FixedSlot(i)))
}

func (r *Row) SetInt64(i int, v int64) {
	binary.LittleEndian.PutUint64(r.FixedSlot(i), uint64(v))
}

func (r *Row) Int64(i int) int64 {
	return int64(binary.LittleEndian.Uint64(r.FixedSlot(i)))
}

func (r *Row) SetFloat64(i int, v float64) {
	binary.LittleEndian.PutUint64(r.FixedSlot(i), math.Float64bits(v))
}

func (r *Row) Float64(i int) float64 {
	return math.Float64frombits(binary.LittleEndian.Uint64(r.FixedSlot(i)))
}

// SetDecimal and Decimal store/load the scaled integer representation; the
// column's Scale (decimal digits) is schema metadata, not stored per-row.
func (r *Row) SetDecimal(i int, scaled int64) {
	binary.LittleEndian.PutUint64(r.FixedSlot(i), uint64(scaled))
}

func (r *Row) Decimal(i int) int64 {
	return int64(binary.LittleEndian.Uint64(r.FixedSlot(i)))
}
