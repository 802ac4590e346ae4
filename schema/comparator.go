package schema

import (
	"bytes"
	"cmp"
	"fmt"

	"github.com/cespare/xxhash/v2"
)

// Comparator compares the first NumKeyColumns columns of two row buffers,
// lexicographically, per spec.md §4.2:
//
//	for i in 0..K-1:
//	    c = compare_cell(schema.column[i], a.cell(i), b.cell(i))
//	    if c != 0: return c
//	return 0
//
// Nulls sort before non-nulls; integers and floats use natural ordering
// (with a deterministic total order for NaN); strings are byte-lexical;
// decimals compare by scaled integer value.
type Comparator struct {
	schema *Schema
}

// NewComparator builds a Comparator bound to s.
func NewComparator(s *Schema) *Comparator {
	return &Comparator{schema: s}
}

// Compare returns <0, 0, or >0 as a's key sorts before, equal to, or after
// b's key.
func (c *Comparator) Compare(a, b *Row) int {
	for i := 0; i < c.schema.NumKeyColumns; i++ {
		if d := compareCell(&c.schema.Columns[i], a, b, i); d != 0 {
			return d
		}
	}
	return 0
}

// Equal is a potentially-faster specialization of Compare(a,b)==0: it
// rejects on a cached 64-bit digest of the key columns (an
// AbbreviatedKey-style fast path, see internal/base.Equal in the teacher)
// before falling back to the full comparison. It is skl's EqualFunc for the
// MemTable's index (see memtable.go), so this runs on every collision
// candidate findSplice locates, not just in tests. The digest is cached on
// Row and invalidated by Row.SetNull, which every Aggregator.Consume calls
// first for each column — so a scratch row reused in place for an AGG_KEYS
// collision (no new Row allocated) still recomputes its digest against
// whatever key it was most recently Consume'd with.
func (c *Comparator) Equal(a, b *Row) bool {
	if c.keyDigest(a) != c.keyDigest(b) {
		return false
	}
	return c.Compare(a, b) == 0
}

func (c *Comparator) keyDigest(r *Row) uint64 {
	if r.digestValid {
		return r.digest
	}
	h := xxhash.New()
	var tag [1]byte
	for i := 0; i < c.schema.NumKeyColumns; i++ {
		if r.IsNull(i) {
			tag[0] = 1
			_, _ = h.Write(tag[:])
			continue
		}
		tag[0] = 0
		_, _ = h.Write(tag[:])
		col := &c.schema.Columns[i]
		if col.Type.IsOutOfLine() {
			_, _ = h.Write(r.AuxSlot(i).Bytes)
		} else {
			_, _ = h.Write(r.FixedSlot(i))
		}
	}
	r.digest = h.Sum64()
	r.digestValid = true
	return r.digest
}

func compareCell(col *Column, a, b *Row, i int) int {
	aNull, bNull := a.IsNull(i), b.IsNull(i)
	if aNull || bNull {
		switch {
		case aNull && bNull:
			return 0
		case aNull:
			return -1
		default:
			return 1
		}
	}
	switch col.Type {
	case TypeBool:
		return cmp.Compare(b2i(a.Bool(i)), b2i(b.Bool(i)))
	case TypeInt32:
		return cmp.Compare(a.Int32(i), b.Int32(i))
	case TypeInt64:
		return cmp.Compare(a.Int64(i), b.Int64(i))
	case TypeFloat64:
		return cmp.Compare(a.Float64(i), b.Float64(i))
	case TypeDecimal:
		return cmp.Compare(a.Decimal(i), b.Decimal(i))
	case TypeVarchar:
		return bytes.Compare(a.AuxSlot(i).Bytes, b.AuxSlot(i).Bytes)
	default:
		panic(fmt.Sprintf("schema: type %d cannot be a key column", col.Type))
	}
}

func b2i(v bool) int32 {
	if v {
		return 1
	}
	return 0
}
