// Package schema models the read-only schema catalog contract consumed by
// the MemTable (spec.md §3, §6): an ordered column list, the key-column
// prefix, per-column logical type and aggregation function, and the
// table's KeysType.
package schema

import "github.com/cockroachdb/errors"

// Type is a column's logical type.
type Type int

const (
	TypeBool Type = iota
	TypeInt32
	TypeInt64
	TypeFloat64
	TypeDecimal // scaled 64-bit integer; comparison and sum/min/max operate on the scaled value
	TypeVarchar
	TypeBitmap // complex aggregate object, bitmap_union only
	TypeHLL    // complex aggregate object, hll_union only
)

// FixedWidth returns the number of bytes this type occupies in a row's
// fixed-width region, or 0 for types whose value lives out of line (see
// Row.Aux).
func (t Type) FixedWidth() int {
	switch t {
	case TypeBool:
		return 1
	case TypeInt32:
		return 4
	case TypeInt64, TypeFloat64, TypeDecimal:
		return 8
	default:
		return 0
	}
}

// IsOutOfLine reports whether values of this type are stored in a row's
// Aux slice rather than its fixed-width region.
func (t Type) IsOutOfLine() bool {
	return t.FixedWidth() == 0
}

// AggFunc is a non-key column's aggregation function under AGG_KEYS. Key
// columns use AggNone (the identity: "Per-column aggregation for key
// columns is the identity", spec.md §4.3). Under DUP_KEYS/UNIQUE_KEYS no
// column's AggFunc is consulted.
type AggFunc int

const (
	AggNone AggFunc = iota
	AggSum
	AggMin
	AggMax
	AggReplace
	AggBitmapUnion
	AggHLLUnion
)

// KeysType is the table's duplicate-handling mode (spec.md §3).
type KeysType int

const (
	DupKeys KeysType = iota
	UniqueKeys
	AggKeys
)

// Column describes one schema column.
type Column struct {
	Name     string
	Index    int
	Type     Type
	Nullable bool
	IsKey    bool
	Agg      AggFunc
	// Scale is the number of fractional decimal digits for TypeDecimal
	// columns; the scaled integer value is what's stored, compared, and
	// summed. Unused for other types.
	Scale int
}

// Schema is the ordered column list plus the key-column count (K). The
// first NumKeyColumns columns form the key prefix (spec.md §3).
type Schema struct {
	Columns       []Column
	NumKeyColumns int

	// precomputed row layout
	nullBitmapBytes int
	fixedOffset     []int // per-column byte offset within the fixed region, -1 if out-of-line
	fixedSize       int   // total fixed-region size, not including the null bitmap
	auxIndex        []int // per-column index into Row.Aux, -1 if not out-of-line
	numAux          int
	keyFixedSize    int // bytes of fixed-width key columns; the key digest hashes each key column's slot and does not read this
}

// New validates and lays out a schema. Key columns (the first
// numKeyColumns entries of columns) must appear first and must carry
// AggNone, matching "per-column aggregation for key columns is the
// identity" (spec.md §4.3).
func New(columns []Column, numKeyColumns int) (*Schema, error) {
	if numKeyColumns < 0 || numKeyColumns > len(columns) {
		return nil, errors.Newf("schema: invalid key column count %d for %d columns", numKeyColumns, len(columns))
	}
	s := &Schema{
		Columns:       append([]Column(nil), columns...),
		NumKeyColumns: numKeyColumns,
	}
	s.fixedOffset = make([]int, len(columns))
	s.auxIndex = make([]int, len(columns))
	s.nullBitmapBytes = (len(columns) + 7) / 8

	off := 0
	for i := range s.Columns {
		c := &s.Columns[i]
		if c.Index != i {
			return nil, errors.Newf("schema: column %q has Index %d, want %d", c.Name, c.Index, i)
		}
		isKey := i < numKeyColumns
		if c.IsKey != isKey {
			return nil, errors.Newf("schema: column %q IsKey=%v does not match position (key prefix is first %d columns)", c.Name, c.IsKey, numKeyColumns)
		}
		if isKey && c.Agg != AggNone {
			return nil, errors.Newf("schema: key column %q must use AggNone", c.Name)
		}
		if isKey && c.Type.IsOutOfLine() && c.Type != TypeVarchar {
			return nil, errors.Newf("schema: key column %q has a non-keyable type", c.Name)
		}

		if c.Type.IsOutOfLine() {
			s.fixedOffset[i] = -1
			s.auxIndex[i] = s.numAux
			s.numAux++
		} else {
			s.fixedOffset[i] = off
			s.auxIndex[i] = -1
			off += c.Type.FixedWidth()
			if isKey {
				s.keyFixedSize = off
			}
		}
	}
	s.fixedSize = off
	return s, nil
}

// RowSize returns the byte size of a row's fixed-width region, including
// the null bitmap.
func (s *Schema) RowSize() int {
	return s.nullBitmapBytes + s.fixedSize
}

// NumAux returns how many out-of-line (Aux) slots a row needs.
func (s *Schema) NumAux() int {
	return s.numAux
}

// Column returns the i'th column.
func (s *Schema) Column(i int) *Column {
	return &s.Columns[i]
}

// NumColumns returns the total column count.
func (s *Schema) NumColumns() int {
	return len(s.Columns)
}
