package agg

import (
	"encoding/binary"
	"math"

	"github.com/cockroachdb/errors"
	"github.com/olapcore/memtable/arena"
	"github.com/olapcore/memtable/schema"
)

// numericAgg handles TypeBool, TypeInt32, TypeInt64, TypeFloat64, and
// TypeDecimal columns under sum/min/max/replace. Per spec.md §4.3,
// "per-column aggregation for key columns is the identity" — AggUpdate is
// simply never invoked for key columns by the coordinator, so this
// dispatch needs no special key-column case.
type numericAgg struct{}

func (numericAgg) Consume(row *schema.Row, col *schema.Column, raw []byte, isNull bool, a *arena.Allocator) error {
	row.SetNull(col.Index, isNull)
	if isNull {
		return nil
	}
	switch col.Type {
	case schema.TypeBool:
		if len(raw) < 1 {
			return errors.Newf("agg: short bool payload for column %q", col.Name)
		}
		row.SetBool(col.Index, raw[0] != 0)
	case schema.TypeInt32:
		if len(raw) < 4 {
			return errors.Newf("agg: short int32 payload for column %q", col.Name)
		}
		row.SetInt32(col.Index, int32(binary.LittleEndian.Uint32(raw)))
	case schema.TypeInt64:
		if len(raw) < 8 {
			return errors.Newf("agg: short int64 payload for column %q", col.Name)
		}
		row.SetInt64(col.Index, int64(binary.LittleEndian.Uint64(raw)))
	case schema.TypeFloat64:
		if len(raw) < 8 {
			return errors.Newf("agg: short float64 payload for column %q", col.Name)
		}
		row.SetFloat64(col.Index, math.Float64frombits(binary.LittleEndian.Uint64(raw)))
	case schema.TypeDecimal:
		if len(raw) < 8 {
			return errors.Newf("agg: short decimal payload for column %q", col.Name)
		}
		row.SetDecimal(col.Index, int64(binary.LittleEndian.Uint64(raw)))
	default:
		return errors.Newf("agg: numericAgg cannot consume type %v", col.Type)
	}
	return nil
}

func (numericAgg) AggUpdate(dst, src *schema.Row, col *schema.Column, a *arena.Allocator) error {
	if src.IsNull(col.Index) {
		return nil
	}
	if dst.IsNull(col.Index) {
		return copyCell(dst, src, col)
	}
	switch col.Agg {
	case schema.AggReplace:
		return copyCell(dst, src, col)
	case schema.AggSum, schema.AggMin, schema.AggMax:
		return foldCell(dst, src, col)
	default:
		return errors.Newf("agg: column %q has no aggregation function for AGG_KEYS merge", col.Name)
	}
}

func (numericAgg) Finalize(row *schema.Row, col *schema.Column, a *arena.Allocator) error {
	return nil // plain numeric cells need no finalize step
}

func copyCell(dst, src *schema.Row, col *schema.Column) error {
	switch col.Type {
	case schema.TypeBool:
		dst.SetBool(col.Index, src.Bool(col.Index))
	case schema.TypeInt32:
		dst.SetInt32(col.Index, src.Int32(col.Index))
	case schema.TypeInt64:
		dst.SetInt64(col.Index, src.Int64(col.Index))
	case schema.TypeFloat64:
		dst.SetFloat64(col.Index, src.Float64(col.Index))
	case schema.TypeDecimal:
		dst.SetDecimal(col.Index, src.Decimal(col.Index))
	default:
		return errors.Newf("agg: copyCell cannot handle type %v", col.Type)
	}
	dst.SetNull(col.Index, false)
	return nil
}

func foldCell(dst, src *schema.Row, col *schema.Column) error {
	switch col.Type {
	case schema.TypeInt32:
		dst.SetInt32(col.Index, foldInt32(col.Agg, dst.Int32(col.Index), src.Int32(col.Index)))
	case schema.TypeInt64:
		dst.SetInt64(col.Index, foldInt64(col.Agg, dst.Int64(col.Index), src.Int64(col.Index)))
	case schema.TypeFloat64:
		dst.SetFloat64(col.Index, foldFloat64(col.Agg, dst.Float64(col.Index), src.Float64(col.Index)))
	case schema.TypeDecimal:
		dst.SetDecimal(col.Index, foldInt64(col.Agg, dst.Decimal(col.Index), src.Decimal(col.Index)))
	case schema.TypeBool:
		return errors.Newf("agg: column %q: sum/min/max are not defined for bool", col.Name)
	default:
		return errors.Newf("agg: foldCell cannot handle type %v", col.Type)
	}
	return nil
}

func foldInt32(fn schema.AggFunc, a, b int32) int32 {
	switch fn {
	case schema.AggSum:
		return a + b
	case schema.AggMin:
		if b < a {
			return b
		}
		return a
	case schema.AggMax:
		if b > a {
			return b
		}
		return a
	}
	panic("agg: unreachable fold function")
}

func foldInt64(fn schema.AggFunc, a, b int64) int64 {
	switch fn {
	case schema.AggSum:
		return a + b
	case schema.AggMin:
		if b < a {
			return b
		}
		return a
	case schema.AggMax:
		if b > a {
			return b
		}
		return a
	}
	panic("agg: unreachable fold function")
}

func foldFloat64(fn schema.AggFunc, a, b float64) float64 {
	switch fn {
	case schema.AggSum:
		return a + b
	case schema.AggMin:
		if b < a {
			return b
		}
		return a
	case schema.AggMax:
		if b > a {
			return b
		}
		return a
	}
	panic("agg: unreachable fold function")
}
