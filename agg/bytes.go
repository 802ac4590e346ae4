package agg

import (
	"github.com/cockroachdb/errors"
	"github.com/olapcore/memtable/arena"
	"github.com/olapcore/memtable/schema"
)

// bytesAgg handles TypeVarchar columns. Only AggReplace is defined for
// free-form strings under AGG_KEYS (Doris' REPLACE/REPLACE_IF_NOT_NULL
// semantics); sum/min/max on strings is a schema-definition error caught
// here rather than silently doing something surprising.
type bytesAgg struct{}

func (bytesAgg) Consume(row *schema.Row, col *schema.Column, raw []byte, isNull bool, a *arena.Allocator) error {
	row.SetNull(col.Index, isNull)
	if isNull {
		return nil
	}
	buf, err := a.Allocate(uint32(len(raw)))
	if err != nil {
		return err
	}
	copy(buf, raw)
	row.AuxSlot(col.Index).Bytes = buf
	return nil
}

func (bytesAgg) AggUpdate(dst, src *schema.Row, col *schema.Column, a *arena.Allocator) error {
	if src.IsNull(col.Index) {
		return nil
	}
	if col.Agg != schema.AggReplace && !dst.IsNull(col.Index) {
		return errors.Newf("agg: column %q: only AggReplace is defined for varchar under AGG_KEYS", col.Name)
	}
	buf, err := a.Allocate(uint32(len(src.AuxSlot(col.Index).Bytes)))
	if err != nil {
		return err
	}
	copy(buf, src.AuxSlot(col.Index).Bytes)
	dst.AuxSlot(col.Index).Bytes = buf
	dst.SetNull(col.Index, false)
	return nil
}

func (bytesAgg) Finalize(row *schema.Row, col *schema.Column, a *arena.Allocator) error {
	return nil
}
