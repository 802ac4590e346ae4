package agg

import (
	"github.com/axiomhq/hyperloglog"
	"github.com/klauspost/compress/zstd"

	"github.com/olapcore/memtable/arena"
	"github.com/olapcore/memtable/schema"
)

// hllOverhead mirrors bitmapOverhead's coarse accounting approach for the
// other complex aggregate object type (spec.md §4.3); a HyperLogLog
// sketch's dense register array is close enough to fixed-size that a flat
// estimate is accurate in practice.
const hllOverhead = 512

type hllAgg struct{}

func (hllAgg) Consume(row *schema.Row, col *schema.Column, raw []byte, isNull bool, a *arena.Allocator) error {
	row.SetNull(col.Index, isNull)
	if isNull {
		return nil
	}
	sk := hyperloglog.New()
	if err := sk.UnmarshalBinary(raw); err != nil {
		return err
	}
	if err := a.Charge(hllOverhead); err != nil {
		return err
	}
	row.AuxSlot(col.Index).Obj = sk
	return nil
}

func (hllAgg) AggUpdate(dst, src *schema.Row, col *schema.Column, a *arena.Allocator) error {
	if src.IsNull(col.Index) {
		return nil
	}
	srcSk, _ := src.AuxSlot(col.Index).Obj.(*hyperloglog.Sketch)
	if srcSk == nil {
		return nil
	}
	if dst.IsNull(col.Index) {
		if err := a.Charge(hllOverhead); err != nil {
			return err
		}
		clone := hyperloglog.New()
		if err := clone.Merge(srcSk); err != nil {
			return err
		}
		dst.AuxSlot(col.Index).Obj = clone
		dst.SetNull(col.Index, false)
		return nil
	}
	dstSk, ok := dst.AuxSlot(col.Index).Obj.(*hyperloglog.Sketch)
	if !ok {
		return errNullDst
	}
	if err := a.Charge(hllOverhead); err != nil {
		return err
	}
	return dstSk.Merge(srcSk)
}

func (hllAgg) Finalize(row *schema.Row, col *schema.Column, a *arena.Allocator) error {
	if row.IsNull(col.Index) {
		return nil
	}
	sk, ok := row.AuxSlot(col.Index).Obj.(*hyperloglog.Sketch)
	if !ok {
		return nil
	}
	raw, err := sk.MarshalBinary()
	if err != nil {
		return err
	}
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return err
	}
	compressed := enc.EncodeAll(raw, nil)
	enc.Close()
	buf, err := a.Allocate(uint32(len(compressed)))
	if err != nil {
		return err
	}
	copy(buf, compressed)
	row.AuxSlot(col.Index).Bytes = buf
	row.AuxSlot(col.Index).Obj = nil
	return nil
}
