package agg

import (
	"github.com/RoaringBitmap/roaring/v2"
	"github.com/golang/snappy"

	"github.com/olapcore/memtable/arena"
	"github.com/olapcore/memtable/schema"
)

// bitmapAgg handles TypeBitmap columns under bitmap_union (spec.md §4.3,
// "complex aggregate objects"). While a row is live in the index, the
// column's cell holds a *roaring.Bitmap in AuxValue.Obj; Finalize replaces
// it with the compressed serialized form the rowset writer expects.
//
// bitmapOverhead is a coarse, fixed estimate of a freshly unmarshaled
// bitmap's resident footprint, charged against the arena in place of an
// exact measurement — computing roaring.Bitmap's true heap size would
// require walking its internal container array, which isn't worth the
// cost for an accounting estimate (see DESIGN.md).
const bitmapOverhead = 256

type bitmapAgg struct{}

func (bitmapAgg) Consume(row *schema.Row, col *schema.Column, raw []byte, isNull bool, a *arena.Allocator) error {
	row.SetNull(col.Index, isNull)
	if isNull {
		return nil
	}
	bm := roaring.New()
	if err := bm.UnmarshalBinary(raw); err != nil {
		return err
	}
	if err := a.Charge(bitmapOverhead); err != nil {
		return err
	}
	row.AuxSlot(col.Index).Obj = bm
	return nil
}

func (bitmapAgg) AggUpdate(dst, src *schema.Row, col *schema.Column, a *arena.Allocator) error {
	if src.IsNull(col.Index) {
		return nil
	}
	srcBM, _ := src.AuxSlot(col.Index).Obj.(*roaring.Bitmap)
	if srcBM == nil {
		return nil
	}
	if dst.IsNull(col.Index) {
		if err := a.Charge(bitmapOverhead); err != nil {
			return err
		}
		dst.AuxSlot(col.Index).Obj = srcBM.Clone()
		dst.SetNull(col.Index, false)
		return nil
	}
	dstBM, ok := dst.AuxSlot(col.Index).Obj.(*roaring.Bitmap)
	if !ok {
		return errNullDst
	}
	if err := a.Charge(bitmapOverhead); err != nil {
		return err
	}
	dstBM.Or(srcBM)
	return nil
}

func (bitmapAgg) Finalize(row *schema.Row, col *schema.Column, a *arena.Allocator) error {
	if row.IsNull(col.Index) {
		return nil
	}
	bm, ok := row.AuxSlot(col.Index).Obj.(*roaring.Bitmap)
	if !ok {
		return nil // already finalized: Obj was cleared by an earlier Finalize, so this is idempotent
	}
	raw, err := bm.ToBytes()
	if err != nil {
		return err
	}
	compressed := snappy.Encode(nil, raw)
	buf, err := a.Allocate(uint32(len(compressed)))
	if err != nil {
		return err
	}
	copy(buf, compressed)
	row.AuxSlot(col.Index).Bytes = buf
	row.AuxSlot(col.Index).Obj = nil
	return nil
}
