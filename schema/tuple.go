package schema

// SlotDescriptor locates one tuple field, supplied at MemTable
// construction time alongside the tuple descriptor (spec.md §6).
type SlotDescriptor struct {
	NullIndicatorOffset int
	TupleOffset         int
}

// Tuple is the upstream row batcher's contract (spec.md §6, "consumed from
// tuple source"): a null check and a value accessor, both addressed by
// SlotDescriptor. Slot returns the value's encoded bytes — fixed-width
// columns expect exactly Type.FixedWidth() bytes; out-of-line columns
// (varchar, and pre-aggregated complex values arriving from upstream)
// expect the full value bytes, not a pointer/length pair — the tuple
// source, unlike the MemTable's own row buffers, is not required to be
// arena-backed.
type Tuple interface {
	IsNull(slot SlotDescriptor) bool
	Slot(slot SlotDescriptor) []byte
}
