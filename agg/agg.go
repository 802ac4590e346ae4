// Package agg implements the MemTable's per-column aggregator dispatch
// (spec.md §4.3): for each column, how to consume an incoming typed value
// into a cell, how to merge a colliding value into an existing cell under
// AGG_KEYS, and how to finalize accumulated state into its on-disk form
// during flush.
//
// The dispatch is a tagged variant over the closed set of (column type x
// aggregation function) pairs known at schema-load time (spec.md §9:
// "Avoid open-ended inheritance hierarchies; the set is known at
// schema-load time") — expressed here as a small interface with one
// implementation per column-type family, selected once by Dispatch and
// reused for every row.
package agg

import (
	"github.com/cockroachdb/errors"
	"github.com/olapcore/memtable/arena"
	"github.com/olapcore/memtable/schema"
)

// Aggregator is the per-column dispatch contract.
type Aggregator interface {
	// Consume initializes cell col of row from raw tuple bytes, per
	// spec.md §4.3: "called when the row is first inserted."
	Consume(row *schema.Row, col *schema.Column, raw []byte, isNull bool, a *arena.Allocator) error

	// AggUpdate merges src's cell col into dst's cell col, per spec.md
	// §4.3: "called when an insert collides on key under AGG_KEYS."
	AggUpdate(dst, src *schema.Row, col *schema.Column, a *arena.Allocator) error

	// Finalize converts any internal in-memory aggregate object into the
	// serialized form the rowset writer expects. Called once per row,
	// during flush (spec.md §4.3, §4.5 step 1).
	Finalize(row *schema.Row, col *schema.Column, a *arena.Allocator) error
}

// Dispatch returns the Aggregator responsible for col, selected by its
// logical type.
func Dispatch(col *schema.Column) Aggregator {
	switch col.Type {
	case schema.TypeBitmap:
		return bitmapAgg{}
	case schema.TypeHLL:
		return hllAgg{}
	case schema.TypeVarchar:
		return bytesAgg{}
	default:
		return numericAgg{}
	}
}

var errNullDst = errors.New("agg: cannot merge into a cell with no prior Consume")
