package schema

import (
	"testing"

	"github.com/kr/pretty"
	"github.com/stretchr/testify/require"

	"github.com/olapcore/memtable/arena"
	"github.com/olapcore/memtable/tracker"
)

// dumpRow renders a row's fields for a failing assertion's test log, the way
// a quick fmt.Printf("%#v", ...) would but legible for a Row's unexported
// byte slices too.
func dumpRow(t *testing.T, label string, row *Row) {
	t.Helper()
	t.Logf("%s: %# v", label, pretty.Formatter(row))
}

func kvSchema(t *testing.T, keyNullable bool) *Schema {
	t.Helper()
	s, err := New([]Column{
		{Name: "k", Index: 0, Type: TypeInt64, IsKey: true, Nullable: keyNullable},
		{Name: "v", Index: 1, Type: TypeInt64, IsKey: false, Agg: AggNone},
	}, 1)
	require.NoError(t, err)
	return s
}

func newAllocator(t *testing.T) *arena.Allocator {
	t.Helper()
	return arena.New(tracker.NewRoot("root", -1), 4096)
}

func TestRowFixedWidthRoundTrip(t *testing.T) {
	s := kvSchema(t, false)
	a := newAllocator(t)
	row, err := NewRow(s, a)
	require.NoError(t, err)

	row.SetInt64(0, 42)
	row.SetInt64(1, 7)
	dumpRow(t, "after set", row)
	require.EqualValues(t, 42, row.Int64(0))
	require.EqualValues(t, 7, row.Int64(1))
	require.False(t, row.IsNull(0))
}

func TestRowNullBit(t *testing.T) {
	s := kvSchema(t, true)
	a := newAllocator(t)
	row, err := NewRow(s, a)
	require.NoError(t, err)

	row.SetNull(0, true)
	require.True(t, row.IsNull(0))
	row.SetNull(0, false)
	require.False(t, row.IsNull(0))
}

func TestVarcharOutOfLine(t *testing.T) {
	s, err := New([]Column{
		{Name: "k", Index: 0, Type: TypeVarchar, IsKey: true},
		{Name: "v", Index: 1, Type: TypeInt64, Agg: AggSum},
	}, 1)
	require.NoError(t, err)
	a := newAllocator(t)

	row, err := NewRow(s, a)
	require.NoError(t, err)
	buf, err := a.Allocate(5)
	require.NoError(t, err)
	copy(buf, "hello")
	row.AuxSlot(0).Bytes = buf
	require.Equal(t, "hello", string(row.AuxSlot(0).Bytes))
}

func TestRowSizeIncludesNullBitmap(t *testing.T) {
	s := kvSchema(t, false)
	require.Equal(t, 1+16, s.RowSize()) // 1 null-bitmap byte (2 cols) + 8+8 fixed
}

func TestInvalidKeyColumnAgg(t *testing.T) {
	_, err := New([]Column{
		{Name: "k", Index: 0, Type: TypeInt64, IsKey: true, Agg: AggSum},
	}, 1)
	require.Error(t, err)
}
