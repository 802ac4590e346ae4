package status

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"
)

func TestMemLimitExceeded(t *testing.T) {
	cause := errors.New("arena full")
	err := MemLimitExceeded(cause)
	require.True(t, IsMemLimitExceeded(err))
	require.False(t, IsWriterError(err))
	require.ErrorContains(t, err, "arena full")
}

func TestWriterError(t *testing.T) {
	cause := errors.New("disk full")
	err := WriterError(cause)
	require.True(t, IsWriterError(err))
	require.False(t, IsMemLimitExceeded(err))
	require.ErrorContains(t, err, "disk full")
}

func TestAssertInvariant(t *testing.T) {
	require.NotPanics(t, func() { AssertInvariant(true, "unreachable") })
	require.Panics(t, func() { AssertInvariant(false, "duplicate key %d found in unique index", 7) })
}
