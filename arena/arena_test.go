package arena

import (
	"testing"

	"github.com/olapcore/memtable/status"
	"github.com/olapcore/memtable/tracker"
	"github.com/stretchr/testify/require"
)

func TestAllocateStableAddresses(t *testing.T) {
	root := tracker.NewRoot("root", -1)
	a := New(root, 64)

	b1, err := a.Allocate(8)
	require.NoError(t, err)
	b2, err := a.Allocate(8)
	require.NoError(t, err)

	b1[0] = 0xAA
	b2[0] = 0xBB
	require.Equal(t, byte(0xAA), b1[0])
	require.Equal(t, byte(0xBB), b2[0])
	require.NotEqual(t, &b1[0], &b2[0])
}

func TestAllocateGrowsAcrossSlabs(t *testing.T) {
	root := tracker.NewRoot("root", -1)
	a := New(root, 16)

	for i := 0; i < 10; i++ {
		buf, err := a.Allocate(8)
		require.NoError(t, err)
		require.Len(t, buf, 8)
	}
	require.True(t, a.Consumed() >= 80)
}

func TestConsumedMonotonicAndReleased(t *testing.T) {
	root := tracker.NewRoot("root", -1)
	a := New(root, 64)

	last := a.Consumed()
	for i := 0; i < 5; i++ {
		_, err := a.Allocate(16)
		require.NoError(t, err)
		require.GreaterOrEqual(t, a.Consumed(), last)
		last = a.Consumed()
	}

	a.Release()
	require.EqualValues(t, 0, a.Consumed())
	require.EqualValues(t, 0, root.Consumption())
}

func TestAllocateOverBudgetFails(t *testing.T) {
	root := tracker.NewRoot("root", 32)
	a := New(root, 16)

	_, err := a.Allocate(16)
	require.NoError(t, err)
	_, err = a.Allocate(16)
	require.NoError(t, err)
	_, err = a.Allocate(16)
	require.Error(t, err)
	require.True(t, status.IsMemLimitExceeded(err))
}

func TestChargeAndUncharge(t *testing.T) {
	root := tracker.NewRoot("root", 100)
	a := New(root, 16)

	require.NoError(t, a.Charge(50))
	require.EqualValues(t, 50, a.Consumed())
	err := a.Charge(60)
	require.True(t, status.IsMemLimitExceeded(err))

	a.Uncharge(50)
	require.EqualValues(t, 0, a.Consumed())
	require.NoError(t, a.Charge(60))
}
