package arena

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streamhub/streamhub/internal/core/domain"
)

func TestAllocChannelRespectsCapacity(t *testing.T) {
	t.Parallel()

	a := New(2, 0)
	require.NoError(t, a.AllocChannel())
	require.NoError(t, a.AllocChannel())

	err := a.AllocChannel()
	require.Error(t, err)
	var full *domain.ArenaFullError
	require.ErrorAs(t, err, &full)
	assert.Equal(t, "channel", full.Kind)
	assert.Equal(t, 2, full.Capacity)
}

func TestFreeChannelReleasesSlotForReuse(t *testing.T) {
	t.Parallel()

	a := New(1, 0)
	require.NoError(t, a.AllocChannel())
	require.Error(t, a.AllocChannel())

	a.FreeChannel()
	assert.NoError(t, a.AllocChannel())
}

func TestFreeChannelFloorClampsAtZero(t *testing.T) {
	t.Parallel()

	a := New(0, 0)
	assert.NotPanics(t, func() {
		a.FreeChannel()
		a.FreeChannel()
	})
	assert.Equal(t, 0, a.Snapshot().Channels)
}

func TestZeroCapacityIsUnbounded(t *testing.T) {
	t.Parallel()

	a := New(0, 0)
	for i := 0; i < 1000; i++ {
		require.NoError(t, a.AllocChannel())
	}
	assert.Equal(t, 1000, a.Snapshot().Channels)
}

func TestAllocMessageRespectsCapacity(t *testing.T) {
	t.Parallel()

	a := New(0, 1)
	require.NoError(t, a.AllocMessage())

	err := a.AllocMessage()
	var full *domain.ArenaFullError
	require.ErrorAs(t, err, &full)
	assert.Equal(t, "message", full.Kind)
}

func TestSnapshotReportsCurrentOccupancy(t *testing.T) {
	t.Parallel()

	a := New(5, 10)
	require.NoError(t, a.AllocChannel())
	require.NoError(t, a.AllocMessage())
	require.NoError(t, a.AllocMessage())

	snap := a.Snapshot()
	assert.Equal(t, 1, snap.Channels)
	assert.Equal(t, 2, snap.Messages)
	assert.Equal(t, 5, snap.MaxChannels)
	assert.Equal(t, 10, snap.MaxMessages)
}
