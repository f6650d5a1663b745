package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSegmentListInsertRejectsOverlap(t *testing.T) {
	var l SegmentList
	require.NoError(t, l.Insert(SegmentDescriptor{LogicalBlockNumber: 0, NumberOfBlocks: 10}))

	err := l.Insert(SegmentDescriptor{LogicalBlockNumber: 5, NumberOfBlocks: 10})
	require.Error(t, err)
	var fvdeErr *Error
	require.ErrorAs(t, err, &fvdeErr)
	assert.Equal(t, ErrUnsupportedValue, fvdeErr.Kind)
	assert.Equal(t, 1, l.Len(), "a rejected insert must not mutate the list")
}

func TestSegmentListInsertAcceptsAdjacentRanges(t *testing.T) {
	var l SegmentList
	require.NoError(t, l.Insert(SegmentDescriptor{LogicalBlockNumber: 0, NumberOfBlocks: 10}))
	require.NoError(t, l.Insert(SegmentDescriptor{LogicalBlockNumber: 10, NumberOfBlocks: 5}))
	assert.Equal(t, 2, l.Len())
}

func TestSegmentListInsertKeepsSortedOrderRegardlessOfInsertionSequence(t *testing.T) {
	var l SegmentList
	require.NoError(t, l.Insert(SegmentDescriptor{LogicalBlockNumber: 20, NumberOfBlocks: 5}))
	require.NoError(t, l.Insert(SegmentDescriptor{LogicalBlockNumber: 0, NumberOfBlocks: 10}))
	require.NoError(t, l.Insert(SegmentDescriptor{LogicalBlockNumber: 10, NumberOfBlocks: 5}))

	all := l.All()
	require.Len(t, all, 3)
	assert.Equal(t, int64(0), all[0].LogicalBlockNumber)
	assert.Equal(t, int64(10), all[1].LogicalBlockNumber)
	assert.Equal(t, int64(20), all[2].LogicalBlockNumber)
}

func TestSegmentListFindLocatesContainingSegment(t *testing.T) {
	var l SegmentList
	require.NoError(t, l.Insert(SegmentDescriptor{LogicalBlockNumber: 0, NumberOfBlocks: 10, PhysicalBlockNumber: 1000}))
	require.NoError(t, l.Insert(SegmentDescriptor{LogicalBlockNumber: 20, NumberOfBlocks: 10, PhysicalBlockNumber: 2000}))

	seg, ok := l.Find(25)
	require.True(t, ok)
	assert.Equal(t, int64(20), seg.LogicalBlockNumber)
	assert.Equal(t, uint64(2000), seg.PhysicalBlockNumber)
}

func TestSegmentListFindReportsHoleAsMiss(t *testing.T) {
	var l SegmentList
	require.NoError(t, l.Insert(SegmentDescriptor{LogicalBlockNumber: 0, NumberOfBlocks: 10}))
	require.NoError(t, l.Insert(SegmentDescriptor{LogicalBlockNumber: 20, NumberOfBlocks: 10}))

	_, ok := l.Find(15) // falls in the hole between the two segments
	assert.False(t, ok)

	_, ok = l.Find(100) // past the mapped prefix entirely
	assert.False(t, ok)
}

func TestSegmentListResetEmptiesList(t *testing.T) {
	var l SegmentList
	require.NoError(t, l.Insert(SegmentDescriptor{LogicalBlockNumber: 0, NumberOfBlocks: 10}))
	l.Reset()
	assert.Equal(t, 0, l.Len())
	_, ok := l.Find(0)
	assert.False(t, ok)
}

func TestMissingPhysicalVolumes(t *testing.T) {
	roster := []PhysicalVolumeDescriptor{
		{Identifier: UUID{1}},
		{Identifier: UUID{2}},
	}
	desc := &LogicalVolumeDescriptor{}
	for i, pvIndex := range []uint16{0, 2, 1} {
		require.NoError(t, desc.Segments.Insert(SegmentDescriptor{
			LogicalBlockNumber:  int64(i * 10),
			NumberOfBlocks:      1,
			PhysicalVolumeIndex: pvIndex,
		}))
	}

	missing := desc.MissingPhysicalVolumes(roster)
	assert.Equal(t, []uint16{2}, missing)
}
