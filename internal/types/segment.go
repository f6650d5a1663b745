package types

import "sort"

// SegmentDescriptor maps a range of logical blocks to a physical-volume block range.
type SegmentDescriptor struct {
	LogicalBlockNumber  int64
	PhysicalBlockNumber uint64 // low 48 bits; top 16 bits carry PhysicalVolumeIndex on disk
	PhysicalVolumeIndex uint16
	NumberOfBlocks      uint32
}

// End returns the exclusive upper bound of the logical block range this segment covers.
func (s SegmentDescriptor) End() int64 {
	return s.LogicalBlockNumber + int64(s.NumberOfBlocks)
}

// SegmentList is the sorted, non-overlapping set of segments belonging to one logical
// volume (or, for 0x0304, to a transaction scratch set). Segments are kept ordered by
// LogicalBlockNumber; Insert rejects overlap rather than replacing.
type SegmentList struct {
	segments []SegmentDescriptor
}

// Reset empties the list, as 0x0304 and 0x0305 handlers do before repopulating it.
func (l *SegmentList) Reset() {
	l.segments = l.segments[:0]
}

// Len reports the number of segments currently held.
func (l *SegmentList) Len() int { return len(l.segments) }

// All returns the segments in ascending LogicalBlockNumber order. The caller must not
// mutate the returned slice.
func (l *SegmentList) All() []SegmentDescriptor { return l.segments }

// Insert adds seg to the sorted set. It fails with UnsupportedValue if seg overlaps any
// existing segment, matching the "unique or fail" insertion discipline.
func (l *SegmentList) Insert(seg SegmentDescriptor) error {
	idx := sort.Search(len(l.segments), func(i int) bool {
		return l.segments[i].LogicalBlockNumber >= seg.LogicalBlockNumber
	})
	if idx > 0 && l.segments[idx-1].End() > seg.LogicalBlockNumber {
		return Errorf(ErrUnsupportedValue, "SegmentList.Insert", "overlapping segment descriptor at logical block %d", seg.LogicalBlockNumber)
	}
	if idx < len(l.segments) && seg.End() > l.segments[idx].LogicalBlockNumber {
		return Errorf(ErrUnsupportedValue, "SegmentList.Insert", "overlapping segment descriptor at logical block %d", seg.LogicalBlockNumber)
	}
	l.segments = append(l.segments, SegmentDescriptor{})
	copy(l.segments[idx+1:], l.segments[idx:])
	l.segments[idx] = seg
	return nil
}

// Find returns the segment whose logical block range contains sector, or false if
// sector falls in a hole (or past the end of the mapped prefix).
func (l *SegmentList) Find(sector int64) (SegmentDescriptor, bool) {
	idx := sort.Search(len(l.segments), func(i int) bool {
		return l.segments[i].End() > sector
	})
	if idx >= len(l.segments) {
		return SegmentDescriptor{}, false
	}
	seg := l.segments[idx]
	if sector < seg.LogicalBlockNumber {
		return SegmentDescriptor{}, false
	}
	return seg, true
}
