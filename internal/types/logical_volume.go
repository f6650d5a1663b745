package types

// LogicalVolumeDescriptor is the accumulated state for one logical volume, built up across
// 0x0105, 0x001a, 0x0305, and 0x0505 handlers.
type LogicalVolumeDescriptor struct {
	ObjectIdentifier       uint64
	ObjectIdentifier0x0305 uint64
	ObjectIdentifier0x0505 uint64

	Identifier       UUID
	FamilyIdentifier UUID
	Name             string
	Size             uint64

	BasePhysicalBlockNumber uint64
	HasBasePhysicalBlock    bool

	Segments SegmentList
}

// MissingPhysicalVolumes reports which physical-volume indices referenced by this
// descriptor's segments are not present in roster, so a caller can surface a
// diagnostic rather than silently degrade a logical volume to locked.
func (d *LogicalVolumeDescriptor) MissingPhysicalVolumes(roster []PhysicalVolumeDescriptor) []uint16 {
	present := make(map[uint16]bool, len(roster))
	for i := range roster {
		present[uint16(i)] = true
	}
	seen := make(map[uint16]bool)
	var missing []uint16
	for _, seg := range d.Segments.All() {
		if present[seg.PhysicalVolumeIndex] || seen[seg.PhysicalVolumeIndex] {
			continue
		}
		seen[seg.PhysicalVolumeIndex] = true
		missing = append(missing, seg.PhysicalVolumeIndex)
	}
	return missing
}
