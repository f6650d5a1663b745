package encryptedmetadata

import (
	"encoding/binary"

	"github.com/deploymenttheory/go-fvde/internal/types"
)

// segmentMapHeaderSize precedes a segment map's entry table: a 4-byte entry count and 4
// reserved bytes.
const segmentMapHeaderSize = 8

// segmentMapEntrySize is the on-disk size of one SegmentDescriptor entry: an 8-byte
// leading field (reserved/object-scoped, unused here), an 8-byte signed
// logical_block_number at +8, a 4-byte number_of_blocks at +16 followed by 4 reserved
// bytes, and an 8-byte packed physical_block_number at +32 with the physical-volume
// index in its top 16 bits.
const segmentMapEntrySize = 40

// decodeSegmentMap parses a count-prefixed table of segment entries, inserting each into
// dst in the "unique or fail" discipline.
func decodeSegmentMap(payload []byte, dst *types.SegmentList, op string) error {
	if len(payload) < segmentMapHeaderSize {
		return types.Errorf(types.ErrOutOfBounds, op, "payload too small: %d bytes", len(payload))
	}
	count := binary.LittleEndian.Uint32(payload[0:4])
	need := segmentMapHeaderSize + int(count)*segmentMapEntrySize
	if need > len(payload) {
		return types.Errorf(types.ErrOutOfBounds, op, "segment map of %d entries exceeds payload", count)
	}

	for i := uint32(0); i < count; i++ {
		base := segmentMapHeaderSize + int(i)*segmentMapEntrySize
		logicalBlock := int64(binary.LittleEndian.Uint64(payload[base+8 : base+16]))
		numberOfBlocks := binary.LittleEndian.Uint32(payload[base+16 : base+20])
		packed := binary.LittleEndian.Uint64(payload[base+32 : base+40])

		seg := types.SegmentDescriptor{
			LogicalBlockNumber:  logicalBlock,
			PhysicalBlockNumber: packed & 0x0000ffffffffffff,
			PhysicalVolumeIndex: uint16(packed >> 48),
			NumberOfBlocks:      numberOfBlocks,
		}
		if err := dst.Insert(seg); err != nil {
			return err
		}
	}
	return nil
}

// handleSegmentMapTransaction decodes a 0x0304 block into the region-scoped scratch
// segment map, reset before each repopulation.
func (g *GraphBuilder) handleSegmentMapTransaction(state *types.EncryptedMetadataState, payload []byte) error {
	state.TransactionSegments.Reset()
	return decodeSegmentMap(payload, &state.TransactionSegments, "handleSegmentMapTransaction")
}

// handleSegmentMapLogicalVolume decodes a 0x0305 block into the most-recently-seen
// logical volume's segment list and records the owning block's object identifier as the
// descriptor's 0x0305 cross-link.
func (g *GraphBuilder) handleSegmentMapLogicalVolume(state *types.EncryptedMetadataState, block types.MetadataBlock) error {
	desc, ok := state.LastSeen()
	if !ok {
		return types.Errorf(types.ErrUnsupportedValue, "handleSegmentMapLogicalVolume", "no logical volume seen yet in this region")
	}
	desc.Segments.Reset()
	if err := decodeSegmentMap(block.Payload, &desc.Segments, "handleSegmentMapLogicalVolume"); err != nil {
		return err
	}
	return crossCheckLink(&desc.ObjectIdentifier0x0305, block.Header.ObjectIdentifier, "handleSegmentMapLogicalVolume")
}
