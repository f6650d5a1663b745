package encryptedmetadata

import (
	"encoding/binary"

	"github.com/deploymenttheory/go-fvde/internal/interfaces"
	"github.com/deploymenttheory/go-fvde/internal/types"
)

// logicalVolumeRosterHeaderSize precedes the roster's entry table: a 4-byte entry count
// and 4 reserved bytes.
const logicalVolumeRosterHeaderSize = 8

// logicalVolumeRosterEntrySize is the on-disk size of one 0x0105 roster entry: the
// logical volume's object identifier at offset 0, then 8 reserved bytes.
const logicalVolumeRosterEntrySize = 16

// handleLogicalVolumeRoster decodes a 0x0105 block: an ordered table naming every logical
// volume's primary object identifier.
func (g *GraphBuilder) handleLogicalVolumeRoster(state *types.EncryptedMetadataState, payload []byte) error {
	if len(payload) < logicalVolumeRosterHeaderSize {
		return types.Errorf(types.ErrOutOfBounds, "handleLogicalVolumeRoster", "payload too small: %d bytes", len(payload))
	}
	count := binary.LittleEndian.Uint32(payload[0:4])
	need := logicalVolumeRosterHeaderSize + int(count)*logicalVolumeRosterEntrySize
	if need > len(payload) {
		return types.Errorf(types.ErrOutOfBounds, "handleLogicalVolumeRoster", "roster of %d entries exceeds payload", count)
	}
	for i := uint32(0); i < count; i++ {
		base := logicalVolumeRosterHeaderSize + int(i)*logicalVolumeRosterEntrySize
		objID := binary.LittleEndian.Uint64(payload[base : base+8])
		if _, err := state.EnsureRosterEntry(int(i), objID); err != nil {
			return err
		}
	}
	return nil
}

// logicalVolumeUpdateMinSize covers object_identifier, the two cross-link identifiers,
// compressed_size, uncompressed_size, xml_plist_data_offset, and xml_plist_data_size.
const logicalVolumeUpdateMinSize = 40

// handleLogicalVolumeUpdate decodes a 0x001a block, updating the referenced logical
// volume's identifier, family identifier, size, and name from its inline XML blob.
// Compressed XML is not supported here.
func (g *GraphBuilder) handleLogicalVolumeUpdate(state *types.EncryptedMetadataState, payload []byte) error {
	if len(payload) < logicalVolumeUpdateMinSize {
		return types.Errorf(types.ErrOutOfBounds, "handleLogicalVolumeUpdate", "payload too small: %d bytes", len(payload))
	}

	objID := binary.LittleEndian.Uint64(payload[0:8])
	desc, ok := state.FindByObjectIdentifier(objID)
	if !ok {
		return types.Errorf(types.ErrValueMissing, "handleLogicalVolumeUpdate", "object identifier %d not present in roster", objID)
	}

	link0305 := binary.LittleEndian.Uint64(payload[8:16])
	link0505 := binary.LittleEndian.Uint64(payload[16:24])
	if err := crossCheckLink(&desc.ObjectIdentifier0x0305, link0305, "handleLogicalVolumeUpdate"); err != nil {
		return err
	}
	if err := crossCheckLink(&desc.ObjectIdentifier0x0505, link0505, "handleLogicalVolumeUpdate"); err != nil {
		return err
	}

	compressedSize := binary.LittleEndian.Uint32(payload[24:28])
	uncompressedSize := binary.LittleEndian.Uint32(payload[28:32])
	if compressedSize != uncompressedSize {
		return types.Errorf(types.ErrUnsupportedValue, "handleLogicalVolumeUpdate", "compressed inline XML is not supported")
	}
	xmlOffset := binary.LittleEndian.Uint32(payload[32:36])
	xmlSize := binary.LittleEndian.Uint32(payload[36:40])

	if xmlSize > 0 {
		end := uint64(xmlOffset) + uint64(xmlSize)
		if end > uint64(len(payload)) {
			return types.Errorf(types.ErrOutOfBounds, "handleLogicalVolumeUpdate", "inline XML of %d bytes at offset %d exceeds payload", xmlSize, xmlOffset)
		}
		root, err := g.plist.ParseFragment(payload[xmlOffset:end])
		if err != nil {
			return types.Errorf(types.ErrUnsupportedValue, "handleLogicalVolumeUpdate", "inline plist: %v", err)
		}
		if err := applyLogicalVolumeXML(desc, root); err != nil {
			return err
		}
	}

	state.MarkSeen(desc)
	return nil
}

// crossCheckLink applies the "mismatch fails rather than silently overwriting"
// discipline: a zero link is ignored, an unset link is recorded, and a set link must
// match.
func crossCheckLink(existing *uint64, value uint64, op string) error {
	if value == 0 {
		return nil
	}
	if *existing == 0 {
		*existing = value
		return nil
	}
	if *existing != value {
		return types.Errorf(types.ErrUnsupportedValue, op, "cross-link mismatch: have %d, want %d", *existing, value)
	}
	return nil
}

// applyLogicalVolumeXML extracts family identifier, name, size, and identifier from a
// 0x001a block's inline plist fragment.
func applyLogicalVolumeXML(desc *types.LogicalVolumeDescriptor, root interfaces.PlistProperty) error {
	if familyProp, ok := root.SubPropertyByName("com.apple.corestorage.lv.familyUUID"); ok {
		s, err := familyProp.ValueString()
		if err != nil {
			return types.Errorf(types.ErrUnsupportedValue, "applyLogicalVolumeXML", "lv.familyUUID: %v", err)
		}
		id, err := types.ParseUUID(s)
		if err != nil {
			return err
		}
		desc.FamilyIdentifier = id
	}
	if nameProp, ok := root.SubPropertyByName("com.apple.corestorage.lv.name"); ok {
		s, err := nameProp.ValueString()
		if err != nil {
			return types.Errorf(types.ErrUnsupportedValue, "applyLogicalVolumeXML", "lv.name: %v", err)
		}
		desc.Name = s
	}
	if sizeProp, ok := root.SubPropertyByName("com.apple.corestorage.lv.size"); ok {
		n, err := sizeProp.ValueInteger()
		if err != nil {
			return types.Errorf(types.ErrUnsupportedValue, "applyLogicalVolumeXML", "lv.size: %v", err)
		}
		desc.Size = uint64(n)
	}
	if uuidProp, ok := root.SubPropertyByName("com.apple.corestorage.lv.uuid"); ok {
		s, err := uuidProp.ValueString()
		if err != nil {
			return types.Errorf(types.ErrUnsupportedValue, "applyLogicalVolumeXML", "lv.uuid: %v", err)
		}
		id, err := types.ParseUUID(s)
		if err != nil {
			return err
		}
		desc.Identifier = id
	}
	return nil
}

// handleLogicalVolumeSizeSummary bounds-checks a 0x0021 block. Its single size field
// duplicates LogicalVolumeDescriptor.Size, already populated by 0x001a, so only
// structural validity is verified.
func handleLogicalVolumeSizeSummary(payload []byte) error {
	const minSize = 16
	if len(payload) < minSize {
		return types.Errorf(types.ErrOutOfBounds, "handleLogicalVolumeSizeSummary", "payload too small: %d bytes", len(payload))
	}
	return nil
}

// basePhysicalBlockEntrySize is the size of one 0x0505 entry: an 8-byte reserved field
// followed by an 8-byte packed physical block number whose top 16 bits must be zero —
// unlike 0x0305's segments, a base physical block carries no physical-volume index of
// its own.
const basePhysicalBlockEntrySize = 16

// handleBasePhysicalBlock decodes a 0x0505 block: exactly one entry naming the base
// physical block number of the most-recently-seen logical volume.
func (g *GraphBuilder) handleBasePhysicalBlock(state *types.EncryptedMetadataState, block types.MetadataBlock) error {
	payload := block.Payload
	if len(payload) < segmentMapHeaderSize+basePhysicalBlockEntrySize {
		return types.Errorf(types.ErrOutOfBounds, "handleBasePhysicalBlock", "payload too small: %d bytes", len(payload))
	}
	count := binary.LittleEndian.Uint32(payload[0:4])
	if count != 1 {
		return types.Errorf(types.ErrUnsupportedValue, "handleBasePhysicalBlock", "expected exactly 1 entry, have %d", count)
	}

	desc, ok := state.LastSeen()
	if !ok {
		return types.Errorf(types.ErrUnsupportedValue, "handleBasePhysicalBlock", "no logical volume seen yet in this region")
	}

	packed := binary.LittleEndian.Uint64(payload[segmentMapHeaderSize+8 : segmentMapHeaderSize+16])
	if packed>>48 != 0 {
		return types.Errorf(types.ErrUnsupportedValue, "handleBasePhysicalBlock", "non-zero high bits in base physical block number")
	}
	if err := crossCheckLink(&desc.ObjectIdentifier0x0505, block.Header.ObjectIdentifier, "handleBasePhysicalBlock"); err != nil {
		return err
	}
	desc.BasePhysicalBlockNumber = packed & 0x0000ffffffffffff
	desc.HasBasePhysicalBlock = true
	return nil
}
