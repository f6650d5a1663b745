package encryptedmetadata

import (
	"bytes"
	"encoding/binary"

	"github.com/deploymenttheory/go-fvde/internal/types"
)

// volumeGroupDirectoryMinSize is the minimum payload length of an encrypted-region 0x0011
// block: volume_group_number_of_blocks, physical_volume_index, a count, and a
// count-prefixed table of 24-byte object-identifier/block-number entries. This layout is
// distinct from the plaintext-region 0x0011 root-directory contract read by
// PlaintextReader — the same block type carries two unrelated payload layouts depending
// on which region it appears in.
const volumeGroupDirectoryMinSize = 192

// volumeGroupDirectoryHeaderLen covers volume_group_number_of_blocks (u64),
// physical_volume_index (u32), a 4-byte alignment gap, and the entry count (u64).
const volumeGroupDirectoryHeaderLen = 24

const volumeGroupDirectoryEntrySize = 24

// handleVolumeGroupDirectory bounds-checks an encrypted-region 0x0011 block. Its entries
// duplicate information already reachable through the 0x0105 roster and 0x0305 segment
// maps, so only structural validity is verified.
func (g *GraphBuilder) handleVolumeGroupDirectory(payload []byte) error {
	if len(payload) < volumeGroupDirectoryMinSize {
		return types.Errorf(types.ErrOutOfBounds, "handleVolumeGroupDirectory", "payload too small: %d bytes", len(payload))
	}
	count := binary.LittleEndian.Uint64(payload[16:24])
	available := uint64((len(payload) - volumeGroupDirectoryHeaderLen) / volumeGroupDirectoryEntrySize)
	if count > available {
		return types.Errorf(types.ErrOutOfBounds, "handleVolumeGroupDirectory", "entry count %d exceeds available entries %d", count, available)
	}
	return nil
}

// volumeGroupNameKey is the plist key carrying the volume group's display name inside a
// 0x0012 block's inline XML blob.
const volumeGroupNameKey = "com.apple.corestorage.lvg.name"

// volumeGroupXMLOffset is the byte offset of the inline XML blob within a 0x0012 payload.
const volumeGroupXMLOffset = 48

// handleVolumeGroupXML extracts the volume group's display name from the inline XML blob
// carried by a 0x0012 block. A block whose blob does not start with a "<dict" tag is
// left unparsed rather than treated as an error.
func (g *GraphBuilder) handleVolumeGroupXML(state *types.EncryptedMetadataState, payload []byte) error {
	if len(payload) <= volumeGroupXMLOffset {
		return types.Errorf(types.ErrOutOfBounds, "handleVolumeGroupXML", "payload too small: %d bytes", len(payload))
	}
	blob := payload[volumeGroupXMLOffset:]
	if !bytes.HasPrefix(blob, []byte("<dict")) {
		return nil
	}
	root, err := g.plist.ParseFragment(blob)
	if err != nil {
		return types.Errorf(types.ErrUnsupportedValue, "handleVolumeGroupXML", "inline plist: %v", err)
	}
	name, ok := root.SubPropertyByName(volumeGroupNameKey)
	if !ok {
		return nil
	}
	s, err := name.ValueString()
	if err != nil {
		return types.Errorf(types.ErrUnsupportedValue, "handleVolumeGroupXML", "%s: %v", volumeGroupNameKey, err)
	}
	state.VolumeGroupName = s
	return nil
}
