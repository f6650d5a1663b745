package encryptedmetadata

import (
	"encoding/binary"

	"github.com/deploymenttheory/go-fvde/internal/types"
)

// physicalVolumeDescriptorMinSize is the minimum payload length of a 0x0010 block: the
// record's on-disk block_data_size must be at least 344 bytes, which nets out to this
// many bytes once the 64-byte common header is excluded.
const physicalVolumeDescriptorMinSize = 344 - types.MetadataBlockHeaderSize

// handlePhysicalVolumeDescriptor decodes a 0x0010 block into the state's
// PhysicalVolumeBlockInfo.
func (g *GraphBuilder) handlePhysicalVolumeDescriptor(state *types.EncryptedMetadataState, payload []byte) error {
	if len(payload) < physicalVolumeDescriptorMinSize {
		return types.Errorf(types.ErrOutOfBounds, "handlePhysicalVolumeDescriptor", "payload too small: %d bytes", len(payload))
	}

	info := &types.PhysicalVolumeBlockInfo{
		PhysicalVolumeSize: binary.LittleEndian.Uint64(payload[0:8]),
		BlockSize:          binary.LittleEndian.Uint32(payload[8:12]),
	}
	for i := 0; i < 4; i++ {
		off := 12 + i*8
		info.MetadataBlockNumbers[i] = binary.LittleEndian.Uint64(payload[off : off+8])
	}
	info.BytesPerSector = binary.LittleEndian.Uint32(payload[44:48])
	info.EncryptionMethod = binary.LittleEndian.Uint32(payload[48:52])
	copy(info.KeyData[:], payload[52:180])
	// The physical-volume and logical-volume-group UUIDs sit at block offsets 312 and
	// 328; payload offsets are 248 and 264 once the 64-byte common header is subtracted.
	copy(info.PhysicalVolumeIdentifier[:], payload[248:264])
	copy(info.LogicalVolumeGroupIdentifier[:], payload[264:280])

	state.PhysicalVolumeInfo = info
	return state.SetVolumeGroupIdentifier(info.LogicalVolumeGroupIdentifier)
}
