package types

// VolumeHeader is the 512-byte physical-volume superblock. See
// internal/parsers/header for the decoder.
type VolumeHeader struct {
	Checksum                 uint32
	ChecksumIV               uint32
	Version                  uint16
	BlockSizeCode            uint16
	SerialNumber             uint32
	PhysicalVolumeSize       uint64
	ChecksumAlgorithm        uint32
	KeyData                  [128]byte
	PhysicalVolumeIdentifier UUID
	VolumeGroupIdentifier    UUID
	MetadataOffsets          [4]uint64
}

// XTSDataKey returns the first 128 bits of KeyData, the AES-XTS data key for this
// physical volume's encrypted-metadata region. The remaining bytes of KeyData beyond
// the first 32 are reserved on disk and unused by the crypto primitives.
func (h *VolumeHeader) XTSDataKey() [16]byte {
	var key [16]byte
	copy(key[:], h.KeyData[0:16])
	return key
}

// XTSTweakKey returns the second 128 bits of KeyData, the AES-XTS tweak key.
func (h *VolumeHeader) XTSTweakKey() [16]byte {
	var key [16]byte
	copy(key[:], h.KeyData[16:32])
	return key
}
