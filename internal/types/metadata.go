package types

// PhysicalVolumeDescriptor is one entry of the physical-volume roster extracted by C3/C6.
type PhysicalVolumeDescriptor struct {
	Identifier UUID
	Size       uint64
}

// Metadata is the result of the plaintext metadata reader (C3): the location and size of
// the two encrypted-metadata regions, and the physical-volume roster.
type Metadata struct {
	EncryptedMetadata1VolumeIndex uint32
	EncryptedMetadata1Offset      uint64
	EncryptedMetadata2VolumeIndex uint32
	EncryptedMetadata2Offset      uint64
	EncryptedMetadataSize         uint64

	BytesPerSector uint32
	BlockSize      uint32
	SerialNumber   uint32

	PhysicalVolumes []PhysicalVolumeDescriptor
}
