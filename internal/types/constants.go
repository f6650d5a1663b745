package types

// Block and sector geometry fixed by the on-disk format.
const (
	// MetadataBlockSize is the size in bytes of every plaintext and encrypted metadata block.
	MetadataBlockSize = 8192
	// MetadataBlockHeaderSize is the size in bytes of the header prefixing every metadata block.
	MetadataBlockHeaderSize = 64
	// MetadataPayloadSize is the usable payload size of a metadata block.
	MetadataPayloadSize = MetadataBlockSize - MetadataBlockHeaderSize
	// VolumeHeaderSize is the size in bytes of the physical-volume superblock.
	VolumeHeaderSize = 512
	// LogicalSectorSize is the sector granularity of logical-volume reads.
	LogicalSectorSize = 512
	// VolumeHeaderVersion is the only supported VolumeHeader.version value.
	VolumeHeaderVersion = 1
	// MetadataBlockVersion is the only supported MetadataBlockHeader.version value.
	MetadataBlockVersion = 1
)

// Signature bytes and offsets within the physical-volume superblock.
const (
	// VolumeSignatureOffset is the byte offset of the "CS" signature within the superblock.
	VolumeSignatureOffset = 88
)

// VolumeSignature is the two-byte Core Storage magic required at VolumeSignatureOffset.
var VolumeSignature = [2]byte{'C', 'S'}

// ChecksumAlgorithmFletcher is the only checksum_algorithm value observed on real
// volumes; anything else is rejected as an unsupported future revision.
const ChecksumAlgorithmFletcher = 1

// Metadata block types dispatched by the object graph builder (C6).
const (
	BlockTypePhysicalVolumeDescriptor  uint16 = 0x0010
	BlockTypeVolumeGroupDirectory      uint16 = 0x0011
	BlockTypeVolumeGroupXML            uint16 = 0x0012
	BlockTypeTransactionRecordA        uint16 = 0x0013
	BlockTypeTransactionRecordB        uint16 = 0x0014
	BlockTypeDescriptorLookupTable     uint16 = 0x0016
	BlockTypeGenericTable32            uint16 = 0x0017
	BlockTypeObjectCrossLink0x0105     uint16 = 0x0018
	BlockTypeCompressedPlistFirst      uint16 = 0x0019
	BlockTypeLogicalVolumeUpdate       uint16 = 0x001a
	BlockTypeExtentTable32             uint16 = 0x001c
	BlockTypePhysicalExtentTable16     uint16 = 0x001d
	BlockTypeLogicalVolumeSizeSummary  uint16 = 0x0021
	BlockTypeExtentChain0x001d         uint16 = 0x0022
	BlockTypeCompressedPlistContinue   uint16 = 0x0024
	BlockTypeGenericTable24            uint16 = 0x0025
	BlockTypeLogicalVolumeRoster       uint16 = 0x0105
	BlockTypeReservedMetadata0x0205    uint16 = 0x0205
	BlockTypeSegmentMapTransaction     uint16 = 0x0304
	BlockTypeSegmentMapLogicalVolume   uint16 = 0x0305
	BlockTypeCrossReference0x0404      uint16 = 0x0404
	BlockTypeCrossReference0x0405      uint16 = 0x0405
	BlockTypeBasePhysicalBlock         uint16 = 0x0505
	BlockTypeReserved0x0605            uint16 = 0x0605
)

// RFC 3394 default integrity value checked after every AES key-unwrap step.
var KeyWrapIV = [8]byte{0xA6, 0xA6, 0xA6, 0xA6, 0xA6, 0xA6, 0xA6, 0xA6}

// PassphraseWrappedKEKStructSize is the fixed size of a CryptoUsers entry's wrapping struct.
const PassphraseWrappedKEKStructSize = 284

// KEKWrappedVolumeKeyStructSize is the fixed size of the WrappedVolumeKeys[1] struct.
const KEKWrappedVolumeKeyStructSize = 256

// VolumeMasterKeySize is the size in bytes of the logical volume's AES-XTS data key.
const VolumeMasterKeySize = 16

// VolumeTweakKeySize is the size in bytes of the logical volume's AES-XTS tweak key, the
// same 128-bit tweak-key convention the crypto façade uses for metadata.
const VolumeTweakKeySize = 16
