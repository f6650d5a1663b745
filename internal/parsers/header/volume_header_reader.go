// Package header implements the physical-volume superblock decoder: a fixed
// byte-offset decode into a struct, a signature check in the constructor, and a thin
// accessor surface.
package header

import (
	"encoding/binary"

	"github.com/deploymenttheory/go-fvde/internal/interfaces"
	"github.com/deploymenttheory/go-fvde/internal/types"
)

// volumeHeaderReader implements interfaces.VolumeHeaderReader.
type volumeHeaderReader struct {
	header *types.VolumeHeader
}

// New decodes the 512-byte physical-volume superblock from data and validates the "CS"
// signature at offset 88.
func New(data []byte) (interfaces.VolumeHeaderReader, error) {
	if len(data) < types.VolumeHeaderSize {
		return nil, types.Errorf(types.ErrOutOfBounds, "header.New", "data too small for volume header: %d bytes", len(data))
	}

	h, err := parseVolumeHeader(data)
	if err != nil {
		return nil, err
	}

	if data[types.VolumeSignatureOffset] != types.VolumeSignature[0] || data[types.VolumeSignatureOffset+1] != types.VolumeSignature[1] {
		return nil, types.Errorf(types.ErrInvalidSignature, "header.New", "missing \"CS\" signature at offset %d", types.VolumeSignatureOffset)
	}

	return &volumeHeaderReader{header: h}, nil
}

// Fixed byte offsets within the 512-byte superblock. The "CS" signature sits at 88 and
// the four redundant metadata-region offsets at 176..207; the 128-byte key_data block
// and the two UUIDs follow the offset table.
const (
	checksumAlgorithmOffset        = 90
	metadataOffsetsStart           = 176
	keyDataOffset                  = 208
	physicalVolumeIdentifierOffset = 336
	volumeGroupIdentifierOffset    = 352
)

// parseVolumeHeader decodes the fixed-offset fields of the superblock.
func parseVolumeHeader(data []byte) (*types.VolumeHeader, error) {
	h := &types.VolumeHeader{}

	h.Checksum = binary.LittleEndian.Uint32(data[0:4])
	h.ChecksumIV = binary.LittleEndian.Uint32(data[4:8])
	h.Version = binary.LittleEndian.Uint16(data[8:10])
	h.BlockSizeCode = binary.LittleEndian.Uint16(data[10:12])
	h.SerialNumber = binary.LittleEndian.Uint32(data[12:16])
	h.PhysicalVolumeSize = binary.LittleEndian.Uint64(data[16:24])

	if h.Version != types.VolumeHeaderVersion {
		return nil, types.Errorf(types.ErrUnsupportedVersion, "parseVolumeHeader", "version %d is not supported", h.Version)
	}

	h.ChecksumAlgorithm = binary.LittleEndian.Uint32(data[checksumAlgorithmOffset : checksumAlgorithmOffset+4])
	if h.ChecksumAlgorithm != types.ChecksumAlgorithmFletcher {
		return nil, types.Errorf(types.ErrUnsupportedVersion, "parseVolumeHeader", "checksum algorithm %d is not supported", h.ChecksumAlgorithm)
	}

	for i := 0; i < 4; i++ {
		h.MetadataOffsets[i] = binary.LittleEndian.Uint64(data[metadataOffsetsStart+i*8 : metadataOffsetsStart+(i+1)*8])
	}
	copy(h.KeyData[:], data[keyDataOffset:keyDataOffset+128])
	copy(h.PhysicalVolumeIdentifier[:], data[physicalVolumeIdentifierOffset:physicalVolumeIdentifierOffset+16])
	copy(h.VolumeGroupIdentifier[:], data[volumeGroupIdentifierOffset:volumeGroupIdentifierOffset+16])

	return h, nil
}

// Header implements interfaces.VolumeHeaderReader.Header.
func (r *volumeHeaderReader) Header() *types.VolumeHeader {
	return r.header
}
