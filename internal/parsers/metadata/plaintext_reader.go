package metadata

import (
	"encoding/binary"

	"github.com/deploymenttheory/go-fvde/internal/interfaces"
	"github.com/deploymenttheory/go-fvde/internal/types"
)

// plaintextRegionMinSize is the minimum payload size for a type-0x0011 block-0 root
// directory: the fixed fields below plus zero roster entries.
const plaintextRegionMinSize = 48

// PlaintextReader implements interfaces.PlaintextMetadataReader.
type PlaintextReader struct {
	framer interfaces.BlockFramer
}

// NewPlaintextReader returns a PlaintextReader using framer to verify each candidate
// region's block 0.
func NewPlaintextReader(framer interfaces.BlockFramer) *PlaintextReader {
	return &PlaintextReader{framer: framer}
}

var _ interfaces.PlaintextMetadataReader = (*PlaintextReader)(nil)

// Read implements interfaces.PlaintextMetadataReader.Read: reads block 0 at each of the
// four candidate offsets, frames and parses it, and returns the Metadata parsed from the
// region with the largest transaction_identifier.
func (r *PlaintextReader) Read(image interfaces.IOHandle, header *types.VolumeHeader) (*types.Metadata, error) {
	var best *types.Metadata
	var bestXid uint64
	var lastErr error

	for i, offset := range header.MetadataOffsets {
		raw := make([]byte, types.MetadataBlockSize)
		if _, err := image.ReadAt(raw, int64(offset)); err != nil {
			lastErr = types.Errorf(types.ErrIoFailure, "PlaintextReader.Read", "region %d at offset %d: %v", i, offset, err)
			continue
		}

		block, err := r.framer.Frame(raw)
		if err != nil {
			lastErr = err
			continue
		}
		if block.Empty {
			continue
		}
		if block.Header.BlockType != types.BlockTypeVolumeGroupDirectory {
			lastErr = types.Errorf(types.ErrUnsupportedValue, "PlaintextReader.Read", "region %d: block 0 has type 0x%04x, want 0x%04x", i, block.Header.BlockType, types.BlockTypeVolumeGroupDirectory)
			continue
		}

		md, err := parseRootDirectory(block.Payload)
		if err != nil {
			lastErr = err
			continue
		}
		md.SerialNumber = header.SerialNumber

		if best == nil || block.Header.TransactionIdentifier > bestXid {
			best = md
			bestXid = block.Header.TransactionIdentifier
		}
	}

	if best == nil {
		if lastErr != nil {
			return nil, lastErr
		}
		return nil, types.Errorf(types.ErrIoFailure, "PlaintextReader.Read", "no valid plaintext metadata region found")
	}
	return best, nil
}

// parseRootDirectory parses a type-0x0011 block-0 payload into Metadata. This layout is
// distinct from the encrypted-region 0x0011 handler's payload:
//
//	+0  EncryptedMetadata1VolumeIndex u32
//	+4  EncryptedMetadata1Offset      u64
//	+12 EncryptedMetadata2VolumeIndex u32
//	+16 EncryptedMetadata2Offset      u64
//	+24 EncryptedMetadataSize         u64
//	+32 BytesPerSector                u32
//	+36 BlockSize                     u32
//	+40 reserved                      u32
//	+44 PhysicalVolumeCount           u32
//	+48 roster entries, 24 bytes each: UUID(16) + Size(8)
func parseRootDirectory(payload []byte) (*types.Metadata, error) {
	if len(payload) < plaintextRegionMinSize {
		return nil, types.Errorf(types.ErrOutOfBounds, "parseRootDirectory", "payload too small: %d bytes", len(payload))
	}

	md := &types.Metadata{
		EncryptedMetadata1VolumeIndex: binary.LittleEndian.Uint32(payload[0:4]),
		EncryptedMetadata1Offset:      binary.LittleEndian.Uint64(payload[4:12]),
		EncryptedMetadata2VolumeIndex: binary.LittleEndian.Uint32(payload[12:16]),
		EncryptedMetadata2Offset:      binary.LittleEndian.Uint64(payload[16:24]),
		EncryptedMetadataSize:         binary.LittleEndian.Uint64(payload[24:32]),
		BytesPerSector:                binary.LittleEndian.Uint32(payload[32:36]),
		BlockSize:                     binary.LittleEndian.Uint32(payload[36:40]),
	}
	if md.EncryptedMetadataSize%uint64(types.MetadataBlockSize) != 0 {
		return nil, types.Errorf(types.ErrOutOfBounds, "parseRootDirectory", "encrypted metadata size %d is not a multiple of %d", md.EncryptedMetadataSize, types.MetadataBlockSize)
	}

	count := binary.LittleEndian.Uint32(payload[44:48])
	maxCount := uint32(len(payload)-plaintextRegionMinSize) / 24
	if count > maxCount {
		return nil, types.Errorf(types.ErrOutOfBounds, "parseRootDirectory", "physical volume count %d exceeds available entries %d", count, maxCount)
	}

	md.PhysicalVolumes = make([]types.PhysicalVolumeDescriptor, count)
	for i := uint32(0); i < count; i++ {
		off := plaintextRegionMinSize + int(i)*24
		var d types.PhysicalVolumeDescriptor
		copy(d.Identifier[:], payload[off:off+16])
		d.Size = binary.LittleEndian.Uint64(payload[off+16 : off+24])
		md.PhysicalVolumes[i] = d
	}

	return md, nil
}
