// Package metadata implements the shared metadata-block framer and the plaintext
// metadata reader: fixed byte-offset decodes of the 64-byte block header and the
// type-0x0011 block-0 payload, with checksum verification before dispatch.
package metadata

import (
	"encoding/binary"

	"github.com/deploymenttheory/go-fvde/internal/interfaces"
	"github.com/deploymenttheory/go-fvde/internal/types"
)

// Framer implements interfaces.BlockFramer, shared between the plaintext metadata
// reader and the encrypted-metadata pipeline.
type Framer struct {
	crypto interfaces.CryptoPrimitives
}

// NewFramer returns a Framer that verifies checksums with crypto.
func NewFramer(crypto interfaces.CryptoPrimitives) *Framer {
	return &Framer{crypto: crypto}
}

var _ interfaces.BlockFramer = (*Framer)(nil)

// Frame implements interfaces.BlockFramer.Frame.
func (f *Framer) Frame(raw []byte) (types.MetadataBlock, error) {
	if len(raw) < types.MetadataBlockHeaderSize {
		return types.MetadataBlock{}, types.Errorf(types.ErrOutOfBounds, "Framer.Frame", "block too small: %d bytes", len(raw))
	}

	if isAllZero(raw) {
		return types.MetadataBlock{Empty: true}, nil
	}

	header := parseBlockHeader(raw[:types.MetadataBlockHeaderSize])
	if header.Version != types.MetadataBlockVersion {
		return types.MetadataBlock{}, types.Errorf(types.ErrUnsupportedVersion, "Framer.Frame", "block version %d is not supported", header.Version)
	}

	blockSize := int(header.BlockSize)
	if blockSize == 0 {
		blockSize = len(raw)
	}
	if blockSize > len(raw) {
		return types.MetadataBlock{}, types.Errorf(types.ErrOutOfBounds, "Framer.Frame", "block_size %d exceeds buffer length %d", blockSize, len(raw))
	}
	payloadSize := blockSize - types.MetadataBlockHeaderSize
	if payloadSize < 0 {
		return types.MetadataBlock{}, types.Errorf(types.ErrOutOfBounds, "Framer.Frame", "block_size %d smaller than header size", blockSize)
	}
	payload := raw[types.MetadataBlockHeaderSize : types.MetadataBlockHeaderSize+payloadSize]

	// The checksum covers everything from checksum_iv onward (i.e. the block minus the
	// 4-byte checksum field itself), seeded by checksum_iv as the Fletcher algorithm
	// selector/seed.
	computed := f.crypto.FletcherChecksum(raw[4:blockSize], header.ChecksumIV)
	if computed != header.Checksum {
		return types.MetadataBlock{}, types.Errorf(types.ErrChecksumMismatch, "Framer.Frame", "checksum mismatch: have 0x%08x, want 0x%08x", computed, header.Checksum)
	}

	return types.MetadataBlock{Header: header, Payload: payload}, nil
}

// parseBlockHeader decodes the 64-byte MetadataBlockHeader. An 8-byte reserved field
// separates the block number from the block size; the flags word follows the size.
func parseBlockHeader(raw []byte) types.MetadataBlockHeader {
	return types.MetadataBlockHeader{
		Checksum:              binary.LittleEndian.Uint32(raw[0:4]),
		ChecksumIV:            binary.LittleEndian.Uint32(raw[4:8]),
		Version:               binary.LittleEndian.Uint16(raw[8:10]),
		BlockType:             binary.LittleEndian.Uint16(raw[10:12]),
		SerialNumber:          binary.LittleEndian.Uint32(raw[12:16]),
		TransactionIdentifier: binary.LittleEndian.Uint64(raw[16:24]),
		ObjectIdentifier:      binary.LittleEndian.Uint64(raw[24:32]),
		BlockNumber:           binary.LittleEndian.Uint64(raw[32:40]),
		BlockSize:             binary.LittleEndian.Uint32(raw[48:52]),
		Flags:                 binary.LittleEndian.Uint32(raw[52:56]),
	}
}

// isAllZero reports whether raw is entirely zero bytes, the stream-terminator sentinel
// for both a missing plaintext candidate and the tail of the encrypted region.
func isAllZero(raw []byte) bool {
	for _, b := range raw {
		if b != 0 {
			return false
		}
	}
	return true
}
