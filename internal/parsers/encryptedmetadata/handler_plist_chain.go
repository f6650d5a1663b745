package encryptedmetadata

import (
	"bytes"
	"encoding/binary"

	"github.com/deploymenttheory/go-fvde/internal/types"
)

// compressedPlistFirstMinSize covers every fixed field up to and including the 2-byte
// entry count that precedes a 0x0019 block's inline chunk data.
const compressedPlistFirstMinSize = 58

// handleCompressedPlistFirst decodes a 0x0019 block: the opening chunk of the
// EncryptedRoot.plist DEFLATE stream, or an inline uncompressed copy when
// compressed_size == uncompressed_size.
func (g *GraphBuilder) handleCompressedPlistFirst(state *types.EncryptedMetadataState, block types.MetadataBlock) error {
	payload := block.Payload
	if len(payload) < compressedPlistFirstMinSize {
		return types.Errorf(types.ErrOutOfBounds, "handleCompressedPlistFirst", "payload too small: %d bytes", len(payload))
	}

	nextObjectIdentifier := binary.LittleEndian.Uint64(payload[32:40])
	compressedSize := binary.LittleEndian.Uint32(payload[40:44])
	uncompressedSize := binary.LittleEndian.Uint32(payload[44:48])
	xmlOffset := binary.LittleEndian.Uint32(payload[48:52])
	xmlSize := binary.LittleEndian.Uint32(payload[52:56])

	if uint64(xmlOffset)+uint64(xmlSize) > uint64(len(payload)) {
		return types.Errorf(types.ErrOutOfBounds, "handleCompressedPlistFirst", "chunk of %d bytes at offset %d exceeds payload", xmlSize, xmlOffset)
	}
	chunk := payload[xmlOffset : xmlOffset+xmlSize]

	if compressedSize == uncompressedSize {
		state.Deflate.Reset()
		state.EncryptionContextPlistData = append([]byte(nil), chunk...)
		return nil
	}
	if xmlSize > compressedSize {
		return types.Errorf(types.ErrOutOfBounds, "handleCompressedPlistFirst", "first chunk of %d bytes exceeds compressed_data_size %d", xmlSize, compressedSize)
	}

	state.Deflate = types.DeflateReassembly{
		Active:                 true,
		CompressedData:         append([]byte(nil), chunk...),
		CompressedSize:         compressedSize,
		WriteOffset:            xmlSize,
		UncompressedSize:       uncompressedSize,
		OwningObjectIdentifier: nextObjectIdentifier,
	}
	return nil
}

// compressedPlistContinueMinSize covers the next_object_identifier and xml_plist_data_size
// fields preceding a 0x0024 block's chunk data.
const compressedPlistContinueMinSize = 12

// handleCompressedPlistContinue decodes a 0x0024 block: a continuation chunk of the
// DEFLATE stream opened by a prior 0x0019 block, completing and decompressing the chain
// once `next_object_identifier == 0`.
func (g *GraphBuilder) handleCompressedPlistContinue(state *types.EncryptedMetadataState, block types.MetadataBlock) error {
	payload := block.Payload
	if len(payload) < compressedPlistContinueMinSize {
		return types.Errorf(types.ErrOutOfBounds, "handleCompressedPlistContinue", "payload too small: %d bytes", len(payload))
	}
	if !state.Deflate.Active {
		return types.Errorf(types.ErrUnsupportedValue, "handleCompressedPlistContinue", "no compressed-plist chain open")
	}
	if block.Header.ObjectIdentifier != state.Deflate.OwningObjectIdentifier {
		return types.Errorf(types.ErrUnsupportedValue, "handleCompressedPlistContinue",
			"object identifier mismatch: have %d, want %d", block.Header.ObjectIdentifier, state.Deflate.OwningObjectIdentifier)
	}

	nextObjectIdentifier := binary.LittleEndian.Uint64(payload[0:8])
	xmlSize := binary.LittleEndian.Uint32(payload[8:12])

	if uint64(compressedPlistContinueMinSize)+uint64(xmlSize) > uint64(len(payload)) {
		return types.Errorf(types.ErrOutOfBounds, "handleCompressedPlistContinue", "chunk of %d bytes exceeds payload", xmlSize)
	}
	chunk := payload[compressedPlistContinueMinSize : compressedPlistContinueMinSize+xmlSize]

	newOffset := uint64(state.Deflate.WriteOffset) + uint64(xmlSize)
	if newOffset > uint64(state.Deflate.CompressedSize) {
		return types.Errorf(types.ErrOutOfBounds, "handleCompressedPlistContinue",
			"write offset %d exceeds compressed_data_size %d", newOffset, state.Deflate.CompressedSize)
	}

	state.Deflate.CompressedData = append(state.Deflate.CompressedData, chunk...)
	state.Deflate.WriteOffset = uint32(newOffset)
	state.Deflate.OwningObjectIdentifier = nextObjectIdentifier

	if nextObjectIdentifier != 0 {
		return nil
	}
	return g.finishDeflateChain(state)
}

// finishDeflateChain inflates the fully reassembled compressed buffer and, if the result
// begins with a property-list dictionary tag, installs it, then resets the reassembly
// buffer.
func (g *GraphBuilder) finishDeflateChain(state *types.EncryptedMetadataState) error {
	plaintext, err := g.crypto.DeflateDecompress(state.Deflate.CompressedData, int(state.Deflate.UncompressedSize))
	if err != nil {
		return types.Errorf(types.ErrCryptoFailure, "finishDeflateChain", "inflate: %v", err)
	}
	if bytes.HasPrefix(plaintext, []byte("<dict")) {
		state.EncryptionContextPlistData = plaintext
	}
	state.Deflate.Reset()
	return nil
}
