// File: internal/interfaces/header.go
package interfaces

import "github.com/deploymenttheory/go-fvde/internal/types"

// VolumeHeaderReader decodes the 512-byte physical-volume superblock.
type VolumeHeaderReader interface {
	Header() *types.VolumeHeader
}

// PlaintextMetadataReader reads the four redundant plaintext metadata regions, frames
// block 0 of each, and selects the region with the largest transaction identifier.
type PlaintextMetadataReader interface {
	Read(image IOHandle, header *types.VolumeHeader) (*types.Metadata, error)
}

// BlockFramer parses the shared 64-byte metadata-block header, verifies the block's
// checksum, and extracts the payload. It is shared between the plaintext metadata
// reader and the encrypted-metadata pipeline.
type BlockFramer interface {
	Frame(raw []byte) (types.MetadataBlock, error)
}

// EncryptedMetadataPipeline decrypts an encrypted-metadata region block-by-block and
// dispatches each decrypted payload to the object graph builder.
type EncryptedMetadataPipeline interface {
	Parse(region []byte, dataKey, tweakKey [16]byte, verbose bool) (*types.EncryptedMetadataState, error)
}

// ObjectGraphBuilder dispatches a single decrypted metadata block payload to its
// type-specific handler, mutating the accumulated EncryptedMetadataState.
type ObjectGraphBuilder interface {
	Dispatch(state *types.EncryptedMetadataState, block types.MetadataBlock) error
}
