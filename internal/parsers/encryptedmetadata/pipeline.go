// Package encryptedmetadata implements the encrypted-metadata pipeline and the object
// graph builder: together they AES-XTS-decrypt an encrypted-metadata region block by
// block and dispatch each decrypted payload to its type-specific handler, accumulating a
// types.EncryptedMetadataState. One pipeline instance owns a single region's worth of
// parsing state; a fresh instance is built for each region scan.
package encryptedmetadata

import (
	"github.com/deploymenttheory/go-fvde/internal/interfaces"
	"github.com/deploymenttheory/go-fvde/internal/types"
)

// lvfWipedFlag marks a block whose payload must be skipped without dispatch. Packed into
// the reserved bytes of MetadataBlockHeader.Flags.
const lvfWipedFlag uint32 = 1 << 0

// isAllZero reports whether raw is entirely zero bytes.
func isAllZero(raw []byte) bool {
	for _, b := range raw {
		if b != 0 {
			return false
		}
	}
	return true
}

// Pipeline implements interfaces.EncryptedMetadataPipeline.
type Pipeline struct {
	crypto interfaces.CryptoPrimitives
	framer interfaces.BlockFramer
	graph  interfaces.ObjectGraphBuilder
	abort  func() bool
}

// SetAbortCheck installs a cooperative cancellation probe consulted once per block
// during a region scan, the only loop long enough to need one.
func (p *Pipeline) SetAbortCheck(abort func() bool) {
	p.abort = abort
}

// NewPipeline wires the crypto façade, block framer, and object graph builder used to
// walk one encrypted-metadata region.
func NewPipeline(crypto interfaces.CryptoPrimitives, framer interfaces.BlockFramer, graph interfaces.ObjectGraphBuilder) *Pipeline {
	return &Pipeline{crypto: crypto, framer: framer, graph: graph}
}

var _ interfaces.EncryptedMetadataPipeline = (*Pipeline)(nil)

// Parse implements interfaces.EncryptedMetadataPipeline.Parse. On a decryption or framing
// error the state is abandoned and the error returned (the caller may retry the
// secondary encrypted-metadata region); a block-type handler error is likewise fatal for
// the whole region.
func (p *Pipeline) Parse(region []byte, dataKey, tweakKey [16]byte, verbose bool) (*types.EncryptedMetadataState, error) {
	if len(region)%types.MetadataBlockSize != 0 {
		return nil, types.Errorf(types.ErrOutOfBounds, "Pipeline.Parse", "region size %d is not a multiple of %d", len(region), types.MetadataBlockSize)
	}

	state := types.NewEncryptedMetadataState()
	numBlocks := len(region) / types.MetadataBlockSize
	terminated := false

	for i := 0; i < numBlocks; i++ {
		if p.abort != nil && p.abort() {
			return nil, types.Errorf(types.ErrIoFailure, "Pipeline.Parse", "metadata scan aborted at block %d", i)
		}

		ciphertext := region[i*types.MetadataBlockSize : (i+1)*types.MetadataBlockSize]

		// Empty blocks are detected on the ciphertext: an all-zero 8192-byte block is
		// never a valid XTS ciphertext and marks the tail of the region.
		if isAllZero(ciphertext) {
			if !verbose {
				break
			}
			// Verbose mode keeps walking the blocks past the terminator instead of breaking,
			// but those blocks are neither decrypted, dispatched, nor reported anywhere;
			// state accumulated through the prior block is preserved untouched.
			terminated = true
			continue
		}
		if terminated {
			continue
		}

		plaintext, err := p.crypto.XTSSectorDecrypt(dataKey, tweakKey, uint64(i), ciphertext)
		if err != nil {
			return nil, types.Errorf(types.ErrCryptoFailure, "Pipeline.Parse", "block %d: %v", i, err)
		}

		block, err := p.framer.Frame(plaintext)
		if err != nil {
			return nil, err
		}
		if block.Empty {
			continue
		}

		if block.Header.Flags&lvfWipedFlag != 0 {
			continue
		}

		if err := p.graph.Dispatch(state, block); err != nil {
			return nil, err
		}
	}

	return state, nil
}
