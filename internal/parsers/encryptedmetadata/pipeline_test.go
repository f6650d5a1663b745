package encryptedmetadata

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deploymenttheory/go-fvde/internal/crypto"
	"github.com/deploymenttheory/go-fvde/internal/parsers/metadata"
	"github.com/deploymenttheory/go-fvde/internal/types"
)

// buildPlainBlock returns an unencrypted, checksummed MetadataBlockSize-byte block
// matching the layout parsed by metadata.Framer.Frame.
func buildPlainBlock(t *testing.T, p *crypto.Primitives, blockType uint16, objectID uint64, payload []byte) []byte {
	t.Helper()
	raw := make([]byte, types.MetadataBlockSize)
	binary.LittleEndian.PutUint16(raw[8:10], types.MetadataBlockVersion)
	binary.LittleEndian.PutUint16(raw[10:12], blockType)
	binary.LittleEndian.PutUint64(raw[24:32], objectID)
	binary.LittleEndian.PutUint32(raw[48:52], types.MetadataBlockSize)
	copy(raw[types.MetadataBlockHeaderSize:], payload)

	sum := p.FletcherChecksum(raw[4:types.MetadataBlockSize], 0)
	binary.LittleEndian.PutUint32(raw[0:4], sum)
	return raw
}

func rosterPayload(objIDs ...uint64) []byte {
	payload := make([]byte, logicalVolumeRosterHeaderSize)
	binary.LittleEndian.PutUint32(payload[0:4], uint32(len(objIDs)))
	for _, id := range objIDs {
		entry := make([]byte, logicalVolumeRosterEntrySize)
		binary.LittleEndian.PutUint64(entry[0:8], id)
		payload = append(payload, entry...)
	}
	return payload
}

// TestPipelineParseStopsAtTerminatorPreservingState covers a region whose block 7 is all
// zeros, so the scan must terminate there without error, keeping whatever state
// accumulated through block 6 and ignoring any blocks that follow the terminator.
func TestPipelineParseStopsAtTerminatorPreservingState(t *testing.T) {
	p := crypto.New()
	framer := metadata.NewFramer(p)
	graph := newTestGraphBuilder()
	pipeline := NewPipeline(p, framer, graph)

	var dataKey, tweakKey [16]byte
	for i := range dataKey {
		dataKey[i] = byte(i + 1)
		tweakKey[i] = byte(i + 50)
	}

	const numBlocks = 10
	plain := make([][]byte, numBlocks)
	plain[0] = buildPlainBlock(t, p, types.BlockTypeLogicalVolumeRoster, 0, rosterPayload(10, 20))
	for i := 1; i < 7; i++ {
		// An unrecognized block type dispatches as a no-op, keeping these blocks
		// non-empty (and so not mistaken for the terminator) without altering state.
		plain[i] = buildPlainBlock(t, p, 0xFFFF, uint64(i), nil)
	}
	// Block 7 is the all-zero terminator: it stays zero in the region itself (empty
	// blocks are detected on the ciphertext, before any decryption).
	plain[7] = nil
	// Blocks after the terminator carry a roster that, if dispatched, would conflict
	// with the one already recorded; their presence must not affect the result.
	plain[8] = buildPlainBlock(t, p, types.BlockTypeLogicalVolumeRoster, 0, rosterPayload(999))
	plain[9] = nil

	region := make([]byte, numBlocks*types.MetadataBlockSize)
	for i, block := range plain {
		if block == nil {
			continue
		}
		ciphertext, err := p.XTSSectorEncrypt(dataKey, tweakKey, uint64(i), block)
		require.NoError(t, err)
		copy(region[i*types.MetadataBlockSize:], ciphertext)
	}

	state, err := pipeline.Parse(region, dataKey, tweakKey, false)
	require.NoError(t, err)
	require.Len(t, state.LogicalVolumes, 2)
	assert.Equal(t, uint64(10), state.LogicalVolumes[0].ObjectIdentifier)
	assert.Equal(t, uint64(20), state.LogicalVolumes[1].ObjectIdentifier)
}

func TestPipelineParseRejectsMisalignedRegion(t *testing.T) {
	p := crypto.New()
	framer := metadata.NewFramer(p)
	graph := newTestGraphBuilder()
	pipeline := NewPipeline(p, framer, graph)

	var dataKey, tweakKey [16]byte
	_, err := pipeline.Parse(make([]byte, 10), dataKey, tweakKey, false)
	require.Error(t, err)
	var fvdeErr *types.Error
	require.ErrorAs(t, err, &fvdeErr)
	assert.Equal(t, types.ErrOutOfBounds, fvdeErr.Kind)
}
