package encryptedmetadata

import (
	"encoding/binary"

	"github.com/deploymenttheory/go-fvde/internal/types"
)

// transactionRecordMinSize is the minimum payload length of a 0x0013/0x0014 transaction
// record: the volume-group UUID plus two count-prefixed 8-byte arrays.
const transactionRecordMinSize = 72

// handleTransactionRecord decodes a 0x0013/0x0014 transaction record, cross-checking its
// embedded volume-group UUID against any value already recorded by a 0x0010 block.
func (g *GraphBuilder) handleTransactionRecord(state *types.EncryptedMetadataState, payload []byte) error {
	if len(payload) < transactionRecordMinSize {
		return types.Errorf(types.ErrOutOfBounds, "handleTransactionRecord", "payload too small: %d bytes", len(payload))
	}

	var lvgID types.UUID
	copy(lvgID[:], payload[8:24])
	if err := state.SetVolumeGroupIdentifier(lvgID); err != nil {
		return err
	}

	offset := 24
	for i := 0; i < 2; i++ {
		if offset+8 > len(payload) {
			return types.Errorf(types.ErrOutOfBounds, "handleTransactionRecord", "truncated array header at offset %d", offset)
		}
		count := binary.LittleEndian.Uint64(payload[offset : offset+8])
		offset += 8
		need := int(count) * 8
		if offset+need > len(payload) {
			return types.Errorf(types.ErrOutOfBounds, "handleTransactionRecord", "array of %d entries exceeds payload", count)
		}
		offset += need
	}
	return nil
}

// handleObjectCrossLink0x0105 validates a 0x0018 block's single object-identifier
// cross-link against the 0x0105 roster.
func (g *GraphBuilder) handleObjectCrossLink0x0105(state *types.EncryptedMetadataState, payload []byte) error {
	if len(payload) < 8 {
		return types.Errorf(types.ErrOutOfBounds, "handleObjectCrossLink0x0105", "payload too small: %d bytes", len(payload))
	}
	objID := binary.LittleEndian.Uint64(payload[0:8])
	if _, ok := state.FindByObjectIdentifier(objID); !ok {
		return types.Errorf(types.ErrValueMissing, "handleObjectCrossLink0x0105", "object identifier %d not present in roster", objID)
	}
	return nil
}
