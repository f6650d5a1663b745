package encryptedmetadata

import (
	"encoding/binary"

	"github.com/deploymenttheory/go-fvde/internal/interfaces"
	"github.com/deploymenttheory/go-fvde/internal/types"
)

// GraphBuilder implements interfaces.ObjectGraphBuilder. One instance is shared across
// every block of a single region's pipeline run.
type GraphBuilder struct {
	crypto interfaces.CryptoPrimitives
	plist  interfaces.PlistParser
}

// NewGraphBuilder wires the crypto façade (for DEFLATE reassembly) and plist parser
// (for the inline 0x0012 XML blob) used by the block-type handlers.
func NewGraphBuilder(crypto interfaces.CryptoPrimitives, plist interfaces.PlistParser) *GraphBuilder {
	return &GraphBuilder{crypto: crypto, plist: plist}
}

var _ interfaces.ObjectGraphBuilder = (*GraphBuilder)(nil)

// Dispatch implements interfaces.ObjectGraphBuilder.Dispatch: routes block to its
// type-specific handler. Unknown block types are tolerated as no-ops.
func (g *GraphBuilder) Dispatch(state *types.EncryptedMetadataState, block types.MetadataBlock) error {
	switch block.Header.BlockType {
	case types.BlockTypePhysicalVolumeDescriptor:
		return g.handlePhysicalVolumeDescriptor(state, block.Payload)
	case types.BlockTypeVolumeGroupDirectory:
		return g.handleVolumeGroupDirectory(block.Payload)
	case types.BlockTypeVolumeGroupXML:
		return g.handleVolumeGroupXML(state, block.Payload)
	case types.BlockTypeTransactionRecordA, types.BlockTypeTransactionRecordB:
		return g.handleTransactionRecord(state, block.Payload)
	case types.BlockTypeDescriptorLookupTable:
		return countPrefixedU32Table(block.Payload, 12, "handleDescriptorLookupTable")
	case types.BlockTypeGenericTable32:
		return countPrefixedU64CountTable(block.Payload, 32, "handleGenericTable32")
	case types.BlockTypeObjectCrossLink0x0105:
		return g.handleObjectCrossLink0x0105(state, block.Payload)
	case types.BlockTypeCompressedPlistFirst:
		return g.handleCompressedPlistFirst(state, block)
	case types.BlockTypeLogicalVolumeUpdate:
		return g.handleLogicalVolumeUpdate(state, block.Payload)
	case types.BlockTypeExtentTable32:
		return countPrefixedU32Table(block.Payload, 32, "handleExtentTable32")
	case types.BlockTypePhysicalExtentTable16:
		return countPrefixedU32Table(block.Payload, 16, "handlePhysicalExtentTable16")
	case types.BlockTypeLogicalVolumeSizeSummary:
		return handleLogicalVolumeSizeSummary(block.Payload)
	case types.BlockTypeExtentChain0x001d:
		return countPrefixedU32Table(block.Payload, 32, "handleExtentChain0x001d")
	case types.BlockTypeCompressedPlistContinue:
		return g.handleCompressedPlistContinue(state, block)
	case types.BlockTypeGenericTable24:
		return countPrefixedU32Table(block.Payload, 24, "handleGenericTable24")
	case types.BlockTypeLogicalVolumeRoster:
		return g.handleLogicalVolumeRoster(state, block.Payload)
	case types.BlockTypeReservedMetadata0x0205:
		return nil
	case types.BlockTypeSegmentMapTransaction:
		return g.handleSegmentMapTransaction(state, block.Payload)
	case types.BlockTypeSegmentMapLogicalVolume:
		return g.handleSegmentMapLogicalVolume(state, block)
	case types.BlockTypeCrossReference0x0404, types.BlockTypeCrossReference0x0405:
		return countPrefixedU32Table(block.Payload, 48, "handleCrossReference")
	case types.BlockTypeBasePhysicalBlock:
		return g.handleBasePhysicalBlock(state, block)
	case types.BlockTypeReserved0x0605:
		return nil
	default:
		return nil
	}
}

// countPrefixedU32Table bounds-checks a generic count-prefixed table whose 4-byte count
// lives at offset 0 and whose entries of entrySize bytes start at offset 8 (a 4-byte
// reserved/alignment word follows the count), without interpreting entry contents.
func countPrefixedU32Table(payload []byte, entrySize int, op string) error {
	const headerLen = 8
	if len(payload) < headerLen {
		return types.Errorf(types.ErrOutOfBounds, op, "payload too small: %d bytes", len(payload))
	}
	count := binary.LittleEndian.Uint32(payload[0:4])
	available := (len(payload) - headerLen) / entrySize
	if int(count) > available {
		return types.Errorf(types.ErrOutOfBounds, op, "entry count %d exceeds available entries %d", count, available)
	}
	return nil
}

// countPrefixedU64CountTable is countPrefixedU32Table's 8-byte-count variant, used by
// 0x0017's "8-byte count, then 32-byte-per-entry table" contract.
func countPrefixedU64CountTable(payload []byte, entrySize int, op string) error {
	const headerLen = 8
	if len(payload) < headerLen {
		return types.Errorf(types.ErrOutOfBounds, op, "payload too small: %d bytes", len(payload))
	}
	count := binary.LittleEndian.Uint64(payload[0:8])
	available := uint64((len(payload) - headerLen) / entrySize)
	if count > available {
		return types.Errorf(types.ErrOutOfBounds, op, "entry count %d exceeds available entries %d", count, available)
	}
	return nil
}
