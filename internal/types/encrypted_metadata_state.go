package types

// DeflateReassembly tracks the streaming DEFLATE reassembly buffer for the
// EncryptedRoot.plist payload spread across a 0x0019 block and its 0x0024 continuations.
type DeflateReassembly struct {
	Active bool

	CompressedData         []byte
	CompressedSize         uint32
	WriteOffset            uint32
	UncompressedSize       uint32
	OwningObjectIdentifier uint64

	// Inline is not populated by the block handlers: a plist that 0x0019 carries
	// uncompressed (compressed_size == uncompressed_size) is stored directly in
	// EncryptedMetadataState.EncryptionContextPlistData.
	Inline []byte
}

// Reset clears the reassembly buffer, used when a chain completes or aborts.
func (r *DeflateReassembly) Reset() {
	*r = DeflateReassembly{}
}

// EncryptedMetadataState accumulates everything parsed out of one encrypted-metadata
// region. One instance exists per metadata region (primary and, on fallback,
// secondary); it is discarded wholesale on any block-type handler failure.
type EncryptedMetadataState struct {
	// LogicalVolumes is ordered by first-sighting / roster index, as 0x0105 populates it.
	LogicalVolumes []*LogicalVolumeDescriptor

	byIdentifier map[uint64]*LogicalVolumeDescriptor
	lastSeen     *LogicalVolumeDescriptor

	// TransactionSegments is the scratch segment map from 0x0304, not attached to any
	// logical volume.
	TransactionSegments SegmentList

	Deflate DeflateReassembly

	// EncryptionContextPlistData holds the fully reassembled plist bytes once installed,
	// ready for C7 to parse lazily.
	EncryptionContextPlistData []byte

	// VolumeGroupIdentifier is the volume-group UUID cross-checked by the 0x0013/0x0014
	// transaction-record handlers against the 0x0010 physical-volume descriptor.
	VolumeGroupIdentifier    UUID
	volumeGroupIdentifierSet bool

	// VolumeGroupName is extracted from the inline 0x0012 XML blob, when present.
	VolumeGroupName string

	// PhysicalVolumeInfo records the most recently seen 0x0010 physical-volume
	// descriptor block.
	PhysicalVolumeInfo *PhysicalVolumeBlockInfo
}

// SetVolumeGroupIdentifier records id on first sighting, or validates it against the
// already-recorded value.
func (s *EncryptedMetadataState) SetVolumeGroupIdentifier(id UUID) error {
	if !s.volumeGroupIdentifierSet {
		s.VolumeGroupIdentifier = id
		s.volumeGroupIdentifierSet = true
		return nil
	}
	if s.VolumeGroupIdentifier != id {
		return Errorf(ErrUnsupportedValue, "SetVolumeGroupIdentifier", "volume group identifier mismatch: have %s, want %s", s.VolumeGroupIdentifier, id)
	}
	return nil
}

// PhysicalVolumeBlockInfo is the 0x0010 physical-volume descriptor block's recorded
// fields.
type PhysicalVolumeBlockInfo struct {
	PhysicalVolumeSize           uint64
	BlockSize                    uint32
	MetadataBlockNumbers         [4]uint64
	BytesPerSector               uint32
	EncryptionMethod             uint32
	KeyData                      [128]byte
	PhysicalVolumeIdentifier     UUID
	LogicalVolumeGroupIdentifier UUID
}

// NewEncryptedMetadataState returns an empty accumulator ready to receive block payloads.
func NewEncryptedMetadataState() *EncryptedMetadataState {
	return &EncryptedMetadataState{
		byIdentifier: make(map[uint64]*LogicalVolumeDescriptor),
	}
}

// EnsureRosterEntry implements the 0x0105 roster contract: entry i is created if it does
// not yet exist (appending to LogicalVolumes), or validated against objID if it does.
func (s *EncryptedMetadataState) EnsureRosterEntry(i int, objID uint64) (*LogicalVolumeDescriptor, error) {
	if i < len(s.LogicalVolumes) {
		existing := s.LogicalVolumes[i]
		if existing.ObjectIdentifier != objID {
			return nil, Errorf(ErrUnsupportedValue, "EnsureRosterEntry",
				"roster entry %d object identifier mismatch: have %d, want %d", i, existing.ObjectIdentifier, objID)
		}
		return existing, nil
	}
	if i != len(s.LogicalVolumes) {
		return nil, Errorf(ErrOutOfBounds, "EnsureRosterEntry", "roster entry %d out of sequence (have %d entries)", i, len(s.LogicalVolumes))
	}
	d := &LogicalVolumeDescriptor{ObjectIdentifier: objID}
	s.LogicalVolumes = append(s.LogicalVolumes, d)
	s.byIdentifier[objID] = d
	return d, nil
}

// FindByObjectIdentifier looks up a logical-volume descriptor by its primary object
// identifier, as 0x001a must to report ValueMissing on an absent reference.
func (s *EncryptedMetadataState) FindByObjectIdentifier(id uint64) (*LogicalVolumeDescriptor, bool) {
	d, ok := s.byIdentifier[id]
	return d, ok
}

// MarkSeen records d as the most-recently-seen logical volume, consulted by 0x0305 and
// 0x0505 which always operate on "the last descriptor in the state".
func (s *EncryptedMetadataState) MarkSeen(d *LogicalVolumeDescriptor) {
	s.lastSeen = d
}

// LastSeen returns the most-recently-seen logical volume, or false if none has been
// sighted yet in this region.
func (s *EncryptedMetadataState) LastSeen() (*LogicalVolumeDescriptor, bool) {
	if s.lastSeen == nil {
		return nil, false
	}
	return s.lastSeen, true
}
