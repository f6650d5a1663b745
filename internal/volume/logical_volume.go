package volume

import (
	"io"

	"golang.org/x/text/encoding/unicode"

	"github.com/deploymenttheory/go-fvde/internal/interfaces"
	"github.com/deploymenttheory/go-fvde/internal/types"
)

// pendingCredential records which Set* call the caller made, so Unlock can perform the
// matching derivation. Set* methods only record; Unlock does the work.
type pendingCredential int

const (
	pendingNone pendingCredential = iota
	pendingKey
	pendingPassphrase
	pendingRecoveryPassphrase
)

// logicalVolume implements interfaces.LogicalVolumeReader.
type logicalVolume struct {
	container *Container
	desc      *types.LogicalVolumeDescriptor

	keyring types.Keyring

	pending         pendingCredential
	pendingKey      [types.VolumeMasterKeySize]byte
	pendingPassword []byte

	offset int64

	cacheEnabled bool
	cacheValid   bool
	cacheSector  int64
	cacheData    [types.LogicalSectorSize]byte

	closed bool
}

var _ interfaces.LogicalVolumeReader = (*logicalVolume)(nil)

// newLogicalVolume returns a locked reader bound to desc, sharing container's I/O pool
// and encryption-context plist.
func newLogicalVolume(container *Container, desc *types.LogicalVolumeDescriptor) *logicalVolume {
	cacheEnabled := true
	if container.config != nil {
		cacheEnabled = container.config.CacheEnabled
	}
	return &logicalVolume{container: container, desc: desc, cacheEnabled: cacheEnabled}
}

// Identifier implements interfaces.LogicalVolumeReader.Identifier.
func (lv *logicalVolume) Identifier() types.UUID { return lv.desc.Identifier }

// Size implements interfaces.LogicalVolumeReader.Size.
func (lv *logicalVolume) Size() int64 { return int64(lv.desc.Size) }

// Offset implements interfaces.LogicalVolumeReader.Offset.
func (lv *logicalVolume) Offset() int64 { return lv.offset }

// IsLocked implements interfaces.LogicalVolumeReader.IsLocked.
func (lv *logicalVolume) IsLocked() bool { return !lv.keyring.Unlocked() }

// MissingPhysicalVolumes implements
// interfaces.LogicalVolumeReader.MissingPhysicalVolumes: physical-volume indices this
// descriptor's segments reference that are absent from the extracted roster.
func (lv *logicalVolume) MissingPhysicalVolumes() []uint16 {
	return lv.desc.MissingPhysicalVolumes(lv.container.md.PhysicalVolumes)
}

// SetKey implements interfaces.LogicalVolumeReader.SetKey: records a raw volume master
// key for Unlock to apply directly, with no passphrase or plist consultation.
func (lv *logicalVolume) SetKey(masterKey [16]byte) error {
	lv.wipePending()
	lv.pending = pendingKey
	lv.pendingKey = masterKey
	return nil
}

// SetPassphrase implements interfaces.LogicalVolumeReader.SetPassphrase: records a UTF-8
// user passphrase for Unlock to run through the full key-unwrap chain.
func (lv *logicalVolume) SetPassphrase(passphrase []byte) error {
	return lv.setPassword(passphrase, pendingPassphrase)
}

// SetRecoveryPassphrase implements
// interfaces.LogicalVolumeReader.SetRecoveryPassphrase: records a recovery passphrase.
// The unwrap chain it drives is identical to SetPassphrase's — both walk the same
// CryptoUsers array regardless of which credential type the caller supplied — and a
// failure is reported with the same error for either kind.
func (lv *logicalVolume) SetRecoveryPassphrase(passphrase []byte) error {
	return lv.setPassword(passphrase, pendingRecoveryPassphrase)
}

// SetPassphraseUTF16 implements interfaces.LogicalVolumeReader.SetPassphraseUTF16:
// transcodes a UTF-16LE passphrase to UTF-8 before recording it.
func (lv *logicalVolume) SetPassphraseUTF16(passphraseUTF16LE []byte) error {
	utf8, err := decodeUTF16LE(passphraseUTF16LE)
	if err != nil {
		return err
	}
	defer wipeBytes(utf8)
	return lv.SetPassphrase(utf8)
}

// SetRecoveryPassphraseUTF16 implements
// interfaces.LogicalVolumeReader.SetRecoveryPassphraseUTF16.
func (lv *logicalVolume) SetRecoveryPassphraseUTF16(passphraseUTF16LE []byte) error {
	utf8, err := decodeUTF16LE(passphraseUTF16LE)
	if err != nil {
		return err
	}
	defer wipeBytes(utf8)
	return lv.SetRecoveryPassphrase(utf8)
}

// decodeUTF16LE transcodes a UTF-16LE byte stream to UTF-8, matching the original's
// libuna-based UTF-16 -> UTF-8 passphrase conversion step.
func decodeUTF16LE(in []byte) ([]byte, error) {
	decoder := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewDecoder()
	out, err := decoder.Bytes(in)
	if err != nil {
		return nil, types.Errorf(types.ErrInvalidArgument, "decodeUTF16LE", "%v", err)
	}
	return out, nil
}

// setPassword validates and records passphrase under kind, replacing any previously
// pending credential.
func (lv *logicalVolume) setPassword(passphrase []byte, kind pendingCredential) error {
	if len(passphrase) == 0 {
		return types.Errorf(types.ErrInvalidArgument, "setPassword", "passphrase must not be empty")
	}
	lv.wipePending()
	lv.pendingPassword = append([]byte(nil), passphrase...)
	lv.pending = kind
	return nil
}

// wipePending zeros and clears any previously recorded credential.
func (lv *logicalVolume) wipePending() {
	wipeBytes(lv.pendingPassword)
	lv.pendingPassword = nil
	for i := range lv.pendingKey {
		lv.pendingKey[i] = 0
	}
	lv.pending = pendingNone
}

// wipeBytes zeros b in place.
func wipeBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// Unlock implements interfaces.LogicalVolumeReader.Unlock: applies whichever credential
// a prior Set* call recorded. Failure leaves the reader locked.
func (lv *logicalVolume) Unlock() error {
	defer lv.wipePending()

	switch lv.pending {
	case pendingKey:
		lv.keyring.VolumeMasterKey = lv.pendingKey
		// No EncryptionContextPlist-sourced tweak key is available for a directly
		// supplied master key; the logical-volume sector-read tweak key is set equal to
		// the master key (self-tweak convention).
		lv.keyring.VolumeTweakKey = lv.pendingKey
		lv.keyring.SetUnlocked(true)
		return nil

	case pendingPassphrase, pendingRecoveryPassphrase:
		plist, err := lv.container.EncryptionContextPlist()
		if err != nil {
			return err
		}
		result, err := lv.container.unwrapper.UnwrapWithPassphrase(plist, lv.pendingPassword, &lv.keyring)
		if err != nil {
			return err
		}
		if result != interfaces.UnwrapFound {
			lv.keyring.Wipe()
			return types.Errorf(types.ErrPasswordIncorrect, "Unlock", "no CryptoUsers entry unwrapped with the supplied passphrase")
		}
		// The unwrap chain only recovers the 16-byte volume master key; the logical-volume
		// tweak key is set equal to it (self-tweak convention).
		lv.keyring.VolumeTweakKey = lv.keyring.VolumeMasterKey
		return nil

	default:
		return types.Errorf(types.ErrInvalidArgument, "Unlock", "no key, passphrase, or recovery passphrase has been set")
	}
}

// Seek implements interfaces.LogicalVolumeReader.Seek, matching io.Seeker's whence
// values.
func (lv *logicalVolume) Seek(offset int64, whence int) (int64, error) {
	var next int64
	switch whence {
	case io.SeekStart:
		next = offset
	case io.SeekCurrent:
		next = lv.offset + offset
	case io.SeekEnd:
		next = int64(lv.desc.Size) + offset
	default:
		return 0, types.Errorf(types.ErrInvalidArgument, "Seek", "invalid whence %d", whence)
	}
	if next < 0 {
		return 0, types.Errorf(types.ErrInvalidArgument, "Seek", "resulting offset %d is negative", next)
	}
	lv.offset = next
	return lv.offset, nil
}

// ReadBuffer implements interfaces.LogicalVolumeReader.ReadBuffer: translates each
// 512-byte logical sector spanned by buf to a physical sector via the
// descriptor's segment map, AES-XTS-decrypts it (or synthesizes zeros over a hole), and
// copies the requested slice into buf. Advances the reader's offset by the number of
// bytes copied.
func (lv *logicalVolume) ReadBuffer(offset int64, buf []byte) (int, error) {
	if lv.closed {
		return 0, types.Errorf(types.ErrInvalidArgument, "ReadBuffer", "logical volume is closed")
	}
	if !lv.keyring.Unlocked() {
		return 0, types.Errorf(types.ErrInvalidArgument, "ReadBuffer", "logical volume is locked")
	}
	if offset < 0 {
		return 0, types.Errorf(types.ErrInvalidArgument, "ReadBuffer", "offset %d is negative", offset)
	}

	size := int64(lv.desc.Size)
	if offset >= size {
		return 0, nil
	}
	want := len(buf)
	if int64(want) > size-offset {
		want = int(size - offset)
	}

	read := 0
	for read < want {
		cur := offset + int64(read)
		sector := cur / types.LogicalSectorSize
		intra := int(cur % types.LogicalSectorSize)

		plaintext, err := lv.decryptSector(sector)
		if err != nil {
			return read, err
		}

		n := copy(buf[read:want], plaintext[intra:])
		read += n
	}

	lv.offset = offset + int64(read)
	return read, nil
}

// decryptSector returns the decrypted 512-byte sector at logical sector number sector,
// consulting the single-sector cache first.
func (lv *logicalVolume) decryptSector(sector int64) ([]byte, error) {
	if lv.cacheEnabled && lv.cacheValid && lv.cacheSector == sector {
		return lv.cacheData[:], nil
	}

	seg, ok := lv.desc.Segments.Find(sector)
	if !ok {
		for i := range lv.cacheData {
			lv.cacheData[i] = 0
		}
		lv.cacheValid = lv.cacheEnabled
		lv.cacheSector = sector
		return lv.cacheData[:], nil
	}

	physBlockInPV := seg.PhysicalBlockNumber + uint64(sector-seg.LogicalBlockNumber)

	handle, ok := lv.container.pool.Handle(int(seg.PhysicalVolumeIndex))
	if !ok {
		return nil, types.Errorf(types.ErrIoFailure, "decryptSector", "physical volume index %d not open", seg.PhysicalVolumeIndex)
	}

	ciphertext := make([]byte, types.LogicalSectorSize)
	if _, err := handle.ReadAt(ciphertext, int64(physBlockInPV*types.LogicalSectorSize)); err != nil {
		return nil, types.Errorf(types.ErrIoFailure, "decryptSector", "%v", err)
	}

	tweak := physBlockInPV + lv.desc.BasePhysicalBlockNumber
	plaintext, err := lv.container.crypto.XTSSectorDecrypt(lv.keyring.VolumeMasterKey, lv.keyring.VolumeTweakKey, tweak, ciphertext)
	if err != nil {
		return nil, types.Errorf(types.ErrCryptoFailure, "decryptSector", "%v", err)
	}

	copy(lv.cacheData[:], plaintext)
	lv.cacheValid = lv.cacheEnabled
	lv.cacheSector = sector
	return lv.cacheData[:], nil
}

// Close implements interfaces.LogicalVolumeReader.Close: wipes key material. The shared
// I/O pool is closed by the owning Container, not here.
func (lv *logicalVolume) Close() error {
	lv.wipePending()
	lv.keyring.Wipe()
	lv.closed = true
	return nil
}
