package volume

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deploymenttheory/go-fvde/internal/crypto"
	"github.com/deploymenttheory/go-fvde/internal/diskio"
	"github.com/deploymenttheory/go-fvde/internal/interfaces"
	"github.com/deploymenttheory/go-fvde/internal/types"
)

// memHandle is a minimal in-memory interfaces.IOHandle fixture, standing in for an
// on-disk physical volume so these tests never touch the filesystem.
type memHandle struct {
	data []byte
}

var _ interfaces.IOHandle = (*memHandle)(nil)

func (h *memHandle) ReadAt(buf []byte, offset int64) (int, error) {
	if offset < 0 || offset > int64(len(h.data)) {
		return 0, types.Errorf(types.ErrIoFailure, "memHandle.ReadAt", "offset %d out of range", offset)
	}
	n := copy(buf, h.data[offset:])
	return n, nil
}

func (h *memHandle) Size() (int64, error) { return int64(len(h.data)), nil }
func (h *memHandle) Close() error         { return nil }

func newTestContainer(handleSize int) (*Container, *memHandle) {
	handle := &memHandle{data: make([]byte, handleSize)}
	pool := diskio.NewPool()
	pool.SetHandle(0, handle)
	return &Container{
		pool:   pool,
		crypto: crypto.New(),
		md:     &types.Metadata{},
		config: &diskio.Config{CacheEnabled: true},
	}, handle
}

func newTestDescriptor(size uint64) *types.LogicalVolumeDescriptor {
	return &types.LogicalVolumeDescriptor{
		Identifier: types.UUID{1, 2, 3, 4},
		Name:       "test volume",
		Size:       size,
	}
}

func TestLogicalVolumeSetKeyUnlock(t *testing.T) {
	container, _ := newTestContainer(0)
	desc := newTestDescriptor(512)
	lv := newLogicalVolume(container, desc)

	assert.True(t, lv.IsLocked())

	key := [16]byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16}
	require.NoError(t, lv.SetKey(key))
	require.NoError(t, lv.Unlock())

	assert.False(t, lv.IsLocked())
	assert.Equal(t, key, lv.keyring.VolumeMasterKey)
	assert.Equal(t, key, lv.keyring.VolumeTweakKey, "self-tweak convention: tweak key equals master key")
}

func TestLogicalVolumeUnlockRequiresCredential(t *testing.T) {
	container, _ := newTestContainer(0)
	lv := newLogicalVolume(container, newTestDescriptor(512))

	err := lv.Unlock()
	require.Error(t, err)
	var fvdeErr *types.Error
	require.ErrorAs(t, err, &fvdeErr)
	assert.Equal(t, types.ErrInvalidArgument, fvdeErr.Kind)
	assert.True(t, lv.IsLocked())
}

func TestLogicalVolumeSetPassphraseRejectsEmpty(t *testing.T) {
	container, _ := newTestContainer(0)
	lv := newLogicalVolume(container, newTestDescriptor(512))

	err := lv.SetPassphrase(nil)
	require.Error(t, err)
	err = lv.SetRecoveryPassphrase([]byte{})
	require.Error(t, err)
}

func TestLogicalVolumeSetPassphraseUTF16Transcodes(t *testing.T) {
	container, _ := newTestContainer(0)
	lv := newLogicalVolume(container, newTestDescriptor(512))

	// "ab" in UTF-16LE.
	utf16 := []byte{'a', 0, 'b', 0}
	require.NoError(t, lv.SetPassphraseUTF16(utf16))
	assert.Equal(t, pendingPassphrase, lv.pending)
	assert.Equal(t, []byte("ab"), lv.pendingPassword)
}

func TestLogicalVolumeReadBufferRejectsLocked(t *testing.T) {
	container, _ := newTestContainer(0)
	lv := newLogicalVolume(container, newTestDescriptor(512))

	buf := make([]byte, 16)
	_, err := lv.ReadBuffer(0, buf)
	require.Error(t, err)
}

func TestLogicalVolumeReadBufferHoleFillsZero(t *testing.T) {
	container, _ := newTestContainer(0)
	desc := newTestDescriptor(4096)
	lv := newLogicalVolume(container, desc)

	key := [16]byte{9}
	require.NoError(t, lv.SetKey(key))
	require.NoError(t, lv.Unlock())

	buf := make([]byte, 512)
	n, err := lv.ReadBuffer(0, buf)
	require.NoError(t, err)
	assert.Equal(t, 512, n)
	assert.True(t, bytes.Equal(buf, make([]byte, 512)), "unmapped logical sector should read as zero")
}

func TestLogicalVolumeReadBufferTailTruncation(t *testing.T) {
	container, _ := newTestContainer(0)
	desc := newTestDescriptor(300) // less than one sector
	lv := newLogicalVolume(container, desc)

	require.NoError(t, lv.SetKey([16]byte{1}))
	require.NoError(t, lv.Unlock())

	buf := make([]byte, 512)
	n, err := lv.ReadBuffer(0, buf)
	require.NoError(t, err)
	assert.Equal(t, 300, n, "read must truncate to the logical volume's remaining size")
}

func TestLogicalVolumeReadBufferPastEndReturnsZero(t *testing.T) {
	container, _ := newTestContainer(0)
	desc := newTestDescriptor(512)
	lv := newLogicalVolume(container, desc)

	require.NoError(t, lv.SetKey([16]byte{1}))
	require.NoError(t, lv.Unlock())

	buf := make([]byte, 16)
	n, err := lv.ReadBuffer(512, buf)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestLogicalVolumeReadBufferSegmentRoundTrip(t *testing.T) {
	const physBlock = 10
	const basePhysicalBlockNumber = 0

	key := [16]byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16}
	plaintext := bytes.Repeat([]byte{0x7a}, types.LogicalSectorSize)

	cp := crypto.New()
	tweak := uint64(physBlock) + basePhysicalBlockNumber
	ciphertext, err := cp.XTSSectorEncrypt(key, key, tweak, plaintext)
	require.NoError(t, err)

	container, handle := newTestContainer((physBlock + 1) * types.LogicalSectorSize)
	copy(handle.data[physBlock*types.LogicalSectorSize:], ciphertext)

	desc := newTestDescriptor(types.LogicalSectorSize)
	desc.BasePhysicalBlockNumber = basePhysicalBlockNumber
	require.NoError(t, desc.Segments.Insert(types.SegmentDescriptor{
		LogicalBlockNumber:  0,
		PhysicalBlockNumber: physBlock,
		NumberOfBlocks:      1,
	}))

	lv := newLogicalVolume(container, desc)
	require.NoError(t, lv.SetKey(key))
	require.NoError(t, lv.Unlock())

	buf := make([]byte, types.LogicalSectorSize)
	n, err := lv.ReadBuffer(0, buf)
	require.NoError(t, err)
	assert.Equal(t, types.LogicalSectorSize, n)
	assert.Equal(t, plaintext, buf)
}

func TestLogicalVolumeReadBufferUsesSingleSectorCache(t *testing.T) {
	const physBlock = 3
	key := [16]byte{5}
	plaintext := bytes.Repeat([]byte{0x11}, types.LogicalSectorSize)

	cp := crypto.New()
	ciphertext, err := cp.XTSSectorEncrypt(key, key, physBlock, plaintext)
	require.NoError(t, err)

	container, handle := newTestContainer((physBlock + 1) * types.LogicalSectorSize)
	copy(handle.data[physBlock*types.LogicalSectorSize:], ciphertext)

	desc := newTestDescriptor(types.LogicalSectorSize)
	require.NoError(t, desc.Segments.Insert(types.SegmentDescriptor{
		LogicalBlockNumber:  0,
		PhysicalBlockNumber: physBlock,
		NumberOfBlocks:      1,
	}))

	lv := newLogicalVolume(container, desc)
	require.NoError(t, lv.SetKey(key))
	require.NoError(t, lv.Unlock())

	buf := make([]byte, 16)
	_, err = lv.ReadBuffer(0, buf)
	require.NoError(t, err)

	// Corrupt the backing store; a cache hit on the same sector should not notice.
	copy(handle.data[physBlock*types.LogicalSectorSize:], make([]byte, types.LogicalSectorSize))

	_, err = lv.ReadBuffer(16, buf)
	require.NoError(t, err)
	assert.Equal(t, plaintext[16:32], buf, "second read of the same sector should come from cache, not the corrupted backing store")
}

func TestLogicalVolumeSeek(t *testing.T) {
	container, _ := newTestContainer(0)
	desc := newTestDescriptor(1000)
	lv := newLogicalVolume(container, desc)

	off, err := lv.Seek(100, 0) // io.SeekStart
	require.NoError(t, err)
	assert.Equal(t, int64(100), off)

	off, err = lv.Seek(50, 1) // io.SeekCurrent
	require.NoError(t, err)
	assert.Equal(t, int64(150), off)

	off, err = lv.Seek(-10, 2) // io.SeekEnd
	require.NoError(t, err)
	assert.Equal(t, int64(990), off)

	_, err = lv.Seek(-2000, 0)
	require.Error(t, err, "a negative resulting offset must be rejected")
}

func TestLogicalVolumeCloseWipesKeyringAndRejectsFurtherReads(t *testing.T) {
	container, _ := newTestContainer(0)
	desc := newTestDescriptor(512)
	lv := newLogicalVolume(container, desc)

	require.NoError(t, lv.SetKey([16]byte{7}))
	require.NoError(t, lv.Unlock())
	require.NoError(t, lv.Close())

	assert.True(t, lv.IsLocked())
	_, err := lv.ReadBuffer(0, make([]byte, 16))
	require.Error(t, err)
}
