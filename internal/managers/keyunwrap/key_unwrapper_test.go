package keyunwrap

import (
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deploymenttheory/go-fvde/internal/crypto"
	"github.com/deploymenttheory/go-fvde/internal/interfaces"
	"github.com/deploymenttheory/go-fvde/internal/plist"
	"github.com/deploymenttheory/go-fvde/internal/types"
)

// passphraseWrappedKEKStructBlob builds a 284-byte PassphraseWrappedKEKStruct payload
// with the salt and wrapped-KEK type/size headers, the value bytes, and the iteration
// count at the offsets the decoder expects.
func passphraseWrappedKEKStructBlob(salt []byte, iterations uint32, wrappedKEK []byte) []byte {
	blob := make([]byte, 284)
	binary.LittleEndian.PutUint32(blob[passphraseSaltTLVOffset:], passphraseSaltValueType)
	binary.LittleEndian.PutUint32(blob[passphraseSaltTLVOffset+4:], passphraseSaltLen)
	copy(blob[passphraseSaltOffset:], salt)
	binary.LittleEndian.PutUint32(blob[passphraseWrappedKEKTLVOffset:], passphraseWrappedKEKValueType)
	binary.LittleEndian.PutUint32(blob[passphraseWrappedKEKTLVOffset+4:], passphraseWrappedKEKLen)
	copy(blob[passphraseWrappedKEKOffset:], wrappedKEK)
	binary.LittleEndian.PutUint32(blob[passphraseIterationsOffset:passphraseIterationsOffset+4], iterations)
	return blob
}

// kekWrappedVolumeKeyStructBlob builds a 256-byte KEKWrappedVolumeKeyStruct payload with
// the wrapped volume master key at the offset the decoder expects.
func kekWrappedVolumeKeyStructBlob(wrappedVMK []byte) []byte {
	blob := make([]byte, 256)
	copy(blob[kekWrappedVolumeKeyOffset:], wrappedVMK)
	return blob
}

// encryptionContextPlistXML renders a minimal EncryptedRoot.plist tree carrying one
// CryptoUsers entry and a two-element WrappedVolumeKeys array, matching the shape
// UnwrapWithPassphrase expects.
func encryptionContextPlistXML(userBlob, vmkBlob []byte) []byte {
	return []byte(fmt.Sprintf(`<dict>
	<key>CryptoUsers</key>
	<array>
		<dict>
			<key>PassphraseWrappedKEKStruct</key>
			<data>%s</data>
		</dict>
	</array>
	<key>WrappedVolumeKeys</key>
	<array>
		<dict/>
		<dict>
			<key>KEKWrappedVolumeKeyStruct</key>
			<data>%s</data>
		</dict>
	</array>
	<key>ConversionInfo</key>
	<string>Fully Encrypted</string>
</dict>`, base64.StdEncoding.EncodeToString(userBlob), base64.StdEncoding.EncodeToString(vmkBlob)))
}

func TestUnwrapWithPassphraseRoundTrip(t *testing.T) {
	p := crypto.New()

	passphrase := []byte("correct horse battery staple")
	salt := make([]byte, 16)
	for i := range salt {
		salt[i] = byte(i + 1)
	}
	const iterations = 1000

	kek := []byte{0x10, 0x11, 0x12, 0x13, 0x14, 0x15, 0x16, 0x17, 0x18, 0x19, 0x1a, 0x1b, 0x1c, 0x1d, 0x1e, 0x1f}
	vmk := []byte{0x20, 0x21, 0x22, 0x23, 0x24, 0x25, 0x26, 0x27, 0x28, 0x29, 0x2a, 0x2b, 0x2c, 0x2d, 0x2e, 0x2f}

	passphraseKey := p.PBKDF2SHA256(passphrase, salt, iterations, types.VolumeMasterKeySize)
	wrappedKEK, err := p.KeyWrap(passphraseKey, kek)
	require.NoError(t, err)
	wrappedVMK, err := p.KeyWrap(kek, vmk)
	require.NoError(t, err)

	userBlob := passphraseWrappedKEKStructBlob(salt, iterations, wrappedKEK)
	vmkBlob := kekWrappedVolumeKeyStructBlob(wrappedVMK)
	xmlData := encryptionContextPlistXML(userBlob, vmkBlob)

	parser := plist.New()
	root, err := parser.ParseFragment(xmlData)
	require.NoError(t, err)

	unwrapper := NewKeyUnwrapper(p)
	keyring := &types.Keyring{}
	result, err := unwrapper.UnwrapWithPassphrase(root, passphrase, keyring)
	require.NoError(t, err)
	assert.Equal(t, interfaces.UnwrapFound, result)
	assert.True(t, keyring.Unlocked())
	assert.Equal(t, [16]byte(vmk), keyring.VolumeMasterKey)
	assert.Equal(t, keyring.VolumeMasterKey, keyring.VolumeTweakKey, "self-tweak convention: tweak key mirrors the master key")

	status, ok := ConversionStatus(root)
	require.True(t, ok)
	assert.Equal(t, "Fully Encrypted", status)
}

func TestUnwrapWithPassphraseWrongPassphraseIsNotFound(t *testing.T) {
	p := crypto.New()

	salt := make([]byte, 16)
	const iterations = 1000
	kek := make([]byte, 16)
	vmk := make([]byte, 16)

	passphraseKey := p.PBKDF2SHA256([]byte("correct"), salt, iterations, types.VolumeMasterKeySize)
	wrappedKEK, err := p.KeyWrap(passphraseKey, kek)
	require.NoError(t, err)
	wrappedVMK, err := p.KeyWrap(kek, vmk)
	require.NoError(t, err)

	xmlData := encryptionContextPlistXML(
		passphraseWrappedKEKStructBlob(salt, iterations, wrappedKEK),
		kekWrappedVolumeKeyStructBlob(wrappedVMK),
	)

	parser := plist.New()
	root, err := parser.ParseFragment(xmlData)
	require.NoError(t, err)

	unwrapper := NewKeyUnwrapper(p)
	keyring := &types.Keyring{}
	result, err := unwrapper.UnwrapWithPassphrase(root, []byte("wrong-passphrase"), keyring)
	require.NoError(t, err)
	assert.Equal(t, interfaces.UnwrapNotFound, result)
	assert.False(t, keyring.Unlocked())
}

func TestUnwrapWithPassphraseMissingCryptoUsersIsError(t *testing.T) {
	p := crypto.New()
	parser := plist.New()
	root, err := parser.ParseFragment([]byte(`<dict></dict>`))
	require.NoError(t, err)

	unwrapper := NewKeyUnwrapper(p)
	keyring := &types.Keyring{}
	result, err := unwrapper.UnwrapWithPassphrase(root, []byte("x"), keyring)
	require.Error(t, err)
	assert.Equal(t, interfaces.UnwrapError, result)
}

func TestConversionStatusAbsent(t *testing.T) {
	parser := plist.New()
	root, err := parser.ParseFragment([]byte(`<dict></dict>`))
	require.NoError(t, err)

	_, ok := ConversionStatus(root)
	assert.False(t, ok)
}
