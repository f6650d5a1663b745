package keyunwrap

import (
	"encoding/binary"
	"errors"

	"github.com/deploymenttheory/go-fvde/internal/interfaces"
	"github.com/deploymenttheory/go-fvde/internal/types"
)

// Plist dictionary keys consumed from the EncryptedRoot.plist tree.
const (
	cryptoUsersKey                = "CryptoUsers"
	wrappedVolumeKeysKey          = "WrappedVolumeKeys"
	passphraseWrappedKEKStructKey = "PassphraseWrappedKEKStruct"
	kekWrappedVolumeKeyStructKey  = "KEKWrappedVolumeKeyStruct"
	conversionInfoKey             = "ConversionInfo"
)

// Byte offsets within the 284-byte PassphraseWrappedKEKStruct blob. The salt and
// wrapped-KEK fields are 8-byte type/size headers followed by the value bytes; the
// iteration count is a bare u32.
const (
	passphraseSaltTLVOffset       = 0
	passphraseSaltOffset          = 8
	passphraseSaltLen             = 16
	passphraseIterationsOffset    = 168
	passphraseWrappedKEKTLVOffset = 24
	passphraseWrappedKEKOffset    = 32
	passphraseWrappedKEKLen       = 24
)

// Expected type/size header values for the two PassphraseWrappedKEKStruct fields.
const (
	passphraseSaltValueType       = 0x00000003
	passphraseWrappedKEKValueType = 0x00000010
)

// Byte offsets within the 256-byte KEKWrappedVolumeKeyStruct blob.
const (
	kekWrappedVolumeKeyOffset = 8
	kekWrappedVolumeKeyLen    = 24
)

// KeyUnwrapper implements interfaces.KeyUnwrapper.
type KeyUnwrapper struct {
	crypto interfaces.CryptoPrimitives
}

// NewKeyUnwrapper wires the crypto façade used for PBKDF2 derivation and AES key unwrap.
func NewKeyUnwrapper(crypto interfaces.CryptoPrimitives) *KeyUnwrapper {
	return &KeyUnwrapper{crypto: crypto}
}

var _ interfaces.KeyUnwrapper = (*KeyUnwrapper)(nil)

// UnwrapWithPassphrase implements interfaces.KeyUnwrapper.UnwrapWithPassphrase.
func (u *KeyUnwrapper) UnwrapWithPassphrase(plist interfaces.PlistProperty, passphrase []byte, keyring *types.Keyring) (interfaces.UnwrapResult, error) {
	cryptoUsers, ok := plist.SubPropertyByName(cryptoUsersKey)
	if !ok {
		return interfaces.UnwrapError, types.Errorf(types.ErrUnsupportedValue, "UnwrapWithPassphrase", "%s not present", cryptoUsersKey)
	}
	count, err := cryptoUsers.ArrayLen()
	if err != nil {
		return interfaces.UnwrapError, err
	}

	var kek []byte
	for i := 0; i < count; i++ {
		entry, err := cryptoUsers.ArrayEntry(i)
		if err != nil {
			return interfaces.UnwrapError, err
		}
		k, found, err := u.tryUser(entry, passphrase)
		if err != nil {
			return interfaces.UnwrapError, err
		}
		if found {
			kek = k
			break
		}
	}
	if kek == nil {
		return interfaces.UnwrapNotFound, nil
	}
	defer wipe(kek)

	volumeMasterKey, err := u.unwrapVolumeMasterKey(plist, kek)
	if err != nil {
		return interfaces.UnwrapError, err
	}
	defer wipe(volumeMasterKey)

	copy(keyring.VolumeMasterKey[:], volumeMasterKey)
	// The chain recovers only the 16-byte volume master key; no separate tweak key is
	// ever unwrapped from the plist, so the logical-volume sector-read tweak key is set
	// equal to the master key (self-tweak convention).
	keyring.VolumeTweakKey = keyring.VolumeMasterKey
	keyring.SetUnlocked(true)
	return interfaces.UnwrapFound, nil
}

// tryUser attempts a single CryptoUsers entry, returning the recovered 16-byte KEK and
// true on success, or false (not an error) when the passphrase does not unwrap this
// entry's wrapped KEK.
func (u *KeyUnwrapper) tryUser(entry interfaces.PlistProperty, passphrase []byte) ([]byte, bool, error) {
	structProp, ok := entry.SubPropertyByName(passphraseWrappedKEKStructKey)
	if !ok {
		return nil, false, types.Errorf(types.ErrUnsupportedValue, "tryUser", "%s not present", passphraseWrappedKEKStructKey)
	}
	blob, err := structProp.ValueData()
	if err != nil {
		return nil, false, err
	}
	if len(blob) < passphraseIterationsOffset+4 {
		return nil, false, types.Errorf(types.ErrOutOfBounds, "tryUser", "%s too small: %d bytes", passphraseWrappedKEKStructKey, len(blob))
	}

	saltType := binary.LittleEndian.Uint32(blob[passphraseSaltTLVOffset : passphraseSaltTLVOffset+4])
	saltSize := binary.LittleEndian.Uint32(blob[passphraseSaltTLVOffset+4 : passphraseSaltTLVOffset+8])
	if saltType != passphraseSaltValueType || saltSize != passphraseSaltLen {
		return nil, false, types.Errorf(types.ErrUnsupportedValue, "tryUser", "salt value type 0x%08x size %d", saltType, saltSize)
	}
	kekType := binary.LittleEndian.Uint32(blob[passphraseWrappedKEKTLVOffset : passphraseWrappedKEKTLVOffset+4])
	kekSize := binary.LittleEndian.Uint32(blob[passphraseWrappedKEKTLVOffset+4 : passphraseWrappedKEKTLVOffset+8])
	if kekType != passphraseWrappedKEKValueType || kekSize != passphraseWrappedKEKLen {
		return nil, false, types.Errorf(types.ErrUnsupportedValue, "tryUser", "wrapped KEK value type 0x%08x size %d", kekType, kekSize)
	}

	salt := blob[passphraseSaltOffset : passphraseSaltOffset+passphraseSaltLen]
	iterations := binary.LittleEndian.Uint32(blob[passphraseIterationsOffset : passphraseIterationsOffset+4])
	wrappedKEK := blob[passphraseWrappedKEKOffset : passphraseWrappedKEKOffset+passphraseWrappedKEKLen]

	passphraseKey := u.crypto.PBKDF2SHA256(passphrase, salt, int(iterations), types.VolumeMasterKeySize)
	defer wipe(passphraseKey)

	kek, err := u.crypto.KeyUnwrap(passphraseKey, wrappedKEK)
	if err != nil {
		if isPasswordIncorrect(err) {
			return nil, false, nil
		}
		return nil, false, types.Errorf(types.ErrCryptoFailure, "tryUser", "%v", err)
	}
	return kek, true, nil
}

// isPasswordIncorrect reports whether err is (or wraps) a types.Error carrying
// ErrPasswordIncorrect, the "try next user" signal from the crypto façade's integrated
// A6-prefix check.
func isPasswordIncorrect(err error) bool {
	var fvdeErr *types.Error
	if errors.As(err, &fvdeErr) {
		return fvdeErr.Kind == types.ErrPasswordIncorrect
	}
	return false
}

// unwrapVolumeMasterKey locates WrappedVolumeKeys[1] and unwraps its
// KEKWrappedVolumeKeyStruct ciphertext under kek.
func (u *KeyUnwrapper) unwrapVolumeMasterKey(plist interfaces.PlistProperty, kek []byte) ([]byte, error) {
	wrappedVolumeKeys, ok := plist.SubPropertyByName(wrappedVolumeKeysKey)
	if !ok {
		return nil, types.Errorf(types.ErrUnsupportedValue, "unwrapVolumeMasterKey", "%s not present", wrappedVolumeKeysKey)
	}
	entry, err := wrappedVolumeKeys.ArrayEntry(1)
	if err != nil {
		return nil, err
	}
	structProp, ok := entry.SubPropertyByName(kekWrappedVolumeKeyStructKey)
	if !ok {
		return nil, types.Errorf(types.ErrUnsupportedValue, "unwrapVolumeMasterKey", "%s not present", kekWrappedVolumeKeyStructKey)
	}
	blob, err := structProp.ValueData()
	if err != nil {
		return nil, err
	}
	if len(blob) < kekWrappedVolumeKeyOffset+kekWrappedVolumeKeyLen {
		return nil, types.Errorf(types.ErrOutOfBounds, "unwrapVolumeMasterKey", "%s too small: %d bytes", kekWrappedVolumeKeyStructKey, len(blob))
	}
	wrapped := blob[kekWrappedVolumeKeyOffset : kekWrappedVolumeKeyOffset+kekWrappedVolumeKeyLen]

	vmk, err := u.crypto.KeyUnwrap(kek, wrapped)
	if err != nil {
		return nil, types.Errorf(types.ErrCryptoFailure, "unwrapVolumeMasterKey", "%v", err)
	}
	return vmk, nil
}

// ConversionStatus reports the EncryptedRoot.plist's ConversionInfo sub-property, if
// present, as a read-only diagnostic never consulted by the unwrap chain itself.
func ConversionStatus(plist interfaces.PlistProperty) (string, bool) {
	info, ok := plist.SubPropertyByName(conversionInfoKey)
	if !ok {
		return "", false
	}
	s, err := info.ValueString()
	if err != nil {
		return "", false
	}
	return s, true
}

// wipe zeros key material in place.
func wipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
