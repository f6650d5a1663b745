// File: internal/interfaces/keyunwrap.go
package interfaces

import "github.com/deploymenttheory/go-fvde/internal/types"

// UnwrapResult reports the outcome of a key-unwrap attempt: Found means the keyring now
// holds a valid volume master key; NotFound means every CryptoUsers entry was tried and
// none unwrapped to a valid A6 prefix; Error means a primitive or parse failure
// unrelated to passphrase correctness occurred.
type UnwrapResult int

const (
	UnwrapNotFound UnwrapResult = iota
	UnwrapFound
	UnwrapError
)

// PlistDecryptor decrypts a standalone EncryptedRoot.plist file with the physical
// volume's key_data pair and installs the parsed plist on success.
type PlistDecryptor interface {
	DecryptPlistFile(data []byte, xtsDataKey, xtsTweakKey [16]byte) (PlistProperty, error)
}

// KeyUnwrapper implements the passphrase -> KEK -> volume-master-key chain.
type KeyUnwrapper interface {
	// UnwrapWithPassphrase walks CryptoUsers trying passphrase against each entry's
	// PassphraseWrappedKEKStruct, then unwraps the volume master key from
	// WrappedVolumeKeys[1]. On UnwrapFound, keyring holds the recovered key material.
	UnwrapWithPassphrase(plist PlistProperty, passphrase []byte, keyring *types.Keyring) (UnwrapResult, error)
}
