// File: internal/interfaces/volume.go
package interfaces

import "github.com/deploymenttheory/go-fvde/internal/types"

// LogicalVolumeReader exposes one logical volume as a byte-addressable, transparently
// decrypted stream.
type LogicalVolumeReader interface {
	ReadBuffer(offset int64, buf []byte) (int, error)
	Seek(offset int64, whence int) (int64, error)
	Offset() int64
	Size() int64
	Identifier() types.UUID
	IsLocked() bool
	Unlock() error
	SetKey(masterKey [16]byte) error
	SetPassphrase(passphrase []byte) error
	SetRecoveryPassphrase(passphrase []byte) error

	// SetPassphraseUTF16 and SetRecoveryPassphraseUTF16 accept a UTF-16LE-encoded
	// passphrase, transcoded to UTF-8 before PBKDF2 derivation.
	SetPassphraseUTF16(passphraseUTF16LE []byte) error
	SetRecoveryPassphraseUTF16(passphraseUTF16LE []byte) error

	MissingPhysicalVolumes() []uint16
	Close() error
}
