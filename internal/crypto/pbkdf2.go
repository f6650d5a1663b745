package crypto

import (
	"crypto/sha256"

	"golang.org/x/crypto/pbkdf2"
)

// PBKDF2SHA256 implements interfaces.CryptoPrimitives.PBKDF2SHA256, deriving outLen
// bytes of passphrase key material.
func (p *Primitives) PBKDF2SHA256(password, salt []byte, iterations, outLen int) []byte {
	return pbkdf2.Key(password, salt, iterations, outLen, sha256.New)
}
