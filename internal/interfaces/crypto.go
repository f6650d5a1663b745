// File: internal/interfaces/crypto.go
package interfaces

// CryptoPrimitives is the crypto primitives façade: AES-XTS sector crypt, AES
// key-wrap/unwrap, PBKDF2-HMAC-SHA256, DEFLATE, and the Fletcher checksum. All
// primitives fail with types.ErrCryptoFailure, except KeyUnwrap's integrity-value
// mismatch, which fails with types.ErrPasswordIncorrect.
type CryptoPrimitives interface {
	// XTSSectorDecrypt decrypts in-place-sized data at the given sector number using the
	// sector-tweak convention: the tweak is the AES-ECB encryption of the little-endian
	// sector number under tweakKey, advanced per 16-byte sub-block by GF(2^128) doubling.
	XTSSectorDecrypt(dataKey, tweakKey [16]byte, sectorNumber uint64, ciphertext []byte) ([]byte, error)

	// XTSSectorEncrypt is the inverse of XTSSectorDecrypt, used by tests to assert the
	// round-trip property.
	XTSSectorEncrypt(dataKey, tweakKey [16]byte, sectorNumber uint64, plaintext []byte) ([]byte, error)

	// KeyUnwrap implements RFC 3394 AES key unwrap with the default IV. The recovered
	// integrity value is checked here: a mismatch fails with types.ErrPasswordIncorrect,
	// and on success only the unwrapped key bytes (without the 8-byte prefix) are returned.
	KeyUnwrap(kek, ciphertext []byte) ([]byte, error)

	// KeyWrap implements RFC 3394 AES key wrap with the default IV, used by tests.
	KeyWrap(kek, plaintext []byte) ([]byte, error)

	// PBKDF2SHA256 derives outLen bytes from password and salt.
	PBKDF2SHA256(password, salt []byte, iterations, outLen int) []byte

	// DeflateDecompress inflates zlib-wrapped DEFLATE data, given the expected output length.
	DeflateDecompress(in []byte, outLen int) ([]byte, error)

	// FletcherChecksum computes the Fletcher-style checksum used by volume headers and
	// metadata block headers, seeded by the header's checksum_iv/algorithm-selector
	// field.
	FletcherChecksum(data []byte, iv uint32) uint32
}
