// Package crypto implements the cryptographic primitives façade consumed by every other
// package in this module: AES-XTS sector encryption in the Core Storage sector-tweak
// convention, RFC 3394 AES key wrap/unwrap, PBKDF2-HMAC-SHA256 passphrase derivation,
// zlib-wrapped DEFLATE decompression, and the Fletcher-style block checksum.
//
// None of these are novel cryptography; the package exists so the rest of the module
// depends on a single narrow interface (interfaces.CryptoPrimitives) instead of importing
// crypto/aes, golang.org/x/crypto/pbkdf2, and compress/zlib directly throughout.
package crypto
