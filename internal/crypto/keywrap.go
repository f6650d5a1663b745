package crypto

import (
	"crypto/aes"
	"encoding/binary"

	"github.com/deploymenttheory/go-fvde/internal/types"
)

// keyWrapDefaultIV is the RFC 3394 default integrity value, repeated here as a local
// byte slice for the wrap/unwrap arithmetic (types.KeyWrapIV is the same value).
var keyWrapDefaultIV = [8]byte{0xA6, 0xA6, 0xA6, 0xA6, 0xA6, 0xA6, 0xA6, 0xA6}

// KeyUnwrap implements RFC 3394 AES key unwrap with the default IV. A recovered
// integrity value that does not match the IV fails with ErrPasswordIncorrect, which the
// key-unwrap chain treats as "try the next CryptoUsers entry".
func (p *Primitives) KeyUnwrap(kek, ciphertext []byte) ([]byte, error) {
	if len(kek) != 16 && len(kek) != 24 && len(kek) != 32 {
		return nil, types.Errorf(types.ErrCryptoFailure, "KeyUnwrap", "invalid kek length %d", len(kek))
	}
	if len(ciphertext) < 16 || len(ciphertext)%8 != 0 {
		return nil, types.Errorf(types.ErrCryptoFailure, "KeyUnwrap", "invalid ciphertext length %d", len(ciphertext))
	}

	block, err := aes.NewCipher(kek)
	if err != nil {
		return nil, types.Errorf(types.ErrCryptoFailure, "KeyUnwrap", "%v", err)
	}

	n := len(ciphertext)/8 - 1
	var a [8]byte
	copy(a[:], ciphertext[0:8])
	r := make([][8]byte, n)
	for i := 0; i < n; i++ {
		copy(r[i][:], ciphertext[8*(i+1):8*(i+2)])
	}

	for j := 5; j >= 0; j-- {
		for i := n; i >= 1; i-- {
			var buf [16]byte
			copy(buf[0:8], a[:])
			copy(buf[8:16], r[i-1][:])
			t := uint64(n*j + i)
			var tb [8]byte
			binary.BigEndian.PutUint64(tb[:], t)
			for k := 0; k < 8; k++ {
				buf[k] ^= tb[k]
			}
			block.Decrypt(buf[:], buf[:])
			copy(a[:], buf[0:8])
			copy(r[i-1][:], buf[8:16])
		}
	}

	if a != keyWrapDefaultIV {
		return nil, types.NewError(types.ErrPasswordIncorrect, "KeyUnwrap", nil)
	}

	out := make([]byte, 8*n)
	for i := 0; i < n; i++ {
		copy(out[8*i:8*i+8], r[i][:])
	}
	return out, nil
}

// KeyWrap implements RFC 3394 AES key wrap with the default IV (used by tests to
// construct fixtures and to assert the round-trip property).
func (p *Primitives) KeyWrap(kek, plaintext []byte) ([]byte, error) {
	if len(plaintext) < 16 || len(plaintext)%8 != 0 {
		return nil, types.Errorf(types.ErrCryptoFailure, "KeyWrap", "invalid plaintext length %d", len(plaintext))
	}
	block, err := aes.NewCipher(kek)
	if err != nil {
		return nil, types.Errorf(types.ErrCryptoFailure, "KeyWrap", "%v", err)
	}

	n := len(plaintext) / 8
	a := keyWrapDefaultIV
	r := make([][8]byte, n)
	for i := 0; i < n; i++ {
		copy(r[i][:], plaintext[8*i:8*i+8])
	}

	for j := 0; j <= 5; j++ {
		for i := 1; i <= n; i++ {
			var buf [16]byte
			copy(buf[0:8], a[:])
			copy(buf[8:16], r[i-1][:])
			block.Encrypt(buf[:], buf[:])
			copy(a[:], buf[0:8])
			t := uint64(n*j + i)
			var tb [8]byte
			binary.BigEndian.PutUint64(tb[:], t)
			for k := 0; k < 8; k++ {
				a[k] ^= tb[k]
			}
			copy(r[i-1][:], buf[8:16])
		}
	}

	out := make([]byte, 8*(n+1))
	copy(out[0:8], a[:])
	for i := 0; i < n; i++ {
		copy(out[8*(i+1):8*(i+2)], r[i][:])
	}
	return out, nil
}
