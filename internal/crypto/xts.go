package crypto

import (
	"crypto/aes"
	"encoding/binary"

	"github.com/deploymenttheory/go-fvde/internal/types"
)

// gf128Double advances a 16-byte tweak by one step of GF(2^128) doubling under the
// primitive polynomial x^128+x^7+x^2+x+1, treating the tweak as a little-endian integer.
func gf128Double(t *[16]byte) {
	var carry byte
	for i := 0; i < 16; i++ {
		next := t[i] >> 7
		t[i] = (t[i] << 1) | carry
		carry = next
	}
	if carry != 0 {
		t[0] ^= 0x87
	}
}

// xtsSectorCrypt implements aes_xts_sector_crypt: the little-endian 16-byte
// representation of sectorNumber is AES-ECB-encrypted under tweakKey to form the initial
// tweak block; each 16-byte sub-block of data is XOR-tweaked, AES-ECB transformed under
// dataKey (encrypt or decrypt per encryptMode), XOR-tweaked again; the tweak is advanced
// by gf128Double between sub-blocks. len(data) must be a multiple of 16 (ciphertext
// stealing is never required by this format).
func xtsSectorCrypt(dataKey, tweakKey [16]byte, sectorNumber uint64, data []byte, encryptMode bool) ([]byte, error) {
	if len(data)%aes.BlockSize != 0 {
		return nil, types.Errorf(types.ErrCryptoFailure, "xtsSectorCrypt", "length %d is not a multiple of %d", len(data), aes.BlockSize)
	}

	tweakCipher, err := aes.NewCipher(tweakKey[:])
	if err != nil {
		return nil, types.Errorf(types.ErrCryptoFailure, "xtsSectorCrypt", "tweak key: %v", err)
	}
	dataCipher, err := aes.NewCipher(dataKey[:])
	if err != nil {
		return nil, types.Errorf(types.ErrCryptoFailure, "xtsSectorCrypt", "data key: %v", err)
	}

	var sectorBlock [16]byte
	binary.LittleEndian.PutUint64(sectorBlock[0:8], sectorNumber)

	var tweak [16]byte
	tweakCipher.Encrypt(tweak[:], sectorBlock[:])

	out := make([]byte, len(data))
	var block [16]byte
	for offset := 0; offset < len(data); offset += aes.BlockSize {
		for i := 0; i < 16; i++ {
			block[i] = data[offset+i] ^ tweak[i]
		}
		if encryptMode {
			dataCipher.Encrypt(block[:], block[:])
		} else {
			dataCipher.Decrypt(block[:], block[:])
		}
		for i := 0; i < 16; i++ {
			out[offset+i] = block[i] ^ tweak[i]
		}
		gf128Double(&tweak)
	}
	return out, nil
}

// XTSSectorDecrypt implements interfaces.CryptoPrimitives.XTSSectorDecrypt.
func (p *Primitives) XTSSectorDecrypt(dataKey, tweakKey [16]byte, sectorNumber uint64, ciphertext []byte) ([]byte, error) {
	return xtsSectorCrypt(dataKey, tweakKey, sectorNumber, ciphertext, false)
}

// XTSSectorEncrypt implements interfaces.CryptoPrimitives.XTSSectorEncrypt.
func (p *Primitives) XTSSectorEncrypt(dataKey, tweakKey [16]byte, sectorNumber uint64, plaintext []byte) ([]byte, error) {
	return xtsSectorCrypt(dataKey, tweakKey, sectorNumber, plaintext, true)
}
