package crypto

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKeyWrapRoundTrip(t *testing.T) {
	p := New()
	kek := []byte("0123456789ABCDEF") // 16-byte KEK
	plaintext := []byte("thisIsAVolumeKey") // 16-byte multiple

	wrapped, err := p.KeyWrap(kek, plaintext)
	require.NoError(t, err)
	require.Len(t, wrapped, len(plaintext)+8)

	unwrapped, err := p.KeyUnwrap(kek, wrapped)
	require.NoError(t, err)
	require.Equal(t, plaintext, unwrapped)
}

func TestKeyUnwrapRejectsWrongKEK(t *testing.T) {
	p := New()
	kek := []byte("0123456789ABCDEF")
	wrongKEK := []byte("FEDCBA9876543210")
	plaintext := []byte("thisIsAVolumeKey")

	wrapped, err := p.KeyWrap(kek, plaintext)
	require.NoError(t, err)

	_, err = p.KeyUnwrap(wrongKEK, wrapped)
	require.Error(t, err)
}

// TestKeyUnwrapRFC3394Vector exercises the wrap/unwrap arithmetic against RFC 3394's
// 128-bit key, 128-bit key data test vector.
func TestKeyUnwrapRFC3394Vector(t *testing.T) {
	p := New()
	kek := []byte{
		0x00, 0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07,
		0x08, 0x09, 0x0A, 0x0B, 0x0C, 0x0D, 0x0E, 0x0F,
	}
	plaintext := []byte{
		0x00, 0x11, 0x22, 0x33, 0x44, 0x55, 0x66, 0x77,
		0x88, 0x99, 0xAA, 0xBB, 0xCC, 0xDD, 0xEE, 0xFF,
	}
	expectedCiphertext := []byte{
		0x1F, 0xA6, 0x8B, 0x0A, 0x81, 0x12, 0xB4, 0x47,
		0xAE, 0xF3, 0x4B, 0xD8, 0xFB, 0x5A, 0x7B, 0x82,
		0x9D, 0x3E, 0x86, 0x23, 0x71, 0xD2, 0xCF, 0xE5,
	}

	wrapped, err := p.KeyWrap(kek, plaintext)
	require.NoError(t, err)
	require.Equal(t, expectedCiphertext, wrapped)

	unwrapped, err := p.KeyUnwrap(kek, expectedCiphertext)
	require.NoError(t, err)
	require.Equal(t, plaintext, unwrapped)
}
