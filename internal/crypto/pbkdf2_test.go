package crypto

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPBKDF2SHA256Deterministic(t *testing.T) {
	p := New()
	salt := []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16}

	key1 := p.PBKDF2SHA256([]byte("correct horse"), salt, 41000, 16)
	key2 := p.PBKDF2SHA256([]byte("correct horse"), salt, 41000, 16)
	require.Equal(t, key1, key2)
	require.Len(t, key1, 16)

	other := p.PBKDF2SHA256([]byte("wrong password"), salt, 41000, 16)
	require.NotEqual(t, key1, other)
}
