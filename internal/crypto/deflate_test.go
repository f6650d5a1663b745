package crypto

import (
	"bytes"
	"compress/zlib"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDeflateDecompressRoundTrip(t *testing.T) {
	p := New()
	original := []byte(`<?xml version="1.0" encoding="UTF-8"?><dict></dict>`)

	var compressed bytes.Buffer
	w := zlib.NewWriter(&compressed)
	_, err := w.Write(original)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	out, err := p.DeflateDecompress(compressed.Bytes(), len(original))
	require.NoError(t, err)
	require.Equal(t, original, out)
}

func TestDeflateDecompressLengthMismatch(t *testing.T) {
	p := New()
	var compressed bytes.Buffer
	w := zlib.NewWriter(&compressed)
	_, _ = w.Write([]byte("short"))
	require.NoError(t, w.Close())

	_, err := p.DeflateDecompress(compressed.Bytes(), 9999)
	require.Error(t, err)
}
