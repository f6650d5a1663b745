package crypto

import (
	"bytes"
	"compress/zlib"

	"github.com/deploymenttheory/go-fvde/internal/types"
)

// DeflateDecompress implements interfaces.CryptoPrimitives.DeflateDecompress, inflating
// the zlib-wrapped DEFLATE stream carried by the compressed-plist chain and verifying the
// result against the caller-supplied expected length.
func (p *Primitives) DeflateDecompress(in []byte, outLen int) ([]byte, error) {
	reader, err := zlib.NewReader(bytes.NewReader(in))
	if err != nil {
		return nil, types.Errorf(types.ErrCryptoFailure, "DeflateDecompress", "%v", err)
	}
	defer reader.Close()

	var out bytes.Buffer
	out.Grow(outLen)
	if _, err := out.ReadFrom(reader); err != nil {
		return nil, types.Errorf(types.ErrCryptoFailure, "DeflateDecompress", "%v", err)
	}
	if out.Len() != outLen {
		return nil, types.Errorf(types.ErrCryptoFailure, "DeflateDecompress", "produced %d bytes, expected %d", out.Len(), outLen)
	}
	return out.Bytes(), nil
}
