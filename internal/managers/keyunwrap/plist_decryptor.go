// Package keyunwrap implements the EncryptedRoot.plist decrypt step and the
// passphrase -> KEK -> volume-master-key unwrap chain.
package keyunwrap

import (
	"bytes"

	"github.com/deploymenttheory/go-fvde/internal/interfaces"
	"github.com/deploymenttheory/go-fvde/internal/types"
)

// PlistDecryptor implements interfaces.PlistDecryptor.
type PlistDecryptor struct {
	crypto interfaces.CryptoPrimitives
	parser interfaces.PlistParser
}

// NewPlistDecryptor wires the crypto façade and plist parser used to recover a
// standalone EncryptedRoot.plist file.
func NewPlistDecryptor(crypto interfaces.CryptoPrimitives, parser interfaces.PlistParser) *PlistDecryptor {
	return &PlistDecryptor{crypto: crypto, parser: parser}
}

var _ interfaces.PlistDecryptor = (*PlistDecryptor)(nil)

// xmlPlistPrefix is the byte sequence expected at the start of a successfully decrypted
// plist file.
var xmlPlistPrefix = []byte("<?xml")

// DecryptPlistFile implements interfaces.PlistDecryptor.DecryptPlistFile: AES-XTS
// decrypts data with the physical-volume key_data pair at sector number 0, the entire
// file as one XTS operation, and parses the result if it begins with the XML prolog.
func (d *PlistDecryptor) DecryptPlistFile(data []byte, xtsDataKey, xtsTweakKey [16]byte) (interfaces.PlistProperty, error) {
	if len(data) == 0 || len(data)%16 != 0 {
		return nil, types.Errorf(types.ErrInvalidArgument, "DecryptPlistFile", "plist file length %d is not a non-zero multiple of 16", len(data))
	}

	plaintext, err := d.crypto.XTSSectorDecrypt(xtsDataKey, xtsTweakKey, 0, data)
	if err != nil {
		return nil, types.Errorf(types.ErrCryptoFailure, "DecryptPlistFile", "%v", err)
	}
	if !bytes.HasPrefix(plaintext, xmlPlistPrefix) {
		return nil, types.Errorf(types.ErrUnsupportedValue, "DecryptPlistFile", "decrypted file does not begin with %q", xmlPlistPrefix)
	}

	root, err := d.parser.Parse(plaintext)
	if err != nil {
		return nil, types.Errorf(types.ErrUnsupportedValue, "DecryptPlistFile", "%v", err)
	}
	return root, nil
}
