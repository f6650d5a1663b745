package cmd

import (
	"encoding/hex"
	"os"

	"github.com/spf13/cobra"

	"github.com/deploymenttheory/go-fvde/internal/interfaces"
	"github.com/deploymenttheory/go-fvde/internal/types"
)

// credentialFlags holds the mutually-exclusive credential options shared by unlock and
// cat: exactly one of passphrase, recovery passphrase, or raw key unlocks a logical
// volume.
type credentialFlags struct {
	passphrase         string
	recoveryPassphrase string
	keyHex             string
}

// register attaches the credential flags to cmd.
func (c *credentialFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&c.passphrase, "passphrase", "", "user passphrase to unlock the logical volume")
	cmd.Flags().StringVar(&c.recoveryPassphrase, "recovery-passphrase", "", "recovery passphrase to unlock the logical volume")
	cmd.Flags().StringVar(&c.keyHex, "key", "", "32 hex character (16 byte) raw volume master key")
	cmd.MarkFlagsMutuallyExclusive("passphrase", "recovery-passphrase", "key")
}

// apply records whichever credential was supplied on lv and runs Unlock.
func (c *credentialFlags) apply(lv interfaces.LogicalVolumeReader) error {
	switch {
	case c.keyHex != "":
		raw, err := hex.DecodeString(c.keyHex)
		if err != nil {
			return types.Errorf(types.ErrInvalidArgument, "credentialFlags.apply", "--key is not valid hex: %v", err)
		}
		if len(raw) != types.VolumeMasterKeySize {
			return types.Errorf(types.ErrInvalidArgument, "credentialFlags.apply", "--key must decode to %d bytes, got %d", types.VolumeMasterKeySize, len(raw))
		}
		var key [16]byte
		copy(key[:], raw)
		if err := lv.SetKey(key); err != nil {
			return err
		}
	case c.passphrase != "":
		if err := lv.SetPassphrase([]byte(c.passphrase)); err != nil {
			return err
		}
	case c.recoveryPassphrase != "":
		if err := lv.SetRecoveryPassphrase([]byte(c.recoveryPassphrase)); err != nil {
			return err
		}
	default:
		return types.Errorf(types.ErrInvalidArgument, "credentialFlags.apply", "one of --passphrase, --recovery-passphrase, or --key is required")
	}
	return lv.Unlock()
}

// readPlistFile reads an out-of-band EncryptedRoot.plist file, returning nil if path is
// empty.
func readPlistFile(path string) ([]byte, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, types.Errorf(types.ErrIoFailure, "readPlistFile", "%v", err)
	}
	return data, nil
}
