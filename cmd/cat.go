package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/deploymenttheory/go-fvde/internal/types"
	"github.com/deploymenttheory/go-fvde/internal/volume"
)

var (
	catIdentifier string
	catPlistPath  string
	catOffset     int64
	catLength     int64
	catCreds      credentialFlags
)

var catCmd = &cobra.Command{
	Use:   "cat <image>",
	Short: "Unlock a logical volume and write a decrypted byte range to stdout",
	Args:  cobra.ExactArgs(1),
	RunE:  runCat,
}

func init() {
	catCmd.Flags().StringVar(&catIdentifier, "uuid", "", "identifier of the logical volume to read (required)")
	catCmd.Flags().StringVar(&catPlistPath, "plist", "", "path to an out-of-band EncryptedRoot.plist file")
	catCmd.Flags().Int64Var(&catOffset, "offset", 0, "byte offset to start reading at")
	catCmd.Flags().Int64Var(&catLength, "length", -1, "number of bytes to read (defaults to the rest of the volume)")
	catCreds.register(catCmd)
	_ = catCmd.MarkFlagRequired("uuid")
	rootCmd.AddCommand(catCmd)
}

// catChunkSize bounds a single ReadBuffer call so `cat` never allocates proportionally
// to --length.
const catChunkSize = 1 << 20

func runCat(cmd *cobra.Command, args []string) error {
	identifier, err := types.ParseUUID(catIdentifier)
	if err != nil {
		return err
	}

	plistData, err := readPlistFile(catPlistPath)
	if err != nil {
		return err
	}

	container, err := volume.Open(args[0], volume.Options{Verbose: GetVerbose(), EncryptedRootPlistData: plistData})
	if err != nil {
		return err
	}
	defer container.Close()

	lv, err := container.OpenLogicalVolume(identifier)
	if err != nil {
		return err
	}
	defer lv.Close()

	if err := catCreds.apply(lv); err != nil {
		return err
	}

	remaining := catLength
	if remaining < 0 {
		remaining = lv.Size() - catOffset
	}
	offset := catOffset
	buf := make([]byte, catChunkSize)

	for remaining > 0 {
		chunk := buf
		if int64(len(chunk)) > remaining {
			chunk = chunk[:remaining]
		}
		n, err := lv.ReadBuffer(offset, chunk)
		if err != nil {
			return err
		}
		if n == 0 {
			break
		}
		if _, err := os.Stdout.Write(chunk[:n]); err != nil {
			return types.Errorf(types.ErrIoFailure, "runCat", "%v", err)
		}
		offset += int64(n)
		remaining -= int64(n)
	}
	return nil
}
