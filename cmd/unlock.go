package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/deploymenttheory/go-fvde/internal/types"
	"github.com/deploymenttheory/go-fvde/internal/volume"
)

var (
	unlockIdentifier string
	unlockPlistPath  string
	unlockCreds      credentialFlags
)

var unlockCmd = &cobra.Command{
	Use:   "unlock <image>",
	Short: "Unlock a logical volume and report whether the credential worked",
	Args:  cobra.ExactArgs(1),
	RunE:  runUnlock,
}

func init() {
	unlockCmd.Flags().StringVar(&unlockIdentifier, "uuid", "", "identifier of the logical volume to unlock (required)")
	unlockCmd.Flags().StringVar(&unlockPlistPath, "plist", "", "path to an out-of-band EncryptedRoot.plist file")
	unlockCreds.register(unlockCmd)
	_ = unlockCmd.MarkFlagRequired("uuid")
	rootCmd.AddCommand(unlockCmd)
}

func runUnlock(cmd *cobra.Command, args []string) error {
	identifier, err := types.ParseUUID(unlockIdentifier)
	if err != nil {
		return err
	}

	plistData, err := readPlistFile(unlockPlistPath)
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

	if err := unlockCreds.apply(lv); err != nil {
		if !GetQuiet() {
			fmt.Printf("locked: %v\n", err)
		}
		return err
	}

	if !GetQuiet() {
		fmt.Printf("unlocked logical volume %s (size %d bytes)\n", lv.Identifier(), lv.Size())
	}
	return nil
}
