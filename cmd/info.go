package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/deploymenttheory/go-fvde/internal/managers/keyunwrap"
	"github.com/deploymenttheory/go-fvde/internal/volume"
)

var infoPlistPath string

var infoCmd = &cobra.Command{
	Use:   "info <image>",
	Short: "Print the physical-volume layout and logical-volume roster",
	Args:  cobra.ExactArgs(1),
	RunE:  runInfo,
}

func init() {
	infoCmd.Flags().StringVar(&infoPlistPath, "plist", "", "path to an out-of-band EncryptedRoot.plist file")
	rootCmd.AddCommand(infoCmd)
}

func runInfo(cmd *cobra.Command, args []string) error {
	plistData, err := readPlistFile(infoPlistPath)
	if err != nil {
		return err
	}

	container, err := volume.Open(args[0], volume.Options{Verbose: GetVerbose(), EncryptedRootPlistData: plistData})
	if err != nil {
		return err
	}
	defer container.Close()

	roster := container.PhysicalVolumes()
	volumes := container.LogicalVolumes()
	fmt.Printf("logical volumes: %d\n", len(volumes))
	for _, lv := range volumes {
		missing := lv.MissingPhysicalVolumes(roster)
		fmt.Printf("  %s  %-32s  %12d bytes", lv.Identifier, lv.Name, lv.Size)
		if len(missing) > 0 {
			fmt.Printf("  (missing physical volumes: %v)", missing)
		}
		fmt.Println()
	}

	if plist, err := container.EncryptionContextPlist(); err == nil {
		if status, ok := keyunwrap.ConversionStatus(plist); ok {
			fmt.Printf("conversion status: %s\n", status)
		}
	}
	return nil
}
