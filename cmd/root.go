package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global output flags only
	verbose      bool
	quiet        bool
	outputFormat string
)

var rootCmd = &cobra.Command{
	Use:   "fvde",
	Short: "Read-only command-line access to Core Storage / FileVault 2 volumes",
	Long: `fvde is a read-only command-line tool for unlocking and reading Apple Core
Storage / FileVault 2 (FVDE) encrypted logical volumes.

Works directly against a raw physical-volume image, disk, or partition file.
Given a user passphrase, a recovery passphrase, a raw volume master key, or an
out-of-band EncryptedRoot.plist file, it discovers the logical-volume layout,
unwraps the volume encryption keys, and exposes each logical volume as a
byte-addressable decrypted stream.

Commands:
  info      Print the physical-volume layout and logical-volume roster
  unlock    Unlock a logical volume and report whether the credential worked
  cat       Unlock a logical volume and write a decrypted byte range to stdout`,
	Version: "0.1.0-dev",
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	// Only global output control flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress output except errors")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "table", "output format (table, json, yaml); the info, unlock, and cat commands print plain text regardless")
}

// GetVerbose returns the verbose flag value
func GetVerbose() bool {
	return verbose
}

// GetQuiet returns the quiet flag value
func GetQuiet() bool {
	return quiet
}

// GetOutputFormat returns the output format
func GetOutputFormat() string {
	return outputFormat
}
