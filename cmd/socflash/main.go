// Socflash is a boot-ROM flashing tool for Spreadtrum and MediaTek SoCs.
//
// It drives devices held in their boot-ROM download mode over a USB virtual
// serial port: on Spreadtrum parts it bootstraps the FDL chain and switches
// the line rate; on MediaTek parts it identifies the chip and uploads a
// download agent. The device may be attached to another machine running
// socflash-bridge, in which case the serial traffic is relayed over
// WebSocket.
//
// Usage:
//
//	socflash [command] [flags]
//
// See 'socflash --help' for available commands.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/muurk/socflash/internal/logging"
	"github.com/muurk/socflash/internal/version"
)

func main() {
	defer logging.Sync()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "socflash",
	Short: "Spreadtrum and MediaTek boot-ROM flashing tool",
	Long: `A flashing tool for devices in boot-ROM download mode.

Spreadtrum devices are bootstrapped through the FDL1/FDL2 loader chain
over the BSL serial protocol. MediaTek devices are identified through
their BROM probe commands and given a Download Agent.

The device can be plugged into this machine or into a remote host
running socflash-bridge.`,
	Version:       version.Full(),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return logging.Initialize(logLevel)
	},
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("socflash %s\n", version.Full())
	},
}
