// Socflash-bridge exposes this machine's USB serial ports to remote
// socflash clients over WebSocket.
//
// Run it on the workbench machine the device is plugged into:
//
//	socflash-bridge --host 0.0.0.0 --port 9317
//
// By default the bridge announces itself over mDNS so that
// 'socflash --bridge auto' finds it without configuration.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/muurk/socflash/internal/bridge"
	"github.com/muurk/socflash/internal/logging"
	"github.com/muurk/socflash/internal/version"
)

var (
	host     string
	port     int
	instance string
	baudRate int
	noMdns   bool
	logLevel string
)

func main() {
	defer logging.Sync()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "socflash-bridge",
	Short: "Serial-over-WebSocket bridge for socflash",
	Long: `Relay local USB serial ports to remote socflash clients.

A client attaches to a port by USB vendor/product ID and exchanges raw
protocol bytes as WebSocket binary messages. One client per port.`,
	Version:       version.Full(),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runBridge,
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.Flags().StringVar(&host, "host", "0.0.0.0", "Listen address")
	rootCmd.Flags().IntVar(&port, "port", 9317, "Listen port")
	rootCmd.Flags().StringVar(&instance, "name", "", "mDNS instance name")
	rootCmd.Flags().IntVar(&baudRate, "baud", 0, "Baud rate for opened ports (0 = protocol default)")
	rootCmd.Flags().BoolVar(&noMdns, "no-mdns", false, "Do not advertise over mDNS")
	rootCmd.Flags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
}

func runBridge(cmd *cobra.Command, args []string) error {
	if err := logging.Initialize(logLevel); err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	server := bridge.New(&bridge.Config{
		Host:     host,
		Port:     port,
		Instance: instance,
		BaudRate: baudRate,
		Announce: !noMdns,
	})
	return server.Start(ctx)
}
