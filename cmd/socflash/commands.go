package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/muurk/socflash/internal/config"
	"github.com/muurk/socflash/internal/discovery"
	"github.com/muurk/socflash/internal/mtk"
	"github.com/muurk/socflash/internal/sprd"
	"github.com/muurk/socflash/internal/transport"
	"github.com/muurk/socflash/internal/ui"
)

// Global command flags
var (
	bridgeAddr  string
	portName    string
	logLevel    string
	verbose     bool
	profileKey  string
	scanTimeout int

	fdl1Path string
	fdl1Addr uint32
	fdl2Path string
	fdl2Addr uint32
	baudRate uint32

	daPath string
	daAddr uint32
)

func init() {
	rootCmd.PersistentFlags().StringVar(&bridgeAddr, "bridge", "", "socflash-bridge address (host:port, or 'auto' for mDNS discovery)")
	rootCmd.PersistentFlags().StringVar(&portName, "port", "", "Serial port name (skips USB VID/PID matching)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Show debug-level progress messages")

	rootCmd.AddCommand(sprdCmd)
	rootCmd.AddCommand(mtkCmd)
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(profilesCmd)

	sprdCmd.AddCommand(sprdFlashCmd)
	mtkCmd.AddCommand(mtkDetectCmd)
	mtkCmd.AddCommand(mtkBootCmd)
}

// runContext returns a context cancelled by Ctrl-C. A stop request is
// observed mid-transfer, not just between protocol stages.
func runContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// newTransport builds the transport selected by the global flags.
func newTransport(ctx context.Context, baud int) (transport.Transport, error) {
	if bridgeAddr != "" {
		addr := bridgeAddr
		if addr == "auto" {
			fmt.Println("Discovering bridge over mDNS...")
			bridge, err := discovery.NewScanner().FindFirstBridge(ctx)
			if err != nil {
				return nil, err
			}
			fmt.Printf("Using %s\n", bridge)
			addr = bridge.Addr()
		}
		return transport.NewBridge(addr), nil
	}
	serial := transport.NewSerial()
	serial.PortName = portName
	serial.BaudRate = baud
	return serial, nil
}

func resolveProfile() (*config.ChipsetProfile, error) {
	registry, err := config.LoadRegistry()
	if err != nil {
		return nil, err
	}
	if profileKey == "" {
		return nil, fmt.Errorf("no profile given; pass --profile or explicit paths (see 'socflash profiles')")
	}
	return registry.ResolveProfile(profileKey)
}

var sprdCmd = &cobra.Command{
	Use:   "sprd",
	Short: "Spreadtrum boot-ROM operations",
}

var sprdFlashCmd = &cobra.Command{
	Use:   "flash",
	Short: "Bootstrap the FDL loader chain",
	Long: `Bootstrap a Spreadtrum device in boot-ROM mode.

Loads and executes FDL1, reconnects to it, optionally loads FDL2, and
switches the line to the profile's baud rate. The device must already be
in download mode (usually: hold volume-down while plugging in USB).`,
	Example: `  # Flash using a built-in profile plus local FDL images
  socflash sprd flash --profile sc9863a --fdl1 fdl1.bin --fdl2 fdl2.bin

  # Device on a remote workbench
  socflash sprd flash --bridge workbench:9317 --profile sc7731e --fdl1 fdl1.bin`,
	RunE: runSprdFlash,
}

func init() {
	sprdFlashCmd.Flags().StringVar(&profileKey, "profile", "", "Chipset profile key")
	sprdFlashCmd.Flags().StringVar(&fdl1Path, "fdl1", "", "FDL1 image path (overrides profile)")
	sprdFlashCmd.Flags().Uint32Var(&fdl1Addr, "fdl1-addr", 0, "FDL1 load address (overrides profile)")
	sprdFlashCmd.Flags().StringVar(&fdl2Path, "fdl2", "", "FDL2 image path (overrides profile)")
	sprdFlashCmd.Flags().Uint32Var(&fdl2Addr, "fdl2-addr", 0, "FDL2 load address (overrides profile)")
	sprdFlashCmd.Flags().Uint32Var(&baudRate, "baud", 0, "Requested line rate after bootstrap (overrides profile)")
}

func runSprdFlash(cmd *cobra.Command, args []string) error {
	ctx, cancel := runContext()
	defer cancel()

	profile, err := resolveProfile()
	if err != nil {
		if profileKey != "" {
			return err
		}
		profile = &config.ChipsetProfile{Name: "ad-hoc"}
	}
	// Flag overrides
	merged := *profile
	if fdl1Path != "" {
		merged.FDL1Path = fdl1Path
	}
	if fdl1Addr != 0 {
		merged.FDL1Address = fdl1Addr
	}
	if fdl2Path != "" {
		merged.FDL2Path = fdl2Path
	}
	if fdl2Addr != 0 {
		merged.FDL2Address = fdl2Addr
	}
	if baudRate != 0 {
		merged.BaudRate = baudRate
	}

	t, err := newTransport(ctx, 0)
	if err != nil {
		return err
	}

	display := ui.NewDisplay()
	display.Verbose = verbose
	display.Header("SPREADTRUM FLASH", [][2]string{
		{"Profile", merged.Name},
		{"FDL1", fmt.Sprintf("%s @ 0x%08X", merged.FDL1Path, merged.FDL1Address)},
		{"FDL2", fdlSummary(&merged)},
	})

	engine := sprd.NewEngine(t, display)
	registry, _ := config.LoadRegistry()
	if registry != nil && registry.Preferences != nil && registry.Preferences.SettleDelayMs > 0 {
		engine.SettleDelay = time.Duration(registry.Preferences.SettleDelayMs) * time.Millisecond
	}

	start := time.Now()
	if err := engine.Run(ctx, &merged); err != nil {
		return err
	}
	display.Success("Flash complete", [][2]string{
		{"Profile", merged.Name},
		{"Duration", time.Since(start).Round(100 * time.Millisecond).String()},
	})
	return nil
}

func fdlSummary(p *config.ChipsetProfile) string {
	if !p.HasFDL2() {
		return "(none)"
	}
	return fmt.Sprintf("%s @ 0x%08X", p.FDL2Path, p.FDL2Address)
}

var mtkCmd = &cobra.Command{
	Use:   "mtk",
	Short: "MediaTek boot-ROM operations",
}

var mtkDetectCmd = &cobra.Command{
	Use:   "detect",
	Short: "Identify the attached chip",
	Long: `Identify a MediaTek device in BROM or preloader mode.

Runs the sync handshake and the chip identification probes, then prints
the arbitrated result.`,
	RunE: runMtkDetect,
}

func runMtkDetect(cmd *cobra.Command, args []string) error {
	ctx, cancel := runContext()
	defer cancel()

	t, err := newTransport(ctx, 0)
	if err != nil {
		return err
	}
	if err := connectMtk(ctx, t); err != nil {
		return err
	}
	defer func() { _ = t.Disconnect() }()

	if err := mtk.Handshake(ctx, t); err != nil {
		return err
	}
	result := mtk.NewIdentifier(t).Identify(ctx)

	fmt.Printf("Chip:     %s\n", result.ChipName)
	if result.HWCode != 0 {
		fmt.Printf("HW code:  0x%04X\n", result.HWCode)
	}
	fmt.Printf("Probe:    %s\n", result.Probe)
	fmt.Printf("Verified: %v\n", result.Verified)
	if result.Notes != "" {
		fmt.Printf("Notes:    %s\n", result.Notes)
	}
	return nil
}

var mtkBootCmd = &cobra.Command{
	Use:   "boot",
	Short: "Upload and start a Download Agent",
	Long: `Run the full MediaTek session: handshake, chip identification,
Download Agent compatibility check and upload, device info query.

The agent is skipped with a warning when its filename does not match the
detected chip.`,
	Example: `  # Boot a DA using a profile's configured agent
  socflash mtk boot --profile mt6785 --da MTK_DA_Helio_G90.bin

  # Explicit load address
  socflash mtk boot --da agent.bin --da-addr 0x201000`,
	RunE: runMtkBoot,
}

func init() {
	mtkBootCmd.Flags().StringVar(&profileKey, "profile", "", "Chipset profile key")
	mtkBootCmd.Flags().StringVar(&daPath, "da", "", "Download Agent image path (overrides profile)")
	mtkBootCmd.Flags().Uint32Var(&daAddr, "da-addr", 0, "Agent load address (0 = default)")
}

func runMtkBoot(cmd *cobra.Command, args []string) error {
	ctx, cancel := runContext()
	defer cancel()

	path := daPath
	addr := daAddr
	if profileKey != "" {
		profile, err := resolveProfile()
		if err != nil {
			return err
		}
		if path == "" {
			path = profile.DAPath
		}
		if addr == 0 {
			addr = profile.DAAddress
		}
	}

	var da *mtk.DAFile
	if path != "" {
		var err error
		if da, err = mtk.LoadDAFile(path); err != nil {
			return err
		}
	}

	t, err := newTransport(ctx, 0)
	if err != nil {
		return err
	}
	if err := connectMtk(ctx, t); err != nil {
		return err
	}
	defer func() { _ = t.Disconnect() }()

	display := ui.NewDisplay()
	display.Verbose = verbose
	display.Header("MEDIATEK BOOT", [][2]string{
		{"Agent", daSummary(path, addr)},
	})

	proc := mtk.NewProcessor(t, display)
	proc.DA = da
	proc.DAAddress = addr
	result, err := proc.Run(ctx)
	if err != nil {
		return err
	}

	details := [][2]string{
		{"Chip", result.Detection.ChipName},
	}
	if result.DAUploaded {
		details = append(details, [2]string{"Agent", "running"})
	}
	keys := make([]string, 0, len(result.Info.Values))
	for k := range result.Info.Values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		details = append(details, [2]string{k, result.Info.Values[k]})
	}
	display.Success("Session complete", details)
	return nil
}

func daSummary(path string, addr uint32) string {
	if path == "" {
		return "(none)"
	}
	if addr == 0 {
		addr = mtk.DefaultDAAddress
	}
	return fmt.Sprintf("%s @ 0x%06X", path, addr)
}

// connectMtk tries the BROM product ID first, then the preloader's.
func connectMtk(ctx context.Context, t transport.Transport) error {
	err := t.Connect(ctx, transport.MtkVendorID, transport.MtkBromProductID)
	if err == nil {
		return nil
	}
	if prelErr := t.Connect(ctx, transport.MtkVendorID, transport.MtkPreloaderProductID); prelErr == nil {
		return nil
	}
	return err
}

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "List attached devices and reachable bridges",
	Long: `List USB serial ports that look like boot-ROM devices, and scan the
local network for socflash-bridge instances.`,
	RunE: runScan,
}

func init() {
	scanCmd.Flags().IntVar(&scanTimeout, "timeout", 3, "Bridge discovery timeout in seconds")
}

func runScan(cmd *cobra.Command, args []string) error {
	ctx, cancel := runContext()
	defer cancel()

	ports, err := transport.ListPorts()
	if err != nil {
		fmt.Printf("Serial enumeration failed: %v\n", err)
	} else if len(ports) == 0 {
		fmt.Println("No USB serial ports found.")
	} else {
		fmt.Printf("USB serial ports:\n")
		for _, p := range ports {
			fmt.Printf("  %-16s %s:%s%s\n", p.Name, p.VID, p.PID, knownDeviceNote(p.VID, p.PID))
		}
	}

	fmt.Printf("\nScanning for bridges (%ds)...\n", scanTimeout)
	bridges, err := discovery.ScanForBridges(ctx, time.Duration(scanTimeout)*time.Second)
	if err != nil {
		return fmt.Errorf("bridge scan failed: %w", err)
	}
	if len(bridges) == 0 {
		fmt.Println("No bridges found.")
		return nil
	}
	for _, b := range bridges {
		fmt.Printf("  %s", b)
		if v := b.GetMetadata("version"); v != "" {
			fmt.Printf("  (version %s)", v)
		}
		fmt.Println()
	}
	return nil
}

func knownDeviceNote(vid, pid string) string {
	switch vid + ":" + pid {
	case "1782:4D00", "1782:4d00":
		return "  <- Spreadtrum boot ROM"
	case "0E8D:0003", "0e8d:0003":
		return "  <- MediaTek boot ROM"
	case "0E8D:2000", "0e8d:2000":
		return "  <- MediaTek preloader"
	}
	return ""
}

var profilesCmd = &cobra.Command{
	Use:   "profiles",
	Short: "List available chipset profiles",
	Long: `List the chipset profiles known to this installation.

Built-in profiles can be overridden by entries in the user configuration
file; run with --verbose to see where that file lives.`,
	RunE: runProfiles,
}

func runProfiles(cmd *cobra.Command, args []string) error {
	registry, err := config.LoadRegistry()
	if err != nil {
		return err
	}

	for _, key := range registry.ProfileKeys() {
		profile, err := registry.ResolveProfile(key)
		if err != nil {
			continue
		}
		origin := "built-in"
		if _, ok := registry.Profiles[key]; ok {
			origin = "user"
		}
		fmt.Printf("  %-10s %-24s %s\n", key, profile.Name, origin)
	}

	if verbose {
		if path, err := config.GetConfigPath(); err == nil {
			fmt.Printf("\nUser profiles: %s\n", path)
		}
	}
	return nil
}
