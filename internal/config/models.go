package config

// Registry represents the entire user configuration file.
// This stores chipset profiles and application preferences.
type Registry struct {
	Version     int                        `yaml:"version"`
	Profiles    map[string]*ChipsetProfile `yaml:"profiles,omitempty"` // Keyed by profile name
	Preferences *Preferences               `yaml:"preferences,omitempty"`
}

// ChipsetProfile describes how to bootstrap one chipset family. Profiles are
// read-only inputs to the protocol engines: the engines never mutate or
// persist them.
type ChipsetProfile struct {
	Name string `yaml:"name"` // Display name (e.g., "SC7731E")

	// Spreadtrum FDL bootstrap settings. FDL2 fields may be empty, in which
	// case the flash engine skips the FDL2 stage with a warning.
	FDL1Path    string `yaml:"fdl1_path,omitempty"`
	FDL1Address uint32 `yaml:"fdl1_address,omitempty"`
	FDL2Path    string `yaml:"fdl2_path,omitempty"`
	FDL2Address uint32 `yaml:"fdl2_address,omitempty"`

	BaudRate      uint32 `yaml:"baud_rate,omitempty"`      // Requested line rate after FDL bootstrap
	FlashBase     uint32 `yaml:"flash_base,omitempty"`     // Base address of the flash window
	ReadPartition uint32 `yaml:"read_partition,omitempty"` // Partition id for info reads

	// MediaTek Download Agent settings.
	DAPath    string `yaml:"da_path,omitempty"`
	DAAddress uint32 `yaml:"da_address,omitempty"` // Zero means the default 0x201000
}

// HasFDL2 reports whether the profile configures a second-stage FDL.
func (p *ChipsetProfile) HasFDL2() bool {
	return p.FDL2Path != "" && p.FDL2Address != 0
}

// Preferences represents application-wide user preferences.
type Preferences struct {
	SettleDelayMs int    `yaml:"settle_delay_ms"`          // Re-enumeration settle delay after FDL1 exec
	Bridge        string `yaml:"bridge,omitempty"`         // Default socflash-bridge host:port
	BridgeTimeout int    `yaml:"bridge_timeout,omitempty"` // Bridge discovery timeout in seconds
}

// NewRegistry creates a new Registry with default values.
func NewRegistry() *Registry {
	return &Registry{
		Version:  1,
		Profiles: make(map[string]*ChipsetProfile),
		Preferences: &Preferences{
			SettleDelayMs: 1500,
			BridgeTimeout: 10,
		},
	}
}

// BuiltinProfiles returns the chipset profiles that ship with the tool.
// User-defined profiles with the same key override them.
func BuiltinProfiles() map[string]*ChipsetProfile {
	return map[string]*ChipsetProfile{
		"sc7731e": {
			Name:        "SC7731E",
			FDL1Address: 0x50000000,
			FDL2Address: 0x80000000,
			BaudRate:    921600,
			FlashBase:   0x80000000,
		},
		"sc9863a": {
			Name:        "SC9863A",
			FDL1Address: 0x5000B000,
			FDL2Address: 0x9EFFFE00,
			BaudRate:    921600,
			FlashBase:   0x80000000,
		},
		"sc6531e": {
			Name:          "SC6531E",
			FDL1Address:   0x40004000,
			FDL2Address:   0x14000000,
			BaudRate:      115200,
			FlashBase:     0x30000000,
			ReadPartition: 0x80000003,
		},
		"mt6765": {
			Name:      "MT6765 (Helio P35)",
			DAAddress: 0x201000,
		},
		"mt6785": {
			Name:      "MT6785 (Helio G90)",
			DAAddress: 0x201000,
		},
	}
}
