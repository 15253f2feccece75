package discovery

import (
	"fmt"
	"time"
)

// Bridge represents a discovered socflash-bridge endpoint on the network.
type Bridge struct {
	// Instance is the advertised service instance name
	Instance string

	// Hostname is the mDNS hostname (e.g., "workbench.local.")
	Hostname string

	// IP is the IPv4 address (IPv6 when no IPv4 record exists)
	IP string

	// Port is the websocket listener port
	Port int

	// Metadata contains additional mDNS TXT record data.
	// Common fields: "version=0.3.0", "ports=2"
	Metadata map[string]string

	// DiscoveredAt is when the bridge was discovered
	DiscoveredAt time.Time
}

// String returns a human-readable string representation of the bridge
func (b *Bridge) String() string {
	return fmt.Sprintf("Bridge %s (%s) at %s:%d", b.Instance, b.Hostname, b.IP, b.Port)
}

// Addr returns the dialable host:port address of the bridge.
func (b *Bridge) Addr() string {
	return fmt.Sprintf("%s:%d", b.IP, b.Port)
}

// GetMetadata retrieves a TXT record value by key, or returns empty string if not found
func (b *Bridge) GetMetadata(key string) string {
	if b.Metadata == nil {
		return ""
	}
	return b.Metadata[key]
}
