package discovery

import (
	"net"
	"testing"

	"github.com/grandcat/zeroconf"
)

func TestParseServiceEntry(t *testing.T) {
	tests := []struct {
		name     string
		entry    *zeroconf.ServiceEntry
		wantNil  bool
		wantIP   string
		wantPort int
	}{
		{
			name: "bridge with IPv4",
			entry: &zeroconf.ServiceEntry{
				HostName: "workbench.local.",
				Port:     9317,
				AddrIPv4: []net.IP{net.ParseIP("192.168.1.40")},
				Text:     []string{"version=0.3.0", "ports=2"},
			},
			wantIP:   "192.168.1.40",
			wantPort: 9317,
		},
		{
			name: "bridge with IPv6 only",
			entry: &zeroconf.ServiceEntry{
				HostName: "workbench.local.",
				Port:     9317,
				AddrIPv6: []net.IP{net.ParseIP("fe80::1")},
			},
			wantIP:   "fe80::1",
			wantPort: 9317,
		},
		{
			name: "no address",
			entry: &zeroconf.ServiceEntry{
				HostName: "workbench.local.",
				Port:     9317,
			},
			wantNil: true,
		},
		{
			name: "no port",
			entry: &zeroconf.ServiceEntry{
				HostName: "workbench.local.",
				AddrIPv4: []net.IP{net.ParseIP("192.168.1.40")},
			},
			wantNil: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bridge := parseServiceEntry(tt.entry)
			if tt.wantNil {
				if bridge != nil {
					t.Errorf("parseServiceEntry() = %v, want nil", bridge)
				}
				return
			}
			if bridge == nil {
				t.Fatal("parseServiceEntry() = nil, want bridge")
			}
			if bridge.IP != tt.wantIP {
				t.Errorf("IP = %v, want %v", bridge.IP, tt.wantIP)
			}
			if bridge.Port != tt.wantPort {
				t.Errorf("Port = %v, want %v", bridge.Port, tt.wantPort)
			}
		})
	}
}

func TestParseServiceEntryMetadata(t *testing.T) {
	entry := &zeroconf.ServiceEntry{
		HostName: "workbench.local.",
		Port:     9317,
		AddrIPv4: []net.IP{net.ParseIP("10.0.0.7")},
		Text:     []string{"version=0.3.0", "ports=2", "flagonly"},
	}
	bridge := parseServiceEntry(entry)
	if bridge == nil {
		t.Fatal("parseServiceEntry() = nil")
	}
	if got := bridge.GetMetadata("version"); got != "0.3.0" {
		t.Errorf("version = %q, want 0.3.0", got)
	}
	if got := bridge.GetMetadata("ports"); got != "2" {
		t.Errorf("ports = %q, want 2", got)
	}
	if _, ok := bridge.Metadata["flagonly"]; !ok {
		t.Error("flag-only TXT record should be present with empty value")
	}
	if got := bridge.GetMetadata("missing"); got != "" {
		t.Errorf("missing key = %q, want empty", got)
	}
}

func TestBridgeAddr(t *testing.T) {
	bridge := &Bridge{IP: "192.168.1.40", Port: 9317}
	if got := bridge.Addr(); got != "192.168.1.40:9317" {
		t.Errorf("Addr() = %q", got)
	}
}
