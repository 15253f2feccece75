package mtk

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
)

func TestLookupHWCode(t *testing.T) {
	tests := []struct {
		name         string
		code         uint16
		trailing     []byte
		wantName     string
		wantVerified bool
		wantNote     string
	}{
		{"known smartphone part", 0x0813, nil, "MT6785 (Helio G90)", true, ""},
		{"known entry part", 0x0766, nil, "MT6765 (Helio P35)", true, ""},
		{"known tablet part", 0x8183, nil, "MT8183 (Kompanio 500)", true, ""},
		{"undocumented dimensity", 0x1229, nil, "MT6886 (Dimensity 7200)", true, "sampling silicon"},
		{"undocumented 800u", 0x0930, nil, "MT6853T (Dimensity 800U)", true, "engineering units"},
		{"unknown bare", 0xAAAA, nil, "Unknown_0xAAAA", false, ""},
		{"unknown with series hint", 0xBBBB, []byte("chip Dimensity rev2"), "Unknown_0xBBBB (Dimensity?)", false, "Dimensity"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			name, verified, note := lookupHWCode(tt.code, tt.trailing)
			if name != tt.wantName {
				t.Errorf("name = %q, want %q", name, tt.wantName)
			}
			if verified != tt.wantVerified {
				t.Errorf("verified = %v, want %v", verified, tt.wantVerified)
			}
			if tt.wantNote != "" && !strings.Contains(note, tt.wantNote) {
				t.Errorf("note = %q, want substring %q", note, tt.wantNote)
			}
		})
	}
}

func TestStandardProbe(t *testing.T) {
	dev := &fakeDevice{connected: true}
	dev.respond = func(d *fakeDevice, data []byte) {
		if bytes.Equal(data, []byte{0xFD, 0xD0}) {
			d.queue(0x13, 0x08) // 0x0813 little-endian
		}
	}

	result := NewIdentifier(dev).probeStandard(context.Background())
	if result.Err != nil {
		t.Fatalf("probe error = %v", result.Err)
	}
	if result.HWCode != 0x0813 {
		t.Errorf("HWCode = 0x%04X, want 0x0813", result.HWCode)
	}
	if result.ChipName != "MT6785 (Helio G90)" || !result.Verified {
		t.Errorf("result = %q verified=%v, want MT6785 (Helio G90) verified", result.ChipName, result.Verified)
	}
}

func TestExtendedProbeFallsThrough(t *testing.T) {
	// Only the third extended command gets an answer.
	dev := &fakeDevice{connected: true}
	dev.respond = func(d *fakeDevice, data []byte) {
		if bytes.Equal(data, []byte{0xF0, 0x0F}) {
			d.queue(0x66, 0x07) // 0x0766
		}
	}

	result := NewIdentifier(dev).probeExtended(context.Background())
	if result.Err != nil {
		t.Fatalf("probe error = %v", result.Err)
	}
	if result.Probe != "extended/Factory_Mode" {
		t.Errorf("Probe = %q, want extended/Factory_Mode", result.Probe)
	}
	if result.ChipName != "MT6765 (Helio P35)" {
		t.Errorf("ChipName = %q", result.ChipName)
	}
	if len(dev.writes) != 3 {
		t.Errorf("wrote %d commands, want all 3 extended commands", len(dev.writes))
	}
}

func TestBootRomProbeBanner(t *testing.T) {
	tests := []struct {
		name   string
		banner string
	}{
		{"agent banner", "USB_DOWNLOAD_AGENT v3"},
		{"brom banner", "MTK BROM ready"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev := &fakeDevice{connected: true}
			dev.respond = func(d *fakeDevice, data []byte) {
				if bytes.Equal(data, []byte("MTkl")) {
					d.queue([]byte(tt.banner)...)
				}
			}
			result := NewIdentifier(dev).probeBootRom(context.Background())
			if result.Err != nil {
				t.Fatalf("probe error = %v", result.Err)
			}
			if result.ChipName != BootRomGenericName || !result.Verified {
				t.Errorf("result = %q verified=%v, want generic verified", result.ChipName, result.Verified)
			}
		})
	}
}

func TestBootRomProbeBareCode(t *testing.T) {
	dev := &fakeDevice{connected: true}
	dev.respond = func(d *fakeDevice, data []byte) {
		if bytes.Equal(data, []byte("MTkl")) {
			d.queue(0x80, 0x06) // 0x0680, not in the table
		}
	}
	result := NewIdentifier(dev).probeBootRom(context.Background())
	if result.Err != nil {
		t.Fatalf("probe error = %v", result.Err)
	}
	if result.ChipName != "Unknown_0x0680" || result.Verified {
		t.Errorf("result = %q verified=%v, want Unknown_0x0680 unverified", result.ChipName, result.Verified)
	}
}

func TestArbitrate(t *testing.T) {
	verified6785 := DetectionResult{ChipName: "MT6785 (Helio G90)", HWCode: 0x0813, Verified: true, Probe: "standard"}
	unknownAAAA := DetectionResult{ChipName: "Unknown_0xAAAA", HWCode: 0xAAAA, Probe: "extended"}
	generic := DetectionResult{ChipName: BootRomGenericName, Verified: true, Probe: "bootrom"}
	unknownHinted := DetectionResult{
		ChipName: "Unknown_0xBBBB (Helio?)", HWCode: 0xBBBB, Probe: "standard",
		Notes: "series hint: Helio", ResponseHex: "bbbb48656c696f",
	}
	failed := DetectionResult{Probe: "standard", Err: newError(ErrTypeTimeout, "no probe response", nil)}
	cancelled := DetectionResult{Probe: "bootrom", Err: newError(ErrTypeCancelled, "cancelled", context.Canceled)}

	tests := []struct {
		name    string
		results []DetectionResult
		want    string
	}{
		{"verified name beats unknown", []DetectionResult{unknownAAAA, verified6785}, "MT6785 (Helio G90)"},
		{"verified name beats generic", []DetectionResult{generic, verified6785}, "MT6785 (Helio G90)"},
		{"generic beats bare unknown", []DetectionResult{unknownAAAA, generic}, BootRomGenericName},
		{"hinted unknown beats bare unknown", []DetectionResult{unknownAAAA, unknownHinted, failed}, "Unknown_0xBBBB (Helio?)"},
		{"bare unknown as last resort", []DetectionResult{failed, unknownAAAA}, "Unknown_0xAAAA"},
		{"all cancelled", []DetectionResult{cancelled}, "Unknown, all attempts failed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Arbitrate(tt.results)
			if got.ChipName != tt.want {
				t.Errorf("Arbitrate() = %q, want %q", got.ChipName, tt.want)
			}
		})
	}
}

func TestArbitrateLastResortAnnotated(t *testing.T) {
	got := Arbitrate([]DetectionResult{{ChipName: "Unknown_0x1234", Probe: "standard"}})
	if !strings.Contains(got.Notes, "low confidence") {
		t.Errorf("Notes = %q, want low-confidence annotation", got.Notes)
	}
}

func TestIdentifyPrefersVerifiedProbe(t *testing.T) {
	dev := &fakeDevice{connected: true}
	dev.respond = func(d *fakeDevice, data []byte) {
		switch {
		case bytes.Equal(data, []byte{0xFD, 0xD0}):
			d.queue(0xAA, 0xAA) // unknown code
		case bytes.Equal(data, []byte{0xDA, 0xDA}):
			d.queue(0x13, 0x08) // MT6785
		}
	}
	got := NewIdentifier(dev).Identify(context.Background())
	if got.ChipName != "MT6785 (Helio G90)" {
		t.Errorf("Identify() = %q, want MT6785 (Helio G90)", got.ChipName)
	}
	if got.Probe != "extended/DA_Identification" {
		t.Errorf("Probe = %q", got.Probe)
	}
}

func TestIdentifyAllSilent(t *testing.T) {
	dev := &fakeDevice{connected: true}
	got := NewIdentifier(dev).Identify(context.Background())
	if got.ChipName == "" {
		t.Fatal("expected a result even with a silent device")
	}
	if got.Err == nil && got.ChipName != "Unknown, all attempts failed" {
		t.Errorf("got %q with no error", got.ChipName)
	}
	if got.Err != nil && !errors.As(got.Err, new(*Error)) {
		t.Errorf("Err = %v, want typed error", got.Err)
	}
}
