package bridge

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestParseUSBID(t *testing.T) {
	tests := []struct {
		raw     string
		want    uint16
		wantErr bool
	}{
		{"1782", 0x1782, false},
		{"0E8D", 0x0E8D, false},
		{"0e8d", 0x0E8D, false},
		{"0003", 0x0003, false},
		{"", 0, true},
		{"zzzz", 0, true},
		{"12345", 0, true}, // over 16 bits
	}
	for _, tt := range tests {
		got, err := parseUSBID(tt.raw)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseUSBID(%q) error = %v, wantErr %v", tt.raw, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && got != tt.want {
			t.Errorf("parseUSBID(%q) = 0x%04X, want 0x%04X", tt.raw, got, tt.want)
		}
	}
}

func TestAcquireRelease(t *testing.T) {
	s := New(&Config{})

	if !s.acquire("/dev/ttyACM0") {
		t.Fatal("first acquire should succeed")
	}
	if s.acquire("/dev/ttyACM0") {
		t.Error("second acquire of the same port should fail")
	}
	if !s.acquire("/dev/ttyACM1") {
		t.Error("acquiring a different port should succeed")
	}

	s.release("/dev/ttyACM0")
	if !s.acquire("/dev/ttyACM0") {
		t.Error("acquire after release should succeed")
	}
}

func TestAttachRejectsBadQuery(t *testing.T) {
	s := New(&Config{})

	tests := []struct {
		name  string
		query string
	}{
		{"missing ids", ""},
		{"bad vid", "vid=nope&pid=4d00"},
		{"missing pid", "vid=1782"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/attach?"+tt.query, nil)
			rec := httptest.NewRecorder()
			s.handleAttach(rec, req)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
			}
		})
	}
}

func TestNewDefaultsInstanceName(t *testing.T) {
	s := New(&Config{})
	if s.config.Instance != "socflash-bridge" {
		t.Errorf("Instance = %q, want socflash-bridge", s.config.Instance)
	}
	s = New(&Config{Instance: "bench-3"})
	if s.config.Instance != "bench-3" {
		t.Errorf("Instance = %q, want bench-3", s.config.Instance)
	}
}
