package ui

import (
	"bytes"
	"strings"
	"testing"

	"github.com/muurk/socflash/internal/observer"
)

func TestDisplayLogLevels(t *testing.T) {
	var buf bytes.Buffer
	d := NewDisplayWriter(&buf, 80)

	d.Log(observer.LevelInfo, "connecting")
	d.Log(observer.LevelWarn, "no second stage configured")
	d.Log(observer.LevelDebug, "hidden by default")

	out := buf.String()
	if !strings.Contains(out, "connecting") {
		t.Error("info message missing")
	}
	if !strings.Contains(out, "no second stage configured") {
		t.Error("warn message missing")
	}
	if strings.Contains(out, "hidden by default") {
		t.Error("debug message shown without verbose")
	}
}

func TestDisplayVerboseShowsDebug(t *testing.T) {
	var buf bytes.Buffer
	d := NewDisplayWriter(&buf, 80)
	d.Verbose = true

	d.Log(observer.LevelDebug, "handshake byte exchange")
	if !strings.Contains(buf.String(), "handshake byte exchange") {
		t.Error("debug message missing with verbose on")
	}
}

func TestDisplayProgressAndCompletion(t *testing.T) {
	var buf bytes.Buffer
	d := NewDisplayWriter(&buf, 80)

	d.Busy(true)
	d.Progress(42)
	if !strings.Contains(buf.String(), "42%") {
		t.Errorf("output missing percentage: %q", buf.String())
	}

	d.Progress(100)
	d.Busy(false)
	if !strings.HasSuffix(buf.String(), "\n") {
		t.Error("bar not finalized with a newline when busy ends")
	}
}

func TestDisplayReportError(t *testing.T) {
	var buf bytes.Buffer
	d := NewDisplayWriter(&buf, 80)

	d.ReportError("Flash failed", "Timeout: no acknowledgement for chunk 3")
	out := buf.String()
	if !strings.Contains(out, "Flash failed") {
		t.Error("error message missing")
	}
	if !strings.Contains(out, "chunk 3") {
		t.Error("error detail missing")
	}
}

func TestDisplaySuccessDetails(t *testing.T) {
	var buf bytes.Buffer
	d := NewDisplayWriter(&buf, 80)

	d.Success("Flash complete", [][2]string{
		{"Profile", "sc9863a"},
		{"Duration", "12.4s"},
	})
	out := buf.String()
	for _, want := range []string{"Flash complete", "Profile", "sc9863a", "12.4s"} {
		if !strings.Contains(out, want) {
			t.Errorf("success block missing %q", want)
		}
	}
}

// Display must satisfy the engines' observer contract.
var _ observer.Observer = (*Display)(nil)
