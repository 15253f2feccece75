package sprd

import (
	"context"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/muurk/socflash/internal/config"
	"github.com/muurk/socflash/internal/observer"
)

// bslDevice emulates the device side of the BSL protocol on top of
// fakeTransport: it decodes every incoming frame, records the command, and
// acknowledges it unless told to withhold ACKs.
type bslDevice struct {
	ft         *fakeTransport
	commands   []string
	midstSizes []int

	// midstAckLimit caps how many CMD_MIDST_DATA chunks get an ACK.
	// Negative means unlimited.
	midstAckLimit int

	// onAck runs after each acknowledged command, keyed by command name.
	onAck func(command string)
}

func newBslDevice() *bslDevice {
	d := &bslDevice{midstAckLimit: -1}
	d.ft = &fakeTransport{respond: d.handle}
	return d
}

func (d *bslDevice) handle(f *fakeTransport, frame []byte) {
	mode := ChecksumXmodem
	payload, err := DecodeFrame(frame, mode)
	if err != nil {
		mode = ChecksumFDL
		payload, err = DecodeFrame(frame, mode)
		if err != nil {
			return
		}
	}
	code := binary.BigEndian.Uint16(payload[0:2])
	name := CommandName(code)
	d.commands = append(d.commands, name)

	if code == CmdMidstData {
		size := int(binary.BigEndian.Uint16(payload[4:6]))
		d.midstSizes = append(d.midstSizes, size)
		if d.midstAckLimit >= 0 && len(d.midstSizes) > d.midstAckLimit {
			// Withhold the ACK: the engine must abort, not retry.
			return
		}
	}

	f.queueAck(mode, nil)
	if d.onAck != nil {
		d.onAck(name)
	}
}

func (d *bslDevice) count(command string) int {
	n := 0
	for _, c := range d.commands {
		if c == command {
			n++
		}
	}
	return n
}

func writeImage(t *testing.T, name string, size int) string {
	t.Helper()
	data := make([]byte, size)
	for i := range data {
		data[i] = byte(i)
	}
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0600); err != nil {
		t.Fatalf("failed to write image: %v", err)
	}
	return path
}

func testEngine(d *bslDevice) *Engine {
	e := NewEngine(d.ft, observer.Nop{})
	e.SettleDelay = time.Millisecond
	return e
}

func TestEngineChunking(t *testing.T) {
	d := newBslDevice()
	profile := &config.ChipsetProfile{
		Name:        "test",
		FDL1Path:    writeImage(t, "fdl1.bin", 2500),
		FDL1Address: 0x50000000,
		BaudRate:    921600,
	}

	e := testEngine(d)
	if err := e.Run(context.Background(), profile); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if e.State() != StateDone {
		t.Errorf("state = %v, want done", e.State())
	}

	// 2500 bytes in 1024-byte chunks: exactly 1024, 1024, 452.
	want := []int{1024, 1024, 452}
	if len(d.midstSizes) != len(want) {
		t.Fatalf("MIDST_DATA count = %d (%v), want %d", len(d.midstSizes), d.midstSizes, len(want))
	}
	for i, size := range want {
		if d.midstSizes[i] != size {
			t.Errorf("chunk %d size = %d, want %d", i, d.midstSizes[i], size)
		}
	}
}

func TestEngineStopsOnWithheldAck(t *testing.T) {
	d := newBslDevice()
	d.midstAckLimit = 1 // ACK the first chunk, withhold the second
	profile := &config.ChipsetProfile{
		Name:        "test",
		FDL1Path:    writeImage(t, "fdl1.bin", 2500),
		FDL1Address: 0x50000000,
	}

	e := testEngine(d)
	err := e.Run(context.Background(), profile)
	if err == nil {
		t.Fatal("Run() should fail when a chunk ACK is withheld")
	}
	if !IsTimeout(err) {
		t.Errorf("error = %v, want timeout", err)
	}
	if e.State() != StateFailed {
		t.Errorf("state = %v, want failed", e.State())
	}
	// The second chunk was sent but never acknowledged; a third must not be.
	if len(d.midstSizes) != 2 {
		t.Errorf("chunks sent = %d (%v), want 2", len(d.midstSizes), d.midstSizes)
	}
	if d.count("CMD_END_DATA") != 0 {
		t.Error("END_DATA must not be sent after an aborted transfer")
	}
}

func TestEngineSkipsMissingFdl2(t *testing.T) {
	d := newBslDevice()
	warned := false
	obs := &observer.Funcs{
		OnLog: func(level observer.Level, msg string) {
			if level == observer.LevelWarn {
				warned = true
			}
		},
	}
	profile := &config.ChipsetProfile{
		Name:        "test",
		FDL1Path:    writeImage(t, "fdl1.bin", 600),
		FDL1Address: 0x50000000,
		BaudRate:    921600,
		// FDL2 fields intentionally empty.
	}

	e := NewEngine(d.ft, obs)
	e.SettleDelay = time.Millisecond
	if err := e.Run(context.Background(), profile); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if !warned {
		t.Error("expected a skip warning for the missing FDL2 stage")
	}
	// Only the FDL1 stage may load and execute anything.
	if got := d.count("CMD_START_DATA"); got != 1 {
		t.Errorf("START_DATA count = %d, want 1", got)
	}
	if got := d.count("CMD_EXEC_DATA"); got != 1 {
		t.Errorf("EXEC_DATA count = %d, want 1", got)
	}
	// The baud change must still be attempted.
	if got := d.count("CMD_CHANGE_BAUD"); got != 1 {
		t.Errorf("CHANGE_BAUD count = %d, want 1", got)
	}
}

func TestEngineLoadsFdl2WhenConfigured(t *testing.T) {
	d := newBslDevice()
	profile := &config.ChipsetProfile{
		Name:        "test",
		FDL1Path:    writeImage(t, "fdl1.bin", 600),
		FDL1Address: 0x50000000,
		FDL2Path:    writeImage(t, "fdl2.bin", 1500),
		FDL2Address: 0x80000000,
	}

	e := testEngine(d)
	if err := e.Run(context.Background(), profile); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if got := d.count("CMD_START_DATA"); got != 2 {
		t.Errorf("START_DATA count = %d, want 2", got)
	}
	if got := d.count("CMD_EXEC_DATA"); got != 2 {
		t.Errorf("EXEC_DATA count = %d, want 2", got)
	}
	// 600 bytes -> 1 chunk, 1500 bytes -> 2 chunks.
	if len(d.midstSizes) != 3 {
		t.Errorf("chunks = %v, want 3 total", d.midstSizes)
	}
}

func TestEngineCancellation(t *testing.T) {
	d := newBslDevice()
	ctx, cancel := context.WithCancel(context.Background())
	d.onAck = func(command string) {
		if command == "CMD_MIDST_DATA" && len(d.midstSizes) == 2 {
			cancel()
		}
	}
	profile := &config.ChipsetProfile{
		Name:        "test",
		FDL1Path:    writeImage(t, "fdl1.bin", 8000),
		FDL1Address: 0x50000000,
	}

	e := testEngine(d)
	err := e.Run(ctx, profile)
	if err == nil {
		t.Fatal("Run() should fail after cancellation")
	}
	if !IsCancelled(err) {
		t.Errorf("error = %v, want cancelled", err)
	}
	// The stop must be observed within one chunk: no third chunk on the wire.
	if len(d.midstSizes) > 3 {
		t.Errorf("chunks sent after cancellation: %v", d.midstSizes)
	}
}

func TestEngineRejectsIncompleteProfile(t *testing.T) {
	e := testEngine(newBslDevice())
	err := e.Run(context.Background(), &config.ChipsetProfile{Name: "empty"})
	if !IsType(err, ErrTypeConfiguration) {
		t.Errorf("error = %v, want configuration error", err)
	}
}

func TestEngineBaudChangeRejectionIsNonFatal(t *testing.T) {
	d := newBslDevice()
	rejectBaud := func(f *fakeTransport, frame []byte) {
		mode := ChecksumXmodem
		payload, err := DecodeFrame(frame, mode)
		if err != nil {
			mode = ChecksumFDL
			payload, err = DecodeFrame(frame, mode)
			if err != nil {
				return
			}
		}
		if binary.BigEndian.Uint16(payload[0:2]) == CmdChangeBaud {
			return // no ACK: the FDL ignores the command
		}
		d.handle(f, frame)
	}
	d.ft.respond = rejectBaud

	profile := &config.ChipsetProfile{
		Name:        "test",
		FDL1Path:    writeImage(t, "fdl1.bin", 100),
		FDL1Address: 0x50000000,
		BaudRate:    921600,
	}
	e := testEngine(d)
	if err := e.Run(context.Background(), profile); err != nil {
		t.Fatalf("Run() error = %v (baud rejection must be non-fatal)", err)
	}
	if e.State() != StateDone {
		t.Errorf("state = %v, want done", e.State())
	}
}
