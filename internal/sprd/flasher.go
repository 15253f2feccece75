package sprd

import (
	"context"
	"encoding/binary"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/socflash/internal/config"
	"github.com/muurk/socflash/internal/logging"
	"github.com/muurk/socflash/internal/observer"
	"github.com/muurk/socflash/internal/transport"
)

// EngineState is the flash engine's position in its linear state machine.
type EngineState int

const (
	StateIdle EngineState = iota
	StateConnected
	StateBootRomHandshook
	StateFdl1Loaded
	StateFdl1Running
	StateFdl1Handshook
	StateFdl2Loaded
	StateBaudChanged
	StateDone
	StateFailed
)

// String returns a human-readable name for the engine state
func (s EngineState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnected:
		return "connected"
	case StateBootRomHandshook:
		return "bootrom_handshook"
	case StateFdl1Loaded:
		return "fdl1_loaded"
	case StateFdl1Running:
		return "fdl1_running"
	case StateFdl1Handshook:
		return "fdl1_handshook"
	case StateFdl2Loaded:
		return "fdl2_loaded"
	case StateBaudChanged:
		return "baud_changed"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("EngineState(%d)", s)
	}
}

// Stage identifier signatures. The CMD_CONNECT reply may carry an ASCII
// identifier after the 4-byte header; a mismatch against the expected stage
// is a warning, not a failure, because vendor FDL builds report all sorts of
// strings here.
var (
	bootRomSignatures = []string{"SPRD", "Spreadtrum"}
	fdlSignatures     = []string{"FDL", "Spreadtrum"}
)

const (
	// DefaultChunkSize is the FDL download chunk size.
	DefaultChunkSize = 1024

	// DefaultSettleDelay is how long the device is given to re-enumerate as
	// FDL1 after the boot ROM executes it.
	DefaultSettleDelay = 1500 * time.Millisecond

	// handshakeTimeout bounds the CMD_CONNECT reply wait.
	handshakeTimeout = 2 * time.Second

	// ackTimeout bounds control-command ACK waits.
	ackTimeout = 3 * time.Second

	// chunkAckTimeout bounds the per-chunk ACK wait during bulk transfer.
	chunkAckTimeout = 5 * time.Second
)

// Engine drives the full Spreadtrum bootstrap: boot-ROM handshake, FDL1
// load and execute, reconnect, FDL1 handshake, optional FDL2, baud change.
// One Engine runs one flash operation at a time.
type Engine struct {
	link *Link
	obs  observer.Observer

	// ChunkSize for FDL downloads. Zero means DefaultChunkSize.
	ChunkSize int

	// SettleDelay after executing FDL1, before reconnecting. Zero means
	// DefaultSettleDelay.
	SettleDelay time.Duration

	state EngineState
}

// NewEngine creates a flash engine over the given transport. Events go to
// obs; pass observer.Nop{} to discard them.
func NewEngine(t transport.Transport, obs observer.Observer) *Engine {
	if obs == nil {
		obs = observer.Nop{}
	}
	return &Engine{
		link:  NewLink(t),
		obs:   obs,
		state: StateIdle,
	}
}

// State returns the engine's current state.
func (e *Engine) State() EngineState {
	return e.state
}

// Run executes the complete bootstrap sequence for the given profile.
// The profile is consumed read-only. Cancelling ctx stops the run within one
// chunk's latency; the transport is always released before Run returns.
func (e *Engine) Run(ctx context.Context, profile *config.ChipsetProfile) error {
	if profile.FDL1Path == "" || profile.FDL1Address == 0 {
		return newError(ErrTypeConfiguration,
			fmt.Sprintf("profile %q has no FDL1 path or address", profile.Name), nil)
	}

	e.obs.Busy(true)
	defer func() {
		if e.link.State() == Connected {
			e.link.Disconnect()
		}
		e.obs.Busy(false)
		logging.Info("Flash run finished", zap.String("state", e.state.String()))
	}()

	if err := e.run(ctx, profile); err != nil {
		e.state = StateFailed
		e.obs.ReportError("Flash operation failed", err.Error())
		return err
	}
	e.state = StateDone
	e.obs.Log(observer.LevelInfo, "Flash sequence complete")
	e.obs.Progress(100)
	return nil
}

func (e *Engine) run(ctx context.Context, profile *config.ChipsetProfile) error {
	// Read FDL images up front so a bad path fails before we touch the device.
	fdl1, err := os.ReadFile(profile.FDL1Path)
	if err != nil {
		return newError(ErrTypeConfiguration, "failed to read FDL1 image", err)
	}
	var fdl2 []byte
	if profile.HasFDL2() {
		fdl2, err = os.ReadFile(profile.FDL2Path)
		if err != nil {
			return newError(ErrTypeConfiguration, "failed to read FDL2 image", err)
		}
	}

	// Stage 1: connect to the boot ROM.
	e.obs.Log(observer.LevelInfo, "Connecting to device")
	if err := e.link.Connect(ctx, transport.SprdVendorID, transport.SprdProductID); err != nil {
		return err
	}
	e.state = StateConnected

	// Stage 2: boot-ROM handshake with the Xmodem checksum.
	e.link.SetChecksumMode(ChecksumXmodem)
	if err := e.handshake(ctx, bootRomSignatures); err != nil {
		return err
	}
	e.state = StateBootRomHandshook
	e.obs.Log(observer.LevelInfo, "Boot ROM handshake complete")

	// Stage 3+4: load and execute FDL1.
	if err := e.loadImage(ctx, "FDL1", fdl1, profile.FDL1Address); err != nil {
		return err
	}
	e.state = StateFdl1Loaded
	if err := e.execImage(ctx, profile.FDL1Address); err != nil {
		return err
	}
	e.state = StateFdl1Running
	e.obs.Log(observer.LevelInfo, "FDL1 executing")

	// Stage 5: reconnect while the device re-enumerates running FDL1.
	e.link.Disconnect()
	if err := e.settle(ctx); err != nil {
		return err
	}
	if err := e.link.Connect(ctx, transport.SprdVendorID, transport.SprdProductID); err != nil {
		return newError(ErrTypeConnection,
			"device did not come back after FDL1 execution (FDL1 presumed not running)", err)
	}

	// Stage 6: FDL1 handshake with the FDL checksum.
	e.link.SetChecksumMode(ChecksumFDL)
	if err := e.handshake(ctx, fdlSignatures); err != nil {
		return err
	}
	e.state = StateFdl1Handshook
	e.obs.Log(observer.LevelInfo, "FDL1 handshake complete")

	// Stage 7: optional FDL2.
	if profile.HasFDL2() {
		if err := e.loadImage(ctx, "FDL2", fdl2, profile.FDL2Address); err != nil {
			return err
		}
		if err := e.execImage(ctx, profile.FDL2Address); err != nil {
			return err
		}
		e.state = StateFdl2Loaded
		e.obs.Log(observer.LevelInfo, "FDL2 executing")
	} else {
		e.obs.Log(observer.LevelWarn, "No FDL2 configured, skipping second-stage loader")
	}

	// Stage 8: baud change. Rejection here is logged, not fatal; plenty of
	// FDL builds ignore the command entirely.
	if profile.BaudRate != 0 {
		if err := e.changeBaud(ctx, profile.BaudRate); err != nil {
			if IsCancelled(err) {
				return err
			}
			e.obs.Log(observer.LevelWarn,
				fmt.Sprintf("Baud change to %d rejected: %v", profile.BaudRate, err))
		} else {
			e.state = StateBaudChanged
		}
	}

	return nil
}

// handshake sends CMD_CONNECT and validates the ACK. An identifier string in
// the reply is checked loosely against the expected stage signatures.
func (e *Engine) handshake(ctx context.Context, signatures []string) error {
	data, err := e.command(ctx, CmdConnect, nil, handshakeTimeout)
	if err != nil {
		return err
	}
	if len(data) > 0 {
		id := strings.TrimRight(string(data), "\x00")
		if !matchesSignature(id, signatures) {
			e.obs.Log(observer.LevelWarn,
				fmt.Sprintf("Unexpected stage identifier %q", id))
		} else {
			logging.Debug("Stage identifier", zap.String("identifier", id))
		}
	}
	return nil
}

// loadImage streams an FDL image: CMD_START_DATA, ACK-gated 1024-byte
// CMD_MIDST_DATA chunks, CMD_END_DATA. A missing or wrong ACK anywhere
// aborts the whole operation; there is no per-chunk retry.
func (e *Engine) loadImage(ctx context.Context, name string, image []byte, address uint32) error {
	e.obs.Log(observer.LevelInfo,
		fmt.Sprintf("Loading %s: %d bytes at 0x%08X", name, len(image), address))

	params := make([]byte, 8)
	binary.BigEndian.PutUint32(params[0:4], address)
	binary.BigEndian.PutUint32(params[4:8], uint32(len(image)))
	if _, err := e.command(ctx, CmdStartData, params, ackTimeout); err != nil {
		return err
	}

	chunkSize := e.ChunkSize
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}

	sent := 0
	for sent < len(image) {
		if err := ctx.Err(); err != nil {
			return newError(ErrTypeCancelled, "flash operation stopped", err)
		}
		end := sent + chunkSize
		if end > len(image) {
			end = len(image)
		}
		chunk := image[sent:end]

		payload := make([]byte, 2+len(chunk))
		binary.BigEndian.PutUint16(payload[0:2], uint16(len(chunk)))
		copy(payload[2:], chunk)
		if _, err := e.command(ctx, CmdMidstData, payload, chunkAckTimeout); err != nil {
			return err
		}

		sent = end
		e.obs.Progress(float64(sent) / float64(len(image)) * 100)
	}

	if _, err := e.command(ctx, CmdEndData, nil, ackTimeout); err != nil {
		return err
	}
	return nil
}

// execImage jumps to a previously loaded image.
func (e *Engine) execImage(ctx context.Context, address uint32) error {
	params := make([]byte, 4)
	binary.BigEndian.PutUint32(params, address)
	_, err := e.command(ctx, CmdExecData, params, ackTimeout)
	return err
}

// changeBaud requests a new line rate from the running FDL.
func (e *Engine) changeBaud(ctx context.Context, baud uint32) error {
	params := make([]byte, 4)
	binary.BigEndian.PutUint32(params, baud)
	_, err := e.command(ctx, CmdChangeBaud, params, ackTimeout)
	return err
}

// command runs one ACK-gated exchange and returns the response data.
func (e *Engine) command(ctx context.Context, code uint16, params []byte, timeout time.Duration) ([]byte, error) {
	response, err := e.link.ExecuteCommand(ctx, BuildCommand(code, params), timeout)
	if err != nil {
		return nil, err
	}
	repCode, data, err := ParseResponse(response)
	if err != nil {
		return nil, err
	}
	if repCode != RepAck {
		return nil, newError(ErrTypeProtocol,
			fmt.Sprintf("%s rejected: response code 0x%04X", CommandName(code), repCode), nil)
	}
	return data, nil
}

// settle waits for the device to re-enumerate, observing cancellation.
func (e *Engine) settle(ctx context.Context) error {
	delay := e.SettleDelay
	if delay == 0 {
		delay = DefaultSettleDelay
	}
	select {
	case <-ctx.Done():
		return newError(ErrTypeCancelled, "flash operation stopped", ctx.Err())
	case <-time.After(delay):
		return nil
	}
}

// matchesSignature compares an identifier loosely: case-insensitive
// substring match in either direction against any expected signature.
func matchesSignature(id string, signatures []string) bool {
	lower := strings.ToLower(id)
	for _, sig := range signatures {
		s := strings.ToLower(sig)
		if strings.Contains(lower, s) || strings.Contains(s, lower) {
			return true
		}
	}
	return false
}
