package sprd

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/socflash/internal/logging"
	"github.com/muurk/socflash/internal/transport"
)

// ConnectionState tracks whether the link owns an open transport. It is
// mutated only by Connect and Disconnect, never implicitly.
type ConnectionState int

const (
	Disconnected ConnectionState = iota
	Connected
)

// String returns a human-readable name for the connection state
func (s ConnectionState) String() string {
	switch s {
	case Connected:
		return "connected"
	default:
		return "disconnected"
	}
}

// Link is a synchronous command/response channel to a Spreadtrum device.
// Exactly one request is in flight at a time; a command is never sent before
// the previous command's response (or timeout) is resolved.
type Link struct {
	transport transport.Transport
	state     ConnectionState
	mode      ChecksumMode
}

// NewLink creates a link over the given transport. The initial checksum mode
// is Xmodem, which is what the boot ROM expects.
func NewLink(t transport.Transport) *Link {
	return &Link{
		transport: t,
		state:     Disconnected,
		mode:      ChecksumXmodem,
	}
}

// State returns the current connection state.
func (l *Link) State() ConnectionState {
	return l.state
}

// ChecksumMode returns the active checksum mode.
func (l *Link) ChecksumMode() ChecksumMode {
	return l.mode
}

// SetChecksumMode switches the checksum algorithm used for all subsequent
// frames. The boot-ROM stage uses Xmodem; once FDL1 is running the device
// expects the FDL word-sum.
func (l *Link) SetChecksumMode(mode ChecksumMode) {
	if mode != l.mode {
		logging.Debug("Checksum mode changed",
			zap.String("from", l.mode.String()),
			zap.String("to", mode.String()),
		)
	}
	l.mode = mode
}

// Connect opens the transport to the device identified by vendor/product ID.
func (l *Link) Connect(ctx context.Context, vendorID, productID uint16) error {
	if l.state == Connected {
		return newError(ErrTypeConnection, "link already connected", nil)
	}
	if err := l.transport.Connect(ctx, vendorID, productID); err != nil {
		return newError(ErrTypeConnection,
			fmt.Sprintf("failed to open device %04X:%04X", vendorID, productID), err)
	}
	l.state = Connected
	return nil
}

// Disconnect closes the transport. Calling it while already disconnected is
// a no-op with a warning.
func (l *Link) Disconnect() {
	if l.state == Disconnected {
		logging.Warn("Disconnect called on already-disconnected link")
		return
	}
	if err := l.transport.Disconnect(); err != nil {
		logging.Warn("Transport close failed", zap.Error(err))
	}
	l.state = Disconnected
}

// ExecuteCommand encodes payload into a frame, writes it, and reads exactly
// one response frame within timeout. Framing, checksum, and timeout failures
// are logged and returned; the caller decides whether they abort the flow.
func (l *Link) ExecuteCommand(ctx context.Context, payload []byte, timeout time.Duration) ([]byte, error) {
	if l.state != Connected {
		return nil, newError(ErrTypeConnection, "link is not connected", nil)
	}

	frame, err := EncodeFrame(payload, l.mode)
	if err != nil {
		return nil, newError(ErrTypeFraming, "failed to encode frame", err)
	}
	if err := l.transport.Write(ctx, frame); err != nil {
		werr := newError(ErrTypeConnection, "frame write failed", err)
		logging.Warn("Command write failed", zap.Error(werr))
		return nil, werr
	}

	raw, err := l.readFrame(ctx, timeout)
	if err != nil {
		logging.Warn("Command response failed", zap.Error(err))
		return nil, err
	}

	response, err := DecodeFrame(raw, l.mode)
	if err != nil {
		logging.Warn("Command response rejected", zap.Error(err))
		return nil, err
	}

	logging.LogExchange("sprd", commandNameOf(payload), payload, response)
	return response, nil
}

// readFrame accumulates transport reads until one complete flag-delimited
// frame has arrived or the timeout budget is exhausted.
func (l *Link) readFrame(ctx context.Context, timeout time.Duration) ([]byte, error) {
	deadline := time.Now().Add(timeout)
	var buf []byte
	for {
		if frame := extractFrame(buf); frame != nil {
			return frame, nil
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, newError(ErrTypeTimeout,
				fmt.Sprintf("no response frame within %s", timeout), nil)
		}
		chunk, err := l.transport.Read(ctx, remaining)
		if err != nil {
			return nil, newError(ErrTypeConnection, "transport read failed", err)
		}
		if len(chunk) == 0 {
			return nil, newError(ErrTypeTimeout,
				fmt.Sprintf("no response frame within %s", timeout), nil)
		}
		buf = append(buf, chunk...)
	}
}

// extractFrame returns the first complete frame in buf, or nil if none has
// fully arrived yet. Noise before the opening flag is skipped.
func extractFrame(buf []byte) []byte {
	start := bytes.IndexByte(buf, FrameFlag)
	if start < 0 {
		return nil
	}
	end := bytes.IndexByte(buf[start+1:], FrameFlag)
	if end < 0 {
		return nil
	}
	if end == 0 {
		// Back-to-back flags: an idle marker, not a frame. Look past it.
		return extractFrame(buf[start+1:])
	}
	return buf[start : start+end+2]
}

func commandNameOf(payload []byte) string {
	if len(payload) < 2 {
		return "CMD_SHORT"
	}
	return CommandName(uint16(payload[0])<<8 | uint16(payload[1]))
}
