package mtk

import (
	"context"
	"encoding/binary"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/socflash/internal/logging"
	"github.com/muurk/socflash/internal/observer"
	"github.com/muurk/socflash/internal/transport"
)

const (
	// DefaultDAAddress is where the boot ROM is told to place the agent.
	DefaultDAAddress = 0x201000

	// daChunkSize is the upload granularity. Chunks are not acknowledged.
	daChunkSize = 1024

	// minDASize guards against truncated agent files.
	minDASize = 256

	daSyncRequest    = 0xA0
	daSyncReady      = 0x5F
	daAlreadyRunning = 0xA1
	daHeaderAck      = 0xA1
	daStatusSuccess  = 0xE0
	daStatusAccepted = 0xC0

	daSyncAttempts   = 3
	daSyncTimeout    = 2 * time.Second
	daHeaderTimeout  = 3 * time.Second
	daStatusTimeout  = 5 * time.Second
	daInterChunkGap  = 2 * time.Millisecond
	daSyncRetryDelay = 300 * time.Millisecond
)

// DAFile is a download agent image loaded from disk.
type DAFile struct {
	Path string
	Data []byte
}

// LoadDAFile reads and validates a download agent image.
func LoadDAFile(path string) (*DAFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, newError(ErrTypeConfiguration,
			fmt.Sprintf("cannot read agent file %s", path), err)
	}
	if len(data) < minDASize {
		return nil, newError(ErrTypeConfiguration,
			fmt.Sprintf("agent file %s is %d bytes, below the %d byte minimum",
				path, len(data), minDASize), nil)
	}
	return &DAFile{Path: path, Data: data}, nil
}

// Uploader pushes a download agent into boot-ROM memory.
type Uploader struct {
	transport transport.Transport
	obs       observer.Observer

	// Address overrides the load address. Zero means DefaultDAAddress.
	Address uint32

	// ProgressFloor and ProgressCeil scale chunk progress into a sub-range
	// of an enclosing operation. Both zero means the full 0..100 range.
	ProgressFloor float64
	ProgressCeil  float64
}

// NewUploader creates an uploader over an already-connected transport.
func NewUploader(t transport.Transport, obs observer.Observer) *Uploader {
	if obs == nil {
		obs = observer.Nop{}
	}
	return &Uploader{transport: t, obs: obs}
}

func (u *Uploader) address() uint32 {
	if u.Address == 0 {
		return DefaultDAAddress
	}
	return u.Address
}

func (u *Uploader) progress(fraction float64) {
	floor, ceil := u.ProgressFloor, u.ProgressCeil
	if ceil <= floor {
		floor, ceil = 0, 100
	}
	u.obs.Progress(floor + fraction*(ceil-floor))
}

// Upload runs the full agent transfer: sync, header, payload, final status.
// A device that reports the agent is already running short-circuits to
// success.
func (u *Uploader) Upload(ctx context.Context, da *DAFile) error {
	if da == nil || len(da.Data) == 0 {
		return newError(ErrTypeConfiguration, "no agent image to upload", nil)
	}

	running, err := u.sync(ctx)
	if err != nil {
		return err
	}
	if running {
		u.obs.Log(observer.LevelInfo, "Download agent already running, skipping upload")
		u.progress(1)
		return nil
	}

	if err := u.sendHeader(ctx, uint32(len(da.Data))); err != nil {
		return err
	}
	if err := u.sendPayload(ctx, da.Data); err != nil {
		return err
	}
	return u.awaitFinalStatus(ctx)
}

// sync gets the boot ROM's attention. The second return value is true when
// the device answers that an agent is already resident and running.
func (u *Uploader) sync(ctx context.Context) (bool, error) {
	var lastErr error
	for attempt := 1; attempt <= daSyncAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return false, newError(ErrTypeCancelled, "upload cancelled during sync", err)
		}
		if err := u.transport.Write(ctx, []byte{daSyncRequest}); err != nil {
			return false, newError(ErrTypeConnection, "sync write failed", err)
		}
		response, err := u.transport.Read(ctx, daSyncTimeout)
		if err != nil {
			return false, newError(ErrTypeConnection, "sync read failed", err)
		}
		if len(response) > 0 {
			switch response[0] {
			case daSyncReady:
				return false, nil
			case daAlreadyRunning:
				return true, nil
			}
			lastErr = newError(ErrTypeProtocol,
				fmt.Sprintf("sync attempt %d answered 0x%02X", attempt, response[0]), nil)
			logging.Debug("Unexpected sync reply",
				zap.Int("attempt", attempt),
				zap.Uint8("reply", response[0]),
			)
		} else {
			lastErr = newError(ErrTypeTimeout,
				fmt.Sprintf("sync attempt %d received no reply", attempt), nil)
			u.obs.Log(observer.LevelWarn,
				fmt.Sprintf("Sync attempt %d/%d timed out", attempt, daSyncAttempts))
		}
		select {
		case <-ctx.Done():
			return false, newError(ErrTypeCancelled, "upload cancelled during sync", ctx.Err())
		case <-time.After(daSyncRetryDelay):
		}
	}
	return false, lastErr
}

// sendHeader announces the load address and payload size, little-endian,
// and waits for the acceptance byte.
func (u *Uploader) sendHeader(ctx context.Context, size uint32) error {
	header := make([]byte, 8)
	binary.LittleEndian.PutUint32(header[0:4], u.address())
	binary.LittleEndian.PutUint32(header[4:8], size)
	if err := u.transport.Write(ctx, header); err != nil {
		return newError(ErrTypeConnection, "header write failed", err)
	}
	reply, err := u.transport.Read(ctx, daHeaderTimeout)
	if err != nil {
		return newError(ErrTypeConnection, "header reply read failed", err)
	}
	if len(reply) == 0 {
		return newError(ErrTypeTimeout, "no header acknowledgement", nil)
	}
	if reply[0] != daHeaderAck {
		return newError(ErrTypeProtocol,
			fmt.Sprintf("header rejected with 0x%02X", reply[0]), nil)
	}
	return nil
}

// sendPayload streams the agent image. Individual chunks are not
// acknowledged; only the final status byte reports the outcome.
func (u *Uploader) sendPayload(ctx context.Context, data []byte) error {
	total := len(data)
	sent := 0
	for sent < total {
		if err := ctx.Err(); err != nil {
			return newError(ErrTypeCancelled, "upload cancelled mid-transfer", err)
		}
		end := sent + daChunkSize
		if end > total {
			end = total
		}
		if err := u.transport.Write(ctx, data[sent:end]); err != nil {
			return newError(ErrTypeConnection,
				fmt.Sprintf("chunk write failed at offset %d", sent), err)
		}
		sent = end
		u.progress(float64(sent) / float64(total))
		if sent < total {
			select {
			case <-ctx.Done():
				return newError(ErrTypeCancelled, "upload cancelled mid-transfer", ctx.Err())
			case <-time.After(daInterChunkGap):
			}
		}
	}
	logging.Info("Agent payload transferred",
		zap.Int("bytes", total),
		zap.Uint32("address", u.address()),
	)
	return nil
}

func (u *Uploader) awaitFinalStatus(ctx context.Context) error {
	reply, err := u.transport.Read(ctx, daStatusTimeout)
	if err != nil {
		return newError(ErrTypeConnection, "final status read failed", err)
	}
	if len(reply) == 0 {
		return newError(ErrTypeTimeout, "no final status after upload", nil)
	}
	switch reply[0] {
	case daStatusSuccess, daStatusAccepted, daAlreadyRunning:
		return nil
	}
	return newError(ErrTypeProtocol,
		fmt.Sprintf("upload rejected with status 0x%02X", reply[0]), nil)
}
