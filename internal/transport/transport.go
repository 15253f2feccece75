package transport

import (
	"context"
	"errors"
	"time"
)

// Known USB vendor/product identifiers for supported download modes.
const (
	// SprdVendorID and SprdProductID identify the Spreadtrum U2S Diag port
	// exposed by a chip waiting in boot ROM or FDL mode.
	SprdVendorID  = 0x1782
	SprdProductID = 0x4D00

	// MtkVendorID identifies MediaTek virtual serial ports.
	MtkVendorID = 0x0E8D

	// MtkBromProductID is the product ID of the raw boot-ROM port.
	MtkBromProductID = 0x0003

	// MtkPreloaderProductID is the product ID of the preloader port.
	MtkPreloaderProductID = 0x2000
)

// ErrNotConnected is returned by Write and Read when the transport is closed.
var ErrNotConnected = errors.New("transport is not connected")

// ErrNoDevice is returned by Connect when no port matches the requested
// vendor/product identifiers.
var ErrNoDevice = errors.New("no matching device found")

// Transport is a raw byte pipe to a device in download mode.
//
// Implementations carry no framing and no protocol knowledge: the Spreadtrum
// and MediaTek engines layer their own framing on top. A transport is used by
// one protocol session at a time; implementations do not need to support
// concurrent calls.
type Transport interface {
	// Connect locates and opens the device identified by the USB vendor and
	// product IDs. Calling Connect on an already-connected transport is an error.
	Connect(ctx context.Context, vendorID, productID uint16) error

	// Disconnect closes the transport. It is idempotent.
	Disconnect() error

	// Connected reports whether the transport is currently open.
	Connected() bool

	// Write sends data to the device. A short write is an error.
	Write(ctx context.Context, data []byte) error

	// Read returns the next chunk of bytes from the device, waiting up to
	// timeout. A timeout is not an error: Read returns an empty slice and a
	// nil error, and the caller decides how to react. Cancellation of ctx is
	// observed promptly and returns ctx.Err().
	Read(ctx context.Context, timeout time.Duration) ([]byte, error)
}

// ReadExact reads until exactly n bytes have been received or the timeout
// budget is exhausted. The timeout applies to the whole read, not to each
// chunk. On timeout it returns whatever bytes arrived along with a nil error,
// mirroring Read's timeout contract.
func ReadExact(ctx context.Context, t Transport, n int, timeout time.Duration) ([]byte, error) {
	deadline := time.Now().Add(timeout)
	buf := make([]byte, 0, n)
	for len(buf) < n {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return buf, nil
		}
		chunk, err := t.Read(ctx, remaining)
		if err != nil {
			return buf, err
		}
		if len(chunk) == 0 {
			return buf, nil
		}
		buf = append(buf, chunk...)
	}
	return buf[:n], nil
}
