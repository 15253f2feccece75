package transport

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"
	"go.uber.org/zap"

	"github.com/muurk/socflash/internal/logging"
)

const (
	// readSlice is the maximum blocking time of a single OS read. Keeping it
	// short lets Read observe context cancellation within one slice.
	readSlice = 100 * time.Millisecond

	// readBufferSize is large enough for any single response frame either
	// protocol produces.
	readBufferSize = 4096
)

// Serial is a Transport backed by a local USB virtual serial port. The port
// is located by USB vendor/product ID via OS enumeration, so callers never
// deal with platform port names.
type Serial struct {
	// BaudRate used when opening the port. Zero means 115200.
	BaudRate int

	// PortName pins the transport to a specific port (e.g. "/dev/ttyACM0"),
	// bypassing VID/PID enumeration. Useful when several devices are attached.
	PortName string

	port serial.Port
	name string
}

// NewSerial creates a serial transport with default settings.
func NewSerial() *Serial {
	return &Serial{}
}

// Connect enumerates USB serial ports and opens the first one matching the
// given vendor/product IDs (or the pinned PortName if set).
func (s *Serial) Connect(ctx context.Context, vendorID, productID uint16) error {
	if s.port != nil {
		return fmt.Errorf("serial transport already connected to %s", s.name)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	name := s.PortName
	if name == "" {
		found, err := FindPort(vendorID, productID)
		if err != nil {
			return err
		}
		name = found
	}

	baud := s.BaudRate
	if baud == 0 {
		baud = 115200
	}
	mode := &serial.Mode{
		BaudRate: baud,
		Parity:   serial.NoParity,
		DataBits: 8,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(name, mode)
	if err != nil {
		return fmt.Errorf("failed to open port %s: %w", name, err)
	}

	s.port = port
	s.name = name
	logging.LogTransport(name, "opened")
	return nil
}

// Disconnect closes the port. Safe to call when already closed.
func (s *Serial) Disconnect() error {
	if s.port == nil {
		return nil
	}
	err := s.port.Close()
	logging.LogTransport(s.name, "closed")
	s.port = nil
	s.name = ""
	return err
}

// Connected reports whether the port is open.
func (s *Serial) Connected() bool {
	return s.port != nil
}

// Write sends data to the port in full.
func (s *Serial) Write(ctx context.Context, data []byte) error {
	if s.port == nil {
		return ErrNotConnected
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	n, err := s.port.Write(data)
	if err != nil {
		return fmt.Errorf("serial write failed: %w", err)
	}
	if n != len(data) {
		return fmt.Errorf("short serial write: %d of %d bytes", n, len(data))
	}
	return nil
}

// Read waits up to timeout for the next chunk of bytes. The wait is split
// into short slices so that ctx cancellation is observed promptly.
func (s *Serial) Read(ctx context.Context, timeout time.Duration) ([]byte, error) {
	if s.port == nil {
		return nil, ErrNotConnected
	}

	deadline := time.Now().Add(timeout)
	buf := make([]byte, readBufferSize)
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, nil
		}
		slice := readSlice
		if remaining < slice {
			slice = remaining
		}
		if err := s.port.SetReadTimeout(slice); err != nil {
			return nil, fmt.Errorf("failed to set read timeout: %w", err)
		}
		n, err := s.port.Read(buf)
		if err != nil {
			return nil, fmt.Errorf("serial read failed: %w", err)
		}
		if n > 0 {
			data := make([]byte, n)
			copy(data, buf[:n])
			return data, nil
		}
	}
}

// FindPort returns the name of the first USB serial port matching the given
// vendor/product IDs.
func FindPort(vendorID, productID uint16) (string, error) {
	ports, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return "", fmt.Errorf("failed to enumerate serial ports: %w", err)
	}
	for _, p := range ports {
		if !p.IsUSB {
			continue
		}
		if matchesUSBID(p.VID, vendorID) && matchesUSBID(p.PID, productID) {
			logging.Debug("Matched USB serial port",
				zap.String("port", p.Name),
				zap.String("vid", p.VID),
				zap.String("pid", p.PID),
			)
			return p.Name, nil
		}
	}
	return "", fmt.Errorf("%w: %04X:%04X", ErrNoDevice, vendorID, productID)
}

// ListPorts returns all USB serial ports visible to the OS.
func ListPorts() ([]*enumerator.PortDetails, error) {
	ports, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate serial ports: %w", err)
	}
	usb := make([]*enumerator.PortDetails, 0, len(ports))
	for _, p := range ports {
		if p.IsUSB {
			usb = append(usb, p)
		}
	}
	return usb, nil
}

// matchesUSBID compares the enumerator's hex ID string against a numeric ID.
// Enumerated IDs vary in case and padding across platforms.
func matchesUSBID(reported string, want uint16) bool {
	reported = strings.TrimSpace(reported)
	if reported == "" {
		return false
	}
	v, err := strconv.ParseUint(reported, 16, 16)
	if err != nil {
		return false
	}
	return uint16(v) == want
}
