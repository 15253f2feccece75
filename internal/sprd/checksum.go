package sprd

import "errors"

// ErrNilBuffer is returned by the checksum functions when called with a nil
// slice. An allocated but empty buffer is valid input.
var ErrNilBuffer = errors.New("checksum input buffer is nil")

// ChecksumMode selects which checksum algorithm computes a frame's trailer.
// The mode is set once per handshake stage and applies to every frame until
// changed: the boot ROM speaks CRC-16/XMODEM, while a running FDL1 expects
// the one's-complement word sum.
type ChecksumMode int

const (
	// ChecksumXmodem is CRC-16/XMODEM, used while talking to the boot ROM.
	ChecksumXmodem ChecksumMode = iota
	// ChecksumFDL is the one's-complement big-endian word sum, used once
	// FDL1 is running.
	ChecksumFDL
)

// String returns a human-readable name for the checksum mode
func (m ChecksumMode) String() string {
	switch m {
	case ChecksumXmodem:
		return "xmodem"
	case ChecksumFDL:
		return "fdl"
	default:
		return "unknown"
	}
}

// XmodemCRC16 computes CRC-16/XMODEM over data: polynomial 0x1021, initial
// value 0x0000, MSB-first, no reflection, no final XOR. Empty input yields
// 0x0000.
func XmodemCRC16(data []byte) (uint16, error) {
	if data == nil {
		return 0, ErrNilBuffer
	}
	var crc uint16
	for _, b := range data {
		crc ^= uint16(b) << 8
		for i := 0; i < 8; i++ {
			if crc&0x8000 != 0 {
				crc = crc<<1 ^ 0x1021
			} else {
				crc <<= 1
			}
		}
	}
	return crc, nil
}

// FDLChecksum computes the checksum a running FDL expects: sum 16-bit
// big-endian words over data, fold the 32-bit accumulator and return the
// one's complement. An odd trailing byte is added at its raw numeric value
// rather than zero-padded into a word's high byte; the device firmware
// diverges from the Internet checksum here, so this must not be "fixed".
// Empty input yields 0xFFFF.
func FDLChecksum(data []byte) (uint16, error) {
	if data == nil {
		return 0, ErrNilBuffer
	}
	var acc uint32
	i := 0
	for ; i+1 < len(data); i += 2 {
		acc += uint32(data[i])<<8 | uint32(data[i+1])
	}
	if i < len(data) {
		acc += uint32(data[i])
	}
	acc = (acc >> 16) + (acc & 0xFFFF)
	acc += acc >> 16
	return ^uint16(acc), nil
}

// Checksum computes the trailer checksum for payload under the given mode.
func Checksum(mode ChecksumMode, payload []byte) (uint16, error) {
	if mode == ChecksumFDL {
		return FDLChecksum(payload)
	}
	return XmodemCRC16(payload)
}
