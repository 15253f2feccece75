// Package sprd implements the Spreadtrum/Unisoc boot-ROM download protocol.
//
// Spreadtrum chips in download mode expose a BSL command protocol over a USB
// virtual serial port. Packets are wrapped in HDLC-style frames: a 0x7E flag,
// the escaped payload plus a big-endian 16-bit checksum, and a closing 0x7E
// flag. 0x7E and 0x7D inside the payload are escaped as 0x7D 0x5E and
// 0x7D 0x5D.
//
// # Checksum Modes
//
// Two checksum algorithms are in play, selected by handshake stage:
//   - The boot ROM uses CRC-16/XMODEM.
//   - A running FDL1 uses a one's-complement sum of big-endian 16-bit words,
//     with an odd trailing byte added at its raw value. This deliberately
//     differs from the Internet checksum's zero-padding rule; the device
//     firmware computes it this way.
//
// # Bootstrap Sequence
//
// Engine.Run drives the full load-and-execute sequence:
//
//	connect -> boot-ROM handshake -> load FDL1 -> execute FDL1
//	       -> reconnect -> FDL1 handshake -> load FDL2 (optional)
//	       -> execute FDL2 -> change baud
//
// FDL images stream in 1024-byte chunks and every chunk must be acknowledged
// before the next is sent. A missing or wrong ACK aborts the run immediately;
// the protocol has no per-chunk retry. The baud change is the one non-fatal
// step: FDL builds that ignore it are common, so a rejection only logs a
// warning.
//
// # Cancellation
//
// Every blocking exchange takes a context. Cancelling it is observed within
// one chunk's latency and surfaces as an Error with ErrTypeCancelled; the
// transport is always released on the way out.
package sprd
