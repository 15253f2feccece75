// Package transport provides raw byte transports to devices in download mode.
//
// A Transport is an already-framed-below byte pipe: open it by USB
// vendor/product ID, write command bytes, read response bytes with a timeout.
// Everything protocol-specific (HDLC framing, checksums, handshakes) lives in
// the sprd and mtk packages on top of this interface.
//
// Two implementations are provided:
//
//   - Serial: a local USB virtual serial port, located by enumerating the OS
//     port list and matching VID/PID (no platform port names needed).
//   - Bridge: a relay to a serial port on a remote host running
//     socflash-bridge, carried over binary WebSocket messages.
//
// # Timeouts and Cancellation
//
// Read treats a timeout as a normal outcome, returning an empty slice with a
// nil error; the protocol layers decide whether that aborts a flow. Both
// implementations split long waits into short slices so a cancelled context
// is observed within roughly 100-250ms, never leaving the device mid-frame.
package transport
