// Package mtk speaks the MediaTek boot-ROM download protocol.
//
// A MediaTek SoC held in BROM or preloader mode exposes a simple byte-level
// protocol over USB-CDC serial. The package covers the full pre-flash
// session:
//
//   - Handshake: the two-step sync exchange (0xA0 answered by 0x5F, then
//     0x0A answered by 0xF5) that proves the port really is a boot ROM.
//   - Identifier: three independent probe strategies read the chip's
//     hardware code, interpret it against a fixed table of known parts, and
//     arbitrate deterministically when the probes disagree.
//   - Uploader: pushes a download agent (DA) binary into SRAM. The header
//     carries the load address and size as little-endian words, unlike the
//     Spreadtrum protocol's big-endian fields; the payload streams in
//     unacknowledged 1024-byte chunks with a single final status byte.
//   - Processor: sequences handshake, identification, an agent
//     compatibility check against the DA filename, the upload, and a
//     best-effort device-info query.
//
// All blocking operations take a context and abort promptly when it is
// cancelled. Errors carry an ErrorType so callers can distinguish transport
// failures from protocol violations and timeouts.
package mtk
