package sprd

import (
	"encoding/binary"
	"fmt"
)

// HDLC-style frame delimiters and escape bytes
const (
	// FrameFlag delimits the start and end of every frame on the wire
	FrameFlag byte = 0x7E
	// FrameEscape introduces a two-byte escape sequence
	FrameEscape byte = 0x7D

	// escapedFlag follows FrameEscape to encode a literal 0x7E
	escapedFlag byte = 0x5E
	// escapedEscape follows FrameEscape to encode a literal 0x7D
	escapedEscape byte = 0x5D
)

// Escape replaces every 0x7E with 0x7D 0x5E and every 0x7D with 0x7D 0x5D so
// the escaped region never contains a raw flag or escape byte.
func Escape(data []byte) []byte {
	out := make([]byte, 0, len(data)+4)
	for _, b := range data {
		switch b {
		case FrameFlag:
			out = append(out, FrameEscape, escapedFlag)
		case FrameEscape:
			out = append(out, FrameEscape, escapedEscape)
		default:
			out = append(out, b)
		}
	}
	return out
}

// Unescape is the exact inverse of Escape. An escape byte followed by
// anything other than 0x5E/0x5D is preserved literally (both bytes kept),
// and a trailing unmatched escape byte is kept as-is; the checksum check
// catches real corruption, so neither case is a protocol violation here.
func Unescape(data []byte) []byte {
	out := make([]byte, 0, len(data))
	for i := 0; i < len(data); i++ {
		if data[i] != FrameEscape {
			out = append(out, data[i])
			continue
		}
		if i+1 >= len(data) {
			out = append(out, data[i])
			break
		}
		switch data[i+1] {
		case escapedFlag:
			out = append(out, FrameFlag)
			i++
		case escapedEscape:
			out = append(out, FrameEscape)
			i++
		default:
			out = append(out, data[i])
		}
	}
	return out
}

// EncodeFrame wraps payload into an on-wire frame: the checksum for the
// active mode is appended big-endian, the combined buffer is escaped, and the
// result is delimited with flag bytes.
func EncodeFrame(payload []byte, mode ChecksumMode) ([]byte, error) {
	if payload == nil {
		payload = []byte{}
	}
	sum, err := Checksum(mode, payload)
	if err != nil {
		return nil, err
	}

	body := make([]byte, len(payload)+2)
	copy(body, payload)
	binary.BigEndian.PutUint16(body[len(payload):], sum)

	escaped := Escape(body)
	frame := make([]byte, 0, len(escaped)+2)
	frame = append(frame, FrameFlag)
	frame = append(frame, escaped...)
	frame = append(frame, FrameFlag)
	return frame, nil
}

// DecodeFrame validates the delimiters and checksum of a received frame and
// returns the inner payload.
func DecodeFrame(frame []byte, mode ChecksumMode) ([]byte, error) {
	if len(frame) < 2 {
		return nil, newError(ErrTypeFraming,
			fmt.Sprintf("frame too short: %d bytes", len(frame)), nil)
	}
	if frame[0] != FrameFlag || frame[len(frame)-1] != FrameFlag {
		return nil, newError(ErrTypeFraming,
			fmt.Sprintf("missing frame delimiters: first=0x%02X last=0x%02X",
				frame[0], frame[len(frame)-1]), nil)
	}

	body := Unescape(frame[1 : len(frame)-1])
	if len(body) < 2 {
		return nil, newError(ErrTypeFraming,
			fmt.Sprintf("frame body too short after unescaping: %d bytes", len(body)), nil)
	}

	payload := body[:len(body)-2]
	received := binary.BigEndian.Uint16(body[len(body)-2:])
	computed, err := Checksum(mode, payload)
	if err != nil {
		return nil, err
	}
	if received != computed {
		return nil, newError(ErrTypeChecksum,
			fmt.Sprintf("checksum mismatch: received 0x%04X, computed 0x%04X (%s)",
				received, computed, mode), nil)
	}
	return payload, nil
}
