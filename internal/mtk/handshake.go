package mtk

import (
	"context"
	"fmt"
	"time"

	"github.com/muurk/socflash/internal/logging"
	"github.com/muurk/socflash/internal/transport"
)

// Boot-ROM sync bytes. The host sends each byte and the ROM echoes its
// bitwise complement-ish partner; any other reply means the port is not in
// BROM/preloader mode.
const (
	syncByte1  byte = 0xA0
	syncReply1 byte = 0x5F
	syncByte2  byte = 0x0A
	syncReply2 byte = 0xF5
)

// handshakeReadTimeout bounds each single-byte reply wait.
const handshakeReadTimeout = 2 * time.Second

// Handshake establishes boot-ROM communication with the two-step sync
// exchange. Any mismatch or short read is fatal for the session.
func Handshake(ctx context.Context, t transport.Transport) error {
	steps := []struct {
		send byte
		want byte
	}{
		{syncByte1, syncReply1},
		{syncByte2, syncReply2},
	}
	for _, step := range steps {
		if err := t.Write(ctx, []byte{step.send}); err != nil {
			return newError(ErrTypeConnection,
				fmt.Sprintf("handshake write 0x%02X failed", step.send), err)
		}
		reply, err := transport.ReadExact(ctx, t, 1, handshakeReadTimeout)
		if err != nil {
			return newError(ErrTypeConnection, "handshake read failed", err)
		}
		if len(reply) == 0 {
			return newError(ErrTypeTimeout,
				fmt.Sprintf("no reply to sync byte 0x%02X", step.send), nil)
		}
		if reply[0] != step.want {
			return newError(ErrTypeProtocol,
				fmt.Sprintf("sync byte 0x%02X answered 0x%02X, want 0x%02X",
					step.send, reply[0], step.want), nil)
		}
	}
	logging.Debug("MediaTek boot ROM sync established")
	return nil
}
