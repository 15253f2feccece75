package transport

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"time"

	"github.com/gorilla/websocket"

	"github.com/muurk/socflash/internal/logging"
)

// Bridge is a Transport that relays bytes to a serial port attached to a
// remote host running socflash-bridge. Each Write becomes one binary
// WebSocket message; each binary message from the bridge is one Read chunk.
type Bridge struct {
	// Addr is the bridge host:port.
	Addr string

	// DialTimeout bounds the WebSocket connection attempt. Zero means 10s.
	DialTimeout time.Duration

	conn *websocket.Conn
}

// NewBridge creates a transport relayed through the bridge at addr.
func NewBridge(addr string) *Bridge {
	return &Bridge{Addr: addr}
}

// Connect dials the bridge and asks it to open the port matching the given
// vendor/product IDs on its side.
func (b *Bridge) Connect(ctx context.Context, vendorID, productID uint16) error {
	if b.conn != nil {
		return fmt.Errorf("bridge transport already connected to %s", b.Addr)
	}

	dialTimeout := b.DialTimeout
	if dialTimeout == 0 {
		dialTimeout = 10 * time.Second
	}
	dialCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()

	u := url.URL{
		Scheme:   "ws",
		Host:     b.Addr,
		Path:     "/attach",
		RawQuery: fmt.Sprintf("vid=%04X&pid=%04X", vendorID, productID),
	}

	conn, resp, err := websocket.DefaultDialer.DialContext(dialCtx, u.String(), nil)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("bridge refused attach (%s): %w", resp.Status, err)
		}
		return fmt.Errorf("failed to dial bridge %s: %w", b.Addr, err)
	}

	b.conn = conn
	logging.LogTransport(b.Addr, "bridge_attached")
	return nil
}

// Disconnect closes the WebSocket. Safe to call when already closed.
func (b *Bridge) Disconnect() error {
	if b.conn == nil {
		return nil
	}
	// Best-effort close handshake; the bridge releases the port either way.
	_ = b.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	err := b.conn.Close()
	b.conn = nil
	logging.LogTransport(b.Addr, "bridge_detached")
	return err
}

// Connected reports whether the bridge session is open.
func (b *Bridge) Connected() bool {
	return b.conn != nil
}

// Write relays data to the remote serial port as one binary message.
func (b *Bridge) Write(ctx context.Context, data []byte) error {
	if b.conn == nil {
		return ErrNotConnected
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = b.conn.SetWriteDeadline(deadline)
	} else {
		_ = b.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	}
	if err := b.conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
		return fmt.Errorf("bridge write failed: %w", err)
	}
	return nil
}

// Read waits up to timeout for the next binary message from the bridge.
func (b *Bridge) Read(ctx context.Context, timeout time.Duration) ([]byte, error) {
	if b.conn == nil {
		return nil, ErrNotConnected
	}

	deadline := time.Now().Add(timeout)
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, nil
		}
		// Slice the wait so ctx cancellation is observed between reads.
		slice := 250 * time.Millisecond
		if remaining < slice {
			slice = remaining
		}
		if err := b.conn.SetReadDeadline(time.Now().Add(slice)); err != nil {
			return nil, fmt.Errorf("failed to set read deadline: %w", err)
		}
		msgType, data, err := b.conn.ReadMessage()
		if err != nil {
			if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
				continue
			}
			return nil, fmt.Errorf("bridge read failed: %w", err)
		}
		if msgType != websocket.BinaryMessage || len(data) == 0 {
			continue
		}
		return data, nil
	}
}
