package sprd

import (
	"bytes"
	"context"
	"encoding/binary"
	"testing"
	"time"
)

// fakeTransport scripts the device side of a session. Each Write is decoded
// by the respond callback, which queues zero or more read chunks.
type fakeTransport struct {
	connected bool
	connects  int
	writes    [][]byte
	pending   [][]byte
	respond   func(t *fakeTransport, written []byte)
}

func (f *fakeTransport) Connect(ctx context.Context, vendorID, productID uint16) error {
	f.connected = true
	f.connects++
	return nil
}

func (f *fakeTransport) Disconnect() error {
	f.connected = false
	return nil
}

func (f *fakeTransport) Connected() bool {
	return f.connected
}

func (f *fakeTransport) Write(ctx context.Context, data []byte) error {
	cp := make([]byte, len(data))
	copy(cp, data)
	f.writes = append(f.writes, cp)
	if f.respond != nil {
		f.respond(f, cp)
	}
	return nil
}

func (f *fakeTransport) Read(ctx context.Context, timeout time.Duration) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(f.pending) == 0 {
		// Simulated read timeout.
		return nil, nil
	}
	chunk := f.pending[0]
	f.pending = f.pending[1:]
	return chunk, nil
}

// queueAck queues an ACK response frame encoded under the given mode.
func (f *fakeTransport) queueAck(mode ChecksumMode, data []byte) {
	response := make([]byte, 4+len(data))
	binary.BigEndian.PutUint16(response[0:2], RepAck)
	binary.BigEndian.PutUint16(response[2:4], uint16(len(data)))
	copy(response[4:], data)
	frame, err := EncodeFrame(response, mode)
	if err != nil {
		panic(err)
	}
	f.pending = append(f.pending, frame)
}

func TestLinkConnectDisconnect(t *testing.T) {
	ft := &fakeTransport{}
	link := NewLink(ft)

	if link.State() != Disconnected {
		t.Fatalf("initial state = %v, want disconnected", link.State())
	}
	if err := link.Connect(context.Background(), 0x1782, 0x4D00); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if link.State() != Connected {
		t.Fatalf("state after connect = %v, want connected", link.State())
	}
	if err := link.Connect(context.Background(), 0x1782, 0x4D00); err == nil {
		t.Fatal("second Connect() should fail")
	}

	link.Disconnect()
	if link.State() != Disconnected {
		t.Fatalf("state after disconnect = %v, want disconnected", link.State())
	}
	// Second disconnect is an idempotent no-op.
	link.Disconnect()
	if link.State() != Disconnected {
		t.Fatal("repeated disconnect should leave link disconnected")
	}
}

func TestLinkExecuteCommand(t *testing.T) {
	ft := &fakeTransport{}
	ft.respond = func(f *fakeTransport, written []byte) {
		f.queueAck(ChecksumXmodem, []byte("SPRD3"))
	}
	link := NewLink(ft)
	if err := link.Connect(context.Background(), 0x1782, 0x4D00); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	response, err := link.ExecuteCommand(context.Background(), BuildCommand(CmdConnect, nil), time.Second)
	if err != nil {
		t.Fatalf("ExecuteCommand() error = %v", err)
	}
	code, data, err := ParseResponse(response)
	if err != nil {
		t.Fatalf("ParseResponse() error = %v", err)
	}
	if code != RepAck {
		t.Errorf("response code = 0x%04X, want 0x%04X", code, RepAck)
	}
	if !bytes.Equal(data, []byte("SPRD3")) {
		t.Errorf("response data = %q, want SPRD3", data)
	}

	// The request on the wire must be a valid frame around the command.
	if len(ft.writes) != 1 {
		t.Fatalf("writes = %d, want 1", len(ft.writes))
	}
	payload, err := DecodeFrame(ft.writes[0], ChecksumXmodem)
	if err != nil {
		t.Fatalf("written frame invalid: %v", err)
	}
	if !bytes.Equal(payload, BuildCommand(CmdConnect, nil)) {
		t.Errorf("written payload = % X", payload)
	}
}

func TestLinkExecuteCommandRequiresConnection(t *testing.T) {
	link := NewLink(&fakeTransport{})
	_, err := link.ExecuteCommand(context.Background(), BuildCommand(CmdConnect, nil), time.Second)
	if !IsType(err, ErrTypeConnection) {
		t.Errorf("error = %v, want connection error", err)
	}
}

func TestLinkExecuteCommandTimeout(t *testing.T) {
	ft := &fakeTransport{} // never responds
	link := NewLink(ft)
	if err := link.Connect(context.Background(), 0x1782, 0x4D00); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	_, err := link.ExecuteCommand(context.Background(), BuildCommand(CmdConnect, nil), 50*time.Millisecond)
	if !IsTimeout(err) {
		t.Errorf("error = %v, want timeout", err)
	}
}

func TestLinkChecksumModeSwitch(t *testing.T) {
	ft := &fakeTransport{}
	ft.respond = func(f *fakeTransport, written []byte) {
		f.queueAck(ChecksumFDL, nil)
	}
	link := NewLink(ft)
	if err := link.Connect(context.Background(), 0x1782, 0x4D00); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	if link.ChecksumMode() != ChecksumXmodem {
		t.Fatalf("initial mode = %v, want xmodem", link.ChecksumMode())
	}
	link.SetChecksumMode(ChecksumFDL)

	// An FDL-checksummed response must now decode cleanly.
	if _, err := link.ExecuteCommand(context.Background(), BuildCommand(CmdConnect, nil), time.Second); err != nil {
		t.Fatalf("ExecuteCommand() error = %v", err)
	}
	// And the outgoing frame must carry an FDL checksum.
	if _, err := DecodeFrame(ft.writes[0], ChecksumFDL); err != nil {
		t.Errorf("written frame not FDL-checksummed: %v", err)
	}
}

func TestLinkRejectsCorruptResponse(t *testing.T) {
	ft := &fakeTransport{}
	ft.respond = func(f *fakeTransport, written []byte) {
		f.queueAck(ChecksumXmodem, nil)
		// Corrupt a body byte of the queued frame.
		frame := f.pending[len(f.pending)-1]
		frame[1] ^= 0xFF
	}
	link := NewLink(ft)
	if err := link.Connect(context.Background(), 0x1782, 0x4D00); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	_, err := link.ExecuteCommand(context.Background(), BuildCommand(CmdConnect, nil), time.Second)
	if err == nil {
		t.Fatal("corrupt response should not decode")
	}
	if !IsChecksumMismatch(err) && !IsFramingError(err) {
		t.Errorf("error = %v, want checksum or framing error", err)
	}
}
