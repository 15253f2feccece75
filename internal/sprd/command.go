package sprd

import (
	"encoding/binary"
	"fmt"
)

// BSL command codes understood by the Spreadtrum boot ROM and FDL stages.
// Every command is a 2-byte big-endian code, a 2-byte big-endian parameter
// length, and the parameters themselves.
const (
	// CmdConnect opens the session; the reply carries the stage identifier
	CmdConnect uint16 = 0x0000
	// CmdStartData announces a download: load address + total length
	CmdStartData uint16 = 0x0001
	// CmdMidstData carries one chunk of the download
	CmdMidstData uint16 = 0x0002
	// CmdEndData closes the download
	CmdEndData uint16 = 0x0003
	// CmdExecData jumps to a previously downloaded image
	CmdExecData uint16 = 0x0004
	// CmdChangeBaud requests a new line rate
	CmdChangeBaud uint16 = 0x0009
)

// RepAck is the response code acknowledging an accepted command.
const RepAck uint16 = 0x0080

// CommandName returns the mnemonic for a command code, for logging.
func CommandName(code uint16) string {
	switch code {
	case CmdConnect:
		return "CMD_CONNECT"
	case CmdStartData:
		return "CMD_START_DATA"
	case CmdMidstData:
		return "CMD_MIDST_DATA"
	case CmdEndData:
		return "CMD_END_DATA"
	case CmdExecData:
		return "CMD_EXEC_DATA"
	case CmdChangeBaud:
		return "CMD_CHANGE_BAUD"
	default:
		return fmt.Sprintf("CMD_0x%04X", code)
	}
}

// BuildCommand assembles a command payload: code, parameter length, and
// parameters, all fields big-endian.
func BuildCommand(code uint16, params []byte) []byte {
	buf := make([]byte, 4+len(params))
	binary.BigEndian.PutUint16(buf[0:2], code)
	binary.BigEndian.PutUint16(buf[2:4], uint16(len(params)))
	copy(buf[4:], params)
	return buf
}

// ParseResponse splits a decoded response payload into its code and data.
// The declared data length is validated against the actual payload size.
func ParseResponse(payload []byte) (uint16, []byte, error) {
	if len(payload) < 4 {
		return 0, nil, newError(ErrTypeProtocol,
			fmt.Sprintf("response header truncated: %d bytes", len(payload)), nil)
	}
	code := binary.BigEndian.Uint16(payload[0:2])
	declared := int(binary.BigEndian.Uint16(payload[2:4]))
	data := payload[4:]
	if declared > len(data) {
		return 0, nil, newError(ErrTypeProtocol,
			fmt.Sprintf("response declares %d data bytes but carries %d", declared, len(data)), nil)
	}
	return code, data[:declared], nil
}
