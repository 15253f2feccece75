// Package logging provides structured logging for socflash.
//
// This package wraps zap logger with convenience functions for common logging
// patterns used throughout the flashing tools. It provides both general logging
// functions and specialized functions for protocol-level logging needs.
//
// # Log Levels
//
// The package supports standard log levels:
//   - Debug: Detailed debugging info (hex dumps, frame encoding, probe responses)
//   - Info: Normal operations (transport open/close, state transitions)
//   - Warn: Non-fatal issues (skipped FDL2 stage, baud-change rejection, retries)
//   - Error: Fatal issues (handshake failures, aborted flash runs)
//
// # Structured Logging
//
// All log functions use structured fields for queryability:
//
//	logging.Info("Boot ROM handshake complete",
//	    zap.String("protocol", "sprd"),
//	    zap.String("identifier", "SPRD3"),
//	)
//
// # Specialized Logging
//
// The package provides domain-specific logging functions:
//
// Transport Logging:
//
//	logging.LogTransport(portName, "opened")
//	logging.LogTransport(portName, "closed")
//
// Protocol Exchange Logging:
//
//	logging.LogExchange("sprd", "CMD_START_DATA", request, response)
//
// Raw Byte Logging:
//
//	logging.LogRawBytes("chip probe response", data)
//
// # Configuration
//
// Logging is silent by default so protocol progress output stays clean. Set the
// SOCFLASH_LOG_LEVEL environment variable or call Initialize at startup:
//
//	if err := logging.InitializeFromEnv(); err != nil {
//	    log.Fatal(err)
//	}
//	defer logging.Sync()
//
// # Thread Safety
//
// All logging functions are safe for concurrent use. The underlying zap logger
// handles synchronization automatically.
package logging
