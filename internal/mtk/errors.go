package mtk

import (
	"context"
	"errors"
	"fmt"
)

// Error types for MediaTek protocol operations

// ErrorType represents the category of error that occurred
type ErrorType int

const (
	// ErrTypeConnection indicates the transport could not be opened or dropped
	ErrTypeConnection ErrorType = iota
	// ErrTypeProtocol indicates an unexpected byte from the device
	ErrTypeProtocol
	// ErrTypeTimeout indicates the device did not respond in time
	ErrTypeTimeout
	// ErrTypeCancelled indicates the operation was cancelled by the caller
	ErrTypeCancelled
	// ErrTypeConfiguration indicates a missing or invalid DA file
	ErrTypeConfiguration
)

// String returns a human-readable name for the error type
func (et ErrorType) String() string {
	switch et {
	case ErrTypeConnection:
		return "Connection Error"
	case ErrTypeProtocol:
		return "Protocol Error"
	case ErrTypeTimeout:
		return "Timeout"
	case ErrTypeCancelled:
		return "Cancelled"
	case ErrTypeConfiguration:
		return "Configuration Error"
	default:
		return fmt.Sprintf("ErrorType(%d)", et)
	}
}

// Error represents an error from the MediaTek protocol stack
type Error struct {
	Type    ErrorType // Category of error
	Message string    // Human-readable error message
	Err     error     // Underlying error (if any)
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error for error chain inspection
func (e *Error) Unwrap() error {
	return e.Err
}

// newError creates a typed protocol error. Cancellation wins over the error
// type at the failure site.
func newError(t ErrorType, message string, err error) *Error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		t = ErrTypeCancelled
	}
	return &Error{Type: t, Message: message, Err: err}
}

// IsType checks whether err is a protocol Error of the given type
func IsType(err error, t ErrorType) bool {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Type == t
	}
	return false
}

// IsProtocolError checks if an error is an unexpected-response error
func IsProtocolError(err error) bool {
	return IsType(err, ErrTypeProtocol)
}

// IsTimeout checks if an error is a device timeout
func IsTimeout(err error) bool {
	return IsType(err, ErrTypeTimeout)
}

// IsCancelled checks if an error is a caller cancellation
func IsCancelled(err error) bool {
	return IsType(err, ErrTypeCancelled)
}
