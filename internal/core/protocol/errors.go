package protocol

import (
	"errors"
)

var (
	ErrConnectionClosed   = errors.New("connection is closed")
	ErrInvalidMessage     = errors.New("invalid message")
	ErrUnknownMessageType = errors.New("unknown message type")
	ErrMessageTooLarge    = errors.New("message too large")
	ErrDialFailed         = errors.New("dial failed")
	ErrUnknownTransport   = errors.New("unknown transport")
)

// ErrorCode classifies transport failures for logs and metrics.
type ErrorCode uint16

const (
	ErrorCodeUnknown ErrorCode = iota
	ErrorCodeConnectionClosed
	ErrorCodeInvalidMessage
	ErrorCodeMessageTooLarge
	ErrorCodeDialFailed
)

func (c ErrorCode) String() string {
	switch c {
	case ErrorCodeConnectionClosed:
		return "connection_closed"
	case ErrorCodeInvalidMessage:
		return "invalid_message"
	case ErrorCodeMessageTooLarge:
		return "message_too_large"
	case ErrorCodeDialFailed:
		return "dial_failed"
	default:
		return "unknown"
	}
}

// Error is a protocol error with a code and an optional cause.
type Error struct {
	Code    ErrorCode
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

var errorCodes = []struct {
	err  error
	code ErrorCode
}{
	{ErrConnectionClosed, ErrorCodeConnectionClosed},
	{ErrInvalidMessage, ErrorCodeInvalidMessage},
	{ErrUnknownMessageType, ErrorCodeInvalidMessage},
	{ErrMessageTooLarge, ErrorCodeMessageTooLarge},
	{ErrDialFailed, ErrorCodeDialFailed},
}

// GetErrorCode returns the code of err or of the first known error it wraps.
func GetErrorCode(err error) ErrorCode {
	var perr *Error
	if errors.As(err, &perr) && perr.Code != ErrorCodeUnknown {
		return perr.Code
	}
	for _, ec := range errorCodes {
		if errors.Is(err, ec.err) {
			return ec.code
		}
	}
	return ErrorCodeUnknown
}

// WrapError wraps err with message, keeping its code.
func WrapError(err error, message string) *Error {
	return &Error{Code: GetErrorCode(err), Message: message, Cause: err}
}
