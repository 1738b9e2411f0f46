package protocol

import (
	"errors"
	"fmt"
)

var (
	// Topic errors

	ErrEmptyTopic        = errors.New("topic name is empty")
	ErrTopicTypeMismatch = errors.New("topic already registered with a different message type")
	ErrUnknownTopic      = errors.New("topic not registered")

	// Frame errors

	ErrInvalidFrame        = errors.New("invalid frame")
	ErrFrameTooLarge       = errors.New("frame too large")
	ErrSerializationFailed = errors.New("message serialization failed")

	// Bridge errors

	ErrBridgeClosed    = errors.New("bridge is closed")
	ErrClientQueueFull = errors.New("client send queue is full")
	ErrInvalidRequest  = errors.New("invalid request")
)

// ErrorCode is reported to bridge clients in status replies.
type ErrorCode int

const (
	ErrorCodeSuccess ErrorCode = 0

	ErrorCodeInvalidRequest ErrorCode = 1001
	ErrorCodeUnknownTopic   ErrorCode = 1002
	ErrorCodeTypeMismatch   ErrorCode = 1003

	ErrorCodeInvalidFrame ErrorCode = 2001
	ErrorCodeFrameTooLarge ErrorCode = 2002

	ErrorCodeBridgeClosed ErrorCode = 3001
	ErrorCodeQueueFull    ErrorCode = 3002

	ErrorCodeUnknown ErrorCode = 9999
)

// Error is a protocol failure carrying a code for remote peers.
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
	{ErrInvalidRequest, ErrorCodeInvalidRequest},
	{ErrEmptyTopic, ErrorCodeInvalidRequest},
	{ErrUnknownTopic, ErrorCodeUnknownTopic},
	{ErrTopicTypeMismatch, ErrorCodeTypeMismatch},
	{ErrInvalidFrame, ErrorCodeInvalidFrame},
	{ErrFrameTooLarge, ErrorCodeFrameTooLarge},
	{ErrBridgeClosed, ErrorCodeBridgeClosed},
	{ErrClientQueueFull, ErrorCodeQueueFull},
}

// GetErrorCode maps err (or anything it wraps) to an ErrorCode.
func GetErrorCode(err error) ErrorCode {
	if err == nil {
		return ErrorCodeSuccess
	}
	var protocolErr *Error
	if errors.As(err, &protocolErr) {
		return protocolErr.Code
	}
	for _, ec := range errorCodes {
		if errors.Is(err, ec.err) {
			return ec.code
		}
	}
	return ErrorCodeUnknown
}

// WrapError wraps err with a message, keeping its code.
func WrapError(err error, format string, args ...any) *Error {
	return &Error{
		Code:    GetErrorCode(err),
		Message: fmt.Sprintf(format, args...),
		Cause:   err,
	}
}
