package api

import (
	"context"
	"errors"
	"fmt"
)

// ErrorCode is the machine-readable error kind reported on a request's
// error channel. The string values are part of the wire protocol.
type ErrorCode string

const (
	ErrUnknown                   ErrorCode = "E_UNKNOWN"
	ErrTimeout                   ErrorCode = "E_TIMEOUT"
	ErrEncryptionRequired        ErrorCode = "E_ENCRYPTION_REQUIRED"
	ErrInvalidToken              ErrorCode = "E_INVALID_TOKEN"
	ErrCannotReadSsoCache        ErrorCode = "E_CANNOT_READ_SSO_CACHE"
	ErrCannotWriteSsoCache       ErrorCode = "E_CANNOT_WRITE_SSO_CACHE"
	ErrRuntimeNotSupported       ErrorCode = "E_RUNTIME_NOT_SUPPORTED"
	ErrCannotReadSharedConfig    ErrorCode = "E_CANNOT_READ_SHARED_CONFIG"
	ErrCannotWriteSharedConfig   ErrorCode = "E_CANNOT_WRITE_SHARED_CONFIG"
	ErrCannotOverwriteProfile    ErrorCode = "E_CANNOT_OVERWRITE_PROFILE"
	ErrCannotOverwriteSsoSession ErrorCode = "E_CANNOT_OVERWRITE_SSO_SESSION"
	ErrInvalidProfile            ErrorCode = "E_INVALID_PROFILE"
	ErrInvalidSsoSession         ErrorCode = "E_INVALID_SSO_SESSION"
)

// Error is the error type surfaced by every token manager operation.
// Component failures are wrapped in Err so callers can still inspect the
// underlying cause with errors.Is and errors.As.
type Error struct {
	Code    ErrorCode
	Message string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	switch {
	case e.Message != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	case e.Message != "":
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Code, e.Err)
	default:
		return string(e.Code)
	}
}

// Unwrap returns the wrapped cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// NewError creates an Error with the given code and message.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WrapError creates an Error with the given code wrapping err.
func WrapError(code ErrorCode, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

// CodeOf returns the error code carried by err.
//
// The first *Error found in the chain wins. A deadline that expired anywhere
// in the chain maps to ErrTimeout; everything else is ErrUnknown.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ""
	}

	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout
	}

	return ErrUnknown
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code ErrorCode) bool {
	return err != nil && CodeOf(err) == code
}

// ErrorPayload is the JSON body sent to RPC clients for a failed request.
type ErrorPayload struct {
	ErrorCode ErrorCode `json:"errorCode"`
	Message   string    `json:"message"`
}

// PayloadOf converts err to its wire representation.
func PayloadOf(err error) ErrorPayload {
	return ErrorPayload{
		ErrorCode: CodeOf(err),
		Message:   err.Error(),
	}
}
