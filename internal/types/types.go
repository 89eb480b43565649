// internal/types/types.go
package types

import (
	"errors"
	"fmt"
)

// --- Standardized Errors ---

// ErrorCode defines standard error reasons.
type ErrorCode int

const (
	ErrUnknown         ErrorCode = iota
	ErrConfigLoading             // config file or validation failure
	ErrParse                     // malformed inbound frame
	ErrTopicMismatch             // frame for a subscription we do not own
	ErrTransport                 // socket-level failure (dial, read, write)
	ErrTransportClosed           // socket closed by either side
	ErrInvalidRequest            // bad input on the dashboard HTTP surface
)

func (c ErrorCode) String() string {
	switch c {
	case ErrConfigLoading:
		return "ConfigError"
	case ErrParse:
		return "ParseError"
	case ErrTopicMismatch:
		return "TopicMismatch"
	case ErrTransport:
		return "TransportError"
	case ErrTransportClosed:
		return "TransportClosed"
	case ErrInvalidRequest:
		return "InvalidRequest"
	default:
		return fmt.Sprintf("UnknownError(%d)", int(c))
	}
}

// AppError standardizes application errors.
type AppError struct {
	Code    ErrorCode // Standardized code
	Message string    // Human-readable context
	Wrapped error     // Original error, if any
}

func (e AppError) Error() string {
	if e.Wrapped != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Wrapped)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap provides compatibility with errors.Unwrap
func (e AppError) Unwrap() error {
	return e.Wrapped
}

// HasCode reports whether err (or anything it wraps) is an AppError with code.
func HasCode(err error, code ErrorCode) bool {
	var ae AppError
	return errors.As(err, &ae) && ae.Code == code
}

func NewParseError(message string, wrapped error) AppError {
	return AppError{Code: ErrParse, Message: message, Wrapped: wrapped}
}

func NewTopicMismatch(got, want string) AppError {
	return AppError{Code: ErrTopicMismatch, Message: fmt.Sprintf("got topic %q, subscribed to %q", got, want)}
}

func NewTransportError(message string, wrapped error) AppError {
	return AppError{Code: ErrTransport, Message: message, Wrapped: wrapped}
}

func NewTransportClosed(wrapped error) AppError {
	return AppError{Code: ErrTransportClosed, Message: "connection closed", Wrapped: wrapped}
}

func NewConfigError(message string, wrapped error) AppError {
	return AppError{Code: ErrConfigLoading, Message: message, Wrapped: wrapped}
}

func NewInvalidRequest(message string) AppError {
	return AppError{Code: ErrInvalidRequest, Message: message}
}
