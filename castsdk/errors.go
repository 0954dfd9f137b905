package castsdk

import (
	"context"
	"errors"
	"fmt"
)

// ErrorCode is the platform's error classification.
type ErrorCode string

const (
	ErrorCancel                 ErrorCode = "cancel"
	ErrorTimeout                ErrorCode = "timeout"
	ErrorAPINotInitialized      ErrorCode = "api_not_initialized"
	ErrorInvalidParameter       ErrorCode = "invalid_parameter"
	ErrorExtensionNotCompatible ErrorCode = "extension_not_compatible"
	ErrorExtensionMissing       ErrorCode = "extension_missing"
	ErrorReceiverUnavailable    ErrorCode = "receiver_unavailable"
	ErrorSessionError           ErrorCode = "session_error"
	ErrorChannelError           ErrorCode = "channel_error"
	ErrorLoadMediaFailed        ErrorCode = "load_media_failed"

	// ErrorUnknown is used for failures that carry no platform code.
	ErrorUnknown ErrorCode = "unknown"
)

// Error is what the SDK reports when a request fails.
type Error struct {
	Code        ErrorCode `json:"code"`
	Description string    `json:"description,omitempty"`
	Details     any       `json:"details,omitempty"`
	Err         error     `json:"-"`
}

// NewError returns an Error wrapping err, which may be nil.
func NewError(code ErrorCode, description string, err error) *Error {
	return &Error{Code: code, Description: description, Err: err}
}

func (e *Error) Error() string {
	if e.Description == "" {
		return "cast error: " + string(e.Code)
	}
	return fmt.Sprintf("cast error: %s: %s", e.Code, e.Description)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// AsError turns any error into an *Error. Context deadlines become timeouts,
// cancellations become cancel; anything else is ErrorUnknown.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}

	var castErr *Error
	if errors.As(err, &castErr) {
		return castErr
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return NewError(ErrorTimeout, err.Error(), err)
	case errors.Is(err, context.Canceled):
		return NewError(ErrorCancel, err.Error(), err)
	}

	return NewError(ErrorUnknown, err.Error(), err)
}
