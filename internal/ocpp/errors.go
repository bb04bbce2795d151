package ocpp

import (
	"errors"
	"fmt"
)

var (
	ErrMalformedFrame   = errors.New("ocpp: malformed frame")
	ErrNotSupported     = errors.New("ocpp: action not supported")
	ErrConnectionClosed = errors.New("ocpp: connection closed")
	ErrCallTimeout      = errors.New("ocpp: call timed out")
	ErrDuplicateCallID  = errors.New("ocpp: duplicate call id")
)

// Error codes carried in CallError payloads.
const (
	CodeNotImplemented   = "NotImplemented"
	CodeValidationFailed = "ValidationFailed"
	CodeInternalError    = "InternalError"
)

// CallError is the failure reply to a Call. It travels as the payload of a
// [4, id, payload] frame and doubles as a Go error on the calling side.
type CallError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

func (e *CallError) Error() string {
	return fmt.Sprintf("ocpp: call error %s: %s", e.Code, e.Description)
}

// NewCallError builds a CallError with a formatted description.
func NewCallError(code, format string, args ...any) *CallError {
	return &CallError{Code: code, Description: fmt.Sprintf(format, args...)}
}
