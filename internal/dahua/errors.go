package dahua

import (
	"errors"
	"fmt"
)

// Error codes surfaced to callers. These strings are part of the external
// contract and are propagated verbatim as SyncRunResult.error_code.
const (
	CodeInvalidTarget = "INVALID_TARGET"
	CodeConnect       = "CONNECT"
	CodeTimeout       = "TIMEOUT"
	CodeHTTPStatus    = "HTTP_STATUS"
	CodeJSONParse     = "JSON_PARSE"
	CodeLoginRejected = "LOGIN_REJECTED"
	CodeRPCError      = "RPC_ERROR"
)

// Error is a classified RPC failure. DeviceCode carries the NVR's own numeric
// error.code when the device reported one.
type Error struct {
	Code       string
	Message    string
	DeviceCode int
}

func (e *Error) Error() string {
	if e.DeviceCode != 0 {
		return fmt.Sprintf("%s: %s (device code %d)", e.Code, e.Message, e.DeviceCode)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func newError(code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// ErrorCode extracts the taxonomy code from err. Unclassified errors map to
// RPC_ERROR.
func ErrorCode(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeRPCError
}
