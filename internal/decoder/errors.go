package decoder

import (
	"errors"
	"fmt"
)

// Error codes surfaced to callers. Decode failures are expected outcomes,
// not crashes: callers degrade to an unknown intent and keep going.
const (
	CodeInvalidInput    = "INVALID_INPUT"
	CodeUnknownSelector = "UNKNOWN_SELECTOR"
	CodeDecodeError     = "DECODE_ERROR"
	CodeMissingFields   = "MISSING_FIELDS"
)

// DecodeError is a code-carrying decode failure.
type DecodeError struct {
	Code string
	Msg  string
	Err  error // underlying cause, if any
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Msg)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// ErrCode returns the decode error code, or "" if err is not a DecodeError.
func ErrCode(err error) string {
	var de *DecodeError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}
