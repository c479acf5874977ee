package schema

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes normalization errors.
type ErrorCode string

const (
	// ErrCodeInvalidInput indicates the top-level data is not an object or array.
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"

	// ErrCodeInvalidSchema indicates a nil or typed-nil schema.
	ErrCodeInvalidSchema ErrorCode = "INVALID_SCHEMA"

	// ErrCodeTypeMismatch indicates a value whose shape contradicts its schema.
	ErrCodeTypeMismatch ErrorCode = "TYPE_MISMATCH"

	// ErrCodeMissingID indicates an entity without its id attribute.
	ErrCodeMissingID ErrorCode = "MISSING_ID"

	// ErrCodeInvalidID indicates an id that is neither a string nor an integer.
	ErrCodeInvalidID ErrorCode = "INVALID_ID"

	// ErrCodeUnknownMember indicates a union discriminator naming no member.
	ErrCodeUnknownMember ErrorCode = "UNKNOWN_UNION_MEMBER"

	// ErrCodeMaxDepth indicates the payload nests deeper than MaxDepth.
	ErrCodeMaxDepth ErrorCode = "MAX_DEPTH"
)

// Error is returned by Normalize. Path locates the offending value using
// dotted keys and [index] segments, "$" being the payload root.
type Error struct {
	Code    ErrorCode
	Path    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s at %s: %s: %v", e.Code, e.Path, e.Message, e.Err)
	}
	return fmt.Sprintf("%s at %s: %s", e.Code, e.Path, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// CodeOf returns the ErrorCode of err, or "" if err is not an *Error.
// Uses errors.As to handle wrapped errors.
func CodeOf(err error) ErrorCode {
	var se *Error
	if errors.As(err, &se) {
		return se.Code
	}
	return ""
}

// IsMissingID returns true if err reports an entity without an id.
func IsMissingID(err error) bool {
	return CodeOf(err) == ErrCodeMissingID
}

// IsTypeMismatch returns true if err reports a value/schema shape mismatch.
func IsTypeMismatch(err error) bool {
	return CodeOf(err) == ErrCodeTypeMismatch
}

func newError(code ErrorCode, path, format string, args ...any) *Error {
	return &Error{Code: code, Path: path, Message: fmt.Sprintf(format, args...)}
}
