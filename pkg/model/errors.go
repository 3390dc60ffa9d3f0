package model

import "fmt"

// Code is the error taxonomy from the spec's error-handling design (§7).
type Code string

const (
	CodeResourceNotFound        Code = "resource_not_found"
	CodeInvalidStateTransition  Code = "invalid_state_transition"
	CodeMissingRecommendation   Code = "missing_recommendation"
	CodeUnknownAction           Code = "unknown_action"
	CodeUnknownScenario         Code = "unknown_scenario"
	CodeStoreError              Code = "store_error"
)

// Error is a taxonomy-tagged error. It wraps an underlying cause (if any)
// so callers can still use errors.Is/errors.As against it.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// NewError builds a tagged error with no underlying cause.
func NewError(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WrapError tags an underlying error with a taxonomy code.
func WrapError(code Code, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

// CodeOf extracts the taxonomy code from err, if any, and whether one was found.
func CodeOf(err error) (Code, bool) {
	var tagged *Error
	for err != nil {
		if t, ok := err.(*Error); ok {
			tagged = t
			break
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = u.Unwrap()
	}
	if tagged == nil {
		return "", false
	}
	return tagged.Code, true
}
