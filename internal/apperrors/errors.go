// Package apperrors defines the typed failures shared by the custody
// core. Every store and service returns one of these codes so callers
// can branch on the kind of failure without parsing messages.
package apperrors

import (
	"errors"
	"fmt"
)

type AppError struct {
	Code Code
	Op   string
	Err  error
}

func (e *AppError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("[%s] %s", e.Code, e.Op)
	}
	return fmt.Sprintf("[%s] %s: %v", e.Code, e.Op, e.Err)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a typed error with no underlying cause.
func New(code Code, op string) error {
	return &AppError{Code: code, Op: op}
}

// Newf creates a typed error with a formatted operation description.
func Newf(code Code, format string, args ...interface{}) error {
	return &AppError{Code: code, Op: fmt.Sprintf(format, args...)}
}

// WrapWithCode attaches a code and operation to an underlying error.
// Returns nil when err is nil so call sites can wrap unconditionally.
func WrapWithCode(code Code, op string, err error) error {
	if err == nil {
		return nil
	}
	return &AppError{Code: code, Op: op, Err: err}
}

// CodeOf extracts the code from an error chain, or "" if none.
func CodeOf(err error) Code {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// Is reports whether the error chain carries the given code.
func Is(err error, code Code) bool {
	return CodeOf(err) == code
}
