package aerr

import (
	"fmt"
	"runtime"
)

// AeroError is the error type raised by every command. It carries enough
// context to decide retry eligibility and to report in-doubt writes
// without the caller needing to inspect the underlying cause.
type AeroError struct {
	Code    ResultCode
	Message string
	Origin  string // file:line captured at raise time
	InDoubt bool
	cause   error
}

func (e *AeroError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s (in_doubt=%v): %v", e.Code, e.Message, e.InDoubt, e.cause)
	}
	return fmt.Sprintf("%s: %s (in_doubt=%v)", e.Code, e.Message, e.InDoubt)
}

func (e *AeroError) Unwrap() error { return e.cause }

// Retryable reports whether the command loop may retry this error locally.
func (e *AeroError) Retryable() bool { return e.Code.Retryable() }

func origin() string {
	_, file, line, ok := runtime.Caller(2)
	if !ok {
		return "unknown"
	}
	return fmt.Sprintf("%s:%d", file, line)
}

// New raises a fresh AeroError with the given code and formatted message.
func New(code ResultCode, format string, args ...interface{}) *AeroError {
	return &AeroError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Origin:  origin(),
	}
}

// Wrap raises an AeroError that chains an underlying cause.
func Wrap(code ResultCode, cause error, format string, args ...interface{}) *AeroError {
	return &AeroError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Origin:  origin(),
		cause:   cause,
	}
}

// InDoubtf raises an AeroError with the in-doubt flag set: the write may or
// may not have been applied server-side. Once set on a transaction, the
// caller must never implicitly retry (spec invariant 8).
func InDoubtf(code ResultCode, cause error, format string, args ...interface{}) *AeroError {
	e := Wrap(code, cause, format, args...)
	e.InDoubt = true
	return e
}

// As reports whether err is (or wraps) an *AeroError and returns it.
func As(err error) (*AeroError, bool) {
	for err != nil {
		if ae, ok := err.(*AeroError); ok {
			return ae, true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return nil, false
		}
		err = u.Unwrap()
	}
	return nil, false
}

// CodeOf returns the ResultCode of err, or Unknown if err is not an
// AeroError.
func CodeOf(err error) ResultCode {
	if ae, ok := As(err); ok {
		return ae.Code
	}
	return Unknown
}
