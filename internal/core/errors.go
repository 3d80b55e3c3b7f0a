package core

import (
	"errors"
	"fmt"
)

// Error codes surfaced by ingestion operations.
const (
	CodeValidation        = "E_VALIDATION"
	CodeNotFound          = "E_NOT_FOUND"
	CodeSchema            = "E_SCHEMA"
	CodeUnsupportedSource = "E_UNSUPPORTED_SOURCE"
	CodeConnection        = "E_CONNECTION"
	CodeInvalidState      = "E_INVALID_STATE"
	CodeIngestionFailed   = "E_INGESTION_FAILED"
	CodeForbidden         = "E_FORBIDDEN"
	CodeUnavailable       = "E_UNAVAILABLE"
)

// CodedError is implemented by errors that carry a stable code.
type CodedError interface {
	error
	CodeValue() string
}

// Error is the coded error returned by every datapuur operation.
type Error struct {
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	switch {
	case e.Message != "" && e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	case e.Message != "":
		return e.Message
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Code, e.Err)
	}
	return e.Code
}

func (e *Error) Unwrap() error     { return e.Err }
func (e *Error) CodeValue() string { return e.Code }

func newError(code string, err error, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Err: err}
}

// ValidationError reports malformed or missing request input.
func ValidationError(format string, args ...any) *Error {
	return newError(CodeValidation, nil, format, args...)
}

// NotFoundError reports an unknown source, job or table.
func NotFoundError(format string, args ...any) *Error {
	return newError(CodeNotFound, nil, format, args...)
}

// SchemaError reports content that cannot be parsed or typed.
func SchemaError(err error, format string, args ...any) *Error {
	return newError(CodeSchema, err, format, args...)
}

// UnsupportedSourceError reports a file or database type that cannot be read.
func UnsupportedSourceError(format string, args ...any) *Error {
	return newError(CodeUnsupportedSource, nil, format, args...)
}

// ConnectionError wraps a failure to reach or query a database.
func ConnectionError(err error, format string, args ...any) *Error {
	return newError(CodeConnection, err, format, args...)
}

// InvalidStateError reports an operation the job's status does not allow.
func InvalidStateError(format string, args ...any) *Error {
	return newError(CodeInvalidState, nil, format, args...)
}

// IngestionFailure wraps an error that ended a running job.
func IngestionFailure(err error, format string, args ...any) *Error {
	return newError(CodeIngestionFailed, err, format, args...)
}

// ForbiddenError reports a missing capability.
func ForbiddenError(format string, args ...any) *Error {
	return newError(CodeForbidden, nil, format, args...)
}

// UnavailableError reports that the service cannot take more work.
func UnavailableError(format string, args ...any) *Error {
	return newError(CodeUnavailable, nil, format, args...)
}

// CodeOf returns the code of the first coded error in err's chain, or "".
func CodeOf(err error) string {
	var ce CodedError
	if errors.As(err, &ce) {
		return ce.CodeValue()
	}
	return ""
}

// HasCode reports whether err carries the given code.
func HasCode(err error, code string) bool {
	return err != nil && CodeOf(err) == code
}
