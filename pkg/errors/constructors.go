package errors

import (
	"errors"
	"fmt"
)

// New creates an Error without a cause.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf creates an Error with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap wraps err as the cause of a new Error. It returns nil when err is nil.
//
//	cert, err := store.Certificate(ctx, ref, alias)
//	if err != nil {
//	    return errors.Wrap(err, errors.CodeSigningKeyUnavailable, "keystore lookup failed")
//	}
func Wrap(err error, code Code, message string) *Error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: message, Cause: err}
}

// Wrapf is Wrap with a formatted message.
func Wrapf(err error, code Code, format string, args ...any) *Error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Cause: err}
}

// Validation creates a CodeValidation error.
func Validation(message string) *Error {
	return New(CodeValidation, message)
}

// Validationf creates a CodeValidation error with a formatted message.
func Validationf(format string, args ...any) *Error {
	return Newf(CodeValidation, format, args...)
}

// NotFoundf creates a CodeNotFound error with a formatted message.
func NotFoundf(format string, args ...any) *Error {
	return Newf(CodeNotFound, format, args...)
}

// Internal creates a CodeInternal error.
func Internal(message string) *Error {
	return New(CodeInternal, message)
}

// Unavailable creates a CodeUnavailable error.
func Unavailable(message string) *Error {
	return New(CodeUnavailable, message)
}

// Rejectf creates a token rejection with the given AUTH code and attaches
// the consumer id as a detail.
func Rejectf(code Code, consumerID string, format string, args ...any) *Error {
	e := Newf(code, format, args...)
	if consumerID != "" {
		e.Details = map[string]any{"consumer_id": consumerID}
	}
	return e
}

// FromError returns err as an *Error, wrapping foreign errors as
// CodeInternal.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(err, CodeInternal, "an unexpected error occurred")
}
