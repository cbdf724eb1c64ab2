package errors

import (
	"errors"
)

// AsError finds the first *Error in err's chain.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// GetCode returns the code of the first *Error in err's chain, or "".
func GetCode(err error) Code {
	if e, ok := AsError(err); ok {
		return e.Code
	}
	return ""
}

// HasCode reports whether the outermost *Error in err's chain has code.
func HasCode(err error, code Code) bool {
	return GetCode(err) == code
}

// HasCodeInChain reports whether any *Error in err's chain has code. Use it
// to inspect causes, e.g. the CodeSigningKeyInvalid under a
// CodeSharedKeyMissing.
func HasCodeInChain(err error, code Code) bool {
	for err != nil {
		var e *Error
		if !errors.As(err, &e) {
			return false
		}
		if e.Code == code {
			return true
		}
		err = e.Cause
	}
	return false
}

func inCategory(err error, category string) bool {
	e, ok := AsError(err)
	return ok && e.Code.Category() == category
}

// IsValidation reports a VAL_xxx error.
func IsValidation(err error) bool { return inCategory(err, "VAL") }

// IsTokenRejection reports an AUTH_xxx error: the token itself was refused,
// as opposed to the consumer failing to evaluate it.
func IsTokenRejection(err error) bool { return inCategory(err, "AUTH") }

// IsNotFound reports an NF_xxx error.
func IsNotFound(err error) bool { return inCategory(err, "NF") }

// IsInternal reports an INT_xxx error.
func IsInternal(err error) bool { return inCategory(err, "INT") }

// IsUnavailable reports an UNAVAIL_xxx error.
func IsUnavailable(err error) bool { return inCategory(err, "UNAVAIL") }

// IsTimeout reports a TIMEOUT_xxx error.
func IsTimeout(err error) bool { return inCategory(err, "TIMEOUT") }

// IsRetryable reports whether retrying the operation could succeed.
// Unavailable and timeout errors are retryable; token rejections never are.
func IsRetryable(err error) bool {
	return IsUnavailable(err) || IsTimeout(err)
}
