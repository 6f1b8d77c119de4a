package usecase

import (
	"fmt"
	"net/http"
)

type ErrorCode string

const (
	ErrorInvalidInput    ErrorCode = "INVALID_INPUT"
	ErrorInvalidQuestion ErrorCode = "INVALID_QUESTION"
	ErrorRateLimited     ErrorCode = "RATE_LIMITED"
	ErrorUpstream        ErrorCode = "UPSTREAM_ERROR"
	ErrorInternal        ErrorCode = "INTERNAL_ERROR"
)

// HTTPStatus is the response status for the code. Unknown codes are 500.
func (c ErrorCode) HTTPStatus() int {
	switch c {
	case ErrorInvalidInput, ErrorInvalidQuestion:
		return http.StatusBadRequest
	case ErrorRateLimited:
		return http.StatusTooManyRequests
	case ErrorUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Message is safe to show to the person asking.
func (c ErrorCode) Message() string {
	switch c {
	case ErrorInvalidInput:
		return "The request was invalid."
	case ErrorInvalidQuestion:
		return "That question can't be answered."
	case ErrorRateLimited:
		return "Too many requests, please try again shortly."
	case ErrorUpstream:
		return "The language model could not answer right now."
	default:
		return "Something went wrong."
	}
}

type Error struct {
	Code   ErrorCode
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return fmt.Sprintf("usecase: %s (%s)", e.Code, e.Reason)
	}
	return fmt.Sprintf("usecase: %s (%s): %v", e.Code, e.Reason, e.Err)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func newError(code ErrorCode, reason string, err error) *Error {
	return &Error{Code: code, Reason: reason, Err: err}
}
