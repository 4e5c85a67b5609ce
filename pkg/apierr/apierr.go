// Package apierr defines the wire-level error taxonomy shared by every
// service and HTTP handler.
//
// Codes are grouped by category:
//   - 1xxx: request validation
//   - 2xxx: authentication / authorization
//   - 3xxx: missing resources
//   - 4xxx: server-side failures
//
// Every API response carries one of these codes; 0 means success.
package apierr

import (
	"errors"
	"fmt"
	"net/http"
)

// Code is a stable numeric error code returned in API responses.
type Code int

const (
	// CodeOK indicates success.
	CodeOK Code = 0

	// CodeBadParams indicates malformed or out-of-range request parameters.
	CodeBadParams Code = 1001
	// CodeInvalidKey indicates a key that fails the key grammar.
	CodeInvalidKey Code = 1002
	// CodeSizeTooLarge indicates a batch size above the allowed maximum.
	CodeSizeTooLarge Code = 1003
	// CodeDeltaTooLarge indicates a delta above the key's max_request_delta.
	CodeDeltaTooLarge Code = 1004

	// CodeUnauthenticated indicates a missing or unverifiable token.
	CodeUnauthenticated Code = 2001
	// CodeUnauthorized indicates a valid token with the wrong scope.
	CodeUnauthorized Code = 2002

	// CodeNotFound indicates a key with no configuration.
	CodeNotFound Code = 3001

	// CodeInternal indicates a storage or server failure.
	CodeInternal Code = 4001
	// CodeUnavailable indicates a temporarily unavailable resource,
	// such as a fully leased snowflake worker-id pool.
	CodeUnavailable Code = 4002
	// CodeExhausted indicates a sequence that can no longer advance.
	CodeExhausted Code = 4003
)

// HTTPStatus returns the HTTP status associated with the code.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeOK:
		return http.StatusOK
	case CodeBadParams, CodeInvalidKey, CodeSizeTooLarge, CodeDeltaTooLarge:
		return http.StatusBadRequest
	case CodeUnauthenticated:
		return http.StatusUnauthorized
	case CodeUnauthorized:
		return http.StatusForbidden
	case CodeNotFound:
		return http.StatusNotFound
	case CodeUnavailable, CodeExhausted:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Error is an error carrying an API code. It wraps an optional cause.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates an Error with the given code and message.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf creates an Error with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying error.
func Wrap(code Code, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

// From extracts the *Error from err, or classifies it as CodeInternal.
//
// Handlers use this as the final mapping step so that unexpected errors
// never leak internals to clients: the message for unclassified errors
// is a generic one and the cause is retained only for logging.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae
	}
	return &Error{Code: CodeInternal, Message: "internal error", Err: err}
}
