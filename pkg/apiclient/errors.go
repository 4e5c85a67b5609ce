package apiclient

import (
	"errors"
	"fmt"

	"github.com/marmos91/idbuilder/pkg/apierr"
)

// APIError is an error response from the idbuilder API. Code carries
// the service error code from the envelope; it is zero when the server
// did not answer with an envelope at all.
type APIError struct {
	Code       int
	HTTPStatus int
	Message    string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("API error %d: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("HTTP %d: %s", e.HTTPStatus, e.Message)
}

// apiError extracts an *APIError from err, if there is one.
func apiError(err error) (*APIError, bool) {
	var ae *APIError
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}

// IsNotFound returns true if the error is a not-found API error.
func IsNotFound(err error) bool {
	ae, ok := apiError(err)
	return ok && ae.Code == int(apierr.CodeNotFound)
}

// IsAuthError returns true if the error is an authentication or
// authorization failure.
func IsAuthError(err error) bool {
	ae, ok := apiError(err)
	return ok && (ae.Code == int(apierr.CodeUnauthenticated) || ae.Code == int(apierr.CodeUnauthorized))
}
