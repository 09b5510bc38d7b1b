package session

import (
	"errors"
	"fmt"
)

// Common errors returned by the session.
var (
	// ErrLoginFailed is returned when the sign-in form was submitted but the
	// application did not accept the credentials.
	ErrLoginFailed = errors.New("failed to sign in to your account")

	// ErrSignInFormNotFound is returned when the sign-in page has no form
	// holding the configured credential inputs.
	ErrSignInFormNotFound = errors.New("sign-in form not found")

	// ErrMalformedBody is matched by every MalformedBodyError.
	ErrMalformedBody = errors.New("request body is not valid JSON")

	// ErrNonJSONResponse is returned when a successful response carries a
	// body that is not JSON.
	ErrNonJSONResponse = errors.New("response body is not valid JSON")
)

// ErrorClass represents a classification of request failures.
type ErrorClass string

const (
	// ErrorClassClient represents 4xx client errors.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer represents 5xx server errors.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassNetwork represents network/timeout errors and unreadable responses.
	ErrorClassNetwork ErrorClass = "network"

	// ErrorClassMalformedBody represents request bodies rejected before sending.
	ErrorClassMalformedBody ErrorClass = "malformed_body"
)

// TransportError wraps a failure to complete a request round trip.
type TransportError struct {
	Method   string
	Endpoint string
	Err      error
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Method, e.Endpoint, e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *TransportError) Unwrap() error {
	return e.Err
}

// MalformedBodyError is returned when a request body is not valid JSON.
// No request is sent when it occurs.
type MalformedBodyError struct {
	Body string
	Err  error
}

// Error implements the error interface.
func (e *MalformedBodyError) Error() string {
	return fmt.Sprintf("please ensure provided body is valid JSON: %v", e.Err)
}

// Unwrap returns the JSON syntax error.
func (e *MalformedBodyError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrMalformedBody) match.
func (e *MalformedBodyError) Is(target error) bool {
	return target == ErrMalformedBody
}

// RemoteFailureError bundles the status of a non-successful response.
type RemoteFailureError struct {
	Method     string
	Endpoint   string
	StatusCode int
	Status     string
}

// Error implements the error interface.
func (e *RemoteFailureError) Error() string {
	return fmt.Sprintf("%s %s: remote failure: %s", e.Method, e.Endpoint, e.Status)
}

// classifyError categorizes a request outcome for metrics and logs.
// It returns "" for successful responses.
func classifyError(statusCode int, err error) ErrorClass {
	switch {
	case errors.Is(err, ErrMalformedBody):
		return ErrorClassMalformedBody
	case err != nil:
		return ErrorClassNetwork
	case statusCode >= 400 && statusCode < 500:
		return ErrorClassClient
	case statusCode >= 500:
		return ErrorClassServer
	default:
		return ""
	}
}
