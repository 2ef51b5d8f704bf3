package data

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrNotFound matches an APIError carrying HTTP 404.
var ErrNotFound = errors.New("github resource not found")

const unknownAPIError = "Unknown GitHub API error"

// TransportError wraps a failure to reach GitHub at all (DNS, TLS, refused
// connection, cancelled context).
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: transport error: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// APIError is a response from GitHub with status >= 400.
type APIError struct {
	Op      string
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: GitHub API error: %s (%d)", e.Op, e.Message, e.Status)
}

// Is lets errors.Is(err, ErrNotFound) match 404 responses.
func (e *APIError) Is(target error) bool {
	return target == ErrNotFound && e.Status == http.StatusNotFound
}

// MalformedResponseError reports a successful response whose body lacks a
// required field or carries a mistyped one.
type MalformedResponseError struct {
	Op    string
	Field string
	Err   error
}

func (e *MalformedResponseError) Error() string {
	switch {
	case e.Field != "" && e.Err != nil:
		return fmt.Sprintf("%s: malformed response: field %s: %v", e.Op, e.Field, e.Err)
	case e.Field != "":
		return fmt.Sprintf("%s: malformed response: missing field %s", e.Op, e.Field)
	default:
		return fmt.Sprintf("%s: malformed response: %v", e.Op, e.Err)
	}
}

func (e *MalformedResponseError) Unwrap() error { return e.Err }

// IsMalformed reports whether err originated from an unparseable response.
func IsMalformed(err error) bool {
	var target *MalformedResponseError
	return errors.As(err, &target)
}

// StatusCode returns the HTTP status carried by an APIError in err's chain,
// or 0 when there is none.
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}
