package backend

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrEmptyProductName is returned by Submit for blank product names.
var ErrEmptyProductName = errors.New("product name is empty")

// ErrorKind classifies failures for the presentation layer.
type ErrorKind int

const (
	KindNone ErrorKind = iota
	KindInvalidInput
	KindNetwork
	KindBackend
	KindTimeout
)

func (k ErrorKind) String() string {
	switch k {
	case KindInvalidInput:
		return "invalid_input"
	case KindNetwork:
		return "network_error"
	case KindBackend:
		return "backend_error"
	case KindTimeout:
		return "timeout_exceeded"
	default:
		return "none"
	}
}

// NetworkError is a transport failure where no HTTP response was received.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// BackendError is an application-level error reported by the backend.
type BackendError struct {
	StatusCode int
	Message    string
}

func (e *BackendError) Error() string {
	if e.StatusCode == 0 {
		return e.Message
	}
	return fmt.Sprintf("backend returned %d: %s", e.StatusCode, e.Message)
}

func newBackendError(statusCode int, message string) *BackendError {
	if message == "" {
		message = http.StatusText(statusCode)
	}
	return &BackendError{StatusCode: statusCode, Message: message}
}

// KindOf classifies err.
func KindOf(err error) ErrorKind {
	if err == nil {
		return KindNone
	}
	var netErr *NetworkError
	var backendErr *BackendError
	switch {
	case errors.Is(err, ErrEmptyProductName):
		return KindInvalidInput
	case errors.As(err, &backendErr):
		return KindBackend
	case errors.As(err, &netErr):
		return KindNetwork
	default:
		return KindNetwork
	}
}

// Message returns the text shown to the user for err.
func Message(err error) string {
	var backendErr *BackendError
	switch KindOf(err) {
	case KindNone:
		return ""
	case KindInvalidInput:
		return "Please enter a product name."
	case KindBackend:
		if errors.As(err, &backendErr) && backendErr.Message != "" {
			return backendErr.Message
		}
		return "The analysis failed."
	default:
		return "The analysis failed. Check that the backend server is running."
	}
}
