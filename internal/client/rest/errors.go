package rest

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound          = errors.New("rest: not found")
	ErrInvalidReference  = errors.New("rest: message does not belong to chat")
	ErrPinLimitReached   = errors.New("rest: pinned message limit reached")
	ErrUnauthorized      = errors.New("rest: unauthorized")
	ErrBadCredentials    = errors.New("rest: invalid email or password")
	ErrForbidden         = errors.New("rest: forbidden")
	ErrMalformedResponse = errors.New("rest: malformed response")
	ErrUnavailable       = errors.New("rest: service unavailable")
)

// APIError is a non-2xx answer. It unwraps to the matching sentinel when the
// status or code has one.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("rest: %d %s: %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("rest: %d: %s", e.Status, e.Message)
}

func (e *APIError) Unwrap() error {
	switch e.Code {
	case "invalid_reference":
		return ErrInvalidReference
	case "pin_limit_reached":
		return ErrPinLimitReached
	case "invalid_credentials":
		return ErrBadCredentials
	}
	switch e.Status {
	case 401:
		return ErrUnauthorized
	case 403:
		return ErrForbidden
	case 404:
		return ErrNotFound
	}
	if e.Status >= 500 {
		return ErrUnavailable
	}
	return nil
}
