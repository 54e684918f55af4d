package subscription

import (
	"errors"
	"net/http"
)

// Kind classifies a failed action for the HTTP boundary.
type Kind int

const (
	KindUnauthorized Kind = iota + 1
	KindBadRequest
	KindProvider
	KindPersistence
)

func (k Kind) String() string {
	switch k {
	case KindUnauthorized:
		return "unauthorized"
	case KindBadRequest:
		return "bad_request"
	case KindProvider:
		return "provider_error"
	case KindPersistence:
		return "persistence_error"
	default:
		return "internal_error"
	}
}

// HTTPStatus is the response status for errors of this kind.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindBadRequest:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// Error is returned by the service for every expected failure. Message is
// safe to show to the caller; Err carries the underlying cause for logs.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func Unauthorized(msg string) *Error { return &Error{Kind: KindUnauthorized, Message: msg} }

func BadRequest(msg string) *Error { return &Error{Kind: KindBadRequest, Message: msg} }

func providerError(msg string, err error) *Error {
	return &Error{Kind: KindProvider, Message: msg, Err: err}
}

func persistenceError(msg string, err error) *Error {
	return &Error{Kind: KindPersistence, Message: msg, Err: err}
}

// KindOf returns the kind of err, or 0 when err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}
