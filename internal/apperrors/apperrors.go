// Package apperrors defines the error-kind taxonomy shared by every
// pipeline stage, and the single place that maps a kind to an HTTP status.
package apperrors

import (
	"fmt"
	"net/http"
)

// Kind classifies an error the way the core reports it; HTTP mapping
// happens only at the edge, never inside the pipeline stages themselves.
type Kind string

const (
	Unauthenticated  Kind = "Unauthenticated"
	Forbidden        Kind = "Forbidden"
	RateLimited      Kind = "RateLimited"
	ValidationError  Kind = "ValidationError"
	NotFound         Kind = "NotFound"
	Conflict         Kind = "Conflict"
	Busy             Kind = "Busy"
	ModelUnavailable Kind = "ModelUnavailable"
	Internal         Kind = "Internal"
)

// Error wraps an underlying cause with a Kind the edge can translate to
// a status code without inspecting the error's text.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// New builds an *Error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap builds an *Error of the given kind around an existing error.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// HTTPStatus maps a Kind to its HTTP status code.
func (k Kind) HTTPStatus() int {
	switch k {
	case Unauthenticated:
		return http.StatusUnauthorized
	case Forbidden:
		return http.StatusForbidden
	case RateLimited:
		return http.StatusTooManyRequests
	case ValidationError:
		return http.StatusUnprocessableEntity
	case NotFound:
		return http.StatusNotFound
	case Conflict:
		return http.StatusConflict
	case Busy:
		return http.StatusServiceUnavailable
	case ModelUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// DetailOf returns the caller-safe detail message for err: an *Error's
// own Message, never its wrapped Cause, so an internal error's
// underlying stack/driver text is never echoed to an HTTP caller.
// Errors that aren't an *Error get a generic message.
func DetailOf(err error) string {
	var appErr *Error
	cur := err
	for cur != nil {
		if ae, ok := cur.(*Error); ok {
			appErr = ae
			break
		}
		unwrapper, ok := cur.(interface{ Unwrap() error })
		if !ok {
			break
		}
		cur = unwrapper.Unwrap()
	}
	if appErr != nil {
		return appErr.Message
	}
	return "an unexpected error occurred"
}

// KindOf extracts the Kind from err if it (or something it wraps) is an
// *Error; otherwise it classifies err as Internal.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var appErr *Error
	for {
		if ae, ok := err.(*Error); ok {
			appErr = ae
			break
		}
		unwrapper, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = unwrapper.Unwrap()
		if err == nil {
			break
		}
	}
	if appErr != nil {
		return appErr.Kind
	}
	return Internal
}
