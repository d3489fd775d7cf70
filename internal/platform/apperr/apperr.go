// Package apperr defines the error type shared by the gateway. Every error that crosses a component
// boundary carries an explicit Kind so callers classify failures with errors.As, never by message text.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for propagation and HTTP status mapping.
type Kind int

const (
	// Internal is an unexpected failure (storage, encoding, bugs).
	Internal Kind = iota
	// Unauthenticated means no valid session was presented.
	Unauthenticated
	// Forbidden means the session may not act on the resolved tenant (mismatch or disabled access).
	Forbidden
	// NotFound means the tenant or a tenant-scoped resource does not exist.
	NotFound
	// Timeout means an external call exceeded its bound.
	Timeout
	// ProviderError means an external API answered with a non-success status or an unreadable body.
	ProviderError
	// Configuration means routing metadata or tenant credentials are missing.
	Configuration
	// Invalid means the request payload failed validation.
	Invalid
)

var kindNames = map[Kind]string{
	Internal:        "internal",
	Unauthenticated: "unauthenticated",
	Forbidden:       "forbidden",
	NotFound:        "not_found",
	Timeout:         "timeout",
	ProviderError:   "provider_error",
	Configuration:   "configuration",
	Invalid:         "invalid",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Error wraps an operation, a message, and an optional cause with a Kind.
type Error struct {
	Kind Kind
	Op   string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Op == "" && e.Err == nil:
		return e.Msg
	case e.Err == nil:
		return fmt.Sprintf("%s: %s", e.Op, e.Msg)
	case e.Op == "":
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	default:
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Msg, e.Err)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// E constructs an *Error.
func E(kind Kind, op, msg string, err error) error {
	return &Error{Kind: kind, Op: op, Msg: msg, Err: err}
}

// KindOf returns the Kind of the outermost *Error in err's chain, or Internal when there is none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// HTTPStatus maps a Kind to the response status code of the inbound envelope.
func HTTPStatus(kind Kind) int {
	switch kind {
	case Configuration, Invalid:
		return http.StatusBadRequest
	case Unauthenticated, Forbidden:
		return http.StatusForbidden
	case NotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage returns the message safe to show a client for err. Authorization failures never
// say which tenant exists or why.
func PublicMessage(err error) string {
	kind := KindOf(err)
	switch kind {
	case Unauthenticated, Forbidden:
		return "unauthorized"
	case NotFound:
		return "not found"
	case Configuration, Invalid:
		var e *Error
		if errors.As(err, &e) && e.Msg != "" {
			return e.Msg
		}
		return "bad request"
	default:
		return "internal server error"
	}
}
