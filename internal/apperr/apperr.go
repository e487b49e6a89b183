// README: Error kinds shared by every module and their HTTP status mapping.
package apperr

import (
	"errors"
	"net/http"
)

type Kind string

const (
	Internal            Kind = "internal_error"
	InvalidInput        Kind = "invalid_input"
	Unauthenticated     Kind = "unauthenticated"
	Unauthorized        Kind = "unauthorized"
	NotFound            Kind = "not_found"
	Conflict            Kind = "conflict"
	UpstreamUnavailable Kind = "upstream_unavailable"
)

// Error carries a Kind alongside a caller-facing message. Module sentinels are
// *Error values, so errors.Is works on identity.
type Error struct {
	Kind Kind
	Msg  string
}

func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

func (e *Error) Error() string { return e.Msg }

// KindOf returns the kind of the outermost *Error in err's chain, or Internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

// Message returns the client-safe message for err.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Kind != Internal {
		return e.Msg
	}
	return "internal error"
}

func (k Kind) HTTPStatus() int {
	switch k {
	case InvalidInput:
		return http.StatusBadRequest
	case Unauthenticated:
		return http.StatusUnauthorized
	case Unauthorized:
		return http.StatusForbidden
	case NotFound:
		return http.StatusNotFound
	case Conflict:
		return http.StatusConflict
	case UpstreamUnavailable:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
