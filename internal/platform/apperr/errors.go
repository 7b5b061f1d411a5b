// Package apperr defines the error taxonomy shared by the scribe pipeline and
// maps each kind to the HTTP status returned at the API boundary.
package apperr

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
)

// Kind classifies an error for retry decisions and status mapping.
type Kind string

const (
	KindInvalidInput     Kind = "invalid_input"
	KindNotFound         Kind = "not_found"
	KindPayloadTooLarge  Kind = "payload_too_large"
	KindConflict         Kind = "conflict"
	KindUpstreamTimeout  Kind = "upstream_timeout"
	KindUpstream         Kind = "upstream"
	KindExtraction       Kind = "extraction"
	KindSchemaValidation Kind = "schema_validation"
	KindGenerationFailed Kind = "generation_failed"
	KindStorage          Kind = "storage"
	KindInternal         Kind = "internal"
)

// Kinded is implemented by every error type that carries a Kind.
type Kinded interface {
	error
	Kind() Kind
}

// Error is the general-purpose application error.
type Error struct {
	kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Kind() Kind { return e.kind }

// New creates an error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{kind: kind, Message: message}
}

// Wrap creates an error of the given kind wrapping a cause.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{kind: kind, Message: message, Err: err}
}

func InvalidInput(format string, args ...interface{}) *Error {
	return New(KindInvalidInput, fmt.Sprintf(format, args...))
}

func NotFound(what string) *Error {
	return New(KindNotFound, what+" not found")
}

// KindOf returns the kind of the first error in the chain that carries one,
// or KindInternal.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var k Kinded
	if errors.As(err, &k) {
		return k.Kind()
	}
	return KindInternal
}

// Is reports whether any error in err's chain has the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// StatusCode maps a kind to its HTTP status.
func StatusCode(kind Kind) int {
	switch kind {
	case KindInvalidInput:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindPayloadTooLarge:
		return http.StatusRequestEntityTooLarge
	case KindConflict:
		return http.StatusBadRequest
	case KindUpstreamTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// Detailer is implemented by errors that expose a structured body for clients.
type Detailer interface {
	Details() interface{}
}

// HTTP converts err into an echo HTTP error with the mapped status. Errors
// that expose Details are returned with a structured message body.
func HTTP(err error) *echo.HTTPError {
	if err == nil {
		return nil
	}
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he
	}
	status := StatusCode(KindOf(err))
	var d Detailer
	if errors.As(err, &d) {
		return echo.NewHTTPError(status, map[string]interface{}{
			"error":   err.Error(),
			"kind":    KindOf(err),
			"details": d.Details(),
		})
	}
	return echo.NewHTTPError(status, err.Error())
}
