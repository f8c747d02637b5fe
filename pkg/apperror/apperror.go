// Package apperror defines the single application error contract shared
// across layers. Services return *Error values carrying a stable kind;
// transports map the kind to a status code and wire name.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"
	"sort"
)

// Kind classifies an application error into one of the stable categories
// exposed on the wire.
type Kind string

const (
	// KindConflict marks writes rejected because an equivalent document
	// already exists.
	KindConflict Kind = "Conflict"
	// KindNotFound marks lookups that matched no document.
	KindNotFound Kind = "NotFound"
	// KindValidation marks requests rejected before reaching the store.
	KindValidation Kind = "ValidationError"
	// KindInternal marks unexpected failures such as store errors.
	KindInternal Kind = "InternalError"
)

// HTTPStatus returns the HTTP status associated with the kind.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindConflict:
		return http.StatusConflict
	case KindNotFound:
		return http.StatusNotFound
	case KindValidation:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// Params carries dynamic values attached to an error message.
type Params map[string]interface{}

// Error is the error contract returned by services:
// stable kind + message + optional structured details and wrapped cause.
// The stack is captured at construction so transports can expose it
// outside production.
type Error struct {
	Kind       Kind
	Message    string
	Params     Params
	Details    map[string]interface{}
	HTTPStatus int
	Cause      error
	Stack      string
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	label := string(e.Kind)
	if e.Message != "" {
		label = e.Message
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", label, e.Cause)
	}
	return label
}

// Unwrap exposes the wrapped cause for errors.Is / errors.As.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// Status returns the explicit HTTP status if set, otherwise the kind default.
func (e *Error) Status() int {
	if e == nil {
		return http.StatusInternalServerError
	}
	if e.HTTPStatus != 0 {
		return e.HTTPStatus
	}
	return e.Kind.HTTPStatus()
}

// New creates an Error of the given kind with a human readable message.
func New(kind Kind, message string, cause error) *Error {
	return &Error{
		Kind:    kind,
		Message: message,
		Cause:   cause,
		Stack:   string(debug.Stack()),
	}
}

// NewConflict creates an error for duplicate documents.
func NewConflict(message string) *Error {
	return New(KindConflict, message, nil)
}

// NewNotFound creates an error for lookups that matched nothing.
func NewNotFound(message string) *Error {
	return New(KindNotFound, message, nil)
}

// NewValidation creates an error for rejected input.
func NewValidation(message string) *Error {
	return New(KindValidation, message, nil)
}

// NewInternal creates an error for unexpected failures with optional cause.
func NewInternal(message string, cause error) *Error {
	return New(KindInternal, message, cause)
}

// WithParams sets message interpolation values.
func (e *Error) WithParams(params Params) *Error {
	if e == nil {
		return nil
	}
	e.Params = cloneParams(params)
	return e
}

// WithDetails sets structured error details.
func (e *Error) WithDetails(details map[string]interface{}) *Error {
	if e == nil {
		return nil
	}
	e.Details = details
	return e
}

// WithHTTPStatus sets an explicit HTTP status overriding the kind default.
func (e *Error) WithHTTPStatus(status int) *Error {
	if e == nil {
		return nil
	}
	e.HTTPStatus = status
	return e
}

// From coerces an arbitrary error into *Error. Errors already carrying a
// kind pass through unchanged; everything else becomes KindInternal.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return New(KindInternal, err.Error(), err)
}

// KindOf returns the kind of err, or KindInternal when err carries none.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) && appErr != nil {
		return appErr.Kind
	}
	return KindInternal
}

// IsKind reports whether err is an application error of the given kind.
func IsKind(err error, kind Kind) bool {
	var appErr *Error
	return errors.As(err, &appErr) && appErr != nil && appErr.Kind == kind
}

// CanonicalParams returns a deterministic list of param keys.
// Useful for tests/logging/telemetry.
func CanonicalParams(params Params) []string {
	keys := make([]string, 0, len(params))
	for key := range params {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func cloneParams(params Params) Params {
	if len(params) == 0 {
		return nil
	}
	out := make(Params, len(params))
	for key, value := range params {
		out[key] = value
	}
	return out
}
