package controller

import (
	"strings"

	"github.com/crudkit/crudkit/pkg/apperror"
	"github.com/crudkit/crudkit/pkg/server/router"
)

// ErrorEnvelope is the wire shape for failed operations. It mirrors the
// success envelope field names, with error detail in place of data.
type ErrorEnvelope struct {
	Message       string                 `json:"message"`
	SuccessStatus bool                   `json:"success_status"`
	Error         string                 `json:"error"`
	Details       map[string]interface{} `json:"details,omitempty"`
	Stack         string                 `json:"stack,omitempty"`
}

const safeInternalMessage = "an unexpected error occurred"

// Normalizer converts any error into an HTTP status and an ErrorEnvelope.
// The runtime environment is fixed at construction: production responses
// never carry stack traces or internal failure detail.
type Normalizer struct {
	production bool
}

// NewNormalizer builds a normalizer for the given environment name.
// "production" (any casing) hardens responses; everything else keeps
// debug detail on the wire.
func NewNormalizer(environment string) *Normalizer {
	return &Normalizer{
		production: strings.EqualFold(strings.TrimSpace(environment), "production"),
	}
}

// Production reports whether responses are hardened.
func (n *Normalizer) Production() bool {
	return n.production
}

// Normalize maps err to its HTTP status and wire envelope.
func (n *Normalizer) Normalize(err error) (int, ErrorEnvelope) {
	appErr := apperror.From(err)
	if appErr == nil {
		appErr = apperror.NewInternal(safeInternalMessage, nil)
	}

	envelope := ErrorEnvelope{
		Message: appErr.Message,
		Error:   string(appErr.Kind),
		Details: appErr.Details,
	}
	if envelope.Message == "" {
		envelope.Message = safeInternalMessage
	}
	if n.production && appErr.Kind == apperror.KindInternal {
		// Internal messages and details can carry driver failure text.
		envelope.Message = safeInternalMessage
		envelope.Details = nil
	}
	if !n.production {
		envelope.Stack = appErr.Stack
	}
	return appErr.Status(), envelope
}

// Write renders err on the response with the normalized status and envelope.
func (n *Normalizer) Write(c router.Context, err error) error {
	status, envelope := n.Normalize(err)
	return c.JSON(status, envelope)
}
