// Package apperr is the gateway's error taxonomy: every handler and
// component-level error is constructed as an apperr.Error so the HTTP layer
// can map it to a status code without re-deriving intent from error text.
package apperr

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/picahq/pica-gateway/internal/httpapi/correlation"
	"github.com/rs/zerolog/log"
)

// Kind classifies an Error, per spec.md §7's Kind→HTTP status table.
type Kind string

const (
	KindBadRequest        Kind = "bad_request"
	KindUnauthorized      Kind = "unauthorized"
	KindForbidden         Kind = "forbidden"
	KindNotFound          Kind = "not_found"
	KindConflict          Kind = "conflict"
	KindRateLimited       Kind = "rate_limited"
	KindServiceUnavailable Kind = "service_unavailable"
	KindDeserializeError  Kind = "deserialize_error"
	KindEncryptionError   Kind = "encryption_error"
	KindIOErr             Kind = "io_err"
	KindScriptError       Kind = "script_error"
	KindUnknown           Kind = "unknown"
)

// status is the Kind→HTTP status mapping from spec.md §7.
var status = map[Kind]int{
	KindBadRequest:         http.StatusBadRequest,
	KindUnauthorized:       http.StatusUnauthorized,
	KindForbidden:          http.StatusForbidden,
	KindNotFound:           http.StatusNotFound,
	KindConflict:           http.StatusConflict,
	KindRateLimited:        http.StatusTooManyRequests,
	KindServiceUnavailable: http.StatusServiceUnavailable,
	KindDeserializeError:   http.StatusUnprocessableEntity,
	KindEncryptionError:    http.StatusInternalServerError,
	KindIOErr:              http.StatusInternalServerError,
	KindScriptError:        http.StatusInternalServerError,
	KindUnknown:            http.StatusInternalServerError,
}

// Error is the gateway's structured error value: a Kind, a client-facing
// Message, and an optional wrapped Cause kept for logging only — Cause is
// never serialized, so internals (e.g. the plaintext behind an
// encryption_error) never leak to a caller.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Cause }

// New builds an Error of the given Kind with a client-safe message.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap builds an Error of the given Kind, attaching cause for logging while
// keeping message as the only client-visible text.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// StatusOf returns the HTTP status an error maps to: status[Kind] if err is
// (or wraps) an *Error, 500 otherwise.
func StatusOf(err error) int {
	var ae *Error
	if errors.As(err, &ae) {
		if code, ok := status[ae.Kind]; ok {
			return code
		}
	}
	return http.StatusInternalServerError
}

// response is the wire shape for an error, matching the teacher's
// errorResponse{Error, CorrelationID} convention.
type response struct {
	Error         string `json:"error"`
	CorrelationID string `json:"correlation_id,omitempty"`
}

// Write renders err to w as JSON, logging Cause (if any) server-side and
// hiding it from the client. Internal-only kinds (encryption_error,
// io_err, script_error, unknown) get a fixed generic message regardless of
// Error.Message, so implementation detail never reaches a response body.
func Write(w http.ResponseWriter, r *http.Request, err error) {
	var ae *Error
	if !errors.As(err, &ae) {
		ae = &Error{Kind: KindUnknown, Message: "internal error", Cause: err}
	}

	code := StatusOf(ae)
	msg := ae.Message
	switch ae.Kind {
	case KindEncryptionError, KindIOErr, KindScriptError, KindUnknown:
		msg = "internal error"
	}

	corrID := correlation.FromContext(r.Context())
	if ae.Cause != nil || code >= 500 {
		log.Error().Err(ae.Cause).Str("kind", string(ae.Kind)).Str("correlation_id", corrID).Msg(ae.Message)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(response{Error: msg, CorrelationID: corrID})
}
