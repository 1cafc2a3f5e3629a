package apierror

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// Code is the stable, machine-readable error kind exposed to API consumers.
type Code string

const (
	CodeBadRequest       Code = "BAD_REQUEST"
	CodeUnauthorized     Code = "UNAUTHORIZED"
	CodeNotFound         Code = "NOT_FOUND"
	CodeMethodNotAllowed Code = "METHOD_NOT_ALLOWED"
	CodeMultipleSessions Code = "MULTIPLE_SESSIONS"
	CodeOcctlNotFound    Code = "OCCTL_NOT_FOUND"
	CodeOcctlTimeout     Code = "OCCTL_TIMEOUT"
	CodeOcctlFailed      Code = "OCCTL_FAILED"
	CodeOcctlBadJSON     Code = "OCCTL_BAD_JSON"
	CodeInternal         Code = "INTERNAL_ERROR"
)

const internalMessage = "Internal server error"

// Error is a classified failure carrying an HTTP-equivalent status and
// operator-only diagnostic details.
type Error struct {
	Code    Code
	Message string
	Status  int
	Details map[string]any
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// New builds an Error with the given status.
func New(code Code, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

// BadRequest reports invalid caller input.
func BadRequest(message string) *Error {
	return New(CodeBadRequest, http.StatusBadRequest, message)
}

// Internal reports a programmer or deployment error.
func Internal(message string) *Error {
	return New(CodeInternal, http.StatusInternalServerError, message)
}

// Upstream reports a failure of the control tool; upstream failures map to 503.
func Upstream(code Code, message string) *Error {
	return New(code, http.StatusServiceUnavailable, message)
}

// WithDetail attaches a diagnostic value and returns e for chaining.
func (e *Error) WithDetail(key string, value any) *Error {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// As extracts an *Error from err's chain.
func As(err error) (*Error, bool) {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code Code) bool {
	apiErr, ok := As(err)
	return ok && apiErr.Code == code
}

type Body struct {
	Code      Code    `json:"code"`
	Message   string  `json:"message"`
	RequestID *string `json:"requestId"`
}

type Response struct {
	OK    bool `json:"ok"`
	Error Body `json:"error"`
}

// ConflictResponse is the envelope for ambiguous lookups; Matches holds
// redacted summaries supplied by the caller.
type ConflictResponse struct {
	OK      bool `json:"ok"`
	Error   Body `json:"error"`
	Matches any  `json:"matches"`
}

// Write encodes the failure envelope. The request id is taken from the
// X-Request-Id response header set by the HTTP middleware.
func Write(w http.ResponseWriter, status int, code Code, message string) {
	writeJSON(w, status, Response{OK: false, Error: body(w, code, message)})
}

// WriteError maps err onto the envelope. Errors outside the taxonomy are
// reported as INTERNAL_ERROR with a masked message.
func WriteError(w http.ResponseWriter, err error) {
	apiErr, ok := As(err)
	if !ok {
		Write(w, http.StatusInternalServerError, CodeInternal, internalMessage)
		return
	}
	status := apiErr.Status
	if status == 0 {
		status = http.StatusInternalServerError
	}
	message := apiErr.Message
	if status >= http.StatusInternalServerError && apiErr.Code == CodeInternal {
		message = internalMessage
	}
	Write(w, status, apiErr.Code, message)
}

// WriteConflict encodes a MULTIPLE_SESSIONS response with its match list.
func WriteConflict(w http.ResponseWriter, message string, matches any) {
	writeJSON(w, http.StatusConflict, ConflictResponse{
		OK:      false,
		Error:   body(w, CodeMultipleSessions, message),
		Matches: matches,
	})
}

func body(w http.ResponseWriter, code Code, message string) Body {
	b := Body{Code: code, Message: message}
	if id := w.Header().Get("X-Request-Id"); id != "" {
		b.RequestID = &id
	}
	return b
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}
