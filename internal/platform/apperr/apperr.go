// Package apperr defines the error taxonomy shared by every domain service
// and its mapping onto HTTP responses.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/labstack/echo/v4"
)

var (
	ErrValidation        = errors.New("validation failed")
	ErrNotFound          = errors.New("not found")
	ErrForbidden         = errors.New("forbidden")
	ErrInvalidTransition = errors.New("invalid transition")
	ErrConflict          = errors.New("conflict")
)

// ValidationError reports malformed or missing input with per-field detail.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return ErrValidation.Error()
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// Add records a field message and returns the receiver for chaining.
func (e *ValidationError) Add(field, msg string) *ValidationError {
	if e.Fields == nil {
		e.Fields = make(map[string]string)
	}
	e.Fields[field] = msg
	return e
}

// OrNil returns nil when no field was recorded.
func (e *ValidationError) OrNil() error {
	if e == nil || len(e.Fields) == 0 {
		return nil
	}
	return e
}

// Validation builds a single-field ValidationError.
func Validation(field, msg string) error {
	return (&ValidationError{}).Add(field, msg)
}

func NotFound(entity string) error {
	return fmt.Errorf("%s %w", entity, ErrNotFound)
}

func Forbidden(reason string) error {
	return fmt.Errorf("%w: %s", ErrForbidden, reason)
}

func InvalidTransition(from, action string) error {
	return fmt.Errorf("%w: cannot %s from %s", ErrInvalidTransition, action, from)
}

func Conflict(what string) error {
	return fmt.Errorf("%w: %s", ErrConflict, what)
}

// Code returns the stable machine-readable code for err.
func Code(err error) string {
	switch {
	case errors.Is(err, ErrValidation):
		return "validation_error"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	case errors.Is(err, ErrInvalidTransition):
		return "invalid_transition"
	case errors.Is(err, ErrConflict):
		return "conflict"
	default:
		return "internal"
	}
}

// HTTPStatus maps err onto a response status.
func HTTPStatus(err error) int {
	switch Code(err) {
	case "validation_error":
		return http.StatusBadRequest
	case "not_found":
		return http.StatusNotFound
	case "forbidden":
		return http.StatusForbidden
	case "invalid_transition", "conflict":
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// Body is the JSON error envelope.
type Body struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// ToHTTP converts a service error into an echo error. Not-found messages are
// generic so that cross-organization lookups leak nothing.
func ToHTTP(err error) *echo.HTTPError {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he
	}
	code := Code(err)
	body := Body{Code: code, Message: err.Error()}
	switch code {
	case "not_found":
		body.Message = "not found"
	case "internal":
		body.Message = "internal server error"
	}
	var ve *ValidationError
	if errors.As(err, &ve) {
		body.Fields = ve.Fields
	}
	return echo.NewHTTPError(HTTPStatus(err), body).SetInternal(err)
}
