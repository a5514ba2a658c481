// Package apperr defines the error kinds shared by every business module.
// Handlers map them to HTTP status codes with HTTPStatus; services and
// repositories construct them with enough context (sku, row, request id)
// for the caller to act on.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// NotFoundError reports a missing Book, Bundle, Order, Stock record or
// return request.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

// NotFound builds a NotFoundError for the given resource and identifier.
func NotFound(resource, id string) error {
	return &NotFoundError{Resource: resource, ID: id}
}

// ValidationError reports a missing or malformed input field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validation builds a ValidationError for a single field.
func Validation(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// Validationf builds a field-less ValidationError from a format string.
func Validationf(format string, args ...interface{}) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// InsufficientStockError reports a reservation that would drive
// currentStock negative. SKU is filled in when the caller knows it.
type InsufficientStockError struct {
	BookID    string
	SKU       string
	Available int
	Requested int
}

func (e *InsufficientStockError) Error() string {
	ref := e.SKU
	if ref == "" {
		ref = e.BookID
	}
	return fmt.Sprintf("insufficient stock for book %s: available %d, requested %d",
		ref, e.Available, e.Requested)
}

// ConflictError reports a uniqueness or state conflict, e.g. duplicate SKU,
// an already-active return request, or deleting a completed request.
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string { return e.Message }

// Conflict builds a ConflictError from a format string.
func Conflict(format string, args ...interface{}) error {
	return &ConflictError{Message: fmt.Sprintf(format, args...)}
}

// InvalidTransitionError reports a status change the state machine refuses.
type InvalidTransitionError struct {
	Entity string
	From   string
	To     string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot transition %s from %s to %s", e.Entity, e.From, e.To)
}

// ── predicates ───────────────────────────────────────────────────────────────

func IsNotFound(err error) bool {
	var e *NotFoundError
	return errors.As(err, &e)
}

func IsValidation(err error) bool {
	var e *ValidationError
	return errors.As(err, &e)
}

func IsInsufficientStock(err error) bool {
	var e *InsufficientStockError
	return errors.As(err, &e)
}

func IsConflict(err error) bool {
	var e *ConflictError
	return errors.As(err, &e)
}

// HTTPStatus maps an error to the status code handlers should respond with.
func HTTPStatus(err error) int {
	switch {
	case IsNotFound(err):
		return http.StatusNotFound
	case IsValidation(err):
		return http.StatusBadRequest
	case IsInsufficientStock(err):
		return http.StatusUnprocessableEntity
	case IsConflict(err):
		return http.StatusConflict
	default:
		var t *InvalidTransitionError
		if errors.As(err, &t) {
			return http.StatusUnprocessableEntity
		}
		return http.StatusInternalServerError
	}
}
