// Package apperrors defines the error taxonomy shared by the repositories,
// the service layer and the HTTP handlers.
//
// Repositories return the sentinel values. The service layer wraps them into
// the typed errors below, which carry the entity context and still match the
// sentinels through errors.Is.
package apperrors

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrStatusConflict    = errors.New("order status changed concurrently")
	ErrDuplicate         = errors.New("already exists")
	ErrUnauthorized      = errors.New("not authorized")
	ErrForbidden         = errors.New("forbidden")
)

// ValidationError reports malformed or missing input.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// NotFoundError reports a referenced entity that does not exist.
type NotFoundError struct {
	Resource string
	ID       string
	// Message overrides the generated text when set.
	Message string
}

func NewNotFoundError(resource, id string) *NotFoundError {
	return &NotFoundError{Resource: resource, ID: id}
}

func (e *NotFoundError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.ID == "" {
		return fmt.Sprintf("%s not found", e.Resource)
	}
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// InsufficientStockError identifies the product and size that could not
// cover the requested quantity.
type InsufficientStockError struct {
	ProductID   string
	ProductName string
	Size        string
	Requested   int
	Available   int
}

func (e *InsufficientStockError) Error() string {
	name := e.ProductName
	if name == "" {
		name = e.ProductID
	}
	return fmt.Sprintf("Not enough stock for %s size %s", name, e.Size)
}

func (e *InsufficientStockError) Unwrap() error { return ErrInsufficientStock }

// InvalidStateError reports an illegal order status change.
type InvalidStateError struct {
	OrderID string
	Status  string
	Message string
}

func NewInvalidStateError(orderID, status, message string) *InvalidStateError {
	return &InvalidStateError{OrderID: orderID, Status: status, Message: message}
}

func (e *InvalidStateError) Error() string {
	return e.Message
}
