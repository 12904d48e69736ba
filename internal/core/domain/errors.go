package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound             = errors.New("not found")
	ErrValidation           = errors.New("validation failed")
	ErrInsufficientStock    = errors.New("insufficient stock")
	ErrInsufficientKeys     = errors.New("insufficient activation keys")
	ErrNotificationDelivery = errors.New("notification delivery failed")
	ErrEmptyCart            = errors.New("cart is empty")
	ErrConflict             = errors.New("already exists")
	ErrInvalidCredentials   = errors.New("invalid credentials")
	ErrUnauthorized         = errors.New("unauthorized")
	ErrForbidden            = errors.New("forbidden")
)

// A NotFoundError names the missing entity.
type NotFoundError struct {
	Entity string
	ID     any
}

func NewNotFoundError(entity string, id any) *NotFoundError {
	return &NotFoundError{Entity: entity, ID: id}
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %v: %s", e.Entity, e.ID, ErrNotFound)
}

func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

// A ValidationError reports a malformed input field.
type ValidationError struct {
	Field  string
	Reason string
}

func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s: %s", ErrValidation, e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

type InsufficientStockError struct {
	ProductID int64
	Requested int
	Stock     int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf(
		"%s: product %d: requested %d, in stock %d",
		ErrInsufficientStock, e.ProductID, e.Requested, e.Stock,
	)
}

func (e *InsufficientStockError) Unwrap() error {
	return ErrInsufficientStock
}

// An InsufficientKeysError is returned when a product's key pool cannot
// satisfy a requested quantity.
type InsufficientKeysError struct {
	ProductID   int64
	ProductName string
	Requested   int
	Available   int
}

func (e *InsufficientKeysError) Error() string {
	return fmt.Sprintf(
		"%s: product %d %q: requested %d, available %d",
		ErrInsufficientKeys, e.ProductID, e.ProductName,
		e.Requested, e.Available,
	)
}

func (e *InsufficientKeysError) Unwrap() error {
	return ErrInsufficientKeys
}

// A NotificationDeliveryError wraps a failed send for a purchase whose keys
// are already allocated.
type NotificationDeliveryError struct {
	PurchaseID int64
	Err        error
}

func (e *NotificationDeliveryError) Error() string {
	return fmt.Sprintf(
		"%s: purchase %d: %v", ErrNotificationDelivery, e.PurchaseID, e.Err,
	)
}

func (e *NotificationDeliveryError) Unwrap() []error {
	return []error{ErrNotificationDelivery, e.Err}
}
