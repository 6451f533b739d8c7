package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ValidationError reports bad input shape. Nothing was changed.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Problems, "; ")
}

// StockError lists every SKU that could not be fulfilled at placement
type StockError struct {
	Problems []string
}

func (e *StockError) Error() string {
	return "cannot place order: " + strings.Join(e.Problems, " ")
}

// NotFoundError is returned when a SKU is unknown or inactive
type NotFoundError struct {
	SKU string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("product %s not found", e.SKU)
}

// OutOfStockError is returned when a product has no stock left at all
type OutOfStockError struct {
	SKU  string
	Name string
}

func (e *OutOfStockError) Error() string {
	return fmt.Sprintf("%s is out of stock", e.Name)
}

// TransportError wraps a failed call to the inventory service
type TransportError struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *TransportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("inventory transport error: %v", e.Err)
	}
	return fmt.Sprintf("inventory responded with status %d: %s", e.StatusCode, e.Body)
}

func (e *TransportError) Unwrap() error { return e.Err }

// PersistenceError is an unexpected storage failure. The transaction was rolled back.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence failure during %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// ContentionError means a row lock could not be acquired in time. Callers may retry.
type ContentionError struct {
	Err error
}

func (e *ContentionError) Error() string {
	return fmt.Sprintf("lock contention, retry later: %v", e.Err)
}

func (e *ContentionError) Unwrap() error { return e.Err }

// Retryable is always true for contention
func (e *ContentionError) Retryable() bool { return true }

// ErrNotInCart is returned when removing or updating a SKU the cart does not hold
var ErrNotInCart = errors.New("item not found in cart")
