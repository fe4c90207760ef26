package storefront

import (
	"errors"
	"fmt"
	"strings"

	"lessonshop/internal/domain"
)

// ErrSubmissionInProgress is returned when the session is settling a previous submit.
var ErrSubmissionInProgress = errors.New("submission already in progress")

// FetchError reports a failed catalog load. The previous snapshot is kept.
type FetchError struct {
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("load lessons: %v", e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// FieldError names one form field (or "cart") that blocked submission.
type FieldError struct {
	Field  string
	Reason string
}

// ValidationError blocks a submission locally. No network call is made.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s: %s", f.Field, f.Reason))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Has reports whether field failed validation.
func (e *ValidationError) Has(field string) bool {
	for _, f := range e.Fields {
		if f.Field == field {
			return true
		}
	}
	return false
}

// OrderCreateError means phase 1 failed: nothing changed remotely and a retry is safe.
type OrderCreateError struct {
	Err error
}

func (e *OrderCreateError) Error() string {
	return fmt.Sprintf("create order: %v", e.Err)
}

func (e *OrderCreateError) Unwrap() error { return e.Err }

// InventoryUpdateError means the order exists remotely but at least one
// lesson's spaces were not decremented. Resubmitting creates a second order.
type InventoryUpdateError struct {
	OrderID string
	Failed  []DecrementResult
}

func (e *InventoryUpdateError) Error() string {
	ids := make([]string, 0, len(e.Failed))
	for _, f := range e.Failed {
		ids = append(ids, f.LessonID)
	}
	return fmt.Sprintf("order %s placed but inventory update failed for %s", e.OrderID, strings.Join(ids, ", "))
}

// Unwrap exposes every failed decrement's cause, so errors.Is(err, domain.ErrVersionConflict) works.
func (e *InventoryUpdateError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failed))
	for _, f := range e.Failed {
		if f.Err != nil {
			errs = append(errs, f.Err)
		}
	}
	return errs
}

// Stale returns the lessons whose decrement lost against a newer remote revision.
func (e *InventoryUpdateError) Stale() []string {
	var ids []string
	for _, f := range e.Failed {
		if f.Stale() {
			ids = append(ids, f.LessonID)
		}
	}
	return ids
}

// IndexError is returned by CartLedger.RemoveAt for an out-of-range position.
type IndexError struct {
	Index int
	Len   int
}

func (e *IndexError) Error() string {
	return fmt.Sprintf("cart position %d out of range [0,%d)", e.Index, e.Len)
}

// DecrementResult is the settled outcome of one phase-2 write.
type DecrementResult struct {
	LessonID string
	Quantity int
	From     int
	To       int
	Err      error
}

// OK reports whether the store acknowledged the write.
func (r DecrementResult) OK() bool { return r.Err == nil }

// Stale reports whether the write was refused because the cached version was outdated.
func (r DecrementResult) Stale() bool { return errors.Is(r.Err, domain.ErrVersionConflict) }

// IllegalTransitionError is a checkout state change the machine does not allow.
type IllegalTransitionError struct {
	From CheckoutState
	To   CheckoutState
}

func (e *IllegalTransitionError) Error() string {
	return fmt.Sprintf("illegal checkout transition %s -> %s", e.From, e.To)
}
