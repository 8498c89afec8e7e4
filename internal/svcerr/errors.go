// Package svcerr defines the error taxonomy shared by every core component.
//
// Every error the core returns is one of the Kinds below. Callers match on
// Kind via errors.Is against the sentinel values, never on message text.
package svcerr

import (
	"errors"
	"fmt"
)

// Kind tags an error with one of the disjoint categories the core can
// produce. One Kind maps to exactly one HTTP status at the edge.
type Kind int

const (
	// KindInternal covers any uncategorized I/O failure or invariant breach.
	KindInternal Kind = iota
	KindProductNotFound
	KindProductAlreadyExists
	KindInsufficientStock
	KindLockAcquisitionFailure
	KindConcurrentCreationInProgress
)

func (k Kind) String() string {
	switch k {
	case KindProductNotFound:
		return "product_not_found"
	case KindProductAlreadyExists:
		return "product_already_exists"
	case KindInsufficientStock:
		return "insufficient_stock"
	case KindLockAcquisitionFailure:
		return "lock_acquisition_failure"
	case KindConcurrentCreationInProgress:
		return "concurrent_creation_in_progress"
	default:
		return "internal"
	}
}

// Sentinel errors for errors.Is() comparisons against a bare Kind.
var (
	ErrProductNotFound              = errors.New("product not found")
	ErrProductAlreadyExists         = errors.New("product already exists")
	ErrInsufficientStock            = errors.New("insufficient stock")
	ErrLockAcquisitionFailure       = errors.New("failed to acquire lock")
	ErrConcurrentCreationInProgress = errors.New("concurrent creation in progress")
)

func sentinelFor(k Kind) error {
	switch k {
	case KindProductNotFound:
		return ErrProductNotFound
	case KindProductAlreadyExists:
		return ErrProductAlreadyExists
	case KindInsufficientStock:
		return ErrInsufficientStock
	case KindLockAcquisitionFailure:
		return ErrLockAcquisitionFailure
	case KindConcurrentCreationInProgress:
		return ErrConcurrentCreationInProgress
	default:
		return nil
	}
}

// Error is a structured error carrying a Kind plus context. It wraps the
// underlying cause (if any) so errors.Is/As still reach it.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	if e.Cause != nil {
		return e.Cause
	}
	return sentinelFor(e.Kind)
}

// Is lets errors.Is(err, svcerr.ErrInsufficientStock) and similar match
// without relying on the Cause chain alone.
func (e *Error) Is(target error) bool {
	return target == sentinelFor(e.Kind)
}

// New builds a Kind-tagged error with a message and no wrapped cause.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap builds a Kind-tagged error around an underlying cause.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// ProductNotFound reports that no row or no hot counter exists for productID.
func ProductNotFound(productID int64) *Error {
	return New(KindProductNotFound, fmt.Sprintf("product %d not found", productID))
}

// ProductAlreadyExists reports a product-name uniqueness violation.
func ProductAlreadyExists(name string) *Error {
	return New(KindProductAlreadyExists, fmt.Sprintf("product %q already exists", name))
}

// InsufficientStock reports that the hot counter held fewer units than requested.
func InsufficientStock(productID int64, requested, available int64) *Error {
	return New(KindInsufficientStock, fmt.Sprintf(
		"insufficient stock for product %d: requested %d, available %d",
		productID, requested, available))
}

// LockAcquisitionFailure reports lock retry or quorum exhaustion on resource.
func LockAcquisitionFailure(resource string) *Error {
	return New(KindLockAcquisitionFailure, fmt.Sprintf("failed to acquire lock for resource %q", resource))
}

// ConcurrentCreationInProgress reports the creation name-lock being contended.
func ConcurrentCreationInProgress(name string) *Error {
	return New(KindConcurrentCreationInProgress, fmt.Sprintf(
		"another product creation already in progress for name %q", name))
}

// Internal wraps any uncategorized failure.
func Internal(message string, cause error) *Error {
	return Wrap(KindInternal, message, cause)
}

// KindOf extracts the Kind from err, defaulting to KindInternal for errors
// the core didn't tag itself.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// IsRetryable reports whether the client may retry the same request with
// backoff without server-side intervention.
func IsRetryable(err error) bool {
	switch KindOf(err) {
	case KindLockAcquisitionFailure, KindConcurrentCreationInProgress:
		return true
	default:
		return false
	}
}
