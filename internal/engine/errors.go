package engine

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// ErrorCode categorizes input errors on mutating calls.
type ErrorCode string

const (
	// ErrCodeInvalidAmount indicates a zero (or otherwise unrepresentable)
	// sell amount on registration.
	ErrCodeInvalidAmount ErrorCode = "INVALID_AMOUNT"

	// ErrCodeIntervalTooShort indicates an interval below the configured
	// minimum upkeep interval.
	ErrCodeIntervalTooShort ErrorCode = "INTERVAL_TOO_SHORT"

	// ErrCodeNotFound indicates a delete referencing an order that does not
	// exist or is not owned by the caller.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"
)

// Error is returned synchronously by registration and deletion when the
// caller's input is rejected. The store is not modified.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// OrderHash identifies the affected order, when known.
	OrderHash common.Hash
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.OrderHash != (common.Hash{}) {
		return fmt.Sprintf("%s: %s (order=%s)", e.Code, e.Message, e.OrderHash.Hex())
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsInvalidAmount returns true if err is an InvalidAmount error.
// Uses errors.As to handle wrapped errors.
func IsInvalidAmount(err error) bool {
	return hasCode(err, ErrCodeInvalidAmount)
}

// IsIntervalTooShort returns true if err is an IntervalTooShort error.
func IsIntervalTooShort(err error) bool {
	return hasCode(err, ErrCodeIntervalTooShort)
}

// IsNotFound returns true if err is a NotFound error.
func IsNotFound(err error) bool {
	return hasCode(err, ErrCodeNotFound)
}

func hasCode(err error, code ErrorCode) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// NewInvalidAmountError creates an Error for a rejected sell amount.
func NewInvalidAmountError(reason string) *Error {
	return &Error{Code: ErrCodeInvalidAmount, Message: reason}
}

// NewIntervalTooShortError creates an Error for an interval below minimum.
func NewIntervalTooShortError(interval, minimum int64) *Error {
	return &Error{
		Code:    ErrCodeIntervalTooShort,
		Message: fmt.Sprintf("interval %d is below minimum upkeep interval %d", interval, minimum),
	}
}

// NewNotFoundError creates an Error for a missing or foreign order.
func NewNotFoundError(orderHash common.Hash) *Error {
	return &Error{
		Code:      ErrCodeNotFound,
		Message:   "order does not exist or is not owned by caller",
		OrderHash: orderHash,
	}
}
