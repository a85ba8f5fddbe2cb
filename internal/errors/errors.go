// Package errors provides custom error types for domain-specific errors.
package errors

import (
	"errors"
	"fmt"
)

// Standard sentinel errors
var (
	// ErrConfigUnavailable means the persisted risk-parameter record is
	// missing or corrupt. There is no safe default for unknown limits, so
	// startup must halt before any trading decision is made.
	ErrConfigUnavailable = errors.New("risk configuration unavailable")

	// ErrPersistence means a durable write failed. Callers must roll back
	// any in-memory state the write was meant to make durable.
	ErrPersistence = errors.New("persistence failed")

	// ErrDataUnavailable means a quote or indicator fetch failed. The
	// affected symbol is skipped for the cycle; the cycle continues.
	ErrDataUnavailable = errors.New("market data unavailable")

	ErrLedgerDuplicate = errors.New("trade already recorded")
)

// BrokerError represents an error from the brokerage API. Submission
// errors are logged and skipped, never blindly retried: a retry could
// double-submit an order.
type BrokerError struct {
	Op      string
	Symbol  string
	Message string
	Err     error
}

func (e *BrokerError) Error() string {
	if e.Symbol != "" {
		return fmt.Sprintf("broker %s %s: %s", e.Op, e.Symbol, e.Message)
	}
	return fmt.Sprintf("broker %s: %s", e.Op, e.Message)
}

func (e *BrokerError) Unwrap() error {
	return e.Err
}

// NewBrokerError creates a new BrokerError.
func NewBrokerError(op, symbol, message string, err error) *BrokerError {
	return &BrokerError{Op: op, Symbol: symbol, Message: message, Err: err}
}

// RejectReason is a machine-readable code for a validator rejection.
// Rejections are expected business outcomes, not faults; they travel as
// Verdict values, not errors, and every one is surfaced through the
// notification sink with its code.
type RejectReason string

const (
	ReasonDailyLimitExceeded RejectReason = "DailyLimitExceeded"
	ReasonDuplicateExposure  RejectReason = "DuplicateExposure"
	ReasonInsufficientCash   RejectReason = "InsufficientCash"
	ReasonExceedsClassCap    RejectReason = "ExceedsClassCap"
	ReasonExceedsPositionCap RejectReason = "ExceedsPositionCap"
	ReasonOversizedSell      RejectReason = "OversizedSell"
)
