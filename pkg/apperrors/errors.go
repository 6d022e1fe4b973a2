// Package apperrors carries the error taxonomy named in the core's error
// handling design as sentinel errors, so callers can classify failures with
// errors.Is rather than string matching.
package apperrors

import "errors"

var (
	// Configuration errors — detected at load, map to exit code 2.
	ErrConfigInvalid = errors.New("configuration invalid")

	// Pre-flight errors — fatal before the engine starts trading, map to
	// exit code 3.
	ErrPreflightInsufficientBalance = errors.New("insufficient portfolio value for configured investment")
	ErrPreflightBelowMinNotional    = errors.New("notional per zone below exchange minimum")
	ErrPreflightMetadataQuery       = errors.New("exchange rejected market metadata query")

	// Transient transport errors — retried with backoff, never fatal.
	ErrTransientNetwork     = errors.New("transient network error")
	ErrTransientTimeout     = errors.New("request timed out")
	ErrExchangeStreamClosed = errors.New("exchange stream closed")

	// Order-level rejections — recovered per-zone via on_order_failed.
	ErrOrderRejected        = errors.New("order rejected by exchange")
	ErrReduceOnlyViolation  = errors.New("reduce-only violation")
	ErrInsufficientMargin   = errors.New("insufficient margin for order")
	ErrOrderNotFound        = errors.New("order not found")
	ErrDuplicateOrder       = errors.New("duplicate client order id")

	// Invariant violations — logged loudly, self-healed by the engine.
	ErrInvariantViolation = errors.New("invariant violation")

	// Unrecoverable exchange errors — map to exit code 4.
	ErrExchangeUnrecoverable = errors.New("unrecoverable exchange error")
)
