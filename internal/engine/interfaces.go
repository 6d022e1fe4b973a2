// Package engine implements the single-threaded event loop that drives a
// Strategy against an exchange SDK: it merges the mid-price stream, the
// user (fill/order-status) event stream, and a periodic tick into one
// ordered sequence of strategy callbacks, owns CLOID-keyed order tracking
// and duplicate suppression via internal/tracker, and retries order
// submission through failsafe-go.
package engine

import (
	"context"
)

// Engine runs one strategy instance against one exchange SDK connection
// until its context is cancelled or an unrecoverable error occurs.
type Engine interface {
	Run(ctx context.Context) error
	// Snapshot returns the engine's current broadcastable state. It is not
	// synchronized with Run and is not safe to call while Run is executing.
	Snapshot() Snapshot
}
