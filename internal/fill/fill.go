// Package fill defines the normalized fill/order-status event the exchange
// SDK's user-event stream delivers to the engine.
package fill

import (
	"github.com/shopspring/decimal"

	"github.com/tommy-ca/gridbot/internal/cloid"
)

// Side is the direction of a fill or order.
type Side int

const (
	Buy Side = iota
	Sell
)

func (s Side) String() string {
	if s == Sell {
		return "sell"
	}
	return "buy"
}

// Opposite returns the other side.
func (s Side) Opposite() Side {
	if s == Buy {
		return Sell
	}
	return Buy
}

// Status is the lifecycle state an order-status event reports.
type Status int

const (
	Open Status = iota
	Opening
	Filled
	Cancelled
	Rejected
)

// Record is a single normalized fill or order-status transition reported by
// the exchange's user-event stream. CLOID is the zero value for
// externally-placed orders, which the core ignores.
type Record struct {
	CLOID    cloid.CLOID
	OID      uint64
	Symbol   string
	Side     Side
	Price    decimal.Decimal
	Size     decimal.Decimal
	Fee      decimal.Decimal
	IsTaker  bool
	Status   Status
	Sequence uint64 // per-order fill sequence, used for dedup on reconnect replay
	Reason   string // populated when Status == Rejected
}

// HasCLOID reports whether this fill correlates to a client-issued order.
func (r Record) HasCLOID() bool {
	return !r.CLOID.IsZero()
}
