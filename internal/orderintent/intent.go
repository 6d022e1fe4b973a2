// Package orderintent defines the tagged order-request variant a strategy
// stages into the engine's outgoing queues.
package orderintent

import (
	"github.com/shopspring/decimal"

	"github.com/tommy-ca/gridbot/internal/cloid"
)

// Kind discriminates the OrderIntent variants.
type Kind int

const (
	Limit Kind = iota
	Market
	Cancel
)

// Intent is a tagged variant: Limit, Market, or Cancel. Strategies never
// construct one directly; they obtain Intents from StrategyContext's
// place_* methods, which also assign the CLOID. StrategyContext's cancel
// method stages a bare CLOID, not an Intent.
type Intent struct {
	Kind Kind

	CLOID cloid.CLOID

	// Limit and Market fields.
	Symbol     string
	IsBuy      bool
	Price      decimal.Decimal // Limit only
	Size       decimal.Decimal
	ReduceOnly bool // Limit and Market
}

// NewLimit builds a Limit intent.
func NewLimit(id cloid.CLOID, symbol string, isBuy bool, price, size decimal.Decimal, reduceOnly bool) Intent {
	return Intent{
		Kind:       Limit,
		CLOID:      id,
		Symbol:     symbol,
		IsBuy:      isBuy,
		Price:      price,
		Size:       size,
		ReduceOnly: reduceOnly,
	}
}

// NewMarket builds a Market intent.
func NewMarket(id cloid.CLOID, symbol string, isBuy bool, size decimal.Decimal, reduceOnly bool) Intent {
	return Intent{
		Kind:       Market,
		CLOID:      id,
		Symbol:     symbol,
		IsBuy:      isBuy,
		Size:       size,
		ReduceOnly: reduceOnly,
	}
}

// NewCancel builds a Cancel intent for a previously issued CLOID.
func NewCancel(id cloid.CLOID) Intent {
	return Intent{Kind: Cancel, CLOID: id}
}

// SubmitResult is the exchange SDK's response to a single submitted intent.
type SubmitResult struct {
	CLOID    cloid.CLOID
	Accepted bool
	OID      uint64 // valid when Accepted
	Reason   string // valid when !Accepted
}
