// Package market holds per-symbol exchange metadata and the price/size
// rounding rules the strategy and engine must apply before any order leaves
// the process.
package market

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// InstrumentClass distinguishes spot and perpetual-futures markets.
type InstrumentClass int

const (
	Spot InstrumentClass = iota
	Perp
)

func (c InstrumentClass) String() string {
	if c == Perp {
		return "perp"
	}
	return "spot"
}

// Info is immutable per-symbol exchange metadata, loaded once at startup via
// the exchange SDK's query_market_info and never mutated afterward.
type Info struct {
	Symbol      string
	SzDecimals  int32
	PxDecimals  int32
	Class       InstrumentClass
	BaseSymbol  string // spot only
	QuoteSymbol string // spot only

	// SigFigs bounds the number of significant figures a rounded price may
	// carry, mirroring exchanges (e.g. Hyperliquid) that combine a
	// significant-figures rule with a max-decimal-places rule.
	SigFigs int32
}

// RoundPrice snaps x to an exchange-admissible price: at most PxDecimals
// decimal places AND at most SigFigs significant figures, whichever is
// tighter. RoundPrice is idempotent: RoundPrice(RoundPrice(x)) == RoundPrice(x).
func (m Info) RoundPrice(x decimal.Decimal) decimal.Decimal {
	rounded := x.Round(m.PxDecimals)
	if m.SigFigs <= 0 {
		return rounded
	}
	return roundToSigFigs(rounded, m.SigFigs, m.PxDecimals)
}

// RoundSize snaps x to SzDecimals decimal places. RoundSize is idempotent.
func (m Info) RoundSize(x decimal.Decimal) decimal.Decimal {
	return x.Round(m.SzDecimals)
}

// roundToSigFigs rounds x to at most sigFigs significant digits, then
// re-applies the decimal-place cap so the result never exceeds either bound.
func roundToSigFigs(x decimal.Decimal, sigFigs, maxDecimals int32) decimal.Decimal {
	if x.IsZero() {
		return x
	}
	abs := x.Abs()
	exp := int32(0)
	for abs.GreaterThanOrEqual(decimal.NewFromInt(10)) {
		abs = abs.Shift(-1)
		exp++
	}
	for abs.LessThan(decimal.NewFromInt(1)) {
		abs = abs.Shift(1)
		exp--
	}
	// abs is now in [1, 10); round it to sigFigs total digits, i.e.
	// (sigFigs - 1) fractional digits, then shift back.
	rounded := abs.Round(sigFigs - 1).Shift(exp)
	if x.IsNegative() {
		rounded = rounded.Neg()
	}
	return rounded.Round(maxDecimals)
}

// Registry is the engine-owned, strategy-readable table of loaded market
// metadata, keyed by symbol.
type Registry struct {
	infos map[string]Info
}

// NewRegistry builds a Registry from a set of loaded Info records.
func NewRegistry(infos ...Info) *Registry {
	r := &Registry{infos: make(map[string]Info, len(infos))}
	for _, i := range infos {
		r.infos[i.Symbol] = i
	}
	return r
}

// Get returns the MarketInfo for symbol, if loaded.
func (r *Registry) Get(symbol string) (Info, bool) {
	i, ok := r.infos[symbol]
	return i, ok
}

// Set installs or replaces the MarketInfo for a symbol.
func (r *Registry) Set(info Info) {
	r.infos[info.Symbol] = info
}

// MustGet returns the MarketInfo for symbol, panicking if absent. Intended
// for call sites that have already validated the symbol is loaded.
func (r *Registry) MustGet(symbol string) Info {
	i, ok := r.infos[symbol]
	if !ok {
		panic(fmt.Sprintf("market: symbol %q not loaded", symbol))
	}
	return i
}
