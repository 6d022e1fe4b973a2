// Package zone implements the atomic unit of grid state: a price-range
// slice that runs an independent buy-low/sell-high (or open/close, for perp)
// loop.
package zone

import (
	"github.com/shopspring/decimal"

	"github.com/tommy-ca/gridbot/internal/cloid"
	"github.com/tommy-ca/gridbot/internal/fill"
)

// Zone is one slice of the configured price range. Invariants enforced by
// the owning strategy: LowerPrice < UpperPrice; zones are disjoint and cover
// the configured range; at most one ActiveCLOID per zone at any time.
type Zone struct {
	Index        uint32
	LowerPrice   decimal.Decimal
	UpperPrice   decimal.Decimal
	Size         decimal.Decimal // base-asset size per roundtrip
	PendingSide  fill.Side       // side of the *next* order this zone will place
	ActiveCLOID  cloid.CLOID     // zero value means no live order
	IsReduceOnly bool            // perp closing-side orders
	EntryPrice   decimal.Decimal // avg acquisition cost for inventory held by this zone
	RoundtripCnt uint32
	RealizedPnL  decimal.Decimal
	Fees         decimal.Decimal

	// OpeningSide is the side that establishes this zone's inventory (Buy
	// for a buy-low/sell-high loop, Sell for a short-bias sell-high/buy-low
	// loop). Zero value is Buy, matching the spot strategy's only loop
	// direction.
	OpeningSide fill.Side

	Backoff Backoff

	openFee decimal.Decimal // fee paid on the opening fill of the current roundtrip
}

// HasActiveOrder reports whether this zone currently owns a live order.
func (z *Zone) HasActiveOrder() bool {
	return !z.ActiveCLOID.IsZero()
}

// ClearActiveOrder releases this zone's order slot, e.g. on cancel, fill, or
// rejection.
func (z *Zone) ClearActiveOrder() {
	z.ActiveCLOID = cloid.CLOID{}
}

// Midpoint returns the arithmetic midpoint of the zone's bounds, used as the
// spot reference price for per-zone sizing.
func (z *Zone) Midpoint() decimal.Decimal {
	return z.LowerPrice.Add(z.UpperPrice).Div(decimal.NewFromInt(2))
}

// PlacementPrice returns the price this zone's pending-side order should be
// placed at: LowerPrice for Buy, UpperPrice for Sell.
func (z *Zone) PlacementPrice() decimal.Decimal {
	if z.PendingSide == fill.Buy {
		return z.LowerPrice
	}
	return z.UpperPrice
}

// RecordFill applies a completed fill of this zone's own order to the
// zone's accounting. A fill on OpeningSide establishes EntryPrice and flips
// PendingSide to the closing side; a fill on the closing side realizes PnL
// against EntryPrice net of both the opening and the closing fee,
// increments RoundtripCnt, and flips PendingSide back to
// OpeningSide. Fees always accumulate. Returns the price the strategy
// should enqueue the counter-order at.
func (z *Zone) RecordFill(f fill.Record) (counterPrice decimal.Decimal) {
	z.Fees = z.Fees.Add(f.Fee)
	if f.Side == z.OpeningSide {
		z.EntryPrice = f.Price
		z.openFee = f.Fee
		z.PendingSide = z.OpeningSide.Opposite()
	} else {
		sign := decimal.NewFromInt(1)
		if z.OpeningSide == fill.Sell {
			sign = decimal.NewFromInt(-1)
		}
		pnl := sign.Mul(f.Price.Sub(z.EntryPrice)).Mul(f.Size).Sub(f.Fee).Sub(z.openFee)
		z.openFee = decimal.Zero
		z.RealizedPnL = z.RealizedPnL.Add(pnl)
		z.RoundtripCnt++
		z.PendingSide = z.OpeningSide
	}
	z.ClearActiveOrder()
	return z.PlacementPrice()
}
