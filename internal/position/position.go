// Package position implements perp-only position accounting: signed size,
// weighted-average entry price, and realized PnL with sign-flip protection
// across zero-crossing fills.
package position

import (
	"github.com/shopspring/decimal"
)

// Position tracks a single symbol's perp exposure. Positive Size is Long,
// negative is Short.
type Position struct {
	Size       decimal.Decimal
	AvgEntry   decimal.Decimal
	RealizedPnL decimal.Decimal
	FeesPaid   decimal.Decimal
}

// ApplyFill updates the position for a single fill. signedSize is positive
// for a buy fill and negative for a sell fill. Handles same-sign increases,
// opposite-sign decreases, and zero-crossing fills that close the existing
// side and open the opposite one in a single fill.
func (p *Position) ApplyFill(signedSize, price, fee decimal.Decimal) {
	p.FeesPaid = p.FeesPaid.Add(fee)

	if signedSize.IsZero() {
		return
	}

	switch {
	case p.Size.IsZero():
		// Flat -> opening a fresh position.
		p.Size = signedSize
		p.AvgEntry = price
		return

	case sameSign(p.Size, signedSize):
		// Increasing: new_avg = (|pos|*avg + sz*price) / (|pos| + sz)
		absPos := p.Size.Abs()
		absFill := signedSize.Abs()
		p.AvgEntry = absPos.Mul(p.AvgEntry).Add(absFill.Mul(price)).Div(absPos.Add(absFill))
		p.Size = p.Size.Add(signedSize)
		return
	}

	// Opposite sign to current position: this fill reduces (and possibly
	// crosses through zero) the existing side.
	absPos := p.Size.Abs()
	absFill := signedSize.Abs()

	if absFill.LessThanOrEqual(absPos) {
		// Pure decrease, same side retained (or exactly flat).
		sign := decimal.NewFromInt(1)
		if p.Size.IsNegative() {
			sign = decimal.NewFromInt(-1)
		}
		pnl := sign.Mul(price.Sub(p.AvgEntry)).Mul(absFill)
		p.RealizedPnL = p.RealizedPnL.Add(pnl)
		p.Size = p.Size.Add(signedSize)
		if p.Size.IsZero() {
			p.AvgEntry = decimal.Zero
		}
		return
	}

	// Crossing zero: close the existing side entirely, then open the
	// remainder on the opposite side at this fill's price.
	sign := decimal.NewFromInt(1)
	if p.Size.IsNegative() {
		sign = decimal.NewFromInt(-1)
	}
	pnl := sign.Mul(price.Sub(p.AvgEntry)).Mul(absPos)
	p.RealizedPnL = p.RealizedPnL.Add(pnl)

	remainder := absFill.Sub(absPos)
	newSize := remainder
	if signedSize.IsNegative() {
		newSize = remainder.Neg()
	}
	p.Size = newSize
	p.AvgEntry = price
}

func sameSign(a, b decimal.Decimal) bool {
	return (a.IsPositive() && b.IsPositive()) || (a.IsNegative() && b.IsNegative())
}

// UnrealizedPnL returns the mark-to-market PnL given the current mark price:
// (mark - avg_entry) * size_signed.
func (p *Position) UnrealizedPnL(mark decimal.Decimal) decimal.Decimal {
	if p.Size.IsZero() {
		return decimal.Zero
	}
	return mark.Sub(p.AvgEntry).Mul(p.Size)
}
