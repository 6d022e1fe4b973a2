// Package gridmath implements price-level generation, per-zone sizing, and
// initial-side classification shared by the spot and perp grid strategies,
// using arithmetic or geometric level formulas and the zone model.
package gridmath

import (
	"math"

	"github.com/shopspring/decimal"

	"github.com/tommy-ca/gridbot/internal/fill"
	"github.com/tommy-ca/gridbot/internal/stratconfig"
	"github.com/tommy-ca/gridbot/internal/zone"
)

// Levels generates the N price levels over [lower, upper] for the given
// grid type. len(result) == count.
func Levels(lower, upper decimal.Decimal, count int, kind stratconfig.GridType) []decimal.Decimal {
	levels := make([]decimal.Decimal, count)
	n := decimal.NewFromInt(int64(count - 1))

	switch kind {
	case stratconfig.Geometric:
		// p_i = L * (U/L)^(i/(N-1))
		ratio := upper.Div(lower)
		for i := 0; i < count; i++ {
			exp := decimal.NewFromInt(int64(i)).Div(n)
			levels[i] = lower.Mul(decimalPow(ratio, exp))
		}
	default: // Arithmetic
		step := upper.Sub(lower).Div(n)
		for i := 0; i < count; i++ {
			levels[i] = lower.Add(step.Mul(decimal.NewFromInt(int64(i))))
		}
	}
	// Guarantee exact bounds despite floating rounding in decimalPow.
	levels[0] = lower
	levels[count-1] = upper
	return levels
}

// decimalPow computes base^exp for a fractional exponent via float64, since
// shopspring/decimal has no native fractional power. Acceptable here: grid
// level placement tolerates float64 precision, and the result is re-rounded
// to the market's price decimals before any order is placed.
func decimalPow(base, exp decimal.Decimal) decimal.Decimal {
	b, _ := base.Float64()
	e, _ := exp.Float64()
	return decimal.NewFromFloat(math.Pow(b, e))
}

// Zones builds the N-1 disjoint zones spanning the generated levels. Sizing
// and pending-side are left at their zero value; callers (the strategies)
// populate them via SizeZones and ClassifyInitialSide.
func Zones(levels []decimal.Decimal) []*zone.Zone {
	zones := make([]*zone.Zone, 0, len(levels)-1)
	for i := 0; i+1 < len(levels); i++ {
		zones = append(zones, &zone.Zone{
			Index:      uint32(i),
			LowerPrice: levels[i],
			UpperPrice: levels[i+1],
		})
	}
	return zones
}

// SizeSpot sets each zone's Size from notionalPerZone using the zone's
// midpoint as the spot reference price, rounded to szDecimals.
func SizeSpot(zones []*zone.Zone, notionalPerZone decimal.Decimal, round func(decimal.Decimal) decimal.Decimal) {
	for _, z := range zones {
		sz := notionalPerZone.Div(z.Midpoint())
		z.Size = round(sz)
	}
}

// SizePerp sets each zone's Size from notionalPerZone (margin) scaled by
// leverage to notional, using the zone's edge appropriate to bias as the
// reference price.
func SizePerp(zones []*zone.Zone, notionalPerZone decimal.Decimal, leverage int, bias stratconfig.Bias, round func(decimal.Decimal) decimal.Decimal) {
	notional := notionalPerZone.Mul(decimal.NewFromInt(int64(leverage)))
	for _, z := range zones {
		ref := referencePriceForBias(z, bias)
		sz := notional.Div(ref)
		z.Size = round(sz)
	}
}

func referencePriceForBias(z *zone.Zone, bias stratconfig.Bias) decimal.Decimal {
	switch bias {
	case stratconfig.Long:
		return z.LowerPrice
	case stratconfig.Short:
		return z.UpperPrice
	default:
		return z.Midpoint()
	}
}

// ClassifyInitialSideSpot assigns each zone's PendingSide given the initial
// price P0. A straddling zone (P0 inside its bounds) picks Buy. Every spot
// zone's OpeningSide is Buy: the zone always runs a buy-low/sell-high loop,
// whether or not it starts already holding inventory. A zone that starts
// Sell-pending is assumed to have acquired its inventory at P0 via the
// bootstrap rebalancing order, so its EntryPrice is seeded to P0.
func ClassifyInitialSideSpot(zones []*zone.Zone, p0 decimal.Decimal) {
	for _, z := range zones {
		z.OpeningSide = fill.Buy
		switch {
		case z.UpperPrice.LessThanOrEqual(p0):
			z.PendingSide = fill.Buy
		case z.LowerPrice.GreaterThanOrEqual(p0):
			z.PendingSide = fill.Sell
			z.EntryPrice = p0
		default:
			z.PendingSide = fill.Buy
		}
	}
}

// ClassifyInitialSidePerp assigns PendingSide, OpeningSide, and
// IsReduceOnly for a perp grid given the bias and initial price P0.
//
// Long bias: every zone's OpeningSide is Buy (open-long); zones above P0
// start already holding the long inventory bootstrap-acquired at P0, so
// their first order is a reduce-only Sell to close it.
// Short bias: the mirror image, OpeningSide is Sell throughout.
// Neutral: below-P0 zones open long (OpeningSide=Buy), above-P0 zones open
// short (OpeningSide=Sell); neither side starts pre-loaded with inventory,
// so nothing is reduce-only and PendingSide equals OpeningSide at start.
func ClassifyInitialSidePerp(zones []*zone.Zone, p0 decimal.Decimal, bias stratconfig.Bias) {
	for _, z := range zones {
		below := z.UpperPrice.LessThanOrEqual(p0) || (z.LowerPrice.LessThan(p0) && z.UpperPrice.GreaterThan(p0))
		switch bias {
		case stratconfig.Long:
			z.OpeningSide = fill.Buy
			if below {
				z.PendingSide = fill.Buy
				z.IsReduceOnly = false
			} else {
				z.PendingSide = fill.Sell
				z.IsReduceOnly = true
				z.EntryPrice = p0
			}
		case stratconfig.Short:
			z.OpeningSide = fill.Sell
			if !below {
				z.PendingSide = fill.Sell
				z.IsReduceOnly = false
			} else {
				z.PendingSide = fill.Buy
				z.IsReduceOnly = true
				z.EntryPrice = p0
			}
		default: // Neutral
			if below {
				z.OpeningSide = fill.Buy
				z.PendingSide = fill.Buy
			} else {
				z.OpeningSide = fill.Sell
				z.PendingSide = fill.Sell
			}
			z.IsReduceOnly = false
		}
	}
}

// InitialInventorySpot sums the Size of every Sell-pending zone: the base
// asset inventory the spot strategy must hold before it can enter Running.
func InitialInventorySpot(zones []*zone.Zone) decimal.Decimal {
	total := decimal.Zero
	for _, z := range zones {
		if z.PendingSide == fill.Sell {
			total = total.Add(z.Size)
		}
	}
	return total
}

// NeutralAcquisitionLegs returns the two market-order sizes a Neutral-bias
// perp grid must execute at bootstrap: half the total size of below-P0
// zones (the long leg, opening long inventory to later sell into the
// above-P0 zones over time) and half the total size of above-P0 zones (the
// short leg), so the two legs net to approximately zero exposure.
func NeutralAcquisitionLegs(zones []*zone.Zone) (longLeg, shortLeg decimal.Decimal) {
	belowTotal, aboveTotal := decimal.Zero, decimal.Zero
	for _, z := range zones {
		if z.PendingSide == fill.Buy {
			belowTotal = belowTotal.Add(z.Size)
		} else {
			aboveTotal = aboveTotal.Add(z.Size)
		}
	}
	half := decimal.NewFromFloat(0.5)
	return belowTotal.Mul(half), aboveTotal.Mul(half)
}

// InitialPositionPerp returns the signed initial position size the perp
// strategy must acquire: positive for zones whose closing side is Sell
// (i.e. the strategy must already be long to sell into them), negative for
// zones whose closing side is Buy.
func InitialPositionPerp(zones []*zone.Zone, bias stratconfig.Bias) decimal.Decimal {
	total := decimal.Zero
	for _, z := range zones {
		if !z.IsReduceOnly {
			continue
		}
		if z.PendingSide == fill.Sell {
			total = total.Add(z.Size)
		} else {
			total = total.Sub(z.Size)
		}
	}
	return total
}
