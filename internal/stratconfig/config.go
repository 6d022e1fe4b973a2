// Package stratconfig defines the validated, tagged strategy configuration
// variant (SpotGrid or PerpGrid) parsed from the TOML config file's
// [strategy] table.
package stratconfig

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// GridType selects arithmetic or geometric level spacing.
type GridType int

const (
	Arithmetic GridType = iota
	Geometric
)

// Bias is the intended net directional exposure of a perp grid.
type Bias int

const (
	Long Bias = iota
	Short
	Neutral
)

func (b Bias) String() string {
	switch b {
	case Long:
		return "long"
	case Short:
		return "short"
	default:
		return "neutral"
	}
}

// Kind discriminates the two strategy config variants.
type Kind int

const (
	SpotGrid Kind = iota
	PerpGrid
)

// MinNotional is the exchange-enforced floor on notional value per zone.
// Exposed as a var (not a const) so deployments can tune it per market; the
// spec names $11 as an illustrative default.
var MinNotional = decimal.RequireFromString("11")

// Config is the tagged strategy configuration variant. Fields marked
// "perp-only" are zero-valued and unused for Kind == SpotGrid.
type Config struct {
	Kind Kind

	// Common fields.
	Symbol         string
	UpperPrice     decimal.Decimal
	LowerPrice     decimal.Decimal
	GridCount      int
	TotalInvestment decimal.Decimal
	GridType       GridType
	TriggerPrice   *decimal.Decimal // nil means "start immediately at market"

	// Perp-only fields.
	Leverage    int
	MaxLeverage int
	Bias        Bias
	IsIsolated  bool
}

// NotionalPerZone derives the target notional (margin, for perp) committed
// per zone.
func (c Config) NotionalPerZone() decimal.Decimal {
	return c.TotalInvestment.Div(decimal.NewFromInt(int64(c.GridCount - 1)))
}

// Validate enforces every invariant named in the data model. It is called
// once at config-load time; failures are configuration errors (exit code 2).
func (c Config) Validate() error {
	var errs []string

	check := func(cond bool, msg string) {
		if !cond {
			errs = append(errs, msg)
		}
	}

	check(c.Symbol != "", "symbol must not be empty")
	check(c.LowerPrice.IsPositive(), "lower_price must be > 0")
	check(c.UpperPrice.GreaterThan(c.LowerPrice), "upper_price must be > lower_price")
	check(c.GridCount >= 3, "grid_count must be >= 3")
	check(c.TotalInvestment.IsPositive(), "total_investment must be > 0")

	if c.GridCount >= 2 {
		notional := c.NotionalPerZone()
		check(notional.GreaterThanOrEqual(MinNotional),
			fmt.Sprintf("notional_per_zone %s is below exchange minimum %s", notional, MinNotional))
	}

	if c.TriggerPrice != nil {
		tp := *c.TriggerPrice
		check(tp.GreaterThanOrEqual(c.LowerPrice) && tp.LessThanOrEqual(c.UpperPrice),
			"trigger_price must lie within [lower_price, upper_price]")
	}

	switch c.Kind {
	case SpotGrid:
		// No additional fields.
	case PerpGrid:
		check(c.Leverage >= 1, "leverage must be >= 1")
		if c.MaxLeverage > 0 {
			check(c.Leverage <= c.MaxLeverage, fmt.Sprintf("leverage must be <= %d", c.MaxLeverage))
		}
	default:
		errs = append(errs, "unknown strategy type")
	}

	if len(errs) > 0 {
		return &ValidationError{Errors: errs}
	}
	return nil
}

// ValidationError aggregates every configuration problem found, mirroring
// the ambient config-validation style of reporting all failures at once
// rather than stopping at the first.
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	if len(e.Errors) == 1 {
		return "invalid strategy config: " + e.Errors[0]
	}
	msg := fmt.Sprintf("invalid strategy config (%d issues):", len(e.Errors))
	for _, s := range e.Errors {
		msg += "\n  - " + s
	}
	return msg
}
