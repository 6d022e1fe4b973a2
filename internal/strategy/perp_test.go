package strategy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tommy-ca/gridbot/internal/fill"
	"github.com/tommy-ca/gridbot/internal/market"
	"github.com/tommy-ca/gridbot/internal/stratconfig"
)

// Scenario 3: Perp Long bias, trigger.
func TestScenario3PerpLongTrigger(t *testing.T) {
	trigger := dd("88000")
	cfg := stratconfig.Config{
		Kind:            stratconfig.PerpGrid,
		Symbol:          "BTC-PERP",
		UpperPrice:      dd("89500"),
		LowerPrice:      dd("87000"),
		GridCount:       5,
		TotalInvestment: dd("8000"),
		GridType:        stratconfig.Arithmetic,
		Leverage:        10,
		Bias:            stratconfig.Long,
		TriggerPrice:    &trigger,
	}
	s := NewPerpGridStrategy(cfg)
	ctx := newTestContext("BTC-PERP", market.Info{Symbol: "BTC-PERP", SzDecimals: 4, PxDecimals: 1, Class: market.Perp})
	ctx.SetBalance("USD", dd("10000"))

	require.NoError(t, s.Start(ctx, dd("89000"), "USD"))
	assert.Equal(t, WaitingForTrigger, s.State())

	s.OnTick(dd("87999"), ctx) // crosses 88000 downward
	assert.Equal(t, AcquiringAssets, s.State())

	orders := ctx.DrainOrders()
	require.Len(t, orders, 1)
	assert.True(t, orders[0].IsBuy)

	s.OnOrderFilled(fill.Record{CLOID: orders[0].CLOID, Side: fill.Buy, Price: dd("87999"), Size: orders[0].Size}, ctx)
	assert.Equal(t, Running, s.State())
	assert.True(t, s.Position().Size.IsPositive())
}

func TestPerpNeutralBootstrapNetsZero(t *testing.T) {
	cfg := stratconfig.Config{
		Kind:            stratconfig.PerpGrid,
		Symbol:          "ETH-PERP",
		UpperPrice:      dd("110"),
		LowerPrice:      dd("90"),
		GridCount:       5,
		TotalInvestment: dd("1000"),
		GridType:        stratconfig.Arithmetic,
		Leverage:        5,
		Bias:            stratconfig.Neutral,
	}
	s := NewPerpGridStrategy(cfg)
	ctx := newTestContext("ETH-PERP", market.Info{Symbol: "ETH-PERP", SzDecimals: 4, PxDecimals: 2, Class: market.Perp})
	ctx.SetBalance("USD", dd("5000"))

	require.NoError(t, s.Start(ctx, dd("100"), "USD"))

	orders := ctx.DrainOrders()
	require.Len(t, orders, 2)
	for _, o := range orders {
		s.OnOrderFilled(fill.Record{CLOID: o.CLOID, Side: sideOf(o.IsBuy), Price: dd("100"), Size: o.Size}, ctx)
	}
	assert.Equal(t, Running, s.State())
	assert.True(t, s.Position().Size.Abs().LessThan(dd("0.01")), s.Position().Size.String())
}

func sideOf(isBuy bool) fill.Side {
	if isBuy {
		return fill.Buy
	}
	return fill.Sell
}

func TestReduceOnlyFlagOnClosingOrders(t *testing.T) {
	cfg := stratconfig.Config{
		Kind:            stratconfig.PerpGrid,
		Symbol:          "BTC-PERP",
		UpperPrice:      dd("110"),
		LowerPrice:      dd("90"),
		GridCount:       5,
		TotalInvestment: dd("1000"),
		GridType:        stratconfig.Arithmetic,
		Leverage:        5,
		Bias:            stratconfig.Long,
	}
	s := NewPerpGridStrategy(cfg)
	ctx := newTestContext("BTC-PERP", market.Info{Symbol: "BTC-PERP", SzDecimals: 4, PxDecimals: 2, Class: market.Perp})
	ctx.SetBalance("USD", dd("5000"))
	require.NoError(t, s.Start(ctx, dd("100"), "USD"))

	// Acquisition leg fills entirely.
	orders := ctx.DrainOrders()
	require.Len(t, orders, 1)
	s.OnOrderFilled(fill.Record{CLOID: orders[0].CLOID, Side: fill.Buy, Price: dd("100"), Size: orders[0].Size}, ctx)
	require.Equal(t, Running, s.State())

	s.OnTick(dd("100"), ctx)
	placed := ctx.DrainOrders()
	for _, o := range placed {
		if !o.IsBuy {
			assert.True(t, o.ReduceOnly, "sell orders in a long-bias grid must be reduce-only")
		} else {
			assert.False(t, o.ReduceOnly, "buy orders in a long-bias grid open exposure, not reduce-only")
		}
	}
}
