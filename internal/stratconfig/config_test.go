package stratconfig

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func baseSpotConfig() Config {
	return Config{
		Kind:            SpotGrid,
		Symbol:          "BTC-USD",
		UpperPrice:      decimal.RequireFromString("110"),
		LowerPrice:      decimal.RequireFromString("90"),
		GridCount:       5,
		TotalInvestment: decimal.RequireFromString("1000"),
		GridType:        Arithmetic,
	}
}

func TestValidConfigPasses(t *testing.T) {
	assert.NoError(t, baseSpotConfig().Validate())
}

func TestInvertedBoundsRejected(t *testing.T) {
	c := baseSpotConfig()
	c.UpperPrice, c.LowerPrice = c.LowerPrice, c.UpperPrice
	assert.Error(t, c.Validate())
}

func TestGridCountBelowThreeRejected(t *testing.T) {
	c := baseSpotConfig()
	c.GridCount = 2
	assert.Error(t, c.Validate())
}

func TestTriggerPriceOutsideRangeRejected(t *testing.T) {
	c := baseSpotConfig()
	tp := decimal.RequireFromString("200")
	c.TriggerPrice = &tp
	err := c.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "trigger_price")
}

func TestBelowMinNotionalRejected(t *testing.T) {
	c := baseSpotConfig()
	c.TotalInvestment = decimal.RequireFromString("1")
	assert.Error(t, c.Validate())
}

func TestPerpRequiresValidLeverage(t *testing.T) {
	c := baseSpotConfig()
	c.Kind = PerpGrid
	c.Leverage = 0
	c.MaxLeverage = 20
	assert.Error(t, c.Validate())

	c.Leverage = 10
	assert.NoError(t, c.Validate())

	c.Leverage = 50
	assert.Error(t, c.Validate())
}
