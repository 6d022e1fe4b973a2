package market

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestRoundPriceIdempotent(t *testing.T) {
	info := Info{Symbol: "BTC-USD", PxDecimals: 2, SzDecimals: 4, SigFigs: 5}
	x := decimal.RequireFromString("27123.4567")
	once := info.RoundPrice(x)
	twice := info.RoundPrice(once)
	assert.True(t, once.Equal(twice))
}

func TestRoundSizeIdempotent(t *testing.T) {
	info := Info{Symbol: "BTC-USD", PxDecimals: 2, SzDecimals: 4}
	x := decimal.RequireFromString("1.123456")
	once := info.RoundSize(x)
	twice := info.RoundSize(once)
	assert.True(t, once.Equal(twice))
}

func TestRoundPriceRespectsSigFigs(t *testing.T) {
	info := Info{Symbol: "DOGE-USD", PxDecimals: 6, SigFigs: 5}
	x := decimal.RequireFromString("0.123456789")
	got := info.RoundPrice(x)
	// 5 significant figures of 0.123456789 is 0.12346.
	assert.True(t, got.Equal(decimal.RequireFromString("0.12346")), got.String())
}

func TestRegistryGetSet(t *testing.T) {
	r := NewRegistry(Info{Symbol: "ETH-USD", Class: Perp})
	info, ok := r.Get("ETH-USD")
	assert.True(t, ok)
	assert.Equal(t, Perp, info.Class)

	_, ok = r.Get("missing")
	assert.False(t, ok)

	r.Set(Info{Symbol: "ETH-USD", Class: Spot})
	info = r.MustGet("ETH-USD")
	assert.Equal(t, Spot, info.Class)
}
