package gridmath

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tommy-ca/gridbot/internal/fill"
	"github.com/tommy-ca/gridbot/internal/stratconfig"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func identity(x decimal.Decimal) decimal.Decimal { return x.Round(8) }

func TestArithmeticLevelsScenario1(t *testing.T) {
	levels := Levels(d("90"), d("110"), 5, stratconfig.Arithmetic)
	require.Len(t, levels, 5)
	want := []string{"90", "95", "100", "105", "110"}
	for i, w := range want {
		assert.True(t, levels[i].Equal(d(w)), "level %d: got %s want %s", i, levels[i], w)
	}
}

func TestZonesFromLevels(t *testing.T) {
	levels := Levels(d("90"), d("110"), 5, stratconfig.Arithmetic)
	zones := Zones(levels)
	require.Len(t, zones, 4)
	assert.True(t, zones[0].LowerPrice.Equal(d("90")))
	assert.True(t, zones[0].UpperPrice.Equal(d("95")))
	assert.True(t, zones[3].UpperPrice.Equal(d("110")))
}

func TestClassifyInitialSideSpotScenario1(t *testing.T) {
	levels := Levels(d("90"), d("110"), 5, stratconfig.Arithmetic)
	zones := Zones(levels)
	ClassifyInitialSideSpot(zones, d("100"))

	// (90,95) and (95,100) => Buy; (100,105) and (105,110) => Sell.
	assert.Equal(t, fill.Buy, zones[0].PendingSide)
	assert.Equal(t, fill.Buy, zones[1].PendingSide)
	assert.Equal(t, fill.Sell, zones[2].PendingSide)
	assert.Equal(t, fill.Sell, zones[3].PendingSide)
}

func TestClassifyInitialSideStraddlePicksBuy(t *testing.T) {
	levels := Levels(d("90"), d("110"), 5, stratconfig.Arithmetic)
	zones := Zones(levels)
	ClassifyInitialSideSpot(zones, d("97")) // inside (95,100)

	assert.Equal(t, fill.Buy, zones[1].PendingSide)
}

func TestGeometricLevelsBoundsExact(t *testing.T) {
	levels := Levels(d("100"), d("200"), 4, stratconfig.Geometric)
	require.Len(t, levels, 4)
	assert.True(t, levels[0].Equal(d("100")))
	assert.True(t, levels[3].Equal(d("200")))
	// Monotonically increasing.
	for i := 1; i < len(levels); i++ {
		assert.True(t, levels[i].GreaterThan(levels[i-1]))
	}
}

func TestInitialInventorySpot(t *testing.T) {
	levels := Levels(d("90"), d("110"), 5, stratconfig.Arithmetic)
	zones := Zones(levels)
	ClassifyInitialSideSpot(zones, d("100"))
	SizeSpot(zones, d("250"), identity)

	inv := InitialInventorySpot(zones)
	assert.True(t, inv.IsPositive())
}

func TestClassifyInitialSidePerpLong(t *testing.T) {
	levels := Levels(d("87000"), d("89500"), 5, stratconfig.Arithmetic)
	zones := Zones(levels)
	ClassifyInitialSidePerp(zones, d("88000"), stratconfig.Long)

	for _, z := range zones {
		if z.UpperPrice.LessThanOrEqual(d("88000")) {
			assert.Equal(t, fill.Buy, z.PendingSide)
			assert.False(t, z.IsReduceOnly)
		} else if z.LowerPrice.GreaterThanOrEqual(d("88000")) {
			assert.Equal(t, fill.Sell, z.PendingSide)
			assert.True(t, z.IsReduceOnly)
		}
	}
}

func TestInitialPositionPerpNeutralNetsZero(t *testing.T) {
	levels := Levels(d("90"), d("110"), 5, stratconfig.Arithmetic)
	zones := Zones(levels)
	ClassifyInitialSidePerp(zones, d("100"), stratconfig.Neutral)
	SizePerp(zones, d("250"), 10, stratconfig.Neutral, identity)

	// Neutral bias has no reduce-only zones by construction (both sides are
	// opening), so the initial position requirement is zero.
	pos := InitialPositionPerp(zones, stratconfig.Neutral)
	assert.True(t, pos.IsZero())
}
