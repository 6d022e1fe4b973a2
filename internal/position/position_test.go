package position

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestOpenAndIncrease(t *testing.T) {
	var p Position
	p.ApplyFill(d("1"), d("100"), d("0"))
	assert.True(t, p.Size.Equal(d("1")))
	assert.True(t, p.AvgEntry.Equal(d("100")))

	p.ApplyFill(d("1"), d("110"), d("0"))
	assert.True(t, p.Size.Equal(d("2")))
	assert.True(t, p.AvgEntry.Equal(d("105")))
}

func TestDecreaseSameSide(t *testing.T) {
	var p Position
	p.ApplyFill(d("2"), d("100"), d("0"))
	p.ApplyFill(d("-1"), d("110"), d("0"))

	assert.True(t, p.Size.Equal(d("1")))
	assert.True(t, p.AvgEntry.Equal(d("100")), "avg entry unchanged on decrease")
	assert.True(t, p.RealizedPnL.Equal(d("10")))
}

func TestCrossZero(t *testing.T) {
	var p Position
	p.ApplyFill(d("1"), d("100"), d("0")) // long 1 @ 100
	p.ApplyFill(d("-3"), d("110"), d("0")) // sell 3: closes long(+10 pnl), opens short 2 @ 110

	assert.True(t, p.Size.Equal(d("-2")))
	assert.True(t, p.AvgEntry.Equal(d("110")))
	assert.True(t, p.RealizedPnL.Equal(d("10")))
}

func TestFlatResetsAvgEntry(t *testing.T) {
	var p Position
	p.ApplyFill(d("1"), d("100"), d("0"))
	p.ApplyFill(d("-1"), d("105"), d("0"))

	assert.True(t, p.Size.IsZero())
	assert.True(t, p.AvgEntry.IsZero())
	assert.True(t, p.RealizedPnL.Equal(d("5")))
}

func TestUnrealizedPnLShortPosition(t *testing.T) {
	var p Position
	p.ApplyFill(d("-1"), d("100"), d("0"))
	// Price drops to 90: short position gains (100-90)*(-1) = -10? No: formula
	// is (mark-avg)*size = (90-100)*(-1) = 10 profit for a short.
	assert.True(t, p.UnrealizedPnL(d("90")).Equal(d("10")))
}

func TestFeesAccumulate(t *testing.T) {
	var p Position
	p.ApplyFill(d("1"), d("100"), d("0.5"))
	p.ApplyFill(d("-1"), d("100"), d("0.5"))
	assert.True(t, p.FeesPaid.Equal(d("1")))
}
