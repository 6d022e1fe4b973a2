package tracker

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tommy-ca/gridbot/internal/cloid"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestPartialFillAggregation(t *testing.T) {
	tr := New(64)
	id := cloid.New()
	tr.Track(id, d("1.0"), nil, time.Now())

	eps := d("0.00000001")

	_, full, dup := tr.ApplyFill(id, 1, d("0.4"), d("0.01"), eps)
	assert.False(t, full)
	assert.False(t, dup)

	_, full, dup = tr.ApplyFill(id, 2, d("0.3"), d("0.01"), eps)
	assert.False(t, full)
	assert.False(t, dup)

	e, full, dup := tr.ApplyFill(id, 3, d("0.3"), d("0.01"), eps)
	require.NotNil(t, e)
	assert.True(t, full)
	assert.False(t, dup)
	assert.True(t, e.AccumulatedFilled.Equal(d("1.0")))
	assert.True(t, e.AccumulatedFee.Equal(d("0.03")))

	tr.Complete(id)
	_, _, dup = tr.ApplyFill(id, 4, d("0.1"), d("0"), eps)
	assert.True(t, dup, "fill replay after completion must be suppressed")
}

func TestDuplicateSequenceIgnored(t *testing.T) {
	tr := New(64)
	id := cloid.New()
	tr.Track(id, d("1.0"), nil, time.Now())
	eps := d("0.00000001")

	tr.ApplyFill(id, 1, d("0.5"), d("0"), eps)
	e, _, dup := tr.ApplyFill(id, 1, d("0.5"), d("0"), eps) // replay same sequence
	assert.True(t, dup)
	assert.True(t, e.AccumulatedFilled.Equal(d("0.5")), "duplicate sequence must not double-count")
}

func TestLookupUnknownCLOID(t *testing.T) {
	tr := New(64)
	_, ok := tr.Lookup(cloid.New())
	assert.False(t, ok)
}

func TestCompletedLRUEviction(t *testing.T) {
	tr := New(2)
	a, b, c := cloid.New(), cloid.New(), cloid.New()
	tr.markCompleted(a)
	tr.markCompleted(b)
	tr.markCompleted(c) // evicts a

	assert.False(t, tr.IsCompleted(a))
	assert.True(t, tr.IsCompleted(b))
	assert.True(t, tr.IsCompleted(c))
}

func TestFreeDoesNotSuppressFutureFills(t *testing.T) {
	tr := New(64)
	id := cloid.New()
	tr.Track(id, d("1.0"), nil, time.Now())
	tr.Free(id)

	assert.False(t, tr.IsCompleted(id))
	_, ok := tr.Lookup(id)
	assert.False(t, ok)
}
