package exchange

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tommy-ca/gridbot/internal/cloid"
	"github.com/tommy-ca/gridbot/internal/fill"
)

func dd(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestSubmitBatchIsIdempotentByCLOID(t *testing.T) {
	sdk := NewMockSDK()
	id := cloid.New()
	req := OrderRequest{CLOID: id, Symbol: "BTC-USD", IsBuy: true, Price: dd("100"), Size: dd("1")}

	acks1, err := sdk.SubmitBatch(context.Background(), []OrderRequest{req})
	require.NoError(t, err)
	acks2, err := sdk.SubmitBatch(context.Background(), []OrderRequest{req})
	require.NoError(t, err)

	assert.Equal(t, acks1[0].OID, acks2[0].OID)
}

func TestFillDeliversIncrementingSequence(t *testing.T) {
	sdk := NewMockSDK()
	id := cloid.New()
	req := OrderRequest{CLOID: id, Symbol: "BTC-USD", IsBuy: true, Price: dd("100"), Size: dd("1")}
	_, err := sdk.SubmitBatch(context.Background(), []OrderRequest{req})
	require.NoError(t, err)

	events, err := sdk.SubscribeUserEvents(context.Background())
	require.NoError(t, err)

	sdk.Fill(id, dd("100"), dd("0.4"), dd("0.01"))
	sdk.Fill(id, dd("100"), dd("0.6"), dd("0.01"))

	first := <-events
	second := <-events
	assert.Equal(t, uint64(1), first.Sequence)
	assert.Equal(t, fill.Opening, first.Status)
	assert.Equal(t, uint64(2), second.Sequence)
	assert.Equal(t, fill.Filled, second.Status)
}

func TestRejectRemovesFromOpenOrders(t *testing.T) {
	sdk := NewMockSDK()
	id := cloid.New()
	req := OrderRequest{CLOID: id, Symbol: "BTC-USD", IsBuy: true, Price: dd("100"), Size: dd("1")}
	_, err := sdk.SubmitBatch(context.Background(), []OrderRequest{req})
	require.NoError(t, err)

	events, err := sdk.SubscribeUserEvents(context.Background())
	require.NoError(t, err)
	sdk.Reject(id, "insufficient margin")
	evt := <-events
	assert.Equal(t, fill.Rejected, evt.Status)

	open, err := sdk.QueryOpenOrders(context.Background(), "BTC-USD")
	require.NoError(t, err)
	assert.Empty(t, open)
}
