// Package exchange defines the SDK surface the engine drives: price and
// user-event subscriptions, order submission, and state queries used during
// reconnection reconciliation. MockSDK in mock.go is the only
// implementation of this interface in this module.
package exchange

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/tommy-ca/gridbot/internal/cloid"
	"github.com/tommy-ca/gridbot/internal/fill"
	"github.com/tommy-ca/gridbot/internal/market"
)

// OrderRequest is a single order submitted to SubmitBatch.
type OrderRequest struct {
	CLOID      cloid.CLOID
	Symbol     string
	IsBuy      bool
	Price      decimal.Decimal // zero for market orders
	Size       decimal.Decimal
	ReduceOnly bool
	IsMarket   bool
}

// OrderAck is the venue's synchronous acknowledgement of a submitted order.
type OrderAck struct {
	CLOID    cloid.CLOID
	Accepted bool
	OID      uint64
	Reason   string
}

// OpenOrder describes a resting order as reported by QueryOpenOrders, used
// to reconcile local zone/tracker state against the venue after a
// reconnect.
type OpenOrder struct {
	CLOID  cloid.CLOID
	Symbol string
	IsBuy  bool
	Price  decimal.Decimal
	Size   decimal.Decimal
	Filled decimal.Decimal
}

// SDK is the exchange capability the engine needs. Implementations must be
// safe for concurrent use by the engine's read loop and its tick-driven
// submit path.
type SDK interface {
	// SubscribeMidPrices streams mid-price updates for symbol until ctx is
	// cancelled or the underlying connection fails.
	SubscribeMidPrices(ctx context.Context, symbol string) (<-chan decimal.Decimal, error)

	// SubscribeUserEvents streams this account's fills and order-status
	// changes until ctx is cancelled or the connection fails.
	SubscribeUserEvents(ctx context.Context) (<-chan fill.Record, error)

	// SubmitBatch places a batch of orders in one venue round
	// trip, returning one ack per request in the same order.
	SubmitBatch(ctx context.Context, reqs []OrderRequest) ([]OrderAck, error)

	// CancelOrder cancels a resting order by CLOID.
	CancelOrder(ctx context.Context, symbol string, id cloid.CLOID) error

	// QueryOpenOrders lists resting orders for symbol, used during
	// reconnection reconciliation.
	QueryOpenOrders(ctx context.Context, symbol string) ([]OpenOrder, error)

	// QueryBalances returns available balance per asset.
	QueryBalances(ctx context.Context) (map[string]decimal.Decimal, error)

	// QueryPosition returns the signed position size for symbol (perp only;
	// zero for an instrument with no position).
	QueryPosition(ctx context.Context, symbol string) (decimal.Decimal, error)

	// QueryMarketInfo returns tick/lot metadata for symbol.
	QueryMarketInfo(ctx context.Context, symbol string) (market.Info, error)
}
