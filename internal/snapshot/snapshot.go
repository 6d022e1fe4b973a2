// Package snapshot defines the read-only views the engine emits to external
// subscribers (dashboards, audit loggers) after every state-changing event.
package snapshot

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/tommy-ca/gridbot/internal/cloid"
	"github.com/tommy-ca/gridbot/internal/fill"
)

// EventKind names the `event_type` field of every message sent on the
// snapshot WebSocket.
type EventKind string

const (
	EventConfig           EventKind = "config"
	EventSpotGridSummary   EventKind = "spot_grid_summary"
	EventPerpGridSummary   EventKind = "perp_grid_summary"
	EventGridState         EventKind = "grid_state"
	EventOrderUpdate       EventKind = "order_update"
	EventMarketUpdate      EventKind = "market_update"
	EventInfo              EventKind = "info"
	EventError             EventKind = "error"
)

// Envelope is the JSON shape of every message on the snapshot WebSocket:
// {"event_type": "<kind>", "data": {...}}.
type Envelope struct {
	EventType EventKind   `json:"event_type"`
	Data      interface{} `json:"data"`
}

// StrategySummary is the top-level per-symbol strategy health view.
type StrategySummary struct {
	Symbol             string          `json:"symbol"`
	State              string          `json:"state"`
	Uptime             time.Duration   `json:"uptime"`
	Price              decimal.Decimal `json:"price"`
	PositionSize       decimal.Decimal `json:"position_size"`
	AvgEntry           decimal.Decimal `json:"avg_entry"`
	RealizedPnL        decimal.Decimal `json:"realized_pnl"`
	UnrealizedPnL      decimal.Decimal `json:"unrealized_pnl"`
	TotalFees          decimal.Decimal `json:"total_fees"`
	Roundtrips         uint32          `json:"roundtrips"`
	RangeLow           decimal.Decimal `json:"range_low"`
	RangeHigh          decimal.Decimal `json:"range_high"`
	GridCount          int             `json:"grid_count"`
	GridSpacingPctMin  decimal.Decimal `json:"grid_spacing_pct_min"`
	GridSpacingPctMax  decimal.Decimal `json:"grid_spacing_pct_max"`
	Bias               string          `json:"bias,omitempty"`
	Leverage           int             `json:"leverage,omitempty"`
	Balances           map[string]decimal.Decimal `json:"balances,omitempty"`
}

// ZoneView is one zone's read-only projection for GridState.
type ZoneView struct {
	Index          uint32          `json:"index"`
	Lower          decimal.Decimal `json:"lower"`
	Upper          decimal.Decimal `json:"upper"`
	Size           decimal.Decimal `json:"size"`
	PendingSide    string          `json:"pending_side"`
	HasOrder       bool            `json:"has_order"`
	IsReduceOnly   bool            `json:"is_reduce_only"`
	EntryPrice     decimal.Decimal `json:"entry_price"`
	RoundtripCount uint32          `json:"roundtrip_count"`
}

// GridState is the full per-zone ladder view.
type GridState struct {
	Symbol       string     `json:"symbol"`
	StrategyType string     `json:"strategy_type"`
	CurrentPrice decimal.Decimal `json:"current_price"`
	Zones        []ZoneView `json:"zones"`
}

// OrderEvent reports a single order-status transition.
type OrderEvent struct {
	CLOID  cloid.CLOID `json:"cloid"`
	Symbol string      `json:"symbol"`
	Status string      `json:"status"`
	Side   string      `json:"side"`
	Price  decimal.Decimal `json:"price"`
	Size   decimal.Decimal `json:"size"`
	Reason string      `json:"reason,omitempty"`
}

// NewOrderEvent projects a fill.Record into an OrderEvent.
func NewOrderEvent(symbol string, f fill.Record, status string) OrderEvent {
	return OrderEvent{
		CLOID:  f.CLOID,
		Symbol: symbol,
		Status: status,
		Side:   f.Side.String(),
		Price:  f.Price,
		Size:   f.Size,
		Reason: f.Reason,
	}
}

// MarketEvent reports a single (throttled) price tick.
type MarketEvent struct {
	Symbol string          `json:"symbol"`
	Price  decimal.Decimal `json:"price"`
	At     time.Time       `json:"at"`
}

// InfoEvent and ErrorEvent carry free-text operational messages.
type InfoEvent struct {
	Message string `json:"message"`
}

type ErrorEvent struct {
	Message string `json:"message"`
}
