// Package strategy defines the capability interface shared by the spot and
// perp grid strategies, and the sandboxed StrategyContext through which
// they are the only surface allowed to touch exchange state.
package strategy

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/tommy-ca/gridbot/internal/cloid"
	"github.com/tommy-ca/gridbot/internal/fill"
	"github.com/tommy-ca/gridbot/internal/market"
	"github.com/tommy-ca/gridbot/internal/orderintent"
	"github.com/tommy-ca/gridbot/internal/position"
	"github.com/tommy-ca/gridbot/internal/snapshot"
)

// Strategy is the capability every grid variant implements. The engine
// never type-switches on the concrete strategy; it only calls through this
// interface, so a future DCA strategy needs no engine or context change.
type Strategy interface {
	OnTick(price decimal.Decimal, ctx *Context)
	OnOrderFilled(f fill.Record, ctx *Context)
	OnOrderFailed(id cloid.CLOID, ctx *Context)
	Summary(ctx *Context) snapshot.StrategySummary
	GridState(ctx *Context) snapshot.GridState
}

// Logger is the narrow logging capability strategies and the engine are
// given; it never exposes the underlying structured-logging library.
type Logger interface {
	Debug(msg string, fields ...interface{})
	Info(msg string, fields ...interface{})
	Warn(msg string, fields ...interface{})
	Error(msg string, fields ...interface{})
}

// Context is the capability-narrowing sandbox strategies read and write
// through. Strategies MUST NOT call the exchange SDK directly, hold network
// resources, or spawn tasks; Context is their only seam to the engine.
type Context struct {
	symbol  string
	markets *market.Registry
	logger  Logger

	balances  map[string]decimal.Decimal
	positions map[string]position.Position

	startedAt time.Time
	now       func() time.Time

	orderQueue      []orderintent.Intent
	cancellationQueue []cloid.CLOID
	zoneBindings    map[cloid.CLOID]uint32
}

// NewContext constructs a Context. now defaults to time.Now when nil.
func NewContext(symbol string, markets *market.Registry, logger Logger, now func() time.Time) *Context {
	if now == nil {
		now = time.Now
	}
	return &Context{
		symbol:       symbol,
		markets:      markets,
		logger:       logger,
		balances:     make(map[string]decimal.Decimal),
		positions:    make(map[string]position.Position),
		now:          now,
		startedAt:    now(),
		zoneBindings: make(map[cloid.CLOID]uint32),
	}
}

// --- Read surface ---

// MarketInfo returns the loaded metadata for symbol, if any.
func (c *Context) MarketInfo(symbol string) (market.Info, bool) {
	return c.markets.Get(symbol)
}

// Balance returns the cached balance for asset, refreshed by the engine
// between ticks.
func (c *Context) Balance(asset string) (decimal.Decimal, bool) {
	b, ok := c.balances[asset]
	return b, ok
}

// OpenPositions returns the cached perp positions, keyed by symbol.
func (c *Context) OpenPositions() map[string]position.Position {
	return c.positions
}

// Now returns the current logical time.
func (c *Context) Now() time.Time {
	return c.now()
}

// Symbol returns the symbol this context/strategy instance is bound to.
func (c *Context) Symbol() string {
	return c.symbol
}

// Logger exposes the narrow logging capability.
func (c *Context) Logger() Logger {
	return c.logger
}

// Uptime returns how long this strategy instance has been running.
func (c *Context) Uptime() time.Duration {
	return c.now().Sub(c.startedAt)
}

// --- Engine-only mutation of cached read state ---

// SetBalance is called by the engine to refresh a cached balance. Strategies
// must never call this.
func (c *Context) SetBalance(asset string, amount decimal.Decimal) {
	c.balances[asset] = amount
}

// SetPosition is called by the engine to refresh a cached position.
func (c *Context) SetPosition(symbol string, p position.Position) {
	c.positions[symbol] = p
}

// SetMarketInfo installs or replaces the loaded MarketInfo for a symbol.
// Called by the engine during preflight at the start of Run.
func (c *Context) SetMarketInfo(info market.Info) {
	c.markets.Set(info)
}

// --- Write surface ---

// round applies the symbol's MarketInfo rounding to a price/size pair,
// falling back to the raw values if no MarketInfo is loaded yet.
func (c *Context) round(price, sz decimal.Decimal) (decimal.Decimal, decimal.Decimal) {
	info, ok := c.markets.Get(c.symbol)
	if !ok {
		return price, sz
	}
	return info.RoundPrice(price), info.RoundSize(sz)
}

// PlaceLimit stages a limit order and returns the freshly generated CLOID
// synchronously, so the strategy can record it into a Zone before the
// engine submits the intent.
func (c *Context) PlaceLimit(isBuy bool, price, sz decimal.Decimal, reduceOnly bool) cloid.CLOID {
	id := cloid.New()
	rp, rs := c.round(price, sz)
	c.orderQueue = append(c.orderQueue, orderintent.NewLimit(id, c.symbol, isBuy, rp, rs, reduceOnly))
	return id
}

// PlaceMarket stages a market order and returns its CLOID synchronously.
func (c *Context) PlaceMarket(isBuy bool, sz decimal.Decimal, reduceOnly bool) cloid.CLOID {
	id := cloid.New()
	_, rs := c.round(decimal.Zero, sz)
	c.orderQueue = append(c.orderQueue, orderintent.NewMarket(id, c.symbol, isBuy, rs, reduceOnly))
	return id
}

// Cancel stages a cancellation for a previously issued CLOID.
func (c *Context) Cancel(id cloid.CLOID) {
	c.cancellationQueue = append(c.cancellationQueue, id)
}

// AttachZone binds a CLOID to a zone index so the engine can route a later
// fill back to the owning zone.
func (c *Context) AttachZone(id cloid.CLOID, zoneIndex uint32) {
	c.zoneBindings[id] = zoneIndex
}

// --- Engine-only drain surface ---

// DrainOrders removes and returns every staged order intent.
func (c *Context) DrainOrders() []orderintent.Intent {
	out := c.orderQueue
	c.orderQueue = nil
	return out
}

// DrainCancellations removes and returns every staged cancellation.
func (c *Context) DrainCancellations() []cloid.CLOID {
	out := c.cancellationQueue
	c.cancellationQueue = nil
	return out
}

// ZoneFor returns the zone index a CLOID was attached to, if any.
func (c *Context) ZoneFor(id cloid.CLOID) (uint32, bool) {
	idx, ok := c.zoneBindings[id]
	return idx, ok
}

// ForgetZoneBinding releases a CLOID's zone binding once the order reaches
// a terminal state.
func (c *Context) ForgetZoneBinding(id cloid.CLOID) {
	delete(c.zoneBindings, id)
}
