package strategy

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/tommy-ca/gridbot/internal/cloid"
	"github.com/tommy-ca/gridbot/internal/fill"
	"github.com/tommy-ca/gridbot/internal/gridmath"
	"github.com/tommy-ca/gridbot/internal/snapshot"
	"github.com/tommy-ca/gridbot/internal/stratconfig"
	"github.com/tommy-ca/gridbot/internal/zone"
	"github.com/tommy-ca/gridbot/pkg/apperrors"
)

// State is the grid state machine's current phase, shared by both the spot
// and perp strategy variants.
type State int

const (
	Initializing State = iota
	WaitingForTrigger
	AcquiringAssets
	Running
	Terminated
)

func (s State) String() string {
	switch s {
	case WaitingForTrigger:
		return "waiting_for_trigger"
	case AcquiringAssets:
		return "acquiring_assets"
	case Running:
		return "running"
	case Terminated:
		return "terminated"
	default:
		return "initializing"
	}
}

// SpotGridStrategy is the zone-based grid state machine for spot trading,
// with bidirectional-rebalancing acquisition.
type SpotGridStrategy struct {
	cfg   stratconfig.Config
	zones []*zone.Zone

	baseSymbol, quoteSymbol string

	state          State
	acquiringCLOID cloid.CLOID
	p0             decimal.Decimal
	startedAt      time.Time
	lastPrice      decimal.Decimal
}

// NewSpotGridStrategy builds the zone ladder from cfg but does not yet size
// or classify it; call Start once the engine has an initial price and
// balances available.
func NewSpotGridStrategy(cfg stratconfig.Config, baseSymbol, quoteSymbol string) *SpotGridStrategy {
	levels := gridmath.Levels(cfg.LowerPrice, cfg.UpperPrice, cfg.GridCount, cfg.GridType)
	return &SpotGridStrategy{
		cfg:         cfg,
		zones:       gridmath.Zones(levels),
		baseSymbol:  baseSymbol,
		quoteSymbol: quoteSymbol,
		state:       Initializing,
	}
}

// Start performs the one-time pre-flight validation and initial
// classification, then transitions to WaitingForTrigger, AcquiringAssets,
// or Running.
func (s *SpotGridStrategy) Start(ctx *Context, initialPrice decimal.Decimal) error {
	s.startedAt = ctx.Now()
	s.lastPrice = initialPrice

	notional := s.cfg.NotionalPerZone()
	if notional.LessThan(stratconfig.MinNotional) {
		return apperrors.ErrPreflightBelowMinNotional
	}

	if s.cfg.TriggerPrice != nil && !triggerHit(*s.cfg.TriggerPrice, initialPrice, s.cfg.LowerPrice, s.cfg.UpperPrice) {
		s.state = WaitingForTrigger
		return nil
	}

	return s.beginAcquisitionOrRun(ctx, initialPrice)
}

// triggerHit reports whether price already satisfies trigger at bootstrap,
// with no prior reference price to detect a crossing against. The trigger's
// approach direction is inferred from which half of the grid range it sits
// in: a trigger in the lower half reads as "wait for a dip to this level"
// (hit once price <= trigger), a trigger in the upper half as "wait for a
// rally to this level" (hit once price >= trigger). Without this, a bot
// started with price already at-or-beyond the trigger on its approach side
// would sit in WaitingForTrigger forever, since crossed needs a prior price
// on the far side to detect a crossing and bootstrap has none.
func triggerHit(trigger, price, lower, upper decimal.Decimal) bool {
	mid := lower.Add(upper).Div(decimal.NewFromInt(2))
	if trigger.LessThanOrEqual(mid) {
		return price.LessThanOrEqual(trigger)
	}
	return price.GreaterThanOrEqual(trigger)
}

func (s *SpotGridStrategy) beginAcquisitionOrRun(ctx *Context, p0 decimal.Decimal) error {
	s.p0 = p0
	round := func(x decimal.Decimal) decimal.Decimal {
		info, ok := ctx.MarketInfo(ctx.Symbol())
		if !ok {
			return x
		}
		return info.RoundSize(x)
	}
	gridmath.SizeSpot(s.zones, s.cfg.NotionalPerZone(), round)
	gridmath.ClassifyInitialSideSpot(s.zones, p0)

	baseBal, _ := ctx.Balance(s.baseSymbol)
	quoteBal, _ := ctx.Balance(s.quoteSymbol)

	portfolioValue := baseBal.Mul(p0).Add(quoteBal)
	if portfolioValue.LessThan(s.cfg.TotalInvestment) {
		return apperrors.ErrPreflightInsufficientBalance
	}

	requiredBase := gridmath.InitialInventorySpot(s.zones)
	requiredQuote := decimal.Zero
	for _, z := range s.zones {
		if z.PendingSide == fill.Buy {
			requiredQuote = requiredQuote.Add(z.Size.Mul(z.LowerPrice))
		}
	}

	baseDeficit := requiredBase.Sub(baseBal)
	quoteDeficit := requiredQuote.Sub(quoteBal)

	switch {
	case baseDeficit.IsPositive():
		s.acquiringCLOID = ctx.PlaceLimit(true, p0, baseDeficit, false)
		s.state = AcquiringAssets
	case quoteDeficit.IsPositive():
		baseEquivalent := quoteDeficit.Div(p0)
		s.acquiringCLOID = ctx.PlaceLimit(false, p0, baseEquivalent, false)
		s.state = AcquiringAssets
	default:
		s.state = Running
	}
	return nil
}

// OnTick places each eligible zone's pending order and, while
// WaitingForTrigger, watches for the trigger crossing.
func (s *SpotGridStrategy) OnTick(price decimal.Decimal, ctx *Context) {
	prev := s.lastPrice
	s.lastPrice = price

	switch s.state {
	case WaitingForTrigger:
		if s.cfg.TriggerPrice != nil && crossed(*s.cfg.TriggerPrice, prev, price) {
			if err := s.beginAcquisitionOrRun(ctx, price); err != nil {
				ctx.Logger().Error("spot grid pre-flight failed after trigger", "error", err)
				s.state = Terminated
			}
		}
		return
	case AcquiringAssets, Initializing, Terminated:
		return
	}

	now := ctx.Now()
	for _, z := range s.zones {
		if z.HasActiveOrder() || !z.Backoff.Ready(now) {
			continue
		}
		if z.PendingSide == fill.Buy && price.GreaterThan(s.cfg.UpperPrice) {
			continue // no new buy orders placed above range
		}
		if z.PendingSide == fill.Sell && price.LessThan(s.cfg.LowerPrice) {
			continue // no new sell orders placed below range
		}
		id := ctx.PlaceLimit(z.PendingSide == fill.Buy, z.PlacementPrice(), z.Size, false)
		z.ActiveCLOID = id
		ctx.AttachZone(id, z.Index)
	}
}

func crossed(trigger, prev, cur decimal.Decimal) bool {
	if prev.Equal(cur) {
		return prev.Equal(trigger)
	}
	if prev.LessThan(cur) {
		return prev.LessThan(trigger) && cur.GreaterThanOrEqual(trigger)
	}
	return prev.GreaterThan(trigger) && cur.LessThanOrEqual(trigger)
}

// OnOrderFilled routes a completed fill to its owning zone, or to the
// acquisition order during AcquiringAssets.
func (s *SpotGridStrategy) OnOrderFilled(f fill.Record, ctx *Context) {
	if s.state == AcquiringAssets && f.CLOID == s.acquiringCLOID {
		s.acquiringCLOID = cloid.CLOID{}
		s.state = Running
		return
	}

	idx, ok := ctx.ZoneFor(f.CLOID)
	if !ok {
		ctx.Logger().Warn("fill for unknown zone binding", "cloid", f.CLOID.String())
		return
	}
	ctx.ForgetZoneBinding(f.CLOID)

	z := s.zoneByIndex(idx)
	if z == nil {
		return
	}
	z.Backoff.Reset()
	counterPrice := z.RecordFill(f)
	id := ctx.PlaceLimit(z.PendingSide == fill.Buy, counterPrice, z.Size, false)
	z.ActiveCLOID = id
	ctx.AttachZone(id, z.Index)
}

// OnOrderFailed clears the failed zone's active order and arms its backoff.
func (s *SpotGridStrategy) OnOrderFailed(id cloid.CLOID, ctx *Context) {
	if s.state == AcquiringAssets && id == s.acquiringCLOID {
		s.acquiringCLOID = cloid.CLOID{}
		if err := s.beginAcquisitionOrRun(ctx, s.lastPrice); err != nil {
			ctx.Logger().Error("spot grid re-acquisition failed", "error", err)
			s.state = Terminated
		}
		return
	}

	idx, ok := ctx.ZoneFor(id)
	if !ok {
		return
	}
	ctx.ForgetZoneBinding(id)
	z := s.zoneByIndex(idx)
	if z == nil {
		return
	}
	z.ClearActiveOrder()
	z.Backoff.Trip(ctx.Now())
}

func (s *SpotGridStrategy) zoneByIndex(idx uint32) *zone.Zone {
	for _, z := range s.zones {
		if z.Index == idx {
			return z
		}
	}
	return nil
}

// Summary projects the strategy's current state into a StrategySummary.
func (s *SpotGridStrategy) Summary(ctx *Context) snapshot.StrategySummary {
	realized, fees := decimal.Zero, decimal.Zero
	var roundtrips uint32
	for _, z := range s.zones {
		realized = realized.Add(z.RealizedPnL)
		fees = fees.Add(z.Fees)
		roundtrips += z.RoundtripCnt
	}
	return snapshot.StrategySummary{
		Symbol:      ctx.Symbol(),
		State:       s.state.String(),
		Uptime:      ctx.Uptime(),
		Price:       s.lastPrice,
		RealizedPnL: realized,
		TotalFees:   fees,
		Roundtrips:  roundtrips,
		RangeLow:    s.cfg.LowerPrice,
		RangeHigh:   s.cfg.UpperPrice,
		GridCount:   s.cfg.GridCount,
	}
}

// GridState projects every zone into the dashboard's ladder view.
func (s *SpotGridStrategy) GridState(ctx *Context) snapshot.GridState {
	views := make([]snapshot.ZoneView, 0, len(s.zones))
	for _, z := range s.zones {
		views = append(views, snapshot.ZoneView{
			Index:          z.Index,
			Lower:          z.LowerPrice,
			Upper:          z.UpperPrice,
			Size:           z.Size,
			PendingSide:    z.PendingSide.String(),
			HasOrder:       z.HasActiveOrder(),
			IsReduceOnly:   z.IsReduceOnly,
			EntryPrice:     z.EntryPrice,
			RoundtripCount: z.RoundtripCnt,
		})
	}
	return snapshot.GridState{
		Symbol:       ctx.Symbol(),
		StrategyType: "spot_grid",
		CurrentPrice: s.lastPrice,
		Zones:        views,
	}
}

// State returns the strategy's current machine state, for tests and
// engine-level logging.
func (s *SpotGridStrategy) State() State { return s.state }
