package strategy

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/tommy-ca/gridbot/internal/cloid"
	"github.com/tommy-ca/gridbot/internal/fill"
	"github.com/tommy-ca/gridbot/internal/gridmath"
	"github.com/tommy-ca/gridbot/internal/position"
	"github.com/tommy-ca/gridbot/internal/snapshot"
	"github.com/tommy-ca/gridbot/internal/stratconfig"
	"github.com/tommy-ca/gridbot/internal/zone"
	"github.com/tommy-ca/gridbot/pkg/apperrors"
)

// PerpGridStrategy is the zone-based grid state machine for leveraged perp
// trading. It shares SpotGridStrategy's skeleton but tracks a signed
// Position instead of base-asset inventory and supports Long/Short/Neutral
// bias.
type PerpGridStrategy struct {
	cfg   stratconfig.Config
	zones []*zone.Zone

	state          State
	position       position.Position
	acquiringLegs  map[cloid.CLOID]bool
	p0             decimal.Decimal
	startedAt      time.Time
	lastPrice      decimal.Decimal
}

// NewPerpGridStrategy builds the zone ladder from cfg; call Start once an
// initial price and account margin are available.
func NewPerpGridStrategy(cfg stratconfig.Config) *PerpGridStrategy {
	levels := gridmath.Levels(cfg.LowerPrice, cfg.UpperPrice, cfg.GridCount, cfg.GridType)
	return &PerpGridStrategy{
		cfg:           cfg,
		zones:         gridmath.Zones(levels),
		state:         Initializing,
		acquiringLegs: make(map[cloid.CLOID]bool),
	}
}

// Start performs pre-flight validation and initial classification.
func (s *PerpGridStrategy) Start(ctx *Context, initialPrice decimal.Decimal, marginAsset string) error {
	s.startedAt = ctx.Now()
	s.lastPrice = initialPrice

	notional := s.cfg.NotionalPerZone()
	if notional.LessThan(stratconfig.MinNotional) {
		return apperrors.ErrPreflightBelowMinNotional
	}

	available, _ := ctx.Balance(marginAsset)
	if available.LessThan(s.cfg.TotalInvestment) {
		return apperrors.ErrPreflightInsufficientBalance
	}

	if s.cfg.TriggerPrice != nil && !triggerHit(*s.cfg.TriggerPrice, initialPrice, s.cfg.LowerPrice, s.cfg.UpperPrice) {
		s.state = WaitingForTrigger
		return nil
	}

	s.beginAcquisitionOrRun(ctx, initialPrice)
	return nil
}

func (s *PerpGridStrategy) beginAcquisitionOrRun(ctx *Context, p0 decimal.Decimal) {
	s.p0 = p0
	round := func(x decimal.Decimal) decimal.Decimal {
		info, ok := ctx.MarketInfo(ctx.Symbol())
		if !ok {
			return x
		}
		return info.RoundSize(x)
	}
	gridmath.SizePerp(s.zones, s.cfg.NotionalPerZone(), s.cfg.Leverage, s.cfg.Bias, round)
	gridmath.ClassifyInitialSidePerp(s.zones, p0, s.cfg.Bias)

	s.acquiringLegs = make(map[cloid.CLOID]bool)

	switch s.cfg.Bias {
	case stratconfig.Long:
		leg := gridmath.InitialPositionPerp(s.zones, stratconfig.Long)
		if leg.IsPositive() {
			id := ctx.PlaceMarket(true, leg, false)
			s.acquiringLegs[id] = true
		}
	case stratconfig.Short:
		leg := gridmath.InitialPositionPerp(s.zones, stratconfig.Short)
		if leg.IsNegative() {
			id := ctx.PlaceMarket(false, leg.Abs(), false)
			s.acquiringLegs[id] = true
		}
	default: // Neutral
		longLeg, shortLeg := gridmath.NeutralAcquisitionLegs(s.zones)
		if longLeg.IsPositive() {
			id := ctx.PlaceMarket(true, longLeg, false)
			s.acquiringLegs[id] = true
		}
		if shortLeg.IsPositive() {
			id := ctx.PlaceMarket(false, shortLeg, false)
			s.acquiringLegs[id] = true
		}
	}

	if len(s.acquiringLegs) == 0 {
		s.state = Running
	} else {
		s.state = AcquiringAssets
	}
}

// OnTick places each eligible zone's pending order, watches for the
// trigger crossing while WaitingForTrigger, and otherwise does nothing
// during AcquiringAssets.
func (s *PerpGridStrategy) OnTick(price decimal.Decimal, ctx *Context) {
	prev := s.lastPrice
	s.lastPrice = price

	switch s.state {
	case WaitingForTrigger:
		if s.cfg.TriggerPrice != nil && crossed(*s.cfg.TriggerPrice, prev, price) {
			s.beginAcquisitionOrRun(ctx, price)
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
			continue
		}
		if z.PendingSide == fill.Sell && price.LessThan(s.cfg.LowerPrice) {
			continue
		}
		reduceOnly := z.PendingSide != z.OpeningSide
		z.IsReduceOnly = reduceOnly
		id := ctx.PlaceLimit(z.PendingSide == fill.Buy, z.PlacementPrice(), z.Size, reduceOnly)
		z.ActiveCLOID = id
		ctx.AttachZone(id, z.Index)
	}
}

// OnOrderFilled routes a completed fill to position accounting, plus either
// the bootstrap-acquisition tracking or the owning zone.
func (s *PerpGridStrategy) OnOrderFilled(f fill.Record, ctx *Context) {
	signed := f.Size
	if f.Side == fill.Sell {
		signed = signed.Neg()
	}
	s.position.ApplyFill(signed, f.Price, f.Fee)
	ctx.SetPosition(ctx.Symbol(), s.position)

	if s.state == AcquiringAssets && s.acquiringLegs[f.CLOID] {
		delete(s.acquiringLegs, f.CLOID)
		if len(s.acquiringLegs) == 0 {
			s.state = Running
		}
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
	reduceOnly := z.PendingSide != z.OpeningSide
	z.IsReduceOnly = reduceOnly
	id := ctx.PlaceLimit(z.PendingSide == fill.Buy, counterPrice, z.Size, reduceOnly)
	z.ActiveCLOID = id
	ctx.AttachZone(id, z.Index)
}

// OnOrderFailed clears the failed zone's active order and arms its backoff,
// or retries a failed bootstrap-acquisition leg.
func (s *PerpGridStrategy) OnOrderFailed(id cloid.CLOID, ctx *Context) {
	if s.state == AcquiringAssets && s.acquiringLegs[id] {
		delete(s.acquiringLegs, id)
		// Re-place the outstanding difference between the bootstrap target
		// position and the position currently held.
		s.retryAcquisitionLeg(ctx)
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

func (s *PerpGridStrategy) retryAcquisitionLeg(ctx *Context) {
	switch s.cfg.Bias {
	case stratconfig.Long:
		leg := gridmath.InitialPositionPerp(s.zones, stratconfig.Long).Sub(s.position.Size)
		if leg.IsPositive() {
			id := ctx.PlaceMarket(true, leg, false)
			s.acquiringLegs[id] = true
		}
	case stratconfig.Short:
		target := gridmath.InitialPositionPerp(s.zones, stratconfig.Short)
		leg := target.Sub(s.position.Size)
		if leg.IsNegative() {
			id := ctx.PlaceMarket(false, leg.Abs(), false)
			s.acquiringLegs[id] = true
		}
	default:
		longLeg, shortLeg := gridmath.NeutralAcquisitionLegs(s.zones)
		net := longLeg.Sub(shortLeg).Sub(s.position.Size)
		if net.IsPositive() {
			id := ctx.PlaceMarket(true, net, false)
			s.acquiringLegs[id] = true
		} else if net.IsNegative() {
			id := ctx.PlaceMarket(false, net.Abs(), false)
			s.acquiringLegs[id] = true
		}
	}
	if len(s.acquiringLegs) == 0 {
		s.state = Running
	}
}

func (s *PerpGridStrategy) zoneByIndex(idx uint32) *zone.Zone {
	for _, z := range s.zones {
		if z.Index == idx {
			return z
		}
	}
	return nil
}

// Summary projects the strategy's current state into a StrategySummary.
func (s *PerpGridStrategy) Summary(ctx *Context) snapshot.StrategySummary {
	fees := s.position.FeesPaid
	var roundtrips uint32
	for _, z := range s.zones {
		roundtrips += z.RoundtripCnt
	}
	return snapshot.StrategySummary{
		Symbol:        ctx.Symbol(),
		State:         s.state.String(),
		Uptime:        ctx.Uptime(),
		Price:         s.lastPrice,
		PositionSize:  s.position.Size,
		AvgEntry:      s.position.AvgEntry,
		RealizedPnL:   s.position.RealizedPnL,
		UnrealizedPnL: s.position.UnrealizedPnL(s.lastPrice),
		TotalFees:     fees,
		Roundtrips:    roundtrips,
		RangeLow:      s.cfg.LowerPrice,
		RangeHigh:     s.cfg.UpperPrice,
		GridCount:     s.cfg.GridCount,
		Bias:          s.cfg.Bias.String(),
		Leverage:      s.cfg.Leverage,
	}
}

// GridState projects every zone into the dashboard's ladder view.
func (s *PerpGridStrategy) GridState(ctx *Context) snapshot.GridState {
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
		StrategyType: "perp_grid",
		CurrentPrice: s.lastPrice,
		Zones:        views,
	}
}

// State returns the strategy's current machine state.
func (s *PerpGridStrategy) State() State { return s.state }

// Position returns a copy of the strategy's current position, for tests and
// engine-level reconciliation against exchange-reported positions.
func (s *PerpGridStrategy) Position() position.Position { return s.position }
