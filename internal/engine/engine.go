package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/retrypolicy"
	"github.com/shopspring/decimal"
	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/tommy-ca/gridbot/internal/cloid"
	"github.com/tommy-ca/gridbot/internal/exchange"
	"github.com/tommy-ca/gridbot/internal/fill"
	"github.com/tommy-ca/gridbot/internal/orderintent"
	"github.com/tommy-ca/gridbot/internal/snapshot"
	"github.com/tommy-ca/gridbot/internal/strategy"
	"github.com/tommy-ca/gridbot/internal/telemetry"
	"github.com/tommy-ca/gridbot/internal/tracker"
	"github.com/tommy-ca/gridbot/pkg/apperrors"
)

// completedCLOIDCap bounds the duplicate-suppression LRU the tracker keeps
// per engine instance.
const completedCLOIDCap = 4096

// reconnectBaseBackoff and reconnectMaxBackoff bound the delay between
// resubscribe attempts after a market-data or user-event stream closes.
const (
	reconnectBaseBackoff = 500 * time.Millisecond
	reconnectMaxBackoff  = 30 * time.Second
)

// submitTimeout bounds a single SubmitBatch round trip; a submit that
// doesn't return inside this window is treated as failed.
const submitTimeout = 10 * time.Second

// shutdownCancelTimeout bounds the best-effort order-cancellation pass run
// during graceful shutdown.
const shutdownCancelTimeout = 10 * time.Second

// sizeEpsilon is the minimum remaining size below which a partial fill is
// treated as closing out the order, absorbing dust left by rounding.
var sizeEpsilon = decimal.RequireFromString("0.00000001")

// Broadcaster receives every snapshot the engine emits. Implementations
// must not block; the engine treats a slow broadcaster the same way
// pkg/liveserver's Hub treats a slow client — it drops the update rather
// than stalling the trading loop.
type Broadcaster interface {
	Broadcast(Snapshot)
}

// noopBroadcaster discards every snapshot; used when no dashboard is wired.
type noopBroadcaster struct{}

func (noopBroadcaster) Broadcast(Snapshot) {}

// GridEngine is the single-threaded event loop that drives one Strategy
// instance against one exchange.SDK connection. It owns CLOID lifecycle,
// partial-fill aggregation and duplicate suppression (via internal/tracker),
// submission retry (via failsafe-go), and reconnection reconciliation.
type GridEngine struct {
	symbol  string
	sdk     exchange.SDK
	strat   strategy.Strategy
	ctx     *strategy.Context
	logger  strategy.Logger
	bcast   Broadcaster
	tick    time.Duration
	tracker *tracker.Tracker
	tracer  oteltrace.Tracer

	reconnectBase time.Duration
	reconnectCap  time.Duration
	submitTimeout time.Duration

	submitPipeline failsafe.Executor[[]exchange.OrderAck]
}

// Option configures a GridEngine at construction time.
type Option func(*GridEngine)

// WithBroadcaster wires a dashboard-facing snapshot sink.
func WithBroadcaster(b Broadcaster) Option {
	return func(e *GridEngine) { e.bcast = b }
}

// WithTickInterval overrides the default periodic tick period.
func WithTickInterval(d time.Duration) Option {
	return func(e *GridEngine) { e.tick = d }
}

// WithReconnectBackoff overrides the default stream-resubscribe backoff
// bounds (500ms base, 30s cap).
func WithReconnectBackoff(base, maxBackoff time.Duration) Option {
	return func(e *GridEngine) {
		e.reconnectBase = base
		e.reconnectCap = maxBackoff
	}
}

// WithSubmitTimeout overrides the default 10s per-request SubmitBatch
// timeout.
func WithSubmitTimeout(d time.Duration) Option {
	return func(e *GridEngine) { e.submitTimeout = d }
}

// New builds a GridEngine. strategyCtx must be bound to the same symbol as
// symbol and its market registry pre-seeded, or the first QueryMarketInfo
// round trip in Run will populate it.
func New(symbol string, sdk exchange.SDK, strat strategy.Strategy, strategyCtx *strategy.Context, logger strategy.Logger, opts ...Option) *GridEngine {
	e := &GridEngine{
		symbol:        symbol,
		sdk:           sdk,
		strat:         strat,
		ctx:           strategyCtx,
		logger:        logger,
		bcast:         noopBroadcaster{},
		tick:          time.Second,
		tracker:       tracker.New(completedCLOIDCap),
		tracer:        telemetry.Tracer("gridbot"),
		reconnectBase: reconnectBaseBackoff,
		reconnectCap:  reconnectMaxBackoff,
		submitTimeout: submitTimeout,
	}

	retry := retrypolicy.NewBuilder[[]exchange.OrderAck]().
		HandleIf(func(_ []exchange.OrderAck, err error) bool { return err != nil }).
		WithBackoff(100*time.Millisecond, 2*time.Second).
		WithMaxRetries(1).
		Build()
	e.submitPipeline = failsafe.With[[]exchange.OrderAck](retry)

	// Idempotent: registers against the no-op meter provider when the
	// caller never installed a real one (e.g. in tests), so the metric
	// calls in the event loop below always see live instruments.
	if err := telemetry.Global().Init(telemetry.Meter("gridbot")); err != nil {
		logger.Warn("metrics registration failed", "err", err.Error())
	}

	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run subscribes to the SDK's streams, reconciles against any resting
// orders, and then services the merged mid-price/user-event/tick loop until
// ctx is cancelled or a stream fails unrecoverably. A stream closing (e.g.
// the venue dropping the WebSocket) is treated as transient: Run backs off,
// resubscribes, re-reconciles against the venue's resting orders, and
// resumes rather than exiting.
func (e *GridEngine) Run(ctx context.Context) error {
	if err := e.preflight(ctx); err != nil {
		return err
	}
	if err := e.reconcile(ctx); err != nil {
		return err
	}

	backoff := e.reconnectBase
	for {
		err := e.runStreamLoop(ctx)
		if ctx.Err() != nil {
			return e.shutdown(ctx)
		}
		if !errors.Is(err, apperrors.ErrExchangeStreamClosed) {
			return err
		}

		e.logger.Warn("exchange stream closed, reconnecting", "backoff", backoff.String())
		select {
		case <-ctx.Done():
			return e.shutdown(ctx)
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > e.reconnectCap {
			backoff = e.reconnectCap
		}

		if err := e.reconcile(ctx); err != nil {
			e.logger.Warn("reconcile after reconnect failed", "err", err.Error())
			continue
		}
		backoff = e.reconnectBase
	}
}

// runStreamLoop subscribes to the SDK's streams and services the merged
// mid-price/user-event/tick select loop until ctx is cancelled, a stream
// closes, or subscribing itself fails unrecoverably. The caller is
// responsible for running the shutdown drain once it sees ctx cancelled.
func (e *GridEngine) runStreamLoop(ctx context.Context) error {
	prices, err := e.sdk.SubscribeMidPrices(ctx, e.symbol)
	if err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrExchangeUnrecoverable, err)
	}
	userEvents, err := e.sdk.SubscribeUserEvents(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrExchangeUnrecoverable, err)
	}

	ticker := time.NewTicker(e.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case price, ok := <-prices:
			if !ok {
				return apperrors.ErrExchangeStreamClosed
			}
			e.handleTick(ctx, price)

		case f, ok := <-userEvents:
			if !ok {
				return apperrors.ErrExchangeStreamClosed
			}
			e.handleFillEvent(ctx, f)

		case <-ticker.C:
			e.refreshAccountState(ctx)
			e.emitSnapshot()
		}
	}
}

// shutdown drains pending cancels on a shutdown signal: it best-effort
// cancels every order the tracker still considers open, using a fresh
// bounded context since ctx itself is already cancelled, then flushes a
// final snapshot before Run returns.
func (e *GridEngine) shutdown(ctx context.Context) error {
	cancelCtx, cancel := context.WithTimeout(context.Background(), shutdownCancelTimeout)
	defer cancel()

	for _, id := range e.tracker.ActiveCLOIDs() {
		if err := e.sdk.CancelOrder(cancelCtx, e.symbol, id); err != nil {
			e.logger.Warn("shutdown cancel failed", "cloid", id.String(), "err", err.Error())
		}
	}
	e.emitSnapshot()
	return ctx.Err()
}

// preflight loads market metadata and refreshes balances/positions at the
// start of Run. The engine itself never calls Strategy.Start; that belongs
// to the caller wiring up a specific spot or perp strategy, since its
// signature differs between the two variants. Run assumes Start already ran.
func (e *GridEngine) preflight(ctx context.Context) error {
	info, err := e.sdk.QueryMarketInfo(ctx, e.symbol)
	if err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrPreflightMetadataQuery, err)
	}
	e.ctx.SetMarketInfo(info)
	e.refreshAccountState(ctx)
	return nil
}

// reconcile fetches the venue's resting orders for this symbol and aligns
// the tracker's view of in-flight orders to them in both directions. Orders
// the venue reports that the tracker has no record of are adopted so a
// restart mid-grid does not lose partial-fill accounting (unless the
// tracker already recognizes the CLOID as completed, in which case the
// venue's report is stale or belongs to a prior run and is left alone).
// Orders the tracker still considers active that the venue no longer
// reports are treated as lost: the order never made it, or the venue
// dropped it during the disconnect, so the tracker entry is freed and the
// strategy is told the order failed.
func (e *GridEngine) reconcile(ctx context.Context) error {
	defer e.recoverCallbackPanic("OnOrderFailed/reconcile")

	open, err := e.sdk.QueryOpenOrders(ctx, e.symbol)
	if err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrExchangeUnrecoverable, err)
	}

	onExchange := make(map[cloid.CLOID]bool, len(open))
	for _, o := range open {
		onExchange[o.CLOID] = true
		if e.tracker.IsCompleted(o.CLOID) {
			continue
		}
		if _, ok := e.tracker.Lookup(o.CLOID); ok {
			continue
		}
		e.tracker.Track(o.CLOID, o.Size, nil, e.ctx.Now())
		if entry, ok := e.tracker.Lookup(o.CLOID); ok {
			entry.AccumulatedFilled = o.Filled
		}
		e.logger.Info("reconciled resting order", "cloid", o.CLOID.String(), "filled", o.Filled.String())
	}

	for _, id := range e.tracker.ActiveCLOIDs() {
		if onExchange[id] {
			continue
		}
		e.logger.Warn("tracked order missing from exchange, marking lost", "cloid", id.String())
		e.tracker.Free(id)
		e.strat.OnOrderFailed(id, e.ctx)
	}
	return nil
}

func (e *GridEngine) refreshAccountState(ctx context.Context) {
	balances, err := e.sdk.QueryBalances(ctx)
	if err != nil {
		e.logger.Warn("balance refresh failed", "err", err.Error())
		return
	}
	for asset, amount := range balances {
		e.ctx.SetBalance(asset, amount)
	}

	pos, err := e.sdk.QueryPosition(ctx, e.symbol)
	if err != nil {
		return
	}
	existing := e.ctx.OpenPositions()[e.symbol]
	existing.Size = pos
	e.ctx.SetPosition(e.symbol, existing)
}

func (e *GridEngine) handleTick(ctx context.Context, price decimal.Decimal) {
	ctx, span := e.tracer.Start(ctx, "OnTick")
	defer span.End()
	defer e.recoverCallbackPanic("OnTick")

	e.strat.OnTick(price, e.ctx)
	e.drainAndSubmit(ctx)
	e.emitSnapshot()
}

// handleFillEvent routes a normalized fill/order-status event to the
// tracker for aggregation and duplicate suppression, then to the strategy
// only once the tracker reports the order's target size is fully filled or
// the order reached a terminal non-fill status.
func (e *GridEngine) handleFillEvent(ctx context.Context, f fill.Record) {
	ctx, span := e.tracer.Start(ctx, "OnOrderFilled")
	defer span.End()
	defer e.recoverCallbackPanic("OnOrderFilled/OnOrderFailed")

	switch f.Status {
	case fill.Rejected, fill.Cancelled:
		span.SetName("OnOrderFailed")
		e.tracker.Free(f.CLOID)
		telemetry.Global().OrdersFailedTotal.Add(ctx, 1)
		e.strat.OnOrderFailed(f.CLOID, e.ctx)
		e.drainAndSubmit(ctx)
		e.emitSnapshot()
		return
	}

	_, fullyFilled, duplicate := e.tracker.ApplyFill(f.CLOID, f.Sequence, f.Size, f.Fee, sizeEpsilon)
	if duplicate {
		e.logger.Debug("duplicate fill event suppressed", "cloid", f.CLOID.String(), "sequence", f.Sequence)
		return
	}
	telemetry.Global().VolumeTotal.Add(ctx, f.Size.InexactFloat64())
	if !fullyFilled {
		return
	}

	e.tracker.Complete(f.CLOID)
	telemetry.Global().OrdersFilledTotal.Add(ctx, 1)
	e.strat.OnOrderFilled(f, e.ctx)
	e.drainAndSubmit(ctx)
	e.emitSnapshot()
}

// drainAndSubmit flushes every order the strategy staged this callback and
// submits it through the retry pipeline, tracking each
// newly accepted CLOID so future fills can be aggregated against it.
func (e *GridEngine) drainAndSubmit(ctx context.Context) {
	intents := e.ctx.DrainOrders()
	cancels := e.ctx.DrainCancellations()

	for _, id := range cancels {
		if err := e.sdk.CancelOrder(ctx, e.symbol, id); err != nil {
			e.logger.Warn("cancel failed", "cloid", id.String(), "err", err.Error())
		}
	}

	if len(intents) == 0 {
		return
	}

	reqs := make([]exchange.OrderRequest, 0, len(intents))
	for _, in := range intents {
		if in.Kind == orderintent.Cancel {
			continue
		}
		reqs = append(reqs, exchange.OrderRequest{
			CLOID:      in.CLOID,
			Symbol:     in.Symbol,
			IsBuy:      in.IsBuy,
			Price:      in.Price,
			Size:       in.Size,
			ReduceOnly: in.ReduceOnly,
			IsMarket:   in.Kind == orderintent.Market,
		})
	}
	if len(reqs) == 0 {
		return
	}

	for _, r := range reqs {
		e.tracker.Track(r.CLOID, r.Size, nil, e.ctx.Now())
	}

	start := e.ctx.Now()
	acks, err := e.submitPipeline.GetWithExecution(func(exec failsafe.Execution[[]exchange.OrderAck]) ([]exchange.OrderAck, error) {
		submitCtx, cancel := context.WithTimeout(ctx, e.submitTimeout)
		defer cancel()
		acks, err := e.sdk.SubmitBatch(submitCtx, reqs)
		if err != nil && ctx.Err() == nil && submitCtx.Err() != nil {
			return acks, fmt.Errorf("%w: %v", apperrors.ErrTransientTimeout, submitCtx.Err())
		}
		return acks, err
	})
	telemetry.Global().SubmitLatencyMs.Record(ctx, float64(e.ctx.Now().Sub(start).Milliseconds()))
	if err != nil {
		oteltrace.SpanFromContext(ctx).RecordError(err)
		e.logger.Error("order submission failed after retries", "err", err.Error())
		for _, r := range reqs {
			e.tracker.Free(r.CLOID)
			e.strat.OnOrderFailed(r.CLOID, e.ctx)
		}
		return
	}

	for _, ack := range acks {
		if !ack.Accepted {
			e.tracker.Free(ack.CLOID)
			e.strat.OnOrderFailed(ack.CLOID, e.ctx)
			continue
		}
		telemetry.Global().OrdersPlacedTotal.Add(ctx, 1)
	}
}

func (e *GridEngine) recoverCallbackPanic(callback string) {
	if r := recover(); r != nil {
		e.logger.Error("strategy callback panic recovered", "callback", callback, "panic", fmt.Sprintf("%v", r))
	}
}

func (e *GridEngine) emitSnapshot() {
	summary := e.strat.Summary(e.ctx)
	grid := e.strat.GridState(e.ctx)

	telemetry.Global().SetPosition(e.symbol, summary.PositionSize.InexactFloat64())
	telemetry.Global().SetRealizedPnL(e.symbol, summary.RealizedPnL.InexactFloat64())
	telemetry.Global().SetUnrealizedPnL(e.symbol, summary.UnrealizedPnL.InexactFloat64())
	telemetry.Global().SetActiveZones(e.symbol, activeZoneCount(grid))

	e.bcast.Broadcast(Snapshot{Summary: summary, Grid: grid})
}

// activeZoneCount counts zones holding a resting order or a non-flat
// position, i.e. zones that are not sitting idle waiting for price to
// reach them.
func activeZoneCount(grid snapshot.GridState) int64 {
	var n int64
	for _, z := range grid.Zones {
		if z.HasOrder || !z.EntryPrice.IsZero() {
			n++
		}
	}
	return n
}

// Snapshot returns the engine's current broadcastable state on demand. It
// reads strategy and context state without synchronization, so it is not
// safe to call while Run is executing.
func (e *GridEngine) Snapshot() Snapshot {
	return Snapshot{
		Summary: e.strat.Summary(e.ctx),
		Grid:    e.strat.GridState(e.ctx),
	}
}

var _ Engine = (*GridEngine)(nil)
