package telemetry

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metric names, trimmed from the teacher's market-making set down to what a
// grid engine actually emits: order lifecycle counters, fill volume, a
// submit-latency histogram, and gauges for live position/PnL/zone state.
const (
	MetricOrdersPlacedTotal = "gridbot_orders_placed_total"
	MetricOrdersFilledTotal = "gridbot_orders_filled_total"
	MetricOrdersFailedTotal = "gridbot_orders_failed_total"
	MetricVolumeTotal       = "gridbot_volume_total"
	MetricSubmitLatencyMs   = "gridbot_submit_latency_ms"
	MetricPositionSize      = "gridbot_position_size"
	MetricRealizedPnL       = "gridbot_pnl_realized_total"
	MetricUnrealizedPnL     = "gridbot_pnl_unrealized"
	MetricActiveZones       = "gridbot_zones_active"
)

// GridMetrics holds the instruments the engine updates on every tick and
// fill event. Observable gauges read from an in-memory map under a mutex,
// following the teacher's MetricsHolder pattern (pkg/telemetry/metrics.go)
// of collecting last-known-value snapshots rather than pushing on every
// strategy callback.
type GridMetrics struct {
	OrdersPlacedTotal metric.Int64Counter
	OrdersFilledTotal metric.Int64Counter
	OrdersFailedTotal metric.Int64Counter
	VolumeTotal       metric.Float64Counter
	SubmitLatencyMs   metric.Float64Histogram
	PositionSize      metric.Float64ObservableGauge
	RealizedPnL       metric.Float64ObservableGauge
	UnrealizedPnL     metric.Float64ObservableGauge
	ActiveZones       metric.Int64ObservableGauge

	mu             sync.RWMutex
	positionBySym  map[string]float64
	realizedBySym  map[string]float64
	unrealizedBySy map[string]float64
	activeZoneBySy map[string]int64

	registerOnce sync.Once
	registerErr  error
}

var (
	globalMetrics *GridMetrics
	initOnce      sync.Once
)

// Global returns the process-wide GridMetrics, building its gauge state
// maps on first use. Instrument registration happens in Init, which must
// be called once a meter provider is installed (see Setup).
func Global() *GridMetrics {
	initOnce.Do(func() {
		globalMetrics = &GridMetrics{
			positionBySym:  make(map[string]float64),
			realizedBySym:  make(map[string]float64),
			unrealizedBySy: make(map[string]float64),
			activeZoneBySy: make(map[string]int64),
		}
	})
	return globalMetrics
}

// Init registers every instrument against meter. Only the first call per
// process takes effect; later calls return the first call's result. This
// lets every caller that might be first to run — cmd/gridbot's bootstrap,
// or a test constructing a GridEngine directly against the default no-op
// meter provider — call Init unconditionally without risking a duplicate
// instrument registration error.
func (m *GridMetrics) Init(meter metric.Meter) error {
	m.registerOnce.Do(func() { m.registerErr = m.register(meter) })
	return m.registerErr
}

func (m *GridMetrics) register(meter metric.Meter) error {
	var err error

	if m.OrdersPlacedTotal, err = meter.Int64Counter(MetricOrdersPlacedTotal,
		metric.WithDescription("Total orders submitted to the exchange")); err != nil {
		return err
	}
	if m.OrdersFilledTotal, err = meter.Int64Counter(MetricOrdersFilledTotal,
		metric.WithDescription("Total orders fully filled")); err != nil {
		return err
	}
	if m.OrdersFailedTotal, err = meter.Int64Counter(MetricOrdersFailedTotal,
		metric.WithDescription("Total orders rejected or cancelled by the exchange")); err != nil {
		return err
	}
	if m.VolumeTotal, err = meter.Float64Counter(MetricVolumeTotal,
		metric.WithDescription("Cumulative traded volume in base asset units")); err != nil {
		return err
	}
	if m.SubmitLatencyMs, err = meter.Float64Histogram(MetricSubmitLatencyMs,
		metric.WithDescription("Round-trip latency of SubmitBatch calls"), metric.WithUnit("ms")); err != nil {
		return err
	}

	if m.PositionSize, err = meter.Float64ObservableGauge(MetricPositionSize,
		metric.WithDescription("Current signed position size"),
		metric.WithFloat64Callback(m.observePosition)); err != nil {
		return err
	}
	if m.RealizedPnL, err = meter.Float64ObservableGauge(MetricRealizedPnL,
		metric.WithDescription("Realized PnL to date"),
		metric.WithFloat64Callback(m.observeRealized)); err != nil {
		return err
	}
	if m.UnrealizedPnL, err = meter.Float64ObservableGauge(MetricUnrealizedPnL,
		metric.WithDescription("Unrealized PnL at the last mark price"),
		metric.WithFloat64Callback(m.observeUnrealized)); err != nil {
		return err
	}
	if m.ActiveZones, err = meter.Int64ObservableGauge(MetricActiveZones,
		metric.WithDescription("Number of grid zones currently holding a position or a resting order"),
		metric.WithInt64Callback(m.observeActiveZones)); err != nil {
		return err
	}
	return nil
}

func (m *GridMetrics) observePosition(_ context.Context, obs metric.Float64Observer) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for sym, v := range m.positionBySym {
		obs.Observe(v, metric.WithAttributes(attribute.String("symbol", sym)))
	}
	return nil
}

func (m *GridMetrics) observeRealized(_ context.Context, obs metric.Float64Observer) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for sym, v := range m.realizedBySym {
		obs.Observe(v, metric.WithAttributes(attribute.String("symbol", sym)))
	}
	return nil
}

func (m *GridMetrics) observeUnrealized(_ context.Context, obs metric.Float64Observer) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for sym, v := range m.unrealizedBySy {
		obs.Observe(v, metric.WithAttributes(attribute.String("symbol", sym)))
	}
	return nil
}

func (m *GridMetrics) observeActiveZones(_ context.Context, obs metric.Int64Observer) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for sym, v := range m.activeZoneBySy {
		obs.Observe(v, metric.WithAttributes(attribute.String("symbol", sym)))
	}
	return nil
}

// SetPosition records the latest signed position size for symbol.
func (m *GridMetrics) SetPosition(symbol string, size float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.positionBySym[symbol] = size
}

// SetRealizedPnL records the latest cumulative realized PnL for symbol.
func (m *GridMetrics) SetRealizedPnL(symbol string, value float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.realizedBySym[symbol] = value
}

// SetUnrealizedPnL records the latest mark-to-market unrealized PnL.
func (m *GridMetrics) SetUnrealizedPnL(symbol string, value float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.unrealizedBySy[symbol] = value
}

// SetActiveZones records the latest count of non-idle grid zones.
func (m *GridMetrics) SetActiveZones(symbol string, count int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.activeZoneBySy[symbol] = count
}
