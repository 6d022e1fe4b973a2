package exchange

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/tommy-ca/gridbot/internal/cloid"
	"github.com/tommy-ca/gridbot/internal/fill"
	"github.com/tommy-ca/gridbot/internal/market"
)

var _ SDK = (*MockSDK)(nil)

// restingOrder is MockSDK's record of a submitted-but-not-yet-fully-filled
// order.
type restingOrder struct {
	req    OrderRequest
	filled decimal.Decimal
	seq    uint64
}

// MockSDK is an in-memory SDK implementation for tests and local runs. It
// mirrors the teacher's idempotency-by-client-order-id behavior: submitting
// a CLOID already on file returns the original ack rather than creating a
// second order.
type MockSDK struct {
	mu sync.Mutex

	balances  map[string]decimal.Decimal
	positions map[string]decimal.Decimal
	info      map[string]market.Info
	resting   map[cloid.CLOID]*restingOrder
	acked     map[cloid.CLOID]OrderAck

	priceCh chan decimal.Decimal
	userCh  chan fill.Record
}

// NewMockSDK builds an empty MockSDK; use the Set* helpers to seed balances,
// positions, and market info before driving it.
func NewMockSDK() *MockSDK {
	return &MockSDK{
		balances:  make(map[string]decimal.Decimal),
		positions: make(map[string]decimal.Decimal),
		info:      make(map[string]market.Info),
		resting:   make(map[cloid.CLOID]*restingOrder),
		acked:     make(map[cloid.CLOID]OrderAck),
		priceCh:   make(chan decimal.Decimal, 64),
		userCh:    make(chan fill.Record, 64),
	}
}

func (m *MockSDK) SetBalance(asset string, amount decimal.Decimal) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balances[asset] = amount
}

func (m *MockSDK) SetPosition(symbol string, size decimal.Decimal) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.positions[symbol] = size
}

func (m *MockSDK) SetMarketInfo(info market.Info) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.info[info.Symbol] = info
}

// PushPrice feeds a mid-price update to any active SubscribeMidPrices
// subscriber.
func (m *MockSDK) PushPrice(p decimal.Decimal) {
	m.priceCh <- p
}

// Fill marks size of a previously-submitted order as filled at price, and
// delivers the corresponding fill.Record to the user-event subscriber. Size
// may be less than the order's full size to simulate a partial fill.
func (m *MockSDK) Fill(id cloid.CLOID, price, size, fee decimal.Decimal) {
	m.mu.Lock()
	ro, ok := m.resting[id]
	if !ok {
		m.mu.Unlock()
		return
	}
	ro.filled = ro.filled.Add(size)
	ro.seq++
	seq := ro.seq
	status := fill.Opening
	if ro.filled.GreaterThanOrEqual(ro.req.Size) {
		status = fill.Filled
		delete(m.resting, id)
	}
	side := fill.Buy
	if !ro.req.IsBuy {
		side = fill.Sell
	}
	symbol := ro.req.Symbol
	m.mu.Unlock()

	m.userCh <- fill.Record{
		CLOID:    id,
		Symbol:   symbol,
		Side:     side,
		Price:    price,
		Size:     size,
		Fee:      fee,
		Status:   status,
		Sequence: seq,
	}
}

// Reject delivers a rejected-order event for a previously-submitted order,
// dropping it from the resting set.
func (m *MockSDK) Reject(id cloid.CLOID, reason string) {
	m.mu.Lock()
	ro, ok := m.resting[id]
	if !ok {
		m.mu.Unlock()
		return
	}
	symbol := ro.req.Symbol
	delete(m.resting, id)
	m.mu.Unlock()

	m.userCh <- fill.Record{CLOID: id, Symbol: symbol, Status: fill.Rejected, Reason: reason}
}

func (m *MockSDK) SubscribeMidPrices(ctx context.Context, symbol string) (<-chan decimal.Decimal, error) {
	return m.priceCh, nil
}

func (m *MockSDK) SubscribeUserEvents(ctx context.Context) (<-chan fill.Record, error) {
	return m.userCh, nil
}

func (m *MockSDK) SubmitBatch(ctx context.Context, reqs []OrderRequest) ([]OrderAck, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	acks := make([]OrderAck, len(reqs))
	for i, req := range reqs {
		if ack, ok := m.acked[req.CLOID]; ok {
			acks[i] = ack
			continue
		}
		ack := OrderAck{CLOID: req.CLOID, Accepted: true, OID: uint64(len(m.acked) + 1)}
		m.acked[req.CLOID] = ack
		m.resting[req.CLOID] = &restingOrder{req: req}
		acks[i] = ack
	}
	return acks, nil
}

func (m *MockSDK) CancelOrder(ctx context.Context, symbol string, id cloid.CLOID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.resting, id)
	return nil
}

func (m *MockSDK) QueryOpenOrders(ctx context.Context, symbol string) ([]OpenOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []OpenOrder
	for id, ro := range m.resting {
		if ro.req.Symbol != symbol {
			continue
		}
		out = append(out, OpenOrder{
			CLOID:  id,
			Symbol: ro.req.Symbol,
			IsBuy:  ro.req.IsBuy,
			Price:  ro.req.Price,
			Size:   ro.req.Size,
			Filled: ro.filled,
		})
	}
	return out, nil
}

func (m *MockSDK) QueryBalances(ctx context.Context) (map[string]decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]decimal.Decimal, len(m.balances))
	for k, v := range m.balances {
		out[k] = v
	}
	return out, nil
}

func (m *MockSDK) QueryPosition(ctx context.Context, symbol string) (decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.positions[symbol], nil
}

func (m *MockSDK) QueryMarketInfo(ctx context.Context, symbol string) (market.Info, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	info, ok := m.info[symbol]
	if !ok {
		return market.Info{}, ErrUnknownSymbol
	}
	return info, nil
}
