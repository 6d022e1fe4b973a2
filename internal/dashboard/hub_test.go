package dashboard

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/tommy-ca/gridbot/internal/engine"
	"github.com/tommy-ca/gridbot/internal/snapshot"
)

func testSnapshot(strategyType string) engine.Snapshot {
	return engine.Snapshot{
		Summary: snapshot.StrategySummary{Symbol: "BTC-USD", State: "running"},
		Grid: snapshot.GridState{
			Symbol:       "BTC-USD",
			StrategyType: strategyType,
			CurrentPrice: decimal.NewFromInt(100),
		},
	}
}

func TestNewHub(t *testing.T) {
	hub := NewHub(nil)
	assert.NotNil(t, hub.clients)
	assert.NotNil(t, hub.broadcast)
	assert.NotNil(t, hub.register)
	assert.NotNil(t, hub.unregister)
}

func TestHubRegisterAndUnregister(t *testing.T) {
	hub := NewHub(nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	client := NewClient("c1")
	hub.Register(client)
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, 1, hub.ClientCount())

	hub.Unregister(client)
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, 0, hub.ClientCount())
}

func TestHubBroadcastSpotSendsTwoEnvelopes(t *testing.T) {
	hub := NewHub(nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	client := NewClient("c1")
	hub.Register(client)
	time.Sleep(10 * time.Millisecond)

	hub.Broadcast(testSnapshot("spot_grid"))

	var kinds []snapshot.EventKind
	for i := 0; i < 2; i++ {
		select {
		case env := <-client.Recv():
			kinds = append(kinds, env.EventType)
		case <-time.After(100 * time.Millisecond):
			t.Fatal("client did not receive envelope")
		}
	}
	assert.Contains(t, kinds, snapshot.EventSpotGridSummary)
	assert.Contains(t, kinds, snapshot.EventGridState)
}

func TestHubBroadcastPerpUsesPerpSummaryKind(t *testing.T) {
	hub := NewHub(nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	client := NewClient("c1")
	hub.Register(client)
	time.Sleep(10 * time.Millisecond)

	hub.Broadcast(testSnapshot("perp_grid"))

	select {
	case env := <-client.Recv():
		assert.Equal(t, snapshot.EventPerpGridSummary, env.EventType)
	case <-time.After(100 * time.Millisecond):
		t.Fatal("client did not receive envelope")
	}
}

func TestHubDropsEnvelopeForFullClientRatherThanBlocking(t *testing.T) {
	client := NewClient("slow")
	for i := 0; i < 256; i++ {
		assert.True(t, client.Send(snapshot.Envelope{EventType: snapshot.EventInfo}))
	}
	assert.False(t, client.Send(snapshot.Envelope{EventType: snapshot.EventInfo}))
}

func TestHubRunClosesClientsOnCancel(t *testing.T) {
	hub := NewHub(nil)
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	client := NewClient("c1")
	hub.Register(client)
	time.Sleep(10 * time.Millisecond)

	cancel()
	time.Sleep(10 * time.Millisecond)

	_, ok := <-client.Recv()
	assert.False(t, ok)
}

func TestClientSendAfterCloseReturnsFalse(t *testing.T) {
	client := NewClient("c1")
	client.Close()
	assert.False(t, client.Send(snapshot.Envelope{EventType: snapshot.EventInfo}))
}
