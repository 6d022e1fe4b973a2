package dashboard

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tommy-ca/gridbot/internal/snapshot"
)

func TestNewServerDefaults(t *testing.T) {
	hub := NewHub(nil)
	origins := []string{"http://localhost:8081"}
	s := NewServer(hub, nil, origins)

	assert.Equal(t, hub, s.hub)
	assert.Equal(t, origins, s.allowedOrigins)
	assert.Equal(t, 1000, s.maxConnections)
}

func TestServerUpgradesAndTracksClientCount(t *testing.T) {
	hub := NewHub(nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	s := NewServer(hub, nil, []string{"*"})
	ts := httptest.NewServer(http.HandlerFunc(s.handleWebSocket))
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http")
	dialer := websocket.Dialer{}
	headers := http.Header{}
	headers.Set("Origin", "http://test.local")

	ws, _, err := dialer.Dial(wsURL, headers)
	require.NoError(t, err)
	defer ws.Close()

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, hub.ClientCount())

	ws.Close()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 0, hub.ClientCount())
}

func TestServerDeliversBroadcastEnvelope(t *testing.T) {
	hub := NewHub(nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	s := NewServer(hub, nil, []string{"*"})
	ts := httptest.NewServer(http.HandlerFunc(s.handleWebSocket))
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http")
	dialer := websocket.Dialer{}
	headers := http.Header{}
	headers.Set("Origin", "http://test.local")

	ws, _, err := dialer.Dial(wsURL, headers)
	require.NoError(t, err)
	defer ws.Close()
	time.Sleep(50 * time.Millisecond)

	hub.Broadcast(testSnapshot("spot_grid"))

	var env snapshot.Envelope
	require.NoError(t, ws.ReadJSON(&env))
	assert.Equal(t, snapshot.EventSpotGridSummary, env.EventType)
}

func TestServerRejectsMissingOrigin(t *testing.T) {
	hub := NewHub(nil)
	s := NewServer(hub, nil, []string{"http://allowed.example"})
	ts := httptest.NewServer(http.HandlerFunc(s.handleWebSocket))
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http")
	dialer := websocket.Dialer{}
	_, _, err := dialer.Dial(wsURL, nil)
	assert.Error(t, err)
}

func TestServerRejectsDisallowedOrigin(t *testing.T) {
	hub := NewHub(nil)
	s := NewServer(hub, nil, []string{"http://allowed.example"})
	ts := httptest.NewServer(http.HandlerFunc(s.handleWebSocket))
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http")
	dialer := websocket.Dialer{}
	headers := http.Header{}
	headers.Set("Origin", "http://evil.example")
	_, _, err := dialer.Dial(wsURL, headers)
	assert.Error(t, err)
}

func TestServerRejectsWildcardOriginInProduction(t *testing.T) {
	hub := NewHub(nil)
	s := NewServer(hub, nil, []string{"*"})
	s.SetProduction(true)
	ts := httptest.NewServer(http.HandlerFunc(s.handleWebSocket))
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http")
	dialer := websocket.Dialer{}
	headers := http.Header{}
	headers.Set("Origin", "http://anything.example")
	_, _, err := dialer.Dial(wsURL, headers)
	assert.Error(t, err)
}

func TestServerEnforcesConnectionLimit(t *testing.T) {
	hub := NewHub(nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	s := NewServer(hub, nil, []string{"*"})
	s.SetMaxConnections(1)
	ts := httptest.NewServer(http.HandlerFunc(s.handleWebSocket))
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http")
	dialer := websocket.Dialer{}
	headers := http.Header{}
	headers.Set("Origin", "http://test.local")

	ws1, _, err := dialer.Dial(wsURL, headers)
	require.NoError(t, err)
	defer ws1.Close()
	time.Sleep(20 * time.Millisecond)

	_, resp, err := dialer.Dial(wsURL, headers)
	require.Error(t, err)
	if resp != nil {
		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	}
}

func TestServerEnforcesRateLimit(t *testing.T) {
	hub := NewHub(nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	s := NewServer(hub, nil, []string{"*"})
	s.SetRateLimit(1, 1)
	ts := httptest.NewServer(http.HandlerFunc(s.handleWebSocket))
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http")
	dialer := websocket.Dialer{}
	headers := http.Header{}
	headers.Set("Origin", "http://test.local")

	ws1, _, err := dialer.Dial(wsURL, headers)
	require.NoError(t, err)
	defer ws1.Close()

	_, resp, err := dialer.Dial(wsURL, headers)
	require.Error(t, err)
	if resp != nil {
		assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	}
}

func TestHandleHealthReportsStatusAndClientCount(t *testing.T) {
	hub := NewHub(nil)
	s := NewServer(hub, nil, []string{"*"})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	s.handleHealth(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}
