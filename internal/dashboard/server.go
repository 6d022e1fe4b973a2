package dashboard

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/tommy-ca/gridbot/internal/strategy"
)

var (
	activeConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "gridbot_dashboard_connections",
		Help: "Current number of connected dashboard WebSocket clients",
	})

	rejectedConnections = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gridbot_dashboard_rejected_total",
		Help: "Total dashboard WebSocket connections rejected, by reason",
	}, []string{"reason"})
)

func init() {
	prometheus.MustRegister(activeConnections)
	prometheus.MustRegister(rejectedConnections)
}

// Server exposes a Hub over a WebSocket endpoint, with origin whitelisting,
// per-IP rate limiting, and a connection-count ceiling.
type Server struct {
	hub            *Hub
	logger         strategy.Logger
	srv            *http.Server
	upgrader       websocket.Upgrader
	allowedOrigins []string
	production     bool

	mu             sync.Mutex
	maxConnections int
	connSemaphore  chan struct{}

	rateLimitEnabled bool
	ipLimiters       sync.Map
	rateLimit        rate.Limit
	rateBurst        int
}

// NewServer builds a Server around hub. allowedOrigins of "*" permits any
// origin outside production mode; in production it is always rejected.
func NewServer(hub *Hub, logger strategy.Logger, allowedOrigins []string) *Server {
	s := &Server{
		hub:              hub,
		logger:           logger,
		allowedOrigins:   allowedOrigins,
		maxConnections:   1000,
		connSemaphore:    make(chan struct{}, 1000),
		rateLimitEnabled: true,
		rateLimit:        10.0,
		rateBurst:        20,
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}
	return s
}

// SetProduction disables the wildcard-origin escape hatch.
func (s *Server) SetProduction(prod bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.production = prod
}

// SetMaxConnections replaces the connection ceiling and its semaphore.
func (s *Server) SetMaxConnections(max int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.maxConnections = max
	s.connSemaphore = make(chan struct{}, max)
}

// SetRateLimit replaces the per-IP rate limit parameters and clears
// previously issued limiters so the new limits take effect immediately.
func (s *Server) SetRateLimit(limit float64, burst int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rateLimit = rate.Limit(limit)
	s.rateBurst = burst
	s.ipLimiters = sync.Map{}
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		s.warn("rejected dashboard connection with missing Origin header", "remote_addr", r.RemoteAddr)
		return false
	}
	parsed, err := url.Parse(origin)
	if err != nil {
		s.warn("rejected dashboard connection with invalid Origin", "origin", origin, "err", err.Error())
		return false
	}
	originStr := parsed.Scheme + "://" + parsed.Host

	for _, allowed := range s.allowedOrigins {
		if allowed == "*" {
			if s.production {
				s.warn("rejected wildcard origin in production mode", "origin", origin)
				rejectedConnections.WithLabelValues("invalid_origin").Inc()
				return false
			}
			return true
		}
		if originStr == allowed {
			return true
		}
	}
	s.warn("rejected dashboard connection from unauthorized origin", "origin", origin)
	rejectedConnections.WithLabelValues("invalid_origin").Inc()
	return false
}

// Start serves the dashboard WebSocket endpoint on addr until ctx is
// cancelled, at which point it shuts down gracefully.
func (s *Server) Start(ctx context.Context, addr string) error {
	s.mu.Lock()
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/health", s.handleHealth)
	s.srv = &http.Server{Addr: addr, Handler: mux}
	s.mu.Unlock()

	s.info("starting dashboard server", "addr", addr)

	errCh := make(chan error, 1)
	go func() {
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return s.Stop(context.Background())
	}
}

// Stop gracefully shuts the dashboard server down.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.srv == nil {
		return nil
	}
	s.info("stopping dashboard server")
	return s.srv.Shutdown(ctx)
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if s.rateLimitEnabled {
		ip := s.getRemoteIP(r)
		if !s.getIPLimiter(ip).Allow() {
			s.warn("dashboard IP rate limit exceeded", "ip", ip)
			rejectedConnections.WithLabelValues("rate_limit").Inc()
			http.Error(w, "too many requests", http.StatusTooManyRequests)
			return
		}
	}

	select {
	case s.connSemaphore <- struct{}{}:
		activeConnections.Inc()
		defer func() {
			<-s.connSemaphore
			activeConnections.Dec()
		}()
	default:
		s.warn("dashboard max connections reached")
		rejectedConnections.WithLabelValues("connection_limit").Inc()
		http.Error(w, "server busy", http.StatusServiceUnavailable)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.warn("dashboard websocket upgrade failed", "err", err.Error())
		return
	}

	client := NewClient(uuid.New().String())
	s.hub.Register(client)
	s.info("dashboard client connected", "client_id", client.id, "remote_addr", r.RemoteAddr)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); s.writePump(conn, client) }()
	go func() { defer wg.Done(); s.readPump(conn, client) }()
	wg.Wait()

	s.hub.Unregister(client)
	conn.Close()
	s.info("dashboard client disconnected", "client_id", client.id)
}

func (s *Server) writePump(conn *websocket.Conn, client *Client) {
	ticker := time.NewTicker(54 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case env, ok := <-client.Recv():
			conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteJSON(env); err != nil {
				s.warn("dashboard write error", "client_id", client.id, "err", err.Error())
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (s *Server) readPump(conn *websocket.Conn, client *Client) {
	defer s.hub.Unregister(client)

	conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				s.warn("dashboard read error", "client_id", client.id, "err", err.Error())
			}
			return
		}
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":  "ok",
		"clients": s.hub.ClientCount(),
	})
}

// ClientCount reports the number of connected dashboard clients.
func (s *Server) ClientCount() int { return s.hub.ClientCount() }

func (s *Server) getRemoteIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func (s *Server) getIPLimiter(ip string) *rate.Limiter {
	if v, ok := s.ipLimiters.Load(ip); ok {
		return v.(*rate.Limiter)
	}
	s.mu.Lock()
	limit, burst := s.rateLimit, s.rateBurst
	s.mu.Unlock()

	limiter := rate.NewLimiter(limit, burst)
	actual, _ := s.ipLimiters.LoadOrStore(ip, limiter)
	return actual.(*rate.Limiter)
}

func (s *Server) info(msg string, fields ...interface{}) {
	if s.logger != nil {
		s.logger.Info(msg, fields...)
	}
}

func (s *Server) warn(msg string, fields ...interface{}) {
	if s.logger != nil {
		s.logger.Warn(msg, fields...)
	}
}
