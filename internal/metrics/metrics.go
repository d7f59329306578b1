// Package metrics exposes Prometheus metrics and a health endpoint for
// the live scanner.
package metrics

import (
	"context"
	"database/sql"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the scanner.
type Metrics struct {
	PollsTotal    prometheus.Counter
	PollFailures  prometheus.Counter
	PollDur       prometheus.Histogram
	BarsIngested  prometheus.Counter
	AlertsTotal   *prometheus.CounterVec // labels: kind
	TradesTotal   *prometheus.CounterVec // labels: exit_reason
	OpenPositions prometheus.Gauge

	FeedBreakerState prometheus.Gauge // 0=closed, 1=open, 2=half-open
	DegradedSessions prometheus.Gauge
	SQLiteCommitDur  prometheus.Histogram
	RedisWriteDur    prometheus.Histogram
	MarketState      prometheus.Gauge // 0=closed, 1=open
}

// NewMetrics registers and returns all Prometheus metrics.
func NewMetrics() *Metrics {
	m := &Metrics{
		PollsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bondscan_polls_total",
			Help: "Total feed polls attempted",
		}),
		PollFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bondscan_poll_failures_total",
			Help: "Feed polls that failed after the breaker and retries",
		}),
		PollDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "bondscan_poll_duration_seconds",
			Help:    "Feed poll latency",
			Buckets: prometheus.DefBuckets,
		}),
		BarsIngested: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bondscan_bars_ingested_total",
			Help: "Minute bars accepted into sessions",
		}),
		AlertsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bondscan_alerts_total",
			Help: "Alerts emitted (by kind)",
		}, []string{"kind"}),
		TradesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bondscan_trades_total",
			Help: "Closed trades (by exit reason)",
		}, []string{"exit_reason"}),
		OpenPositions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "bondscan_open_positions",
			Help: "Currently open positions across all sessions",
		}),
		FeedBreakerState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "bondscan_feed_breaker_state",
			Help: "Quote source circuit breaker state (0=closed, 1=open, 2=half-open)",
		}),
		DegradedSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "bondscan_degraded_sessions",
			Help: "Monitoring sessions currently marked degraded",
		}),
		SQLiteCommitDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "bondscan_sqlite_commit_duration_seconds",
			Help:    "SQLite batch commit latency",
			Buckets: prometheus.DefBuckets,
		}),
		RedisWriteDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "bondscan_redis_write_duration_seconds",
			Help:    "Redis write latency",
			Buckets: prometheus.DefBuckets,
		}),
		MarketState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "bondscan_market_state",
			Help: "Market session state (0=closed, 1=open)",
		}),
	}

	prometheus.MustRegister(
		m.PollsTotal,
		m.PollFailures,
		m.PollDur,
		m.BarsIngested,
		m.AlertsTotal,
		m.TradesTotal,
		m.OpenPositions,
		m.FeedBreakerState,
		m.DegradedSessions,
		m.SQLiteCommitDur,
		m.RedisWriteDur,
		m.MarketState,
	)

	return m
}

// HealthStatus represents scanner health.
type HealthStatus struct {
	mu sync.RWMutex

	FeedOK         bool
	LastBarTime    time.Time
	RedisConnected bool
	SQLiteOK       bool
	Symbols        []string

	RedisLatencyMs  float64
	SQLiteLatencyMs float64
	LastCheckAt     time.Time
	StartedAt       time.Time
}

// NewHealthStatus returns a default health status.
func NewHealthStatus(symbols []string) *HealthStatus {
	return &HealthStatus{
		StartedAt: time.Now(),
		Symbols:   symbols,
		FeedOK:    true,
		SQLiteOK:  true,
	}
}

func (h *HealthStatus) SetFeedOK(v bool) {
	h.mu.Lock()
	h.FeedOK = v
	h.mu.Unlock()
}

func (h *HealthStatus) SetLastBarTime(t time.Time) {
	h.mu.Lock()
	h.LastBarTime = t
	h.mu.Unlock()
}

// CheckRedis pings Redis and records latency + connectivity.
func (h *HealthStatus) CheckRedis(ctx context.Context, rdb *goredis.Client) {
	start := time.Now()
	err := rdb.Ping(ctx).Err()
	latency := time.Since(start)

	h.mu.Lock()
	h.RedisConnected = err == nil
	h.RedisLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// CheckSQLite runs a trivial query and records latency + health.
func (h *HealthStatus) CheckSQLite(ctx context.Context, db *sql.DB) {
	start := time.Now()
	err := db.PingContext(ctx)
	latency := time.Since(start)

	h.mu.Lock()
	h.SQLiteOK = err == nil
	h.SQLiteLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// StartLivenessChecker runs periodic dependency checks.
func (h *HealthStatus) StartLivenessChecker(ctx context.Context, rdb *goredis.Client, sqlDB *sql.DB, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				probeCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
				if rdb != nil {
					h.CheckRedis(probeCtx, rdb)
				}
				if sqlDB != nil {
					h.CheckSQLite(probeCtx, sqlDB)
				}
				cancel()
			}
		}
	}()
}

// ServeHTTP handles the /healthz endpoint.
func (h *HealthStatus) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	overallStatus := "healthy"
	httpCode := http.StatusOK
	if !h.FeedOK || !h.SQLiteOK {
		overallStatus = "degraded"
		httpCode = http.StatusServiceUnavailable
	}

	barAge := ""
	if !h.LastBarTime.IsZero() {
		barAge = time.Since(h.LastBarTime).Round(time.Millisecond).String()
	}

	status := struct {
		Status          string   `json:"status"`
		Uptime          string   `json:"uptime"`
		FeedOK          bool     `json:"feed_ok"`
		LastBarTime     string   `json:"last_bar_time"`
		BarAge          string   `json:"bar_age"`
		RedisConnected  bool     `json:"redis_connected"`
		RedisLatencyMs  float64  `json:"redis_latency_ms"`
		SQLiteOK        bool     `json:"sqlite_ok"`
		SQLiteLatencyMs float64  `json:"sqlite_latency_ms"`
		Symbols         []string `json:"symbols"`
		LastCheckAt     string   `json:"last_check_at"`
	}{
		Status:          overallStatus,
		Uptime:          time.Since(h.StartedAt).Round(time.Second).String(),
		FeedOK:          h.FeedOK,
		LastBarTime:     h.LastBarTime.Format(time.RFC3339),
		BarAge:          barAge,
		RedisConnected:  h.RedisConnected,
		RedisLatencyMs:  h.RedisLatencyMs,
		SQLiteOK:        h.SQLiteOK,
		SQLiteLatencyMs: h.SQLiteLatencyMs,
		Symbols:         h.Symbols,
		LastCheckAt:     h.LastCheckAt.Format(time.RFC3339),
	}

	w.Header().Set("Content-Type", "application/json")
	if httpCode != http.StatusOK {
		w.WriteHeader(httpCode)
	}
	json.NewEncoder(w).Encode(status)
}

// Server runs an HTTP server exposing /metrics and /healthz.
type Server struct {
	health *HealthStatus
	addr   string
	srv    *http.Server
}

// NewServer creates a metrics and health server.
func NewServer(addr string, health *HealthStatus) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", health.ServeHTTP)

	return &Server{
		health: health,
		addr:   addr,
		srv: &http.Server{
			Addr:    addr,
			Handler: mux,
		},
	}
}

// Start launches the HTTP server in a goroutine.
func (s *Server) Start() {
	go func() {
		log.Printf("[metrics] server listening on %s", s.addr)
		if err := s.srv.ListenAndServe(); err != http.ErrServerClosed {
			log.Printf("[metrics] server error: %v", err)
		}
	}()
}

// Stop gracefully shuts down the metrics server.
func (s *Server) Stop(ctx context.Context) {
	s.srv.Shutdown(ctx)
}
