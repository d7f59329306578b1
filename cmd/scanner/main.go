// cmd/scanner is the live monitoring daemon: it polls the quote source for
// minute bars, runs the detection pipeline per symbol, and fans alerts out
// to notifiers, Redis, SQLite, and the WebSocket gateway.
package main

import (
	"context"
	"encoding/json"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"bondscan/config"
	"bondscan/internal/feed"
	"bondscan/internal/gateway"
	"bondscan/internal/indicator"
	"bondscan/internal/logger"
	"bondscan/internal/markethours"
	"bondscan/internal/metrics"
	"bondscan/internal/model"
	"bondscan/internal/monitor"
	"bondscan/internal/notification"
	redisstore "bondscan/internal/store/redis"
	sqlitestore "bondscan/internal/store/sqlite"
	"bondscan/internal/strategy"
)

func main() {
	cfg := config.Load()
	lg := logger.Init("scanner", logger.ParseLevel(cfg.LogLevel))

	symbols := cfg.ParseSymbols()
	if len(symbols) == 0 {
		log.Fatal("[scanner] no symbols configured")
	}
	lg.Info("scanner starting", slog.Any("symbols", symbols))

	// ---- Strategy ----
	scfg := strategy.Default()
	if cfg.StrategyFile != "" {
		var err error
		scfg, err = strategy.LoadFile(cfg.StrategyFile)
		if err != nil {
			log.Fatalf("[scanner] strategy load failed: %v", err)
		}
		lg.Info("strategy loaded", slog.String("name", scfg.Name), slog.String("file", cfg.StrategyFile))
	}

	// ---- Metrics & health ----
	prom := metrics.NewMetrics()
	health := metrics.NewHealthStatus(symbols)
	metricsSrv := metrics.NewServer(cfg.MetricsAddr, health)
	metricsSrv.Start()

	// ---- Context for graceful shutdown ----
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// ---- SQLite writer (off hot path) ----
	os.MkdirAll(filepath.Dir(cfg.SQLitePath), 0o755)
	sqlWriter, err := sqlitestore.New(sqlitestore.WriterConfig{DBPath: cfg.SQLitePath})
	if err != nil {
		log.Fatalf("[scanner] sqlite init failed: %v", err)
	}
	defer sqlWriter.Close()
	sqlWriter.OnCommit = func(d time.Duration, rows int) {
		prom.SQLiteCommitDur.Observe(d.Seconds())
	}

	barCh := make(chan model.Bar, 1000)
	go sqlWriter.Run(ctx, barCh)

	// ---- Redis writer (optional) ----
	var redisWriter *redisstore.Writer
	redisWriter, err = redisstore.New(redisstore.WriterConfig{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	if err != nil {
		lg.Warn("redis init failed, continuing without redis", slog.Any("error", err))
		redisWriter = nil
	} else {
		redisWriter.OnWrite = func(d time.Duration) {
			prom.RedisWriteDur.Observe(d.Seconds())
		}
	}

	alertCh := make(chan model.Alert, 256)
	if redisWriter != nil {
		go redisWriter.Run(ctx, alertCh)
	}

	// ---- Liveness checks ----
	if redisWriter != nil {
		health.StartLivenessChecker(ctx, redisWriter.Client(), sqlWriter.DB(), 10*time.Second)
	} else {
		health.StartLivenessChecker(ctx, nil, sqlWriter.DB(), 10*time.Second)
	}

	// ---- Notifiers ----
	backends := []notification.Notifier{notification.NewLogNotifier()}
	if cfg.TelegramBotToken != "" && cfg.TelegramChatID != "" {
		backends = append(backends, notification.NewTelegramNotifier(cfg.TelegramBotToken, cfg.TelegramChatID))
		lg.Info("telegram notifier enabled")
	}
	if cfg.WebhookURL != "" {
		backends = append(backends, notification.NewWebhookNotifier(cfg.WebhookURL))
		lg.Info("webhook notifier enabled", slog.String("url", cfg.WebhookURL))
	}
	notifier := notification.NewMulti(backends...)

	// ---- WebSocket gateway ----
	hub := gateway.NewHub(500)
	go hub.StartStatusBroadcast(ctx, 30*time.Second)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", hub.HandleWS)
	gwSrv := &http.Server{Addr: cfg.GatewayAddr, Handler: mux}
	go func() {
		lg.Info("gateway listening", slog.String("addr", cfg.GatewayAddr))
		if err := gwSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			lg.Error("gateway server failed", slog.Any("error", err))
		}
	}()

	// ---- Quote source with poll instrumentation ----
	client := feed.NewEastmoneyClient()
	source := &instrumentedSource{inner: client, prom: prom}

	// ---- Monitor ----
	mon, err := monitor.New(monitor.Config{
		Symbols:      symbols,
		Strategy:     scfg,
		PollInterval: cfg.PollInterval,
		MaxRetries:   cfg.MaxRetries,
		Source:       source,
		Checkpointer: sqlWriter,
		Log:          lg,
		Sinks: []monitor.AlertSink{
			func(ctx context.Context, a model.Alert) {
				prom.AlertsTotal.WithLabelValues(string(a.Kind)).Inc()
				trackPosition(prom, a)
				hub.Broadcast(a)
				select {
				case alertCh <- a:
				default:
					lg.Warn("alert channel full, redis write dropped", slog.String("id", a.ID))
				}
				go notifier.Send(ctx, a)
			},
		},
		BarSink: func(bar model.Bar) {
			prom.BarsIngested.Inc()
			health.SetLastBarTime(bar.TS)
			select {
			case barCh <- bar:
			default:
			}
		},
		SnapshotSink: func(symbol string, snap indicator.Snapshot) {
			if redisWriter == nil {
				return
			}
			data, err := json.Marshal(snap)
			if err != nil {
				return
			}
			redisWriter.WriteSnapshot(ctx, symbol, data)
		},
	})
	if err != nil {
		log.Fatalf("[scanner] monitor init failed: %v", err)
	}

	restoreCheckpoints(mon, symbols, cfg.SQLitePath, lg)

	mon.Start(ctx)
	go watchGauges(ctx, mon, client, symbols, prom, health)

	lg.Info("scanner ready", slog.String("market", markethours.StatusString(time.Now())))

	// ---- Wait for shutdown signal ----
	<-sigCh
	lg.Info("shutdown signal received")
	mon.Stop()
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	gwSrv.Shutdown(shutdownCtx)
	metricsSrv.Stop(shutdownCtx)

	if redisWriter != nil {
		redisWriter.Close()
	}
	lg.Info("shutdown complete")
}

// instrumentedSource wraps the quote source with poll counters and latency.
type instrumentedSource struct {
	inner feed.Source
	prom  *metrics.Metrics
}

func (s *instrumentedSource) MinuteBars(ctx context.Context, symbol string, beg, end time.Time) ([]model.Bar, error) {
	s.prom.PollsTotal.Inc()
	start := time.Now()
	bars, err := s.inner.MinuteBars(ctx, symbol, beg, end)
	s.prom.PollDur.Observe(time.Since(start).Seconds())
	if err != nil {
		s.prom.PollFailures.Inc()
	}
	return bars, err
}

// trackPosition keeps the open-position gauge and trade counters in step
// with the alert stream.
func trackPosition(prom *metrics.Metrics, a model.Alert) {
	switch a.Kind {
	case model.AlertEntrySignal:
		prom.OpenPositions.Inc()
	case model.AlertStopLoss:
		prom.OpenPositions.Dec()
		prom.TradesTotal.WithLabelValues(string(model.ExitStopLoss)).Inc()
	case model.AlertTakeProfit:
		prom.OpenPositions.Dec()
		prom.TradesTotal.WithLabelValues(string(model.ExitTakeProfit)).Inc()
	case model.AlertExitSignal:
		prom.OpenPositions.Dec()
		prom.TradesTotal.WithLabelValues(string(model.ExitSignal)).Inc()
	}
}

// restoreCheckpoints rebuilds indicator state from the last persisted
// checkpoint so a restart mid-session skips the warm-up replay.
func restoreCheckpoints(mon *monitor.Monitor, symbols []string, dbPath string, lg *slog.Logger) {
	reader, err := sqlitestore.NewReader(dbPath)
	if err != nil {
		lg.Warn("checkpoint reader open failed", slog.Any("error", err))
		return
	}
	defer reader.Close()

	for _, sym := range symbols {
		data, err := reader.ReadIndicatorState(sym)
		if err != nil || data == nil {
			continue
		}
		st, err := indicator.UnmarshalState(data)
		if err != nil {
			lg.Warn("checkpoint decode failed", slog.String("symbol", sym), slog.Any("error", err))
			continue
		}
		if err := mon.Session(sym).RestoreIndicator(st); err != nil {
			lg.Warn("checkpoint restore failed", slog.String("symbol", sym), slog.Any("error", err))
			continue
		}
		lg.Info("indicator state restored", slog.String("symbol", sym), slog.Int("bars_seen", st.BarsSeen))
	}
}

// watchGauges refreshes the slow-moving gauges every few seconds.
func watchGauges(ctx context.Context, mon *monitor.Monitor, client *feed.EastmoneyClient, symbols []string, prom *metrics.Metrics, health *metrics.HealthStatus) {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			state := client.BreakerState()
			prom.FeedBreakerState.Set(float64(state))
			health.SetFeedOK(state != feed.BreakerOpen)

			if markethours.IsMarketOpen(time.Now()) {
				prom.MarketState.Set(1)
			} else {
				prom.MarketState.Set(0)
			}

			degraded := 0
			for _, sym := range symbols {
				if sess := mon.Session(sym); sess != nil && sess.Degraded() {
					degraded++
				}
			}
			prom.DegradedSessions.Set(float64(degraded))
		}
	}
}
