package monitor

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"bondscan/internal/feed"
	"bondscan/internal/indicator"
	"bondscan/internal/logger"
	"bondscan/internal/markethours"
	"bondscan/internal/model"
	"bondscan/internal/strategy"
)

// AlertSink receives every alert the monitor raises, after the session's
// dedup. Sinks must not block: delivery to slow backends belongs behind a
// channel or their own goroutine.
type AlertSink func(ctx context.Context, alert model.Alert)

// BarSink receives every accepted bar (for persistence).
type BarSink func(bar model.Bar)

// SnapshotSink receives the latest indicator snapshot after each poll that
// applied bars.
type SnapshotSink func(symbol string, snap indicator.Snapshot)

// Checkpointer persists indicator state between polls so a restarted
// scanner can resume mid-session without a full warm-up replay.
type Checkpointer interface {
	SaveIndicatorState(symbol string, data []byte) error
}

// Config configures the monitor.
type Config struct {
	Symbols      []string
	Strategy     strategy.Config
	Indicator    indicator.Config
	PollInterval time.Duration // default 60s

	// MaxRetries is the number of poll retries before a session degrades.
	// 0 means the default of 3; negative means no retries (one attempt).
	MaxRetries int

	Source       feed.Source
	Sinks        []AlertSink
	BarSink      BarSink
	SnapshotSink SnapshotSink
	Checkpointer Checkpointer // optional
	Log          *slog.Logger // optional, defaults to slog.Default()
}

// Monitor runs one polling goroutine per tracked symbol. Sessions share
// nothing; a stop request cancels the poll waits and lets in-flight polls
// finish before Stop returns.
type Monitor struct {
	cfg Config
	log *slog.Logger

	mu       sync.RWMutex
	sessions map[string]*Session

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a monitor and its per-symbol sessions.
func New(cfg Config) (*Monitor, error) {
	if err := cfg.Strategy.Validate(); err != nil {
		return nil, err
	}
	cfg.Indicator = cfg.Indicator.WithDefaults()
	if cfg.PollInterval == 0 {
		cfg.PollInterval = 60 * time.Second
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if cfg.Log == nil {
		cfg.Log = slog.Default()
	}

	m := &Monitor{
		cfg:      cfg,
		log:      cfg.Log,
		sessions: make(map[string]*Session, len(cfg.Symbols)),
	}
	for _, sym := range cfg.Symbols {
		m.sessions[sym] = NewSession(sym, cfg.Strategy, cfg.Indicator, time.Minute)
	}
	return m, nil
}

// Session returns the session for a symbol, nil if untracked.
func (m *Monitor) Session(symbol string) *Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sessions[symbol]
}

// Start launches the polling goroutines. Non-blocking.
func (m *Monitor) Start(ctx context.Context) {
	ctx, m.cancel = context.WithCancel(ctx)

	for _, sess := range m.sessions {
		m.wg.Add(1)
		go m.runSymbol(ctx, sess)
	}
	m.log.Info("monitor started",
		slog.Int("symbols", len(m.sessions)),
		slog.Duration("poll_interval", m.cfg.PollInterval))
}

// Stop cancels polling and waits for in-flight polls to complete.
func (m *Monitor) Stop() {
	if m.cancel != nil {
		m.cancel()
	}
	m.wg.Wait()
	m.log.Info("monitor stopped")
}

// runSymbol is the single writer for one session's state.
func (m *Monitor) runSymbol(ctx context.Context, sess *Session) {
	defer m.wg.Done()

	lg := m.log.With("symbol", sess.Symbol)

	// First poll immediately, then on the ticker.
	m.pollOnce(ctx, sess, lg)

	ticker := time.NewTicker(m.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			now := time.Now()
			if !markethours.IsMarketOpen(now) && sess.State() != model.Long {
				continue
			}
			m.pollOnce(ctx, sess, lg)
		}
	}
}

// pollOnce fetches new bars and applies them, with bounded backoff on
// upstream failure. After exhausting retries, the session is marked
// degraded and a caller-visible alert is raised; the loop continues so
// session state survives the outage.
func (m *Monitor) pollOnce(ctx context.Context, sess *Session, lg *slog.Logger) {
	ctx = logger.WithTraceID(ctx, logger.GenerateTraceID(sess.Symbol, time.Now()))

	var bars []model.Bar
	var err error

	retries := m.cfg.MaxRetries
	if retries < 0 {
		retries = 0
	}

	backoff := time.Second
	for attempt := 0; attempt <= retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			backoff *= 2
		}

		bars, err = m.cfg.Source.MinuteBars(ctx, sess.Symbol, m.pollFrom(sess), time.Time{})
		if err == nil {
			break
		}
		lg.Warn("poll failed", "attempt", attempt+1, "error", err)
	}

	if err != nil {
		if sess.SetDegraded(true) {
			m.emit(ctx, model.Alert{
				ID:            model.NewID(),
				Symbol:        sess.Symbol,
				Kind:          model.AlertSessionDegraded,
				TS:            time.Now(),
				PositionState: sess.State(),
				Message:       "upstream poll failures exhausted retries: " + err.Error(),
			})
		}
		return
	}

	if sess.SetDegraded(false) {
		lg.Info("session recovered")
	}

	last := sess.LastTS()
	applied := 0
	for _, bar := range bars {
		if !last.IsZero() && !bar.TS.After(last) {
			continue
		}
		alerts, err := sess.ApplyBar(bar)
		if err != nil {
			// A corrupt sequence is not recoverable by skipping; surface it
			// and stop applying this batch.
			lg.Error("bar rejected", "error", err)
			break
		}
		applied++
		if m.cfg.BarSink != nil {
			m.cfg.BarSink(bar)
		}
		for _, a := range alerts {
			m.emit(ctx, a)
		}
	}

	if applied > 0 {
		lg.Debug("poll applied bars", "count", applied, "last_ts", sess.LastTS())
		if m.cfg.SnapshotSink != nil {
			m.cfg.SnapshotSink(sess.Symbol, sess.Snapshot())
		}
		m.checkpoint(sess, lg)
	}
}

// pollFrom picks the fetch window start: just after the last seen bar, or
// the current trading day's open on the first poll.
func (m *Monitor) pollFrom(sess *Session) time.Time {
	if last := sess.LastTS(); !last.IsZero() {
		return last.Add(time.Second)
	}
	now := time.Now().In(markethours.CST)
	if markethours.IsTradingDay(now) {
		y, mo, d := now.Date()
		return time.Date(y, mo, d, 0, 0, 0, 0, markethours.CST)
	}
	return markethours.NextOpen(now).Add(-time.Hour)
}

func (m *Monitor) emit(ctx context.Context, alert model.Alert) {
	for _, sink := range m.cfg.Sinks {
		sink(ctx, alert)
	}
}

func (m *Monitor) checkpoint(sess *Session, lg *slog.Logger) {
	if m.cfg.Checkpointer == nil {
		return
	}
	data, err := sess.IndicatorState().Marshal()
	if err != nil {
		lg.Warn("checkpoint marshal failed", "error", err)
		return
	}
	if err := m.cfg.Checkpointer.SaveIndicatorState(sess.Symbol, data); err != nil {
		lg.Warn("checkpoint save failed", "error", err)
	}
}
