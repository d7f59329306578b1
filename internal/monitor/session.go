// Package monitor drives the detection pipeline incrementally against a
// polled bar feed and raises alerts for one or more tracked symbols.
package monitor

import (
	"fmt"
	"sync/atomic"
	"time"

	"bondscan/internal/detect"
	"bondscan/internal/feed"
	"bondscan/internal/indicator"
	"bondscan/internal/markethours"
	"bondscan/internal/model"
	"bondscan/internal/strategy"
)

// Session is one symbol's monitoring state. Indicator and position state
// persist across polls for the life of the session; only its owning
// goroutine touches it (single-writer per symbol).
type Session struct {
	Symbol string

	interval  time.Duration
	validator *feed.Validator
	ind       *indicator.Engine
	det       *detect.Detector
	eng       *strategy.Engine

	prevSnap indicator.Snapshot
	lastSnap indicator.Snapshot

	alertLog []model.Alert

	// alerted dedups alert keys within the current hour so a re-polled or
	// re-evaluated bar cannot re-notify. Cleared on the hour.
	alerted     map[string]bool
	alertedHour int

	// degraded is read by health reporters outside the owning goroutine.
	degraded atomic.Bool
}

// NewSession creates a session. The strategy config must be validated.
func NewSession(symbol string, scfg strategy.Config, icfg indicator.Config, interval time.Duration) *Session {
	if interval == 0 {
		interval = time.Minute
	}
	return &Session{
		Symbol:      symbol,
		interval:    interval,
		validator:   feed.NewValidator(symbol, interval),
		ind:         indicator.NewEngine(symbol, icfg),
		det:         detect.New(scfg.VolumeSpikeRatio),
		eng:         strategy.NewEngine(symbol, scfg),
		alerted:     make(map[string]bool),
		alertedHour: -1,
	}
}

// RestoreIndicator replaces the session's indicator engine with one
// rebuilt from a checkpoint and re-anchors the bar sequence at the
// checkpoint's last bar, so already-counted bars are rejected instead of
// mutating the restored state twice. Only valid before the first bar is
// applied.
func (s *Session) RestoreIndicator(st indicator.State) error {
	eng, err := indicator.Restore(st)
	if err != nil {
		return fmt.Errorf("session %s: %w", s.Symbol, err)
	}
	s.ind = eng
	s.validator.Seed(st.LastTS)

	// Seed cross detection with the checkpointed histogram so a sign
	// change on the first post-restart bar is still seen.
	snap := eng.Last()
	s.prevSnap = snap
	s.lastSnap = snap
	return nil
}

// ApplyBar advances the session by one bar and returns the alerts it
// produced. Sequencing violations are returned as-is; the session state
// is not advanced past a bad bar.
func (s *Session) ApplyBar(bar model.Bar) ([]model.Alert, error) {
	if err := s.validator.Check(bar); err != nil {
		return nil, err
	}

	snap := s.ind.Update(bar)
	signals := s.det.Eval(s.prevSnap, snap)
	s.prevSnap = snap
	s.lastSnap = snap

	var alerts []model.Alert
	for _, ev := range s.eng.OnBar(bar, snap, signals) {
		alerts = append(alerts, s.eventAlert(ev))
	}

	// Positions never survive the trading day.
	if s.eng.State() == model.Long && markethours.IsLastSessionBar(bar.TS, s.interval) {
		if ev := s.eng.ForceClose(bar); ev != nil {
			alerts = append(alerts, s.eventAlert(*ev))
		}
	}

	alerts = s.dedup(bar.TS, alerts)
	s.alertLog = append(s.alertLog, alerts...)
	return alerts, nil
}

// eventAlert converts a strategy event into an alert record.
func (s *Session) eventAlert(ev strategy.Event) model.Alert {
	a := model.Alert{
		ID:            model.NewID(),
		Symbol:        s.Symbol,
		TS:            ev.Bar.TS,
		PositionState: s.eng.State(),
	}

	switch ev.Kind {
	case strategy.EventOpen:
		a.Kind = model.AlertEntrySignal
		a.Price = ev.Position.EntryPrice
		a.Message = fmt.Sprintf("entry %s: %s (vol ratio %.2f, stop %.3f, target %.3f)",
			s.Symbol, signalNames(ev.Signals), s.lastSnap.VolumeRatio,
			ev.Position.StopLoss, ev.Position.TakeProfit)

	case strategy.EventClose:
		a.Price = ev.Trade.ExitPrice
		switch ev.Trade.ExitReason {
		case model.ExitStopLoss:
			a.Kind = model.AlertStopLoss
		case model.ExitTakeProfit:
			a.Kind = model.AlertTakeProfit
		default:
			a.Kind = model.AlertExitSignal
		}
		a.Message = fmt.Sprintf("exit %s: %s, pnl %+.2f%%",
			s.Symbol, ev.Trade.ExitReason, ev.Trade.PnL*100)
	}
	a.UnrealizedPnL = s.UnrealizedPnL()
	return a
}

func signalNames(signals []model.Signal) string {
	if len(signals) == 0 {
		return "forced"
	}
	out := ""
	for i, sig := range signals {
		if i > 0 {
			out += " + "
		}
		out += string(sig.Kind)
	}
	return out
}

// dedup drops alerts already raised this hour for the same kind and bar
// minute, then records the survivors.
func (s *Session) dedup(ts time.Time, alerts []model.Alert) []model.Alert {
	hour := ts.In(markethours.CST).Hour()
	if hour != s.alertedHour {
		s.alerted = make(map[string]bool)
		s.alertedHour = hour
	}

	kept := alerts[:0]
	for _, a := range alerts {
		key := string(a.Kind) + "|" + a.TS.Format("2006-01-02 15:04")
		if s.alerted[key] {
			continue
		}
		s.alerted[key] = true
		kept = append(kept, a)
	}
	return kept
}

// UnrealizedPnL returns the open fractional return against the last seen
// close, zero while flat.
func (s *Session) UnrealizedPnL() float64 {
	if s.eng.State() != model.Long {
		return 0
	}
	pos := s.eng.Position()
	return pos.UnrealizedPnL(s.lastSnap.Close)
}

// State returns the position state.
func (s *Session) State() model.PositionState { return s.eng.State() }

// LastTS returns the last applied bar timestamp (zero before the first).
func (s *Session) LastTS() time.Time {
	ts, _ := s.validator.Last()
	return ts
}

// Snapshot returns the latest indicator snapshot.
func (s *Session) Snapshot() indicator.Snapshot { return s.lastSnap }

// IndicatorState returns the serializable indicator checkpoint.
func (s *Session) IndicatorState() indicator.State { return s.ind.State() }

// AlertLog returns the session's accumulated alerts.
func (s *Session) AlertLog() []model.Alert { return s.alertLog }

// Degraded reports whether the session is currently degraded.
func (s *Session) Degraded() bool { return s.degraded.Load() }

// SetDegraded flips the degraded flag and reports whether it changed.
func (s *Session) SetDegraded(v bool) bool {
	return s.degraded.CompareAndSwap(!v, v)
}
