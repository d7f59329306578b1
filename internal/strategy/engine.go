// Package strategy implements the per-symbol trading state machine.
//
// The engine consumes one bar at a time together with the signals detected
// on that bar and emits trade events (position opened / position closed).
// It performs no I/O and holds no clock: the backtest simulator and the
// live monitor drive the identical code path.
package strategy

import (
	"bondscan/internal/indicator"
	"bondscan/internal/model"
)

// EventKind classifies engine output events.
type EventKind string

const (
	EventOpen  EventKind = "open"
	EventClose EventKind = "close"
)

// Event is a single trade action emitted by the engine.
type Event struct {
	Kind     EventKind
	Bar      model.Bar
	Position model.Position // the opened position (EventOpen)
	Trade    *model.Trade   // the completed trade (EventClose)
	Signals  []model.Signal // signals that triggered the action, if any
}

// pendingFill carries a decision taken on bar t that fills on bar t+1
// when fill_mode is next_open.
type pendingFill struct {
	signals []model.Signal
	reason  model.ExitReason // only set for exits
}

// Engine is the state machine for one symbol. States: FLAT, LONG.
// Single-writer: bars must be applied in strictly increasing timestamp
// order by one goroutine.
type Engine struct {
	symbol string
	cfg    Config

	state model.PositionState
	pos   model.Position

	barIndex    int                        // 1-based, increments per bar
	lastSeen    map[model.SignalKind]int   // bar index each kind last fired
	lastSignals map[model.SignalKind]model.Signal
	lastExitBar int

	pendingEntry *pendingFill
	pendingExit  *pendingFill
}

// NewEngine creates a strategy engine. The config must already be
// validated — an invalid config must never reach a running session.
func NewEngine(symbol string, cfg Config) *Engine {
	if cfg.FillMode == "" {
		cfg.FillMode = FillClose
	}
	return &Engine{
		symbol:      symbol,
		cfg:         cfg,
		state:       model.Flat,
		lastSeen:    make(map[model.SignalKind]int),
		lastSignals: make(map[model.SignalKind]model.Signal),
		lastExitBar: -1 << 30,
	}
}

// State returns the current position state.
func (e *Engine) State() model.PositionState { return e.state }

// Position returns the open position. Only meaningful while State() == LONG.
func (e *Engine) Position() model.Position { return e.pos }

// OnBar advances the state machine by one bar and returns the resulting
// trade events (zero, one, or — with a next_open fill followed by a
// same-bar stop — two).
//
// Exit checks run in the documented priority order stop-loss > take-profit
// > signal exit: intrabar sequencing is unknowable from OHLC alone, so the
// order is a deterministic tie-break policy, not a claim about what
// happened first inside the bar.
func (e *Engine) OnBar(bar model.Bar, snap indicator.Snapshot, signals []model.Signal) []Event {
	e.barIndex++
	var events []Event

	// Record signal occurrences for the lag window before anything else.
	for _, s := range signals {
		e.lastSeen[s.Kind] = e.barIndex
		e.lastSignals[s.Kind] = s
	}

	closedThisBar := false

	// Fill decisions deferred from the previous bar (next_open mode).
	if e.state == model.Flat && e.pendingEntry != nil {
		events = append(events, e.open(bar, bar.Open, e.pendingEntry.signals))
		e.pendingEntry = nil
	}
	if e.state == model.Long && e.pendingExit != nil {
		events = append(events, e.close(bar, bar.Open, e.pendingExit.reason, e.pendingExit.signals))
		e.pendingExit = nil
		closedThisBar = true
	}

	if e.state == model.Long {
		switch {
		case bar.Low <= e.pos.StopLoss:
			events = append(events, e.close(bar, e.pos.StopLoss, model.ExitStopLoss, nil))
			closedThisBar = true

		case bar.High >= e.pos.TakeProfit:
			events = append(events, e.close(bar, e.pos.TakeProfit, model.ExitTakeProfit, nil))
			closedThisBar = true

		default:
			if exitSigs := e.matchExit(signals); len(exitSigs) > 0 {
				if e.cfg.FillMode == FillNextOpen {
					e.pendingExit = &pendingFill{signals: exitSigs, reason: model.ExitSignal}
				} else {
					events = append(events, e.close(bar, bar.Close, model.ExitSignal, exitSigs))
					closedThisBar = true
				}
			}
		}
	}

	// Entry evaluation. Re-entry on the bar of a close is not permitted;
	// the earliest re-entry is the next bar (plus any configured cooldown).
	if e.state == model.Flat && !closedThisBar && e.pendingEntry == nil && snap.Ready {
		if e.barIndex-e.lastExitBar > e.cfg.CooldownBars {
			if entrySigs, ok := e.matchEntry(signals); ok {
				if e.cfg.FillMode == FillNextOpen {
					e.pendingEntry = &pendingFill{signals: entrySigs}
				} else {
					events = append(events, e.open(bar, bar.Close, entrySigs))
				}
			}
		}
	}

	return events
}

// ForceClose closes any open position at the given bar's close with
// exit_reason session_end. Called by drivers when the session ends while
// LONG. Returns nil when already flat.
func (e *Engine) ForceClose(bar model.Bar) *Event {
	e.pendingEntry = nil
	e.pendingExit = nil
	if e.state != model.Long {
		return nil
	}
	ev := e.close(bar, bar.Close, model.ExitSessionEnd, nil)
	return &ev
}

// matchEntry reports whether every required entry kind occurred within the
// lag window ending at the current bar. At least one required kind must
// have fired on the current bar itself, otherwise a stale window would
// re-trigger entries on every subsequent bar.
func (e *Engine) matchEntry(signals []model.Signal) ([]model.Signal, bool) {
	fresh := false
	for _, s := range signals {
		for _, k := range e.cfg.Entry {
			if s.Kind == k {
				fresh = true
			}
		}
	}
	if !fresh {
		return nil, false
	}

	matched := make([]model.Signal, 0, len(e.cfg.Entry))
	for _, k := range e.cfg.Entry {
		idx, seen := e.lastSeen[k]
		if !seen || e.barIndex-idx > e.cfg.MaxLagBars {
			return nil, false
		}
		matched = append(matched, e.lastSignals[k])
	}
	return matched, true
}

// matchExit returns the current bar's signals that match the exit rule.
func (e *Engine) matchExit(signals []model.Signal) []model.Signal {
	var matched []model.Signal
	for _, s := range signals {
		for _, k := range e.cfg.Exit {
			if s.Kind == k {
				matched = append(matched, s)
			}
		}
	}
	return matched
}

func (e *Engine) open(bar model.Bar, price float64, signals []model.Signal) Event {
	e.pos = model.Position{
		Symbol:     e.symbol,
		EntryPrice: price,
		EntryTime:  bar.TS,
		StopLoss:   price * (1 - e.cfg.StopLossPct),
		TakeProfit: price * (1 + e.cfg.TakeProfitPct),
	}
	e.state = model.Long

	// Consume the signal memory so the same window cannot re-enter after
	// this position closes.
	e.lastSeen = make(map[model.SignalKind]int)
	e.lastSignals = make(map[model.SignalKind]model.Signal)

	return Event{Kind: EventOpen, Bar: bar, Position: e.pos, Signals: signals}
}

func (e *Engine) close(bar model.Bar, price float64, reason model.ExitReason, signals []model.Signal) Event {
	trade := &model.Trade{
		ID:         model.NewID(),
		Symbol:     e.symbol,
		EntryTime:  e.pos.EntryTime,
		EntryPrice: e.pos.EntryPrice,
		ExitTime:   bar.TS,
		ExitPrice:  price,
		ExitReason: reason,
		PnL:        (price - e.pos.EntryPrice) / e.pos.EntryPrice,
	}
	e.state = model.Flat
	e.pos = model.Position{}
	e.lastExitBar = e.barIndex

	return Event{Kind: EventClose, Bar: bar, Trade: trade, Signals: signals}
}
