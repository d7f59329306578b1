package model

import (
	"encoding/json"
	"time"
)

// AlertKind classifies monitor alerts pushed to subscribers.
type AlertKind string

const (
	AlertEntrySignal     AlertKind = "entry_signal"
	AlertExitSignal      AlertKind = "exit_signal"
	AlertStopLoss        AlertKind = "stop_loss"
	AlertTakeProfit      AlertKind = "take_profit"
	AlertSessionDegraded AlertKind = "session_degraded"
)

// Alert is the record the live monitor emits for a tracked symbol.
// Appended to the session's alert log and fanned out to notifiers,
// the redis stream and WebSocket subscribers.
type Alert struct {
	ID            string        `json:"id"` // ULID
	Symbol        string        `json:"symbol"`
	Kind          AlertKind     `json:"kind"`
	TS            time.Time     `json:"ts"`
	Price         float64       `json:"price"`
	PositionState PositionState `json:"position_state"`

	// UnrealizedPnL is the open fractional return at alert time.
	// Zero when the position is flat.
	UnrealizedPnL float64 `json:"unrealized_pnl"`

	Message string `json:"message,omitempty"`
}

// JSON returns the JSON-encoded alert (ignoring errors for hot-path usage).
func (a *Alert) JSON() []byte {
	data, _ := json.Marshal(a)
	return data
}
