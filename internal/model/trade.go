package model

import "time"

// ExitReason records why a position was closed.
type ExitReason string

const (
	ExitSignal     ExitReason = "signal_exit"
	ExitStopLoss   ExitReason = "stop_loss"
	ExitTakeProfit ExitReason = "take_profit"
	ExitSessionEnd ExitReason = "session_end"
)

// Trade is one completed round trip. Immutable once closed.
// PnL is the fractional return of the trade: (exit - entry) / entry.
type Trade struct {
	ID         string     `json:"id"` // ULID, time-sortable
	Symbol     string     `json:"symbol"`
	EntryTime  time.Time  `json:"entry_time"`
	EntryPrice float64    `json:"entry_price"`
	ExitTime   time.Time  `json:"exit_time"`
	ExitPrice  float64    `json:"exit_price"`
	ExitReason ExitReason `json:"exit_reason"`
	PnL        float64    `json:"pnl"`
}
