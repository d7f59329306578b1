package model

import "time"

// PositionState is the strategy state for one symbol. No pyramiding:
// at most one open position per symbol.
type PositionState string

const (
	Flat PositionState = "FLAT"
	Long PositionState = "LONG"
)

// Position is an open long position for one symbol. Created on entry,
// destroyed on exit; there is never more than one per strategy instance.
type Position struct {
	Symbol     string    `json:"symbol"`
	EntryPrice float64   `json:"entry_price"`
	EntryTime  time.Time `json:"entry_time"`
	StopLoss   float64   `json:"stop_loss"`   // entry * (1 - stop_loss_pct)
	TakeProfit float64   `json:"take_profit"` // entry * (1 + take_profit_pct)
}

// UnrealizedPnL returns the open fractional return at the given price.
func (p *Position) UnrealizedPnL(last float64) float64 {
	if p.EntryPrice == 0 {
		return 0
	}
	return (last - p.EntryPrice) / p.EntryPrice
}
