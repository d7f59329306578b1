package model

import (
	"encoding/json"
	"time"
)

// Bar represents a single 1-minute OHLCV bar for one convertible bond.
// Prices are in yuan. Bars are immutable once produced and must be applied
// to per-symbol state in strictly increasing timestamp order.
type Bar struct {
	Symbol string    `json:"symbol"`
	TS     time.Time `json:"ts"` // bar open time (UTC, minute-aligned)
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume int64     `json:"volume"` // traded lots in this minute
}

// JSON returns the JSON-encoded bar (ignoring errors for hot-path usage).
func (b *Bar) JSON() []byte {
	data, _ := json.Marshal(b)
	return data
}
