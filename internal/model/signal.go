package model

import "time"

// SignalKind identifies a discrete technical event derived from indicator
// output on a single bar transition.
type SignalKind string

const (
	GoldenCross SignalKind = "golden_cross" // MACD histogram crossed from <=0 to >0
	DeadCross   SignalKind = "dead_cross"   // MACD histogram crossed from >=0 to <0
	VolumeSpike SignalKind = "volume_spike" // volume >= multiplier x its rolling average
)

// Signal is a single detected event. Signals are produced once per
// qualifying bar transition and never revised afterwards.
type Signal struct {
	Kind   SignalKind `json:"kind"`
	Symbol string     `json:"symbol"`
	TS     time.Time  `json:"ts"`
	Price  float64    `json:"price"` // close of the bar that produced the signal

	// Supporting indicator values at the signal bar.
	MACD        float64 `json:"macd"`
	MACDSignal  float64 `json:"macd_signal"`
	Histogram   float64 `json:"histogram"`
	VolumeRatio float64 `json:"volume_ratio"`
}
