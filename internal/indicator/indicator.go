// Package indicator provides streaming technical indicator calculations
// over minute-bar data.
//
// All indicators consume one value per bar and expose their current value
// plus a readiness flag. Feeding bars one at a time yields, at every bar,
// the same values as a batch computation over the prefix — the backtest
// and the live scanner share these exact code paths.
package indicator

// Indicator is the interface for all streaming indicators.
type Indicator interface {
	// Name returns the indicator name (e.g., "EMA", "SMA").
	Name() string

	// Update feeds the next value and recalculates.
	Update(v float64)

	// Value returns the current calculated value. Returns 0 if not enough data.
	Value() float64

	// Ready returns true when enough data has been accumulated.
	Ready() bool

	// Reset clears all state for reuse.
	Reset()
}
