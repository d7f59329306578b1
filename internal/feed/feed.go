// Package feed fetches and validates minute bars for convertible bonds.
//
// A Source delivers historical and incremental 1-minute OHLCV bars. The
// Validator enforces the feed contract downstream code depends on: bars
// arrive in strictly increasing timestamp order with no holes other than
// the midday break and the overnight close.
package feed

import (
	"context"
	"fmt"
	"time"

	"bondscan/internal/model"
)

// Source is a provider of minute bars for a single symbol.
type Source interface {
	// MinuteBars returns 1-minute bars for symbol with timestamps in
	// [beg, end], oldest first. A zero end means "up to now".
	MinuteBars(ctx context.Context, symbol string, beg, end time.Time) ([]model.Bar, error)
}

// GapError reports a missing bar: the feed skipped from Prev to Got where
// the calendar says Want should have come next.
type GapError struct {
	Symbol string
	Prev   time.Time
	Got    time.Time
	Want   time.Time
}

func (e *GapError) Error() string {
	return fmt.Sprintf("feed gap for %s: after %s expected %s, got %s",
		e.Symbol,
		e.Prev.Format("2006-01-02 15:04"),
		e.Want.Format("2006-01-02 15:04"),
		e.Got.Format("2006-01-02 15:04"))
}

// OutOfOrderError reports a bar whose timestamp does not advance past the
// previous bar.
type OutOfOrderError struct {
	Symbol string
	Prev   time.Time
	Got    time.Time
}

func (e *OutOfOrderError) Error() string {
	return fmt.Sprintf("feed out of order for %s: got %s after %s",
		e.Symbol,
		e.Got.Format("2006-01-02 15:04"),
		e.Prev.Format("2006-01-02 15:04"))
}
