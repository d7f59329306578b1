package feed

import (
	"time"

	"bondscan/internal/markethours"
	"bondscan/internal/model"
)

// Validator checks that one symbol's bar stream honors the sequencing
// contract. Corrupt sequences are unrecoverable for indicator state, so
// the first violation is returned as an error and the caller is expected
// to abort the session rather than continue on bad data.
//
// Not safe for concurrent use; each symbol stream owns its own Validator.
type Validator struct {
	symbol   string
	interval time.Duration

	prev    time.Time
	hasPrev bool
}

// NewValidator creates a validator for one symbol's stream with the given
// bar interval (1 minute for the standard feed).
func NewValidator(symbol string, interval time.Duration) *Validator {
	return &Validator{symbol: symbol, interval: interval}
}

// Check validates the next bar against the previous one. The first bar is
// always accepted and anchors the sequence.
func (v *Validator) Check(bar model.Bar) error {
	if !v.hasPrev {
		v.prev = bar.TS
		v.hasPrev = true
		return nil
	}

	if !bar.TS.After(v.prev) {
		return &OutOfOrderError{Symbol: v.symbol, Prev: v.prev, Got: bar.TS}
	}

	want := markethours.NextBarTime(v.prev, v.interval)
	if !bar.TS.Equal(want) {
		return &GapError{Symbol: v.symbol, Prev: v.prev, Got: bar.TS, Want: want}
	}

	v.prev = bar.TS
	return nil
}

// Seed anchors the sequence at a known timestamp, as if a bar at ts had
// already been accepted. Used when resuming a session from a checkpoint;
// a zero ts leaves the validator unanchored.
func (v *Validator) Seed(ts time.Time) {
	if ts.IsZero() {
		return
	}
	v.prev = ts
	v.hasPrev = true
}

// Last returns the timestamp of the last accepted bar and whether any bar
// has been accepted yet.
func (v *Validator) Last() (time.Time, bool) {
	return v.prev, v.hasPrev
}

// ValidateSequence runs Check over a full history slice. Used by the
// backtest loader before any simulation work starts.
func ValidateSequence(symbol string, interval time.Duration, bars []model.Bar) error {
	v := NewValidator(symbol, interval)
	for _, b := range bars {
		if err := v.Check(b); err != nil {
			return err
		}
	}
	return nil
}
