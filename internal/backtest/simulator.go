// Package backtest replays historical bars through the detection pipeline
// and summarizes the resulting trades.
//
// The simulator is pure and deterministic: no I/O, no clock, no retries.
// Concurrent runs for different symbols or strategies share nothing.
package backtest

import (
	"fmt"
	"time"

	"bondscan/internal/detect"
	"bondscan/internal/feed"
	"bondscan/internal/indicator"
	"bondscan/internal/markethours"
	"bondscan/internal/model"
	"bondscan/internal/strategy"
)

// InsufficientHistoryError reports a bar slice shorter than the indicator
// warm-up requirement. The simulator refuses to guess on cold indicators.
type InsufficientHistoryError struct {
	Symbol string
	Have   int
	Need   int
}

func (e *InsufficientHistoryError) Error() string {
	return fmt.Sprintf("insufficient history for %s: have %d bars, need %d for warm-up",
		e.Symbol, e.Have, e.Need)
}

// Options tunes a simulation run. The zero value picks the standard
// 1-minute convertible-bond setup.
type Options struct {
	Indicator      indicator.Config
	Interval       time.Duration // bar interval, default 1 minute
	InitialCapital float64       // equity-curve basis, default 100000
}

func (o Options) withDefaults() Options {
	o.Indicator = o.Indicator.WithDefaults()
	if o.Interval == 0 {
		o.Interval = time.Minute
	}
	if o.InitialCapital == 0 {
		o.InitialCapital = 100_000
	}
	return o
}

// Run replays bars for one symbol through indicators, signal detection,
// and the strategy state machine, and returns the trade log with metrics.
//
// Fails fast on an invalid strategy config, a bar count below the warm-up
// requirement, or any sequencing violation in the bar slice.
func Run(symbol string, cfg strategy.Config, bars []model.Bar, opts Options) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid strategy config: %w", err)
	}
	opts = opts.withDefaults()

	if need := opts.Indicator.WarmupBars(); len(bars) < need {
		return nil, &InsufficientHistoryError{Symbol: symbol, Have: len(bars), Need: need}
	}
	if err := feed.ValidateSequence(symbol, opts.Interval, bars); err != nil {
		return nil, err
	}

	ind := indicator.NewEngine(symbol, opts.Indicator)
	det := detect.New(cfg.VolumeSpikeRatio)
	eng := strategy.NewEngine(symbol, cfg)

	var (
		trades []*model.Trade
		prev   indicator.Snapshot
	)
	for _, bar := range bars {
		snap := ind.Update(bar)
		signals := det.Eval(prev, snap)
		prev = snap

		for _, ev := range eng.OnBar(bar, snap, signals) {
			if ev.Kind == strategy.EventClose {
				trades = append(trades, ev.Trade)
			}
		}

		// Positions never survive the trading day.
		if markethours.IsLastSessionBar(bar.TS, opts.Interval) {
			if ev := eng.ForceClose(bar); ev != nil {
				trades = append(trades, ev.Trade)
			}
		}
	}

	// History may end mid-session; a position left open there is closed the
	// same way a session end closes it.
	if eng.State() == model.Long {
		if ev := eng.ForceClose(bars[len(bars)-1]); ev != nil {
			trades = append(trades, ev.Trade)
		}
	}

	return &Result{
		RunID:    model.NewID(),
		Symbol:   symbol,
		Strategy: cfg,
		Start:    bars[0].TS,
		End:      bars[len(bars)-1].TS,
		BarCount: len(bars),
		Trades:   trades,
		Metrics:  ComputeMetrics(trades, opts.InitialCapital),
	}, nil
}
