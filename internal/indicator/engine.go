package indicator

import (
	"time"

	"bondscan/internal/model"
)

// Config specifies the indicator periods for one engine.
// Zero values fall back to the conventional MACD(12,26,9) and a 20-bar
// volume window.
type Config struct {
	FastPeriod   int `json:"fast_period"`
	SlowPeriod   int `json:"slow_period"`
	SignalPeriod int `json:"signal_period"`
	VolumeWindow int `json:"volume_window"`
}

// WithDefaults returns the config with zero fields replaced by defaults.
func (c Config) WithDefaults() Config {
	if c.FastPeriod <= 0 {
		c.FastPeriod = 12
	}
	if c.SlowPeriod <= 0 {
		c.SlowPeriod = 26
	}
	if c.SignalPeriod <= 0 {
		c.SignalPeriod = 9
	}
	if c.VolumeWindow <= 0 {
		c.VolumeWindow = 20
	}
	return c
}

// WarmupBars returns the number of bars that must be consumed before the
// engine reports ready: max(slow, volumeWindow) + signal.
func (c Config) WarmupBars() int {
	w := c.SlowPeriod
	if c.VolumeWindow > w {
		w = c.VolumeWindow
	}
	return w + c.SignalPeriod
}

// Snapshot is the per-bar indicator output for one symbol.
// Until Ready is true the values are warm-up artifacts and downstream
// signal detection must not act on them.
type Snapshot struct {
	Symbol string    `json:"symbol"`
	TS     time.Time `json:"ts"`
	Close  float64   `json:"close"`

	MACD       float64 `json:"macd"`
	MACDSignal float64 `json:"macd_signal"`
	Histogram  float64 `json:"histogram"`

	VolumeSMA   float64 `json:"volume_sma"`
	VolumeRatio float64 `json:"volume_ratio"`

	BarsSeen int  `json:"bars_seen"`
	Ready    bool `json:"ready"`
}

// Engine owns the running indicator state for one symbol.
// Designed for single-goroutine usage — bars must be applied in strictly
// increasing timestamp order by exactly one writer, so no locks are needed.
type Engine struct {
	symbol   string
	cfg      Config
	macd     *MACD
	volSMA   *SMA
	barsSeen int
	lastTS   time.Time
}

// NewEngine creates an indicator engine for one symbol.
func NewEngine(symbol string, cfg Config) *Engine {
	cfg = cfg.WithDefaults()
	return &Engine{
		symbol: symbol,
		cfg:    cfg,
		macd:   NewMACD(cfg.FastPeriod, cfg.SlowPeriod, cfg.SignalPeriod),
		volSMA: NewSMA(cfg.VolumeWindow),
	}
}

// Config returns the engine's effective (defaulted) config.
func (e *Engine) Config() Config { return e.cfg }

// BarsSeen returns the number of bars consumed so far.
func (e *Engine) BarsSeen() int { return e.barsSeen }

// Update consumes the next bar and returns the resulting snapshot.
// Indicator values at any bar depend only on the ordered bar prefix up to
// and including it.
func (e *Engine) Update(bar model.Bar) Snapshot {
	e.barsSeen++
	e.lastTS = bar.TS
	e.macd.Update(bar.Close)
	e.volSMA.Update(float64(bar.Volume))

	snap := Snapshot{
		Symbol:     e.symbol,
		TS:         bar.TS,
		Close:      bar.Close,
		MACD:       e.macd.Line(),
		MACDSignal: e.macd.Signal(),
		Histogram:  e.macd.Histogram(),
		VolumeSMA:  e.volSMA.Value(),
		BarsSeen:   e.barsSeen,
		Ready:      e.barsSeen >= e.cfg.WarmupBars(),
	}
	if snap.VolumeSMA > 0 {
		snap.VolumeRatio = float64(bar.Volume) / snap.VolumeSMA
	}
	return snap
}

// Last reconstructs the snapshot as of the most recently consumed bar
// without consuming a new one. Price and volume fields are zero; callers
// resuming from a checkpoint use this to re-anchor cross detection.
func (e *Engine) Last() Snapshot {
	return Snapshot{
		Symbol:     e.symbol,
		TS:         e.lastTS,
		MACD:       e.macd.Line(),
		MACDSignal: e.macd.Signal(),
		Histogram:  e.macd.Histogram(),
		VolumeSMA:  e.volSMA.Value(),
		BarsSeen:   e.barsSeen,
		Ready:      e.barsSeen >= e.cfg.WarmupBars(),
	}
}

// Reset clears all indicator state for a fresh session.
func (e *Engine) Reset() {
	e.macd.Reset()
	e.volSMA.Reset()
	e.barsSeen = 0
	e.lastTS = time.Time{}
}
