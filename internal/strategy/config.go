package strategy

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"bondscan/internal/model"
)

// FillMode selects the simulated fill price for signal-driven trades.
type FillMode string

const (
	// FillClose fills at the close of the bar that produced the decision
	// (default — matches the reference scanner's simulation).
	FillClose FillMode = "close"

	// FillNextOpen fills at the open of the following bar.
	FillNextOpen FillMode = "next_open"
)

// Config is the declarative strategy configuration supplied by the
// strategy-management layer. Immutable for the duration of one backtest or
// monitoring session.
type Config struct {
	Name string `yaml:"name" json:"name"`

	// Entry lists the signal kinds that must all occur within MaxLagBars
	// bars ending at the current bar for a position to open.
	Entry []model.SignalKind `yaml:"entry" json:"entry"`

	// Exit lists the signal kinds any of which closes an open position.
	Exit []model.SignalKind `yaml:"exit" json:"exit"`

	// MaxLagBars widens the entry coincidence window. 0 = same bar.
	MaxLagBars int `yaml:"max_lag_bars" json:"max_lag_bars"`

	StopLossPct   float64 `yaml:"stop_loss_pct" json:"stop_loss_pct"`
	TakeProfitPct float64 `yaml:"take_profit_pct" json:"take_profit_pct"`

	// CooldownBars blocks re-entry for this many bars after a close.
	// 0 = re-entry allowed on the next bar.
	CooldownBars int `yaml:"cooldown_bars" json:"cooldown_bars"`

	// VolumeSpikeRatio is the volume multiplier the detector uses for
	// volume_spike signals. 0 = detector default (2.0).
	VolumeSpikeRatio float64 `yaml:"volume_spike_ratio" json:"volume_spike_ratio"`

	// FillMode defaults to FillClose.
	FillMode FillMode `yaml:"fill_mode" json:"fill_mode"`
}

var validKinds = map[model.SignalKind]bool{
	model.GoldenCross: true,
	model.DeadCross:   true,
	model.VolumeSpike: true,
}

// Validate rejects configs that must not start a session.
func (c *Config) Validate() error {
	if len(c.Entry) == 0 {
		return fmt.Errorf("strategy %q: entry rule is empty", c.Name)
	}
	if len(c.Exit) == 0 {
		return fmt.Errorf("strategy %q: exit rule is empty", c.Name)
	}
	for _, k := range c.Entry {
		if !validKinds[k] {
			return fmt.Errorf("strategy %q: unknown entry signal kind %q", c.Name, k)
		}
	}
	for _, k := range c.Exit {
		if !validKinds[k] {
			return fmt.Errorf("strategy %q: unknown exit signal kind %q", c.Name, k)
		}
	}
	if c.MaxLagBars < 0 {
		return fmt.Errorf("strategy %q: max_lag_bars must be >= 0, got %d", c.Name, c.MaxLagBars)
	}
	if c.StopLossPct <= 0 {
		return fmt.Errorf("strategy %q: stop_loss_pct must be positive, got %v", c.Name, c.StopLossPct)
	}
	if c.TakeProfitPct <= 0 {
		return fmt.Errorf("strategy %q: take_profit_pct must be positive, got %v", c.Name, c.TakeProfitPct)
	}
	if c.CooldownBars < 0 {
		return fmt.Errorf("strategy %q: cooldown_bars must be >= 0, got %d", c.Name, c.CooldownBars)
	}
	if c.VolumeSpikeRatio < 0 {
		return fmt.Errorf("strategy %q: volume_spike_ratio must be >= 0, got %v", c.Name, c.VolumeSpikeRatio)
	}
	switch c.FillMode {
	case "", FillClose, FillNextOpen:
	default:
		return fmt.Errorf("strategy %q: fill_mode must be %q or %q, got %q",
			c.Name, FillClose, FillNextOpen, c.FillMode)
	}
	return nil
}

// Default returns the T+0 golden-cross strategy the reference scanner runs:
// enter on golden cross + volume spike on the same bar, exit on dead cross.
func Default() Config {
	return Config{
		Name:          "macd-t0",
		Entry:         []model.SignalKind{model.GoldenCross, model.VolumeSpike},
		Exit:          []model.SignalKind{model.DeadCross},
		MaxLagBars:    0,
		StopLossPct:   0.02,
		TakeProfitPct: 0.05,
		FillMode:      FillClose,
	}
}

// LoadFile reads and validates a YAML strategy config.
func LoadFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read strategy config: %w", err)
	}

	cfg := Config{}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse strategy config %s: %w", path, err)
	}
	if cfg.FillMode == "" {
		cfg.FillMode = FillClose
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid strategy config %s: %w", path, err)
	}
	return cfg, nil
}
