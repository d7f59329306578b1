package strategy

import (
	"math"
	"testing"
	"time"

	"bondscan/internal/indicator"
	"bondscan/internal/model"
)

var barBase = time.Date(2025, 6, 2, 1, 30, 0, 0, time.UTC)

func bar(i int, open, high, low, close float64) model.Bar {
	return model.Bar{
		Symbol: "111012",
		TS:     barBase.Add(time.Duration(i) * time.Minute),
		Open:   open,
		High:   high,
		Low:    low,
		Close:  close,
		Volume: 500,
	}
}

func flatBar(i int, px float64) model.Bar {
	return bar(i, px, px, px, px)
}

func readySnap(b model.Bar) indicator.Snapshot {
	return indicator.Snapshot{Symbol: b.Symbol, TS: b.TS, Close: b.Close, BarsSeen: 100, Ready: true}
}

func sig(b model.Bar, kind model.SignalKind) model.Signal {
	return model.Signal{Kind: kind, Symbol: b.Symbol, TS: b.TS, Price: b.Close}
}

func testConfig() Config {
	return Config{
		Name:          "test",
		Entry:         []model.SignalKind{model.GoldenCross, model.VolumeSpike},
		Exit:          []model.SignalKind{model.DeadCross},
		StopLossPct:   0.05,
		TakeProfitPct: 0.10,
		FillMode:      FillClose,
	}
}

func TestEngine_EntryRequiresAllKindsSameBar(t *testing.T) {
	e := NewEngine("111012", testConfig())

	// Golden cross alone: no entry.
	b0 := flatBar(0, 100)
	if evs := e.OnBar(b0, readySnap(b0), []model.Signal{sig(b0, model.GoldenCross)}); len(evs) != 0 {
		t.Fatalf("entry on partial rule: %+v", evs)
	}

	// Volume spike alone on the next bar: window is same-bar, still no entry.
	b1 := flatBar(1, 101)
	if evs := e.OnBar(b1, readySnap(b1), []model.Signal{sig(b1, model.VolumeSpike)}); len(evs) != 0 {
		t.Fatalf("entry despite lag 0: %+v", evs)
	}

	// Both kinds on one bar: enter at that bar's close.
	b2 := flatBar(2, 102)
	evs := e.OnBar(b2, readySnap(b2), []model.Signal{sig(b2, model.GoldenCross), sig(b2, model.VolumeSpike)})
	if len(evs) != 1 || evs[0].Kind != EventOpen {
		t.Fatalf("expected open event, got %+v", evs)
	}
	if e.State() != model.Long {
		t.Fatalf("state = %s, want LONG", e.State())
	}
	pos := evs[0].Position
	if pos.EntryPrice != 102 {
		t.Errorf("entry price = %v, want bar close 102", pos.EntryPrice)
	}
	if math.Abs(pos.StopLoss-102*0.95) > 1e-12 || math.Abs(pos.TakeProfit-102*1.10) > 1e-12 {
		t.Errorf("stop/take = %v/%v, want %v/%v", pos.StopLoss, pos.TakeProfit, 102*0.95, 102*1.10)
	}
}

func TestEngine_EntryLagWindow(t *testing.T) {
	cfg := testConfig()
	cfg.MaxLagBars = 3
	e := NewEngine("111012", cfg)

	b0 := flatBar(0, 100)
	e.OnBar(b0, readySnap(b0), []model.Signal{sig(b0, model.GoldenCross)})

	// Two quiet bars: the cross stays inside the 3-bar window.
	for i := 1; i <= 2; i++ {
		bi := flatBar(i, 100)
		if evs := e.OnBar(bi, readySnap(bi), nil); len(evs) != 0 {
			t.Fatalf("bar %d: unexpected events with no fresh signal: %+v", i, evs)
		}
	}

	// Spike on bar 3: cross was 3 bars ago, still within window.
	b3 := flatBar(3, 103)
	evs := e.OnBar(b3, readySnap(b3), []model.Signal{sig(b3, model.VolumeSpike)})
	if len(evs) != 1 || evs[0].Kind != EventOpen {
		t.Fatalf("expected lagged entry, got %+v", evs)
	}
}

func TestEngine_EntryLagWindowExpired(t *testing.T) {
	cfg := testConfig()
	cfg.MaxLagBars = 2
	e := NewEngine("111012", cfg)

	b0 := flatBar(0, 100)
	e.OnBar(b0, readySnap(b0), []model.Signal{sig(b0, model.GoldenCross)})
	for i := 1; i <= 2; i++ {
		bi := flatBar(i, 100)
		e.OnBar(bi, readySnap(bi), nil)
	}

	// Spike on bar 3: cross is now 3 bars back, outside the 2-bar window.
	b3 := flatBar(3, 103)
	if evs := e.OnBar(b3, readySnap(b3), []model.Signal{sig(b3, model.VolumeSpike)}); len(evs) != 0 {
		t.Fatalf("entry on expired window: %+v", evs)
	}
}

func TestEngine_StopLossPriority(t *testing.T) {
	e := NewEngine("111012", testConfig())

	// Open at 100: stop 95, take profit 110.
	b0 := flatBar(0, 100)
	e.OnBar(b0, readySnap(b0), []model.Signal{sig(b0, model.GoldenCross), sig(b0, model.VolumeSpike)})

	// The bar trips the stop (low 94) AND the take profit range (high 112)
	// AND carries a dead cross. Stop-loss wins the tie-break.
	b1 := bar(1, 100, 112, 94, 105)
	evs := e.OnBar(b1, readySnap(b1), []model.Signal{sig(b1, model.DeadCross)})
	if len(evs) != 1 || evs[0].Kind != EventClose {
		t.Fatalf("expected close event, got %+v", evs)
	}
	tr := evs[0].Trade
	if tr.ExitReason != model.ExitStopLoss {
		t.Errorf("exit reason = %s, want stop_loss", tr.ExitReason)
	}
	if tr.ExitPrice != 95 {
		t.Errorf("exit price = %v, want stop price 95", tr.ExitPrice)
	}
	if e.State() != model.Flat {
		t.Errorf("state = %s, want FLAT", e.State())
	}
	if math.Abs(tr.PnL-(-0.05)) > 1e-12 {
		t.Errorf("pnl = %v, want -0.05", tr.PnL)
	}
}

func TestEngine_TakeProfitBeforeSignalExit(t *testing.T) {
	e := NewEngine("111012", testConfig())
	b0 := flatBar(0, 100)
	e.OnBar(b0, readySnap(b0), []model.Signal{sig(b0, model.GoldenCross), sig(b0, model.VolumeSpike)})

	b1 := bar(1, 100, 111, 99, 108)
	evs := e.OnBar(b1, readySnap(b1), []model.Signal{sig(b1, model.DeadCross)})
	if len(evs) != 1 || evs[0].Trade.ExitReason != model.ExitTakeProfit {
		t.Fatalf("expected take_profit close, got %+v", evs)
	}
	if evs[0].Trade.ExitPrice != 110 {
		t.Errorf("exit price = %v, want 110", evs[0].Trade.ExitPrice)
	}
}

func TestEngine_SignalExitAtClose(t *testing.T) {
	e := NewEngine("111012", testConfig())
	b0 := flatBar(0, 100)
	e.OnBar(b0, readySnap(b0), []model.Signal{sig(b0, model.GoldenCross), sig(b0, model.VolumeSpike)})

	b1 := bar(1, 100, 103, 99, 102)
	evs := e.OnBar(b1, readySnap(b1), []model.Signal{sig(b1, model.DeadCross)})
	if len(evs) != 1 || evs[0].Trade.ExitReason != model.ExitSignal {
		t.Fatalf("expected signal_exit close, got %+v", evs)
	}
	if evs[0].Trade.ExitPrice != 102 {
		t.Errorf("exit price = %v, want bar close 102", evs[0].Trade.ExitPrice)
	}
}

func TestEngine_NeverTwoOpenPositions(t *testing.T) {
	e := NewEngine("111012", testConfig())

	both := func(b model.Bar) []model.Signal {
		return []model.Signal{sig(b, model.GoldenCross), sig(b, model.VolumeSpike)}
	}

	opens := 0
	for i := 0; i < 20; i++ {
		bi := flatBar(i, 100)
		for _, ev := range e.OnBar(bi, readySnap(bi), both(bi)) {
			if ev.Kind == EventOpen {
				opens++
				if e.State() != model.Long {
					t.Fatalf("bar %d: open event while state %s", i, e.State())
				}
			}
		}
	}
	if opens != 1 {
		t.Fatalf("entry signals every bar produced %d opens, want 1 (no pyramiding)", opens)
	}
}

func TestEngine_ReentryNextBarAfterClose(t *testing.T) {
	e := NewEngine("111012", testConfig())
	both := func(b model.Bar) []model.Signal {
		return []model.Signal{sig(b, model.GoldenCross), sig(b, model.VolumeSpike)}
	}

	b0 := flatBar(0, 100)
	e.OnBar(b0, readySnap(b0), both(b0))

	// Dead cross and fresh entry signals on the same bar: close only.
	b1 := flatBar(1, 101)
	sigs := append(both(b1), sig(b1, model.DeadCross))
	evs := e.OnBar(b1, readySnap(b1), sigs)
	if len(evs) != 1 || evs[0].Kind != EventClose {
		t.Fatalf("expected close only on exit bar, got %+v", evs)
	}

	// Next bar with full entry signals: re-entry allowed.
	b2 := flatBar(2, 102)
	evs = e.OnBar(b2, readySnap(b2), both(b2))
	if len(evs) != 1 || evs[0].Kind != EventOpen {
		t.Fatalf("expected re-entry on next bar, got %+v", evs)
	}
}

func TestEngine_CooldownBlocksReentry(t *testing.T) {
	cfg := testConfig()
	cfg.CooldownBars = 2
	e := NewEngine("111012", cfg)
	both := func(b model.Bar) []model.Signal {
		return []model.Signal{sig(b, model.GoldenCross), sig(b, model.VolumeSpike)}
	}

	b0 := flatBar(0, 100)
	e.OnBar(b0, readySnap(b0), both(b0))
	b1 := flatBar(1, 101)
	e.OnBar(b1, readySnap(b1), []model.Signal{sig(b1, model.DeadCross)})

	// Bars 2 and 3 are inside the cooldown.
	for i := 2; i <= 3; i++ {
		bi := flatBar(i, 100)
		if evs := e.OnBar(bi, readySnap(bi), both(bi)); len(evs) != 0 {
			t.Fatalf("bar %d: entry during cooldown: %+v", i, evs)
		}
	}

	b4 := flatBar(4, 100)
	if evs := e.OnBar(b4, readySnap(b4), both(b4)); len(evs) != 1 || evs[0].Kind != EventOpen {
		t.Fatalf("expected entry after cooldown, got %+v", evs)
	}
}

func TestEngine_ForceCloseAtSessionEnd(t *testing.T) {
	e := NewEngine("111012", testConfig())
	b0 := flatBar(0, 100)
	e.OnBar(b0, readySnap(b0), []model.Signal{sig(b0, model.GoldenCross), sig(b0, model.VolumeSpike)})

	last := flatBar(1, 103)
	ev := e.ForceClose(last)
	if ev == nil || ev.Trade == nil {
		t.Fatal("expected forced close event")
	}
	if ev.Trade.ExitReason != model.ExitSessionEnd {
		t.Errorf("exit reason = %s, want session_end", ev.Trade.ExitReason)
	}
	if ev.Trade.ExitPrice != 103 {
		t.Errorf("exit price = %v, want last close 103", ev.Trade.ExitPrice)
	}
	if e.ForceClose(last) != nil {
		t.Error("second force close while flat returned an event")
	}
}

func TestEngine_NoEntryBeforeWarmup(t *testing.T) {
	e := NewEngine("111012", testConfig())

	b0 := flatBar(0, 100)
	notReady := indicator.Snapshot{Symbol: "111012", TS: b0.TS, Close: 100, BarsSeen: 10, Ready: false}
	// Signals should never be produced on warm-up bars, but the engine
	// guards independently: insufficient history must not open positions.
	evs := e.OnBar(b0, notReady, []model.Signal{sig(b0, model.GoldenCross), sig(b0, model.VolumeSpike)})
	if len(evs) != 0 {
		t.Fatalf("entry before warm-up: %+v", evs)
	}
}

func TestEngine_NextOpenFill(t *testing.T) {
	cfg := testConfig()
	cfg.FillMode = FillNextOpen
	e := NewEngine("111012", cfg)

	b0 := flatBar(0, 100)
	evs := e.OnBar(b0, readySnap(b0), []model.Signal{sig(b0, model.GoldenCross), sig(b0, model.VolumeSpike)})
	if len(evs) != 0 {
		t.Fatalf("next_open mode filled on the decision bar: %+v", evs)
	}

	b1 := bar(1, 101.5, 102, 101, 101.8)
	evs = e.OnBar(b1, readySnap(b1), nil)
	if len(evs) != 1 || evs[0].Kind != EventOpen {
		t.Fatalf("expected open on next bar, got %+v", evs)
	}
	if evs[0].Position.EntryPrice != 101.5 {
		t.Errorf("entry price = %v, want next bar open 101.5", evs[0].Position.EntryPrice)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"empty entry", func(c *Config) { c.Entry = nil }, true},
		{"empty exit", func(c *Config) { c.Exit = nil }, true},
		{"unknown kind", func(c *Config) { c.Entry = []model.SignalKind{"rsi_cross"} }, true},
		{"zero stop loss", func(c *Config) { c.StopLossPct = 0 }, true},
		{"negative take profit", func(c *Config) { c.TakeProfitPct = -0.05 }, true},
		{"negative lag", func(c *Config) { c.MaxLagBars = -1 }, true},
		{"bad fill mode", func(c *Config) { c.FillMode = "vwap" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
