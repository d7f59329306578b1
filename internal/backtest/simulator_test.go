package backtest

import (
	"errors"
	"testing"
	"time"

	"bondscan/internal/feed"
	"bondscan/internal/markethours"
	"bondscan/internal/model"
	"bondscan/internal/strategy"
)

// flatBars produces n gap-free flat bars (O=H=L=C) starting at the morning
// open of 2025-06-03, a regular trading day.
func flatBars(n int, close float64, volume int64) []model.Bar {
	bars := make([]model.Bar, n)
	ts := time.Date(2025, 6, 3, 9, 30, 0, 0, markethours.CST)
	for i := range bars {
		bars[i] = model.Bar{
			Symbol: "113672", TS: ts,
			Open: close, High: close, Low: close, Close: close,
			Volume: volume,
		}
		ts = markethours.NextBarTime(ts, time.Minute)
	}
	return bars
}

// The canonical entry scenario: 35 flat warm-up bars, then a bar where the
// histogram flips positive and volume spikes. Entry rule golden_cross +
// volume_spike with lag 0 must open LONG at that bar's close.
func TestRun_EntryOnGoldenCrossWithVolumeSpike(t *testing.T) {
	bars := flatBars(37, 100, 1000)
	bars[35].Open, bars[35].High, bars[35].Low, bars[35].Close = 105, 105, 105, 105
	bars[35].Volume = 5000
	// Bar 36 dips through the 2% stop (105 * 0.98 = 102.9).
	bars[36].Open, bars[36].High, bars[36].Low, bars[36].Close = 104, 104, 101, 102

	res, err := Run("113672", strategy.Default(), bars, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Trades) != 1 {
		t.Fatalf("got %d trades, want 1", len(res.Trades))
	}

	tr := res.Trades[0]
	if tr.EntryPrice != 105 {
		t.Errorf("entry price = %v, want 105 (signal bar close)", tr.EntryPrice)
	}
	if !tr.EntryTime.Equal(bars[35].TS) {
		t.Errorf("entry time = %v, want %v", tr.EntryTime, bars[35].TS)
	}
	if tr.ExitReason != model.ExitStopLoss {
		t.Errorf("exit reason = %v, want stop_loss", tr.ExitReason)
	}
	if tr.ExitPrice != 105*0.98 {
		t.Errorf("exit price = %v, want %v", tr.ExitPrice, 105*0.98)
	}
}

func TestRun_NoEntryDuringWarmup(t *testing.T) {
	// Volume spikes and price jumps inside the warm-up window must not trade.
	bars := flatBars(35, 100, 1000)
	bars[20].Close = 110
	bars[20].High = 110
	bars[20].Volume = 9000

	res, err := Run("113672", strategy.Default(), bars, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Trades) != 0 {
		t.Fatalf("got %d trades during warm-up, want 0", len(res.Trades))
	}
}

func TestRun_ForceCloseAtEndOfHistory(t *testing.T) {
	bars := flatBars(40, 100, 1000)
	bars[35].Open, bars[35].High, bars[35].Low, bars[35].Close = 105, 105, 105, 105
	bars[35].Volume = 5000
	// Later bars stay at 105: no stop, no take-profit, no dead cross by the
	// end of the slice, so the open position is closed with the final bar.
	for i := 36; i < 40; i++ {
		bars[i].Open, bars[i].High, bars[i].Low, bars[i].Close = 105, 105, 105, 105
	}

	res, err := Run("113672", strategy.Default(), bars, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Trades) != 1 {
		t.Fatalf("got %d trades, want 1", len(res.Trades))
	}
	tr := res.Trades[0]
	if tr.ExitReason != model.ExitSessionEnd {
		t.Errorf("exit reason = %v, want session_end", tr.ExitReason)
	}
	if !tr.ExitTime.Equal(bars[39].TS) {
		t.Errorf("exit time = %v, want last bar %v", tr.ExitTime, bars[39].TS)
	}
}

func TestRun_TradeCountMatchesClosedEntries(t *testing.T) {
	// Repeating jump/dip pattern after warm-up opens and closes several
	// positions; every open must account for exactly one trade.
	bars := flatBars(80, 100, 1000)
	for i := 35; i < 80; i += 6 {
		bars[i].Open, bars[i].High, bars[i].Low, bars[i].Close = 105, 105, 105, 105
		bars[i].Volume = 9000
		if i+1 < 80 {
			bars[i+1].Open, bars[i+1].High, bars[i+1].Low, bars[i+1].Close = 103, 103, 101, 102
		}
	}

	res, err := Run("113672", strategy.Default(), bars, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Trades) == 0 {
		t.Fatal("expected at least one trade")
	}
	for _, tr := range res.Trades {
		if tr.EntryTime.IsZero() || tr.ExitTime.IsZero() {
			t.Errorf("trade missing entry or exit: %+v", tr)
		}
		if tr.ExitTime.Before(tr.EntryTime) {
			t.Errorf("exit before entry: %+v", tr)
		}
	}
	if got := res.Metrics.TradeCount; got != len(res.Trades) {
		t.Errorf("metrics trade count %d != trade log length %d", got, len(res.Trades))
	}
}

func TestRun_InsufficientHistory(t *testing.T) {
	_, err := Run("113672", strategy.Default(), flatBars(10, 100, 1000), Options{})
	var ih *InsufficientHistoryError
	if !errors.As(err, &ih) {
		t.Fatalf("expected InsufficientHistoryError, got %v", err)
	}
	if ih.Have != 10 || ih.Need != 35 {
		t.Errorf("error = %+v, want have=10 need=35", ih)
	}
}

func TestRun_FailsFastOnGap(t *testing.T) {
	bars := flatBars(40, 100, 1000)
	bars = append(bars[:20], bars[21:]...) // drop one bar mid-sequence

	_, err := Run("113672", strategy.Default(), bars, Options{})
	var gap *feed.GapError
	if !errors.As(err, &gap) {
		t.Fatalf("expected GapError, got %v", err)
	}
}

func TestRun_RejectsInvalidConfig(t *testing.T) {
	cfg := strategy.Default()
	cfg.Entry = nil
	if _, err := Run("113672", cfg, flatBars(40, 100, 1000), Options{}); err == nil {
		t.Fatal("expected error for empty entry rule")
	}
}

func TestRun_DeterministicAcrossInvocations(t *testing.T) {
	bars := flatBars(60, 100, 1000)
	bars[35].Close, bars[35].High, bars[35].Volume = 105, 105, 9000

	a, err := Run("113672", strategy.Default(), bars, Options{})
	if err != nil {
		t.Fatal(err)
	}
	b, err := Run("113672", strategy.Default(), bars, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if len(a.Trades) != len(b.Trades) {
		t.Fatalf("trade counts differ: %d vs %d", len(a.Trades), len(b.Trades))
	}
	for i := range a.Trades {
		if a.Trades[i].PnL != b.Trades[i].PnL || !a.Trades[i].ExitTime.Equal(b.Trades[i].ExitTime) {
			t.Errorf("trade %d differs between runs", i)
		}
	}
}
