package sqlite

import (
	"path/filepath"
	"testing"
	"time"

	"bondscan/internal/model"
)

func openTestWriter(t *testing.T) (*Writer, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bondscan.db")
	w, err := New(WriterConfig{DBPath: path})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { w.Close() })
	return w, path
}

func TestWriter_BarsRoundTrip(t *testing.T) {
	w, path := openTestWriter(t)

	base := time.Date(2025, 6, 3, 1, 30, 0, 0, time.UTC)
	bars := []model.Bar{
		{Symbol: "113672", TS: base, Open: 100, High: 100.5, Low: 99.8, Close: 100.2, Volume: 1200},
		{Symbol: "113672", TS: base.Add(time.Minute), Open: 100.2, High: 100.6, Low: 100.1, Close: 100.4, Volume: 900},
		{Symbol: "123089", TS: base, Open: 85, High: 85.2, Low: 84.9, Close: 85.1, Volume: 300},
	}
	if err := w.SaveBars(bars); err != nil {
		t.Fatal(err)
	}

	r, err := NewReader(path)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	got, err := r.ReadBars("113672", base, time.Time{})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d bars, want 2", len(got))
	}
	if !got[0].TS.Equal(base) || got[0].Close != 100.2 || got[0].Volume != 1200 {
		t.Errorf("first bar = %+v", got[0])
	}
	if !got[1].TS.After(got[0].TS) {
		t.Error("bars not in ascending timestamp order")
	}

	last, err := w.LastBarTS("113672")
	if err != nil {
		t.Fatal(err)
	}
	if !last.Equal(base.Add(time.Minute)) {
		t.Errorf("last ts = %v, want %v", last, base.Add(time.Minute))
	}
}

func TestWriter_UpsertReplacesBar(t *testing.T) {
	w, path := openTestWriter(t)
	ts := time.Date(2025, 6, 3, 1, 30, 0, 0, time.UTC)

	bar := model.Bar{Symbol: "113672", TS: ts, Open: 100, High: 100, Low: 100, Close: 100, Volume: 10}
	if err := w.SaveBars([]model.Bar{bar}); err != nil {
		t.Fatal(err)
	}
	bar.Close = 101
	if err := w.SaveBars([]model.Bar{bar}); err != nil {
		t.Fatal(err)
	}

	r, _ := NewReader(path)
	defer r.Close()
	got, err := r.ReadBars("113672", ts, ts)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Close != 101 {
		t.Fatalf("upsert failed: %+v", got)
	}
}

func TestWriter_TradesAndRuns(t *testing.T) {
	w, path := openTestWriter(t)

	trade := &model.Trade{
		ID:         model.NewID(),
		Symbol:     "113672",
		EntryTime:  time.Date(2025, 6, 3, 1, 45, 0, 0, time.UTC),
		EntryPrice: 105,
		ExitTime:   time.Date(2025, 6, 3, 2, 10, 0, 0, time.UTC),
		ExitPrice:  102.9,
		ExitReason: model.ExitStopLoss,
		PnL:        -0.02,
	}
	if err := w.SaveTrade(trade, "run-1"); err != nil {
		t.Fatal(err)
	}

	type runDoc struct {
		Symbol string  `json:"symbol"`
		Total  float64 `json:"total"`
	}
	if err := w.SaveRun("run-1", "113672", "macd-t0", runDoc{Symbol: "113672", Total: -0.02}); err != nil {
		t.Fatal(err)
	}

	r, _ := NewReader(path)
	defer r.Close()

	trades, err := r.ReadTrades("113672", "run-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(trades) != 1 {
		t.Fatalf("got %d trades, want 1", len(trades))
	}
	got := trades[0]
	if got.ID != trade.ID || got.ExitReason != model.ExitStopLoss || got.PnL != -0.02 {
		t.Errorf("trade round trip: %+v", got)
	}
	if !got.EntryTime.Equal(trade.EntryTime) {
		t.Errorf("entry time = %v, want %v", got.EntryTime, trade.EntryTime)
	}

	var doc runDoc
	if err := r.ReadRun("run-1", &doc); err != nil {
		t.Fatal(err)
	}
	if doc.Symbol != "113672" || doc.Total != -0.02 {
		t.Errorf("run round trip: %+v", doc)
	}
}

func TestWriter_IndicatorStateCheckpoint(t *testing.T) {
	w, path := openTestWriter(t)

	if err := w.SaveIndicatorState("113672", []byte(`{"bars_seen":40}`)); err != nil {
		t.Fatal(err)
	}
	// Second save replaces the first.
	if err := w.SaveIndicatorState("113672", []byte(`{"bars_seen":41}`)); err != nil {
		t.Fatal(err)
	}

	r, _ := NewReader(path)
	defer r.Close()

	data, err := r.ReadIndicatorState("113672")
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != `{"bars_seen":41}` {
		t.Errorf("state = %s, want latest checkpoint", data)
	}

	missing, err := r.ReadIndicatorState("123089")
	if err != nil {
		t.Fatal(err)
	}
	if missing != nil {
		t.Errorf("expected nil for missing symbol, got %s", missing)
	}
}
