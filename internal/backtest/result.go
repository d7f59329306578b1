package backtest

import (
	"fmt"
	"strings"
	"time"

	"bondscan/internal/model"
	"bondscan/internal/strategy"
)

// Result is the structured outcome of one backtest run: the full trade log
// plus summary metrics. It serializes to JSON for the run store and
// renders as a plain-text report for the CLI.
type Result struct {
	RunID    string          `json:"run_id"`
	Symbol   string          `json:"symbol"`
	Strategy strategy.Config `json:"strategy"`

	Start    time.Time `json:"start"`
	End      time.Time `json:"end"`
	BarCount int       `json:"bar_count"`

	Trades  []*model.Trade `json:"trades"`
	Metrics Metrics        `json:"metrics"`
}

// Report renders a human-readable summary.
func (r *Result) Report() string {
	var b strings.Builder

	fmt.Fprintf(&b, "Backtest %s  strategy=%s\n", r.Symbol, r.Strategy.Name)
	fmt.Fprintf(&b, "  period        %s .. %s (%d bars)\n",
		r.Start.Format("2006-01-02 15:04"), r.End.Format("2006-01-02 15:04"), r.BarCount)
	fmt.Fprintf(&b, "  trades        %d (%d wins / %d losses)\n",
		r.Metrics.TradeCount, r.Metrics.Wins, r.Metrics.Losses)
	fmt.Fprintf(&b, "  win rate      %s\n", pct(r.Metrics.WinRate))
	fmt.Fprintf(&b, "  total return  %s\n", pct(r.Metrics.TotalReturn))
	fmt.Fprintf(&b, "  profit factor %s\n", r.Metrics.ProfitFactor)
	fmt.Fprintf(&b, "  max drawdown  %s\n", pct(r.Metrics.MaxDrawdown))
	fmt.Fprintf(&b, "  sharpe        %s\n", r.Metrics.Sharpe)

	if len(r.Trades) > 0 {
		b.WriteString("\n  trades:\n")
		for _, t := range r.Trades {
			fmt.Fprintf(&b, "    %s  %s -> %s  %.3f -> %.3f  %+.2f%%  %s\n",
				t.Symbol,
				t.EntryTime.Format("01-02 15:04"), t.ExitTime.Format("01-02 15:04"),
				t.EntryPrice, t.ExitPrice, t.PnL*100, t.ExitReason)
		}
	}
	return b.String()
}

func pct(m MetricValue) string {
	if !m.Defined {
		return "n/a"
	}
	if m.Infinite {
		return "inf"
	}
	return fmt.Sprintf("%.2f%%", m.Value*100)
}
