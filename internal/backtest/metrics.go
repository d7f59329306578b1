package backtest

import (
	"encoding/json"
	"math"
	"strconv"

	"bondscan/internal/model"
)

// MetricValue is a metric that may be mathematically undefined (no trades,
// zero variance) or infinite (profit factor with zero gross loss). The
// tagged form keeps NaN and Inf out of reports and serialized records:
// undefined marshals as JSON null, infinite as the string "inf".
type MetricValue struct {
	Value    float64
	Defined  bool
	Infinite bool
}

func Defined(v float64) MetricValue { return MetricValue{Value: v, Defined: true} }
func Undefined() MetricValue        { return MetricValue{} }
func InfiniteValue() MetricValue    { return MetricValue{Defined: true, Infinite: true} }

func (m MetricValue) String() string {
	switch {
	case !m.Defined:
		return "n/a"
	case m.Infinite:
		return "inf"
	default:
		return strconv.FormatFloat(m.Value, 'f', 4, 64)
	}
}

func (m MetricValue) MarshalJSON() ([]byte, error) {
	switch {
	case !m.Defined:
		return []byte("null"), nil
	case m.Infinite:
		return []byte(`"inf"`), nil
	default:
		return json.Marshal(m.Value)
	}
}

func (m *MetricValue) UnmarshalJSON(data []byte) error {
	switch string(data) {
	case "null":
		*m = Undefined()
		return nil
	case `"inf"`:
		*m = InfiniteValue()
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*m = Defined(v)
	return nil
}

// Metrics is the summary computed over a backtest's trade log.
type Metrics struct {
	TradeCount  int     `json:"trade_count"`
	Wins        int     `json:"wins"`
	Losses      int     `json:"losses"`
	GrossProfit float64 `json:"gross_profit"`
	GrossLoss   float64 `json:"gross_loss"` // reported positive

	WinRate      MetricValue `json:"win_rate"`
	TotalReturn  MetricValue `json:"total_return"` // sum of per-trade fractional returns
	ProfitFactor MetricValue `json:"profit_factor"`
	MaxDrawdown  MetricValue `json:"max_drawdown"`
	Sharpe       MetricValue `json:"sharpe_ratio"`
}

// defaultAnnualization annualizes per-trade Sharpe by trading days per year.
const defaultAnnualization = 252

// ComputeMetrics evaluates the trade log. Trades must be in exit-time
// order (the simulator produces them that way). The equity curve compounds
// multiplicatively from initialCapital; total_return stays a plain sum of
// fractional returns so the two are reported on documented, separate bases.
func ComputeMetrics(trades []*model.Trade, initialCapital float64) Metrics {
	m := Metrics{TradeCount: len(trades)}

	var sum float64
	for _, t := range trades {
		sum += t.PnL
		if t.PnL > 0 {
			m.Wins++
			m.GrossProfit += t.PnL
		} else if t.PnL < 0 {
			m.Losses++
			m.GrossLoss += -t.PnL
		}
	}
	m.TotalReturn = Defined(sum)

	if m.TradeCount > 0 {
		m.WinRate = Defined(float64(m.Wins) / float64(m.TradeCount))
	} else {
		m.WinRate = Undefined()
	}

	switch {
	case m.GrossLoss > 0:
		m.ProfitFactor = Defined(m.GrossProfit / m.GrossLoss)
	case m.GrossProfit > 0:
		m.ProfitFactor = InfiniteValue()
	default:
		m.ProfitFactor = Undefined()
	}

	m.MaxDrawdown = Defined(MaxDrawdown(EquityCurve(trades, initialCapital)))
	m.Sharpe = sharpe(trades)
	return m
}

// EquityCurve applies each trade's fractional return multiplicatively in
// exit-time order, starting from initialCapital. The curve has
// len(trades)+1 points.
func EquityCurve(trades []*model.Trade, initialCapital float64) []float64 {
	curve := make([]float64, 0, len(trades)+1)
	equity := initialCapital
	curve = append(curve, equity)
	for _, t := range trades {
		equity *= 1 + t.PnL
		curve = append(curve, equity)
	}
	return curve
}

// MaxDrawdown returns the largest peak-to-trough decline of the curve as a
// fraction of the peak. Zero for empty, flat, or monotonically rising
// curves.
func MaxDrawdown(curve []float64) float64 {
	var peak, maxDD float64
	for _, v := range curve {
		if v > peak {
			peak = v
		}
		if peak > 0 {
			if dd := (peak - v) / peak; dd > maxDD {
				maxDD = dd
			}
		}
	}
	return maxDD
}

// sharpe computes the annualized per-trade Sharpe ratio with a sample
// standard deviation. Undefined for fewer than 2 trades or zero variance.
func sharpe(trades []*model.Trade) MetricValue {
	n := len(trades)
	if n < 2 {
		return Undefined()
	}

	var mean float64
	for _, t := range trades {
		mean += t.PnL
	}
	mean /= float64(n)

	var sq float64
	for _, t := range trades {
		d := t.PnL - mean
		sq += d * d
	}
	variance := sq / float64(n-1)
	if variance == 0 {
		return Undefined()
	}

	return Defined(mean / math.Sqrt(variance) * math.Sqrt(defaultAnnualization))
}
