package indicator

// EMA calculates an Exponential Moving Average.
// O(1) per update — no window storage needed.
//
// Seeding: the first `period` values accumulate into a simple average,
// which becomes the EMA value at bar `period`. Later values apply the
// standard recurrence ema = v*k + ema_prev*(1-k) with k = 2/(period+1).
// Alternate seedings (e.g. pandas ewm starting from the first value)
// produce different early values, so this convention is load-bearing for
// reproducing signal timestamps.
type EMA struct {
	period     int
	multiplier float64
	current    float64
	count      int
	sum        float64
}

// NewEMA creates a new EMA indicator with the given period.
func NewEMA(period int) *EMA {
	return &EMA{
		period:     period,
		multiplier: 2.0 / float64(period+1),
	}
}

func (e *EMA) Name() string { return "EMA" }

func (e *EMA) Update(v float64) {
	e.count++

	if e.count <= e.period {
		// Accumulate for the initial SMA seed
		e.sum += v
		if e.count == e.period {
			e.current = e.sum / float64(e.period)
		}
		return
	}

	e.current = (v * e.multiplier) + (e.current * (1 - e.multiplier))
}

func (e *EMA) Value() float64 { return e.current }
func (e *EMA) Ready() bool    { return e.count >= e.period }

func (e *EMA) Reset() {
	e.current = 0
	e.count = 0
	e.sum = 0
}

// emaState is the serializable internal state, used for checkpoints.
type emaState struct {
	Period  int     `json:"period"`
	Current float64 `json:"current"`
	Count   int     `json:"count"`
	Sum     float64 `json:"sum"`
}

func (e *EMA) state() emaState {
	return emaState{Period: e.period, Current: e.current, Count: e.count, Sum: e.sum}
}

func (e *EMA) restore(st emaState) {
	e.period = st.Period
	e.multiplier = 2.0 / float64(st.Period+1)
	e.current = st.Current
	e.count = st.Count
	e.sum = st.Sum
}
