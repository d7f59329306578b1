package indicator

// MACD composes a fast and a slow close-price EMA with a signal EMA over
// the MACD line:
//
//	line      = EMA(fast) - EMA(slow)
//	signal    = EMA(signalPeriod) of line
//	histogram = line - signal
//
// The signal EMA only starts consuming once both price EMAs are seeded, so
// its warm-up stacks on top of the slow period.
type MACD struct {
	fast   *EMA
	slow   *EMA
	signal *EMA
}

// NewMACD creates a MACD indicator. The conventional periods are (12, 26, 9).
func NewMACD(fastPeriod, slowPeriod, signalPeriod int) *MACD {
	return &MACD{
		fast:   NewEMA(fastPeriod),
		slow:   NewEMA(slowPeriod),
		signal: NewEMA(signalPeriod),
	}
}

func (m *MACD) Name() string { return "MACD" }

// Update feeds the next close price.
func (m *MACD) Update(close float64) {
	m.fast.Update(close)
	m.slow.Update(close)
	if m.fast.Ready() && m.slow.Ready() {
		m.signal.Update(m.Line())
	}
}

// Line returns fast EMA - slow EMA. Zero until both EMAs are seeded.
func (m *MACD) Line() float64 {
	if !m.fast.Ready() || !m.slow.Ready() {
		return 0
	}
	return m.fast.Value() - m.slow.Value()
}

// Signal returns the EMA of the MACD line.
func (m *MACD) Signal() float64 { return m.signal.Value() }

// Histogram returns line - signal.
func (m *MACD) Histogram() float64 {
	if !m.Ready() {
		return 0
	}
	return m.Line() - m.signal.Value()
}

// Value returns the MACD line, satisfying the Indicator interface.
func (m *MACD) Value() float64 { return m.Line() }

func (m *MACD) Ready() bool { return m.signal.Ready() }

func (m *MACD) Reset() {
	m.fast.Reset()
	m.slow.Reset()
	m.signal.Reset()
}

// macdState is the serializable internal state, used for checkpoints.
type macdState struct {
	Fast   emaState `json:"fast"`
	Slow   emaState `json:"slow"`
	Signal emaState `json:"signal"`
}

func (m *MACD) state() macdState {
	return macdState{Fast: m.fast.state(), Slow: m.slow.state(), Signal: m.signal.state()}
}

func (m *MACD) restore(st macdState) {
	m.fast.restore(st.Fast)
	m.slow.restore(st.Slow)
	m.signal.restore(st.Signal)
}
