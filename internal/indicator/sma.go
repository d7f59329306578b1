package indicator

// SMA calculates a Simple Moving Average over a fixed rolling window.
// Uses a ring buffer with a running sum — O(1) per update.
type SMA struct {
	period int
	window []float64
	idx    int
	count  int
	sum    float64
}

// NewSMA creates a new SMA indicator with the given window.
func NewSMA(period int) *SMA {
	return &SMA{
		period: period,
		window: make([]float64, period),
	}
}

func (s *SMA) Name() string { return "SMA" }

func (s *SMA) Update(v float64) {
	s.sum -= s.window[s.idx]
	s.window[s.idx] = v
	s.sum += v
	s.idx = (s.idx + 1) % s.period
	s.count++
}

// Value returns the mean of the values seen so far, capped at the window.
func (s *SMA) Value() float64 {
	n := s.count
	if n > s.period {
		n = s.period
	}
	if n == 0 {
		return 0
	}
	return s.sum / float64(n)
}

func (s *SMA) Ready() bool { return s.count >= s.period }

func (s *SMA) Reset() {
	for i := range s.window {
		s.window[i] = 0
	}
	s.idx = 0
	s.count = 0
	s.sum = 0
}

// smaState is the serializable internal state, used for checkpoints.
type smaState struct {
	Period int       `json:"period"`
	Window []float64 `json:"window"`
	Idx    int       `json:"idx"`
	Count  int       `json:"count"`
	Sum    float64   `json:"sum"`
}

func (s *SMA) state() smaState {
	w := make([]float64, len(s.window))
	copy(w, s.window)
	return smaState{Period: s.period, Window: w, Idx: s.idx, Count: s.count, Sum: s.sum}
}

func (s *SMA) restore(st smaState) {
	s.period = st.Period
	s.window = make([]float64, st.Period)
	copy(s.window, st.Window)
	s.idx = st.Idx
	s.count = st.Count
	s.sum = st.Sum
}
