package indicator

import (
	"encoding/json"
	"fmt"
	"time"
)

// State serializes an engine's full internal state for checkpoint
// persistence, so a restarted scanner can resume a session without
// replaying the whole warm-up prefix.
type State struct {
	Symbol   string    `json:"symbol"`
	Config   Config    `json:"config"`
	BarsSeen int       `json:"bars_seen"`
	LastTS   time.Time `json:"last_ts"` // timestamp of the last consumed bar
	MACD     macdState `json:"macd"`
	VolSMA   smaState  `json:"vol_sma"`
}

// State captures the engine's current internal state.
func (e *Engine) State() State {
	return State{
		Symbol:   e.symbol,
		Config:   e.cfg,
		BarsSeen: e.barsSeen,
		LastTS:   e.lastTS,
		MACD:     e.macd.state(),
		VolSMA:   e.volSMA.state(),
	}
}

// Restore rebuilds an engine from a previously captured state.
func Restore(st State) (*Engine, error) {
	if st.Symbol == "" {
		return nil, fmt.Errorf("indicator: restore: empty symbol")
	}
	e := NewEngine(st.Symbol, st.Config)
	if st.VolSMA.Period != e.cfg.VolumeWindow {
		return nil, fmt.Errorf("indicator: restore %s: volume window mismatch (state=%d config=%d)",
			st.Symbol, st.VolSMA.Period, e.cfg.VolumeWindow)
	}
	e.barsSeen = st.BarsSeen
	e.lastTS = st.LastTS
	e.macd.restore(st.MACD)
	e.volSMA.restore(st.VolSMA)
	return e, nil
}

// Marshal encodes the state as JSON for storage.
func (s State) Marshal() ([]byte, error) {
	return json.Marshal(s)
}

// UnmarshalState decodes a stored JSON state.
func UnmarshalState(data []byte) (State, error) {
	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		return State{}, fmt.Errorf("indicator: decode state: %w", err)
	}
	return st, nil
}
