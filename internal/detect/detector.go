// Package detect derives discrete trading signals (golden cross, dead
// cross, volume spike) from consecutive indicator snapshots.
//
// The detector is stateless given the previous and current snapshot; it
// emits each qualifying kind independently and leaves composition into
// entry/exit decisions to the strategy engine.
package detect

import (
	"bondscan/internal/indicator"
	"bondscan/internal/model"
)

// DefaultVolumeSpikeRatio is the volume multiplier that qualifies as a
// spike when none is configured.
const DefaultVolumeSpikeRatio = 2.0

// Detector holds the detection thresholds.
type Detector struct {
	// VolumeSpikeRatio is the minimum volume/average ratio for a
	// volume_spike signal. Zero falls back to DefaultVolumeSpikeRatio.
	VolumeSpikeRatio float64
}

// New creates a detector with the given volume spike threshold.
func New(volumeSpikeRatio float64) *Detector {
	if volumeSpikeRatio <= 0 {
		volumeSpikeRatio = DefaultVolumeSpikeRatio
	}
	return &Detector{VolumeSpikeRatio: volumeSpikeRatio}
}

// Eval compares the previous and current snapshots and returns the signals
// produced by this bar transition. Both snapshots must be marked ready —
// warm-up bars never produce signals. A single bar may yield several kinds
// (e.g. golden cross and volume spike together); golden and dead cross are
// mutually exclusive by construction since they require opposite sign
// changes of the histogram.
func (d *Detector) Eval(prev, cur indicator.Snapshot) []model.Signal {
	if !cur.Ready {
		return nil
	}

	var out []model.Signal

	emit := func(kind model.SignalKind) {
		out = append(out, model.Signal{
			Kind:        kind,
			Symbol:      cur.Symbol,
			TS:          cur.TS,
			Price:       cur.Close,
			MACD:        cur.MACD,
			MACDSignal:  cur.MACDSignal,
			Histogram:   cur.Histogram,
			VolumeRatio: cur.VolumeRatio,
		})
	}

	// Crosses need a ready previous bar: the sign change is what counts,
	// never the histogram magnitude alone.
	if prev.Ready {
		if cur.Histogram > 0 && prev.Histogram <= 0 {
			emit(model.GoldenCross)
		}
		if cur.Histogram < 0 && prev.Histogram >= 0 {
			emit(model.DeadCross)
		}
	}

	if cur.VolumeRatio >= d.VolumeSpikeRatio {
		emit(model.VolumeSpike)
	}

	return out
}
