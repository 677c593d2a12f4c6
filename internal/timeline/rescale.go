package timeline

import "github.com/videoforge/videoforge/internal/plan"

// RescaleVideoSegments redistributes the background clips over a new total
// duration. Each clip keeps its share of the clips' combined planned
// duration; start times are recomputed so the clips stay contiguous. A zero
// planned total falls back to an even split.
func RescaleVideoSegments(tv *plan.TextToVideoPlan, newTotal float64) {
	if tv == nil || len(tv.Segments) == 0 || newTotal <= 0 {
		return
	}
	var plannedTotal float64
	for _, seg := range tv.Segments {
		plannedTotal += seg.Duration
	}
	var cursor float64
	for i := range tv.Segments {
		seg := &tv.Segments[i]
		share := 1.0 / float64(len(tv.Segments))
		if plannedTotal > 0 {
			share = seg.Duration / plannedTotal
		}
		seg.StartTime = cursor
		seg.Duration = share * newTotal
		cursor += seg.Duration
	}
	// Absorb float accumulation error into the last segment so the clips
	// cover exactly the new total.
	last := &tv.Segments[len(tv.Segments)-1]
	last.Duration += newTotal - cursor
	if last.Duration < 0 {
		last.Duration = 0
	}
}

// ClampComposition trims layers, transitions and effects that overrun the
// new total duration and drops the ones that start past it entirely.
func ClampComposition(vc *plan.VideoComposition, total float64) {
	if vc == nil || total <= 0 {
		return
	}
	vc.Timeline.TotalDuration = total

	layers := vc.Layers[:0]
	for _, l := range vc.Layers {
		if l.StartTime >= total {
			continue
		}
		if l.EndTime() > total {
			l.Duration = total - l.StartTime
		}
		layers = append(layers, l)
	}
	vc.Layers = layers
	vc.Timeline.LayerCount = len(layers)

	transitions := vc.Transitions[:0]
	for _, tr := range vc.Transitions {
		if tr.StartTime >= total {
			continue
		}
		if tr.StartTime+tr.Duration > total {
			tr.Duration = total - tr.StartTime
		}
		transitions = append(transitions, tr)
	}
	vc.Transitions = transitions

	effects := vc.Effects[:0]
	for _, ef := range vc.Effects {
		if ef.StartTime >= total {
			continue
		}
		if ef.StartTime+ef.Duration > total {
			ef.Duration = total - ef.StartTime
		}
		effects = append(effects, ef)
	}
	vc.Effects = effects
}
