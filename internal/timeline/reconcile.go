// Package timeline recomputes plan timings from measured audio durations.
// Reconciliation is a pure function of its inputs so the same script always
// yields the same timeline.
package timeline

import "math"

// Entry is one narration segment's timing before and after reconciliation.
type Entry struct {
	SegmentID       string
	PlannedStart    float64
	PlannedDuration float64
	// ActualDuration is nil for segments that have not been synthesized.
	ActualDuration  *float64
	ReconciledStart float64
}

// EffectiveDuration returns the measured duration when known, the planned
// one otherwise.
func (e Entry) EffectiveDuration() float64 {
	if e.ActualDuration != nil {
		return *e.ActualDuration
	}
	return e.PlannedDuration
}

// Result is the reconciled timeline plus its drift against the plan.
type Result struct {
	Entries       []Entry
	TotalDuration float64
	PlannedTotal  float64
	// Drift is the absolute difference between reconciled and planned totals.
	Drift         float64
	DriftExceeded bool
}

// Reconcile lays the segments back to back in their given order. The first
// segment always starts at zero; each following start is the previous start
// plus the previous segment's effective duration. A drift beyond tolerance
// sets DriftExceeded so callers can warn; it never fails the run.
func Reconcile(entries []Entry, tolerance float64) Result {
	out := Result{Entries: make([]Entry, len(entries))}
	copy(out.Entries, entries)

	var cursor float64
	for i := range out.Entries {
		out.Entries[i].ReconciledStart = cursor
		cursor += out.Entries[i].EffectiveDuration()
		out.PlannedTotal += out.Entries[i].PlannedDuration
	}
	out.TotalDuration = cursor
	out.Drift = math.Abs(out.TotalDuration - out.PlannedTotal)
	out.DriftExceeded = out.Drift > tolerance
	return out
}
