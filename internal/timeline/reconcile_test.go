package timeline

import (
	"math"
	"testing"

	"github.com/videoforge/videoforge/internal/plan"
)

func f64(v float64) *float64 { return &v }

func near(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestReconcileLaysSegmentsBackToBack(t *testing.T) {
	entries := []Entry{
		{SegmentID: "seg_001", PlannedDuration: 2.0, ActualDuration: f64(2.4)},
		{SegmentID: "seg_002", PlannedStart: 2.0, PlannedDuration: 3.0, ActualDuration: f64(2.8)},
		{SegmentID: "seg_003", PlannedStart: 5.0, PlannedDuration: 2.5, ActualDuration: f64(2.5)},
	}
	res := Reconcile(entries, 0.5)

	wantStarts := []float64{0, 2.4, 5.2}
	for i, want := range wantStarts {
		if !near(res.Entries[i].ReconciledStart, want) {
			t.Fatalf("entry %d start %.3f, want %.3f", i, res.Entries[i].ReconciledStart, want)
		}
	}
	if !near(res.TotalDuration, 7.7) {
		t.Fatalf("total %.3f, want 7.7", res.TotalDuration)
	}
	if !near(res.PlannedTotal, 7.5) {
		t.Fatalf("planned total %.3f, want 7.5", res.PlannedTotal)
	}
	if !near(res.Drift, 0.2) {
		t.Fatalf("drift %.3f, want 0.2", res.Drift)
	}
	if res.DriftExceeded {
		t.Fatal("drift 0.2 flagged against tolerance 0.5")
	}
}

func TestReconcileFlagsExcessiveDrift(t *testing.T) {
	entries := []Entry{
		{SegmentID: "seg_001", PlannedDuration: 2.0, ActualDuration: f64(4.0)},
	}
	res := Reconcile(entries, 0.5)
	if !res.DriftExceeded {
		t.Fatalf("drift %.3f not flagged", res.Drift)
	}
}

func TestReconcileFallsBackToPlannedDurations(t *testing.T) {
	entries := []Entry{
		{SegmentID: "seg_001", PlannedDuration: 2.0},
		{SegmentID: "seg_002", PlannedDuration: 3.0, ActualDuration: f64(3.5)},
	}
	res := Reconcile(entries, 1.0)
	if !near(res.Entries[1].ReconciledStart, 2.0) {
		t.Fatalf("start %.3f, want planned fallback 2.0", res.Entries[1].ReconciledStart)
	}
	if !near(res.TotalDuration, 5.5) {
		t.Fatalf("total %.3f, want 5.5", res.TotalDuration)
	}
}

func TestReconcileIsDeterministicAndPure(t *testing.T) {
	entries := []Entry{
		{SegmentID: "seg_001", PlannedDuration: 1.5, ActualDuration: f64(1.7)},
		{SegmentID: "seg_002", PlannedDuration: 2.5, ActualDuration: f64(2.2)},
	}
	first := Reconcile(entries, 0.5)
	second := Reconcile(entries, 0.5)
	for i := range first.Entries {
		if first.Entries[i].ReconciledStart != second.Entries[i].ReconciledStart {
			t.Fatal("reconciliation is not deterministic")
		}
	}
	if entries[1].ReconciledStart != 0 {
		t.Fatal("Reconcile mutated its input")
	}
}

func TestReconcileEmptyInput(t *testing.T) {
	res := Reconcile(nil, 0.5)
	if res.TotalDuration != 0 || res.DriftExceeded {
		t.Fatalf("unexpected result for empty input: %+v", res)
	}
}

func TestRescaleVideoSegmentsKeepsProportions(t *testing.T) {
	tv := &plan.TextToVideoPlan{Segments: []plan.VideoSegment{
		{ID: "bg_001", Duration: 4.0},
		{ID: "bg_002", StartTime: 4.0, Duration: 6.0},
	}}
	RescaleVideoSegments(tv, 7.7)

	if !near(tv.Segments[0].Duration, 3.08) {
		t.Fatalf("segment 0 duration %.4f, want 3.08", tv.Segments[0].Duration)
	}
	if !near(tv.Segments[1].StartTime, 3.08) {
		t.Fatalf("segment 1 start %.4f, want 3.08", tv.Segments[1].StartTime)
	}
	total := tv.Segments[0].Duration + tv.Segments[1].Duration
	if !near(total, 7.7) {
		t.Fatalf("segments sum to %.6f, want exactly 7.7", total)
	}
}

func TestRescaleVideoSegmentsSharesIgnoreStaleMetaTotal(t *testing.T) {
	// Two equal clips must split the new total evenly no matter what the
	// plan's meta total claimed before reconciliation.
	tv := &plan.TextToVideoPlan{Segments: []plan.VideoSegment{
		{ID: "bg_001", Duration: 4.0},
		{ID: "bg_002", StartTime: 4.0, Duration: 4.0},
	}}
	RescaleVideoSegments(tv, 7.7)

	if !near(tv.Segments[0].Duration, 3.85) || !near(tv.Segments[1].Duration, 3.85) {
		t.Fatalf("want 3.85 each, got %.4f and %.4f",
			tv.Segments[0].Duration, tv.Segments[1].Duration)
	}
	if !near(tv.Segments[1].StartTime, 3.85) {
		t.Fatalf("segment 1 start %.4f, want 3.85", tv.Segments[1].StartTime)
	}
}

func TestRescaleVideoSegmentsEvenSplitWhenUnplanned(t *testing.T) {
	tv := &plan.TextToVideoPlan{Segments: []plan.VideoSegment{
		{ID: "bg_001"},
		{ID: "bg_002"},
	}}
	RescaleVideoSegments(tv, 8.0)
	if !near(tv.Segments[0].Duration, 4.0) || !near(tv.Segments[1].Duration, 4.0) {
		t.Fatalf("expected even split, got %.2f and %.2f",
			tv.Segments[0].Duration, tv.Segments[1].Duration)
	}
}

func TestClampCompositionTrimsAndDropsLayers(t *testing.T) {
	vc := &plan.VideoComposition{
		Timeline: plan.CompositionTimeline{TotalDuration: 10.0, LayerCount: 3},
		Layers: []plan.Layer{
			{Type: plan.LayerVideo, Path: "a.mp4", StartTime: 0, Duration: 5.0},
			{Type: plan.LayerAudio, Path: "b.mp3", StartTime: 4.0, Duration: 5.0},
			{Type: plan.LayerImage, Path: "c.png", StartTime: 9.0, Duration: 2.0},
		},
		Transitions: []plan.Transition{
			{Type: "fade", StartTime: 6.5, Duration: 2.0},
		},
	}
	ClampComposition(vc, 7.7)

	if !near(vc.Timeline.TotalDuration, 7.7) {
		t.Fatalf("total %.3f, want 7.7", vc.Timeline.TotalDuration)
	}
	if len(vc.Layers) != 2 {
		t.Fatalf("got %d layers, want the layer past the total dropped", len(vc.Layers))
	}
	if vc.Timeline.LayerCount != 2 {
		t.Fatalf("layer count %d, want 2", vc.Timeline.LayerCount)
	}
	if !near(vc.Layers[1].EndTime(), 7.7) {
		t.Fatalf("overrunning layer ends at %.3f, want trimmed to 7.7", vc.Layers[1].EndTime())
	}
	if !near(vc.Transitions[0].Duration, 1.2) {
		t.Fatalf("transition duration %.3f, want trimmed to 1.2", vc.Transitions[0].Duration)
	}
}
