// Package timeline reconciles planned timings with the measured narration
// durations and rescales the downstream sections to match.
package timeline

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/videoforge/videoforge/internal/plan"
	"github.com/videoforge/videoforge/internal/step"
	tl "github.com/videoforge/videoforge/internal/timeline"
)

const stepID = "timeline"

// Step recomputes the plan timeline from measured audio.
type Step struct{}

// Register adds the step factory to the registry.
func Register(reg *step.Registry) {
	if reg == nil {
		return
	}
	reg.MustRegister(stepID, func(step.Config) (step.Step, error) {
		return New(), nil
	})
}

// New creates a timeline step.
func New() *Step { return &Step{} }

// Info identifies the step.
func (s *Step) Info() step.Info {
	return step.Info{
		ID:          stepID,
		Name:        "Reconcile Timeline",
		Description: "Recomputes segment starts from measured audio and rescales the video plan.",
	}
}

// Dependencies declares the upstream steps.
func (s *Step) Dependencies() []string { return []string{"narration"} }

// ValidateInputs requires a narration script to reconcile against.
func (s *Step) ValidateInputs(doc *plan.Document) bool {
	return doc != nil && doc.NarrationScript != nil && len(doc.NarrationScript.Segments) > 0
}

// report is the JSON artifact written alongside the composition so operators
// can inspect what the reconciler decided.
type report struct {
	Entries       []reportEntry `json:"entries"`
	TotalDuration float64       `json:"total_duration"`
	PlannedTotal  float64       `json:"planned_total"`
	Drift         float64       `json:"drift"`
	DriftExceeded bool          `json:"drift_exceeded"`
}

type reportEntry struct {
	SegmentID       string  `json:"segment_id"`
	PlannedStart    float64 `json:"planned_start"`
	ReconciledStart float64 `json:"reconciled_start"`
	Duration        float64 `json:"duration"`
}

// Execute reconciles the narration segments back to back, updates the plan's
// total duration, rescales the background clips over the new total, clamps
// the composition, and writes a timeline report. Drift beyond the configured
// tolerance is logged, never fatal.
func (s *Step) Execute(ctx context.Context, doc *plan.Document, env *step.Environment) (step.Result, error) {
	script := doc.NarrationScript

	entries := make([]tl.Entry, len(script.Segments))
	var plannedCursor float64
	for i, seg := range script.Segments {
		entries[i] = tl.Entry{
			SegmentID:       seg.ID,
			PlannedStart:    plannedCursor,
			PlannedDuration: seg.EstimatedDuration,
			ActualDuration:  seg.ActualDuration,
		}
		plannedCursor += seg.EstimatedDuration
	}

	result := tl.Reconcile(entries, env.Config.DriftTolerance())
	if result.DriftExceeded {
		env.Logf("timeline: drift %.2fs exceeds tolerance %.2fs", result.Drift, env.Config.DriftTolerance())
	}

	doc.MetaInfo.TotalDuration = result.TotalDuration
	if doc.TextToVideoPlan != nil {
		tl.RescaleVideoSegments(doc.TextToVideoPlan, result.TotalDuration)
	}
	if doc.VideoComposition != nil {
		tl.ClampComposition(doc.VideoComposition, result.TotalDuration)
	}

	rep := report{
		TotalDuration: result.TotalDuration,
		PlannedTotal:  result.PlannedTotal,
		Drift:         result.Drift,
		DriftExceeded: result.DriftExceeded,
	}
	for _, e := range result.Entries {
		rep.Entries = append(rep.Entries, reportEntry{
			SegmentID:       e.SegmentID,
			PlannedStart:    e.PlannedStart,
			ReconciledStart: e.ReconciledStart,
			Duration:        e.EffectiveDuration(),
		})
	}
	outPath := filepath.Join(env.CompositionDir(), "timeline.json")
	encoded, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return step.Result{}, step.Fail(stepID, fmt.Errorf("encode timeline report: %w", err))
	}
	if err := os.WriteFile(outPath, append(encoded, '\n'), 0o644); err != nil {
		return step.Result{}, step.Fail(stepID, fmt.Errorf("write timeline report: %w", err))
	}

	return step.Result{
		OutputFiles: []string{outPath},
		Metadata: map[string]any{
			"total_duration": result.TotalDuration,
			"drift":          result.Drift,
		},
		Message: fmt.Sprintf("reconciled %d segments, total %.2fs", len(result.Entries), result.TotalDuration),
	}, nil
}
