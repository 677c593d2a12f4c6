// Package textvideo generates the background clips declared in the
// text_to_video_plan section.
package textvideo

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/videoforge/videoforge/internal/plan"
	"github.com/videoforge/videoforge/internal/services"
	"github.com/videoforge/videoforge/internal/step"
)

const stepID = "textvideo"

// Step generates background video clips from prompts.
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

// New creates a text-to-video step.
func New() *Step { return &Step{} }

// Info identifies the step.
func (s *Step) Info() step.Info {
	return step.Info{
		ID:          stepID,
		Name:        "Generate Background Clips",
		Description: "Generates one background clip per text_to_video segment.",
	}
}

// Dependencies declares the upstream steps. Clip durations come from the
// reconciled timeline.
func (s *Step) Dependencies() []string { return []string{"timeline"} }

// ValidateInputs requires a text_to_video plan.
func (s *Step) ValidateInputs(doc *plan.Document) bool {
	return doc != nil && doc.TextToVideoPlan != nil && len(doc.TextToVideoPlan.Segments) > 0
}

// Execute generates every segment whose clip is not already on disk.
// Generation failures are retryable; video backends queue and throttle.
func (s *Step) Execute(ctx context.Context, doc *plan.Document, env *step.Environment) (step.Result, error) {
	tv := doc.TextToVideoPlan
	model := env.Config.Project.Services.VideoModel

	var outputs []string
	generated := 0
	for i := range tv.Segments {
		seg := &tv.Segments[i]
		outPath := filepath.Join(env.BackgroundDir(), seg.ID+".mp4")

		if seg.OutputPath != "" {
			if _, err := os.Stat(seg.OutputPath); err == nil {
				outputs = append(outputs, seg.OutputPath)
				continue
			}
		}

		res, err := env.Services.Video.Generate(ctx, services.VideoRequest{
			Prompt:   seg.Prompt,
			Style:    seg.Style,
			Model:    model,
			Duration: seg.Duration,
		})
		if err != nil {
			return step.Result{}, step.Retry(stepID, fmt.Errorf("generate segment %s: %w", seg.ID, err))
		}
		if err := os.WriteFile(outPath, res.Video, 0o644); err != nil {
			return step.Result{}, step.Fail(stepID, fmt.Errorf("write clip for %s: %w", seg.ID, err))
		}
		seg.OutputPath = outPath
		outputs = append(outputs, outPath)
		generated++
		env.Logf("textvideo: segment %s generated (%.2fs)", seg.ID, res.Duration)
	}

	return step.Result{
		OutputFiles: outputs,
		Metadata:    map[string]any{"segments": len(tv.Segments), "generated": generated},
		Message:     fmt.Sprintf("generated %d of %d clips", generated, len(tv.Segments)),
	}, nil
}
