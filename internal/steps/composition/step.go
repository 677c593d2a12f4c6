// Package composition assembles the final video from the cut images,
// narration audio, and generated background clips.
package composition

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/videoforge/videoforge/internal/plan"
	"github.com/videoforge/videoforge/internal/services"
	"github.com/videoforge/videoforge/internal/step"
)

const stepID = "composition"

// Step renders the final video.
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

// New creates a composition step.
func New() *Step { return &Step{} }

// Info identifies the step.
func (s *Step) Info() step.Info {
	return step.Info{
		ID:          stepID,
		Name:        "Compose Final Video",
		Description: "Renders the composition timeline into the final video file.",
	}
}

// Dependencies declares the upstream steps. Composition consumes every
// produced artifact.
func (s *Step) Dependencies() []string {
	return []string{"cutting", "narration", "textvideo"}
}

// ValidateInputs requires a composition with at least one layer.
func (s *Step) ValidateInputs(doc *plan.Document) bool {
	return doc != nil && doc.VideoComposition != nil && len(doc.VideoComposition.Layers) > 0
}

// Execute hands the composition to the renderer and reports the final file.
func (s *Step) Execute(ctx context.Context, doc *plan.Document, env *step.Environment) (step.Result, error) {
	outPath := filepath.Join(env.FinalDir(), outputName(doc.MetaInfo.Title))

	finalPath, err := env.Services.Compositor.Compose(ctx, services.ComposeRequest{
		Composition: doc.VideoComposition,
		OutputPath:  outPath,
	})
	if err != nil {
		return step.Result{}, step.Fail(stepID, fmt.Errorf("compose: %w", err))
	}
	env.Logf("composition: final video at %s", finalPath)

	return step.Result{
		OutputFiles: []string{finalPath},
		Metadata: map[string]any{
			"layers":         len(doc.VideoComposition.Layers),
			"total_duration": doc.VideoComposition.Timeline.TotalDuration,
		},
		Message: fmt.Sprintf("composed %d layers into %s", len(doc.VideoComposition.Layers), filepath.Base(finalPath)),
	}, nil
}

// outputName derives a filesystem-safe file name from the video title.
func outputName(title string) string {
	name := strings.TrimSpace(strings.ToLower(title))
	if name == "" {
		return "final.mp4"
	}
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ' || r == '-' || r == '_':
			b.WriteByte('_')
		}
	}
	if b.Len() == 0 {
		return "final.mp4"
	}
	return b.String() + ".mp4"
}
