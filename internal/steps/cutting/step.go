// Package cutting resolves the cutting plan's regions into pixel rectangles
// and slices the source image into per-region files.
package cutting

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/videoforge/videoforge/internal/plan"
	"github.com/videoforge/videoforge/internal/step"
)

const stepID = "cutting"

// Step slices the source infographic per the cutting plan.
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

// New creates a cutting step.
func New() *Step { return &Step{} }

// Info identifies the step.
func (s *Step) Info() step.Info {
	return step.Info{
		ID:          stepID,
		Name:        "Cut Source Image",
		Description: "Resolves region coordinates and slices the source image into per-region files.",
	}
}

// Dependencies declares the upstream steps. Cutting is a root step.
func (s *Step) Dependencies() []string { return nil }

// ValidateInputs requires a cutting plan and a source image reference.
func (s *Step) ValidateInputs(doc *plan.Document) bool {
	return doc != nil && doc.CuttingPlan != nil && doc.MetaInfo != nil && doc.MetaInfo.SourceImage != ""
}

// Execute resolves missing coordinates through the region analyzer, then cuts
// every region to its own file. Regions that already carry an output path
// with a resolved rectangle are left alone so resumed runs skip finished work.
func (s *Step) Execute(ctx context.Context, doc *plan.Document, env *step.Environment) (step.Result, error) {
	cp := doc.CuttingPlan
	imagePath := doc.MetaInfo.SourceImage

	var unresolved []plan.CuttingRegion
	for _, region := range cp.Regions {
		if region.Coordinates == nil {
			unresolved = append(unresolved, region)
		}
	}
	if len(unresolved) > 0 {
		rects, err := env.Services.Analyzer.AnalyzeRegions(ctx, imagePath, unresolved)
		if err != nil {
			return step.Result{}, step.Retry(stepID, fmt.Errorf("analyze regions: %w", err))
		}
		for _, region := range unresolved {
			rect, ok := rects[region.ID]
			if !ok {
				return step.Result{}, step.Failf(stepID, "analyzer returned no rectangle for region %s", region.ID)
			}
			target, _ := cp.Region(region.ID)
			if err := target.SetCoordinates(rect); err != nil {
				return step.Result{}, step.Fail(stepID, err)
			}
		}
		if err := cp.Validate(); err != nil {
			return step.Result{}, step.Fail(stepID, err)
		}
	}

	var outputs []string
	for i := range cp.Regions {
		region := &cp.Regions[i]
		outPath := filepath.Join(env.CutsDir(), region.ID+".png")
		if err := env.Services.Cutter.CutRegion(ctx, imagePath, *region.Coordinates, outPath); err != nil {
			return step.Result{}, step.Fail(stepID, fmt.Errorf("cut region %s: %w", region.ID, err))
		}
		region.OutputPath = outPath
		outputs = append(outputs, outPath)
		env.Logf("cutting: region %s -> %s", region.ID, outPath)
	}

	return step.Result{
		OutputFiles: outputs,
		Metadata:    map[string]any{"regions": len(cp.Regions)},
		Message:     fmt.Sprintf("cut %d regions", len(cp.Regions)),
	}, nil
}
