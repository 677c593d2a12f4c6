// Package services declares the external-collaborator boundary the pipeline
// steps call through. The engine depends only on these interfaces; concrete
// implementations wrap whichever vendor APIs a deployment uses.
package services

import (
	"context"

	"github.com/videoforge/videoforge/internal/plan"
)

// RegionAnalyzer resolves region descriptions into pixel rectangles on the
// source image.
type RegionAnalyzer interface {
	AnalyzeRegions(ctx context.Context, imagePath string, regions []plan.CuttingRegion) (map[string]plan.Rect, error)
}

// ImageCutter slices one rectangle out of the source image to outPath.
type ImageCutter interface {
	CutRegion(ctx context.Context, imagePath string, rect plan.Rect, outPath string) error
}

// SpeechRequest asks for one narration segment to be synthesized.
type SpeechRequest struct {
	Text  string  `json:"text"`
	Voice string  `json:"voice"`
	Rate  float64 `json:"rate,omitempty"`
}

// SpeechResult is the synthesized audio plus its measured duration.
type SpeechResult struct {
	Audio    []byte  `json:"audio"`
	Duration float64 `json:"duration"`
}

// SpeechSynthesizer produces narration audio.
type SpeechSynthesizer interface {
	Synthesize(ctx context.Context, req SpeechRequest) (SpeechResult, error)
}

// VideoRequest asks for one background clip.
type VideoRequest struct {
	Prompt   string  `json:"prompt"`
	Style    string  `json:"style,omitempty"`
	Model    string  `json:"model,omitempty"`
	Duration float64 `json:"duration"`
}

// VideoResult is the generated clip.
type VideoResult struct {
	Video    []byte  `json:"video"`
	Duration float64 `json:"duration"`
}

// VideoGenerator produces background clips from prompts. Implementations
// submit and poll; Generate returns only once the clip is ready.
type VideoGenerator interface {
	Generate(ctx context.Context, req VideoRequest) (VideoResult, error)
}

// ComposeRequest hands the final assembly to the compositor.
type ComposeRequest struct {
	Composition *plan.VideoComposition
	OutputPath  string
}

// Compositor renders the final video and returns its path.
type Compositor interface {
	Compose(ctx context.Context, req ComposeRequest) (string, error)
}

// Clients bundles every external collaborator a run needs.
type Clients struct {
	Analyzer   RegionAnalyzer
	Cutter     ImageCutter
	Speech     SpeechSynthesizer
	Video      VideoGenerator
	Compositor Compositor
}
