// Package narration synthesizes the script's audio segments and records
// their measured durations back into the plan.
package narration

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/videoforge/videoforge/internal/plan"
	"github.com/videoforge/videoforge/internal/services"
	"github.com/videoforge/videoforge/internal/step"
)

const stepID = "narration"

// Step turns the narration script into audio files.
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

// New creates a narration step.
func New() *Step { return &Step{} }

// Info identifies the step.
func (s *Step) Info() step.Info {
	return step.Info{
		ID:          stepID,
		Name:        "Synthesize Narration",
		Description: "Synthesizes each script segment to audio and records measured durations.",
	}
}

// Dependencies declares the upstream steps. Narration is a root step.
func (s *Step) Dependencies() []string { return nil }

// ValidateInputs requires a narration script.
func (s *Step) ValidateInputs(doc *plan.Document) bool {
	return doc != nil && doc.NarrationScript != nil && len(doc.NarrationScript.Segments) > 0
}

// Execute synthesizes every segment that does not already have an audio file
// on disk. Synthesis failures are reported as retryable; the vendor APIs are
// rate limited and usually recover.
func (s *Step) Execute(ctx context.Context, doc *plan.Document, env *step.Environment) (step.Result, error) {
	script := doc.NarrationScript
	defaultVoice := env.Config.Project.Services.TTSVoice

	var outputs []string
	synthesized := 0
	for i := range script.Segments {
		seg := &script.Segments[i]
		outPath := filepath.Join(env.AudioDir(), seg.ID+".mp3")

		if seg.ActualDuration != nil && seg.AudioFile != "" {
			if _, err := os.Stat(seg.AudioFile); err == nil {
				outputs = append(outputs, seg.AudioFile)
				continue
			}
		}

		voice := seg.Voice
		if voice == "" {
			voice = defaultVoice
		}
		res, err := env.Services.Speech.Synthesize(ctx, services.SpeechRequest{
			Text:  seg.Text,
			Voice: voice,
			Rate:  seg.SpeakingRate,
		})
		if err != nil {
			return step.Result{}, step.Retry(stepID, fmt.Errorf("synthesize segment %s: %w", seg.ID, err))
		}
		if err := os.WriteFile(outPath, res.Audio, 0o644); err != nil {
			return step.Result{}, step.Fail(stepID, fmt.Errorf("write audio for %s: %w", seg.ID, err))
		}
		if err := seg.SetActualDuration(res.Duration); err != nil {
			return step.Result{}, step.Fail(stepID, err)
		}
		seg.AudioFile = outPath
		outputs = append(outputs, outPath)
		synthesized++
		env.Logf("narration: segment %s synthesized (%.2fs)", seg.ID, res.Duration)
	}

	return step.Result{
		OutputFiles: outputs,
		Metadata:    map[string]any{"segments": len(script.Segments), "synthesized": synthesized},
		Message:     fmt.Sprintf("synthesized %d of %d segments", synthesized, len(script.Segments)),
	}, nil
}
