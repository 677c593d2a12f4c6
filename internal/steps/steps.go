package steps

import (
	"github.com/videoforge/videoforge/internal/step"
	"github.com/videoforge/videoforge/internal/steps/composition"
	"github.com/videoforge/videoforge/internal/steps/cutting"
	"github.com/videoforge/videoforge/internal/steps/narration"
	"github.com/videoforge/videoforge/internal/steps/textvideo"
	"github.com/videoforge/videoforge/internal/steps/timeline"
)

// RegisterBuiltins installs all of the built-in step factories into the
// provided registry.
func RegisterBuiltins(reg *step.Registry) {
	if reg == nil {
		return
	}
	cutting.Register(reg)
	narration.Register(reg)
	timeline.Register(reg)
	textvideo.Register(reg)
	composition.Register(reg)
}
