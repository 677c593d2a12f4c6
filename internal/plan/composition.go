package plan

import "fmt"

// Layer content types as written in plan documents.
const (
	LayerAudio = "audio"
	LayerVideo = "video"
	LayerImage = "image"
	LayerText  = "text"
)

// Layer places one piece of content on the composition timeline.
type Layer struct {
	Type      string  `json:"layer_type"`
	Path      string  `json:"content_path,omitempty"`
	StartTime float64 `json:"start_time"`
	Duration  float64 `json:"duration"`
}

// EndTime returns the instant the layer stops playing.
func (l Layer) EndTime() float64 {
	return l.StartTime + l.Duration
}

// Transition is a cross-layer effect bound to an instant on the timeline.
type Transition struct {
	Type      string  `json:"transition_type"`
	StartTime float64 `json:"start_time"`
	Duration  float64 `json:"duration"`
}

// Effect is a visual treatment applied over a window of the timeline.
type Effect struct {
	Type      string  `json:"effect_type"`
	StartTime float64 `json:"start_time"`
	Duration  float64 `json:"duration"`
}

// CompositionTimeline is the container the final render is driven by.
type CompositionTimeline struct {
	TotalDuration float64 `json:"total_duration"`
	LayerCount    int     `json:"layer_count"`
}

// VideoComposition describes the final assembly of all produced artifacts.
type VideoComposition struct {
	Timeline    CompositionTimeline `json:"timeline"`
	Layers      []Layer             `json:"layers"`
	Transitions []Transition        `json:"transitions,omitempty"`
	Effects     []Effect            `json:"effects,omitempty"`
}

// Validate checks the composition for obvious inconsistencies.
func (c *VideoComposition) Validate() error {
	if c.Timeline.TotalDuration <= 0 {
		return fmt.Errorf("plan: video_composition total duration must be > 0")
	}
	if c.Timeline.LayerCount <= 0 {
		return fmt.Errorf("plan: video_composition layer count must be > 0")
	}
	for i, layer := range c.Layers {
		switch layer.Type {
		case LayerAudio, LayerVideo, LayerImage, LayerText:
		default:
			return fmt.Errorf("plan: composition layer[%d] has unknown type %q", i, layer.Type)
		}
		if layer.StartTime < 0 || layer.Duration < 0 {
			return fmt.Errorf("plan: composition layer[%d] has negative timing", i)
		}
	}
	for i, tr := range c.Transitions {
		if tr.StartTime < 0 || tr.Duration < 0 {
			return fmt.Errorf("plan: composition transition[%d] has negative timing", i)
		}
	}
	for i, ef := range c.Effects {
		if ef.StartTime < 0 || ef.Duration < 0 {
			return fmt.Errorf("plan: composition effect[%d] has negative timing", i)
		}
	}
	return nil
}
