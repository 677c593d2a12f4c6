package plan

import "fmt"

// VideoSegment is one generated background clip. StartTime and Duration are
// planner estimates until the timeline step rescales them against real audio.
type VideoSegment struct {
	ID         string  `json:"segment_id"`
	Prompt     string  `json:"prompt"`
	Style      string  `json:"style,omitempty"`
	Duration   float64 `json:"duration"`
	StartTime  float64 `json:"start_time"`
	OutputPath string  `json:"output_path,omitempty"`
}

// TextToVideoPlan is the ordered list of clips to generate.
type TextToVideoPlan struct {
	Segments []VideoSegment `json:"segments"`
}

// Validate checks segment ids and prompts.
func (p *TextToVideoPlan) Validate() error {
	if len(p.Segments) == 0 {
		return fmt.Errorf("plan: text_to_video_plan needs at least one segment")
	}
	seen := map[string]struct{}{}
	for i, seg := range p.Segments {
		if seg.ID == "" {
			return fmt.Errorf("plan: video segment[%d] is missing an id", i)
		}
		if _, dup := seen[seg.ID]; dup {
			return fmt.Errorf("plan: duplicate video segment id %s", seg.ID)
		}
		seen[seg.ID] = struct{}{}
		if seg.Prompt == "" {
			return fmt.Errorf("plan: video segment %s has an empty prompt", seg.ID)
		}
		if seg.Duration < 0 {
			return fmt.Errorf("plan: video segment %s duration must be >= 0", seg.ID)
		}
	}
	return nil
}
