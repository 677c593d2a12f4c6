package plan

import "fmt"

// Voices supported by the speech synthesizer.
var validVoices = map[string]struct{}{
	"alloy": {}, "echo": {}, "fable": {}, "onyx": {}, "nova": {}, "shimmer": {},
}

// AudioSegment is one narration line. ActualDuration stays nil until the
// synthesis step measures the produced audio; once set it is >= 0.
type AudioSegment struct {
	ID                string   `json:"segment_id"`
	Text              string   `json:"text"`
	EstimatedDuration float64  `json:"estimated_duration"`
	SpeakingRate      float64  `json:"speaking_rate,omitempty"`
	Voice             string   `json:"voice,omitempty"`
	ActualDuration    *float64 `json:"actual_duration,omitempty"`
	AudioFile         string   `json:"audio_file_path,omitempty"`
}

// SetActualDuration records the measured duration of the synthesized audio.
func (s *AudioSegment) SetActualDuration(seconds float64) error {
	if seconds < 0 {
		return fmt.Errorf("plan: segment %s actual duration must be >= 0", s.ID)
	}
	copied := seconds
	s.ActualDuration = &copied
	return nil
}

// EffectiveDuration returns the actual duration when known, the estimate
// otherwise.
func (s *AudioSegment) EffectiveDuration() float64 {
	if s.ActualDuration != nil {
		return *s.ActualDuration
	}
	return s.EstimatedDuration
}

// NarrationScript is the ordered list of narration segments.
type NarrationScript struct {
	TotalSegments int            `json:"total_segments"`
	Segments      []AudioSegment `json:"segments"`
}

// Validate checks segment counts, ids, and per-segment constraints.
func (n *NarrationScript) Validate() error {
	if n.TotalSegments != len(n.Segments) {
		return fmt.Errorf("plan: narration_script declares %d segments but has %d", n.TotalSegments, len(n.Segments))
	}
	if n.TotalSegments <= 0 {
		return fmt.Errorf("plan: narration_script needs at least one segment")
	}
	seen := map[string]struct{}{}
	for i, seg := range n.Segments {
		if seg.ID == "" {
			return fmt.Errorf("plan: narration segment[%d] is missing an id", i)
		}
		if _, dup := seen[seg.ID]; dup {
			return fmt.Errorf("plan: duplicate narration segment id %s", seg.ID)
		}
		seen[seg.ID] = struct{}{}
		if seg.Text == "" {
			return fmt.Errorf("plan: narration segment %s has empty text", seg.ID)
		}
		if seg.EstimatedDuration <= 0 {
			return fmt.Errorf("plan: narration segment %s estimated duration must be > 0", seg.ID)
		}
		if seg.SpeakingRate != 0 && (seg.SpeakingRate < 0.5 || seg.SpeakingRate > 2.0) {
			return fmt.Errorf("plan: narration segment %s speaking rate must be within 0.5-2.0", seg.ID)
		}
		if seg.Voice != "" {
			if _, ok := validVoices[seg.Voice]; !ok {
				return fmt.Errorf("plan: narration segment %s has unknown voice %s", seg.ID, seg.Voice)
			}
		}
		if seg.ActualDuration != nil && *seg.ActualDuration < 0 {
			return fmt.Errorf("plan: narration segment %s actual duration must be >= 0", seg.ID)
		}
	}
	return nil
}

// EstimatedTotal sums the planned segment durations.
func (n *NarrationScript) EstimatedTotal() float64 {
	var total float64
	for _, seg := range n.Segments {
		total += seg.EstimatedDuration
	}
	return total
}

// ActualTotal sums the measured durations. The second return is false until
// every segment has been synthesized.
func (n *NarrationScript) ActualTotal() (float64, bool) {
	var total float64
	for _, seg := range n.Segments {
		if seg.ActualDuration == nil {
			return 0, false
		}
		total += *seg.ActualDuration
	}
	return total, true
}

// ActualDurations returns the measured duration per segment id for the
// segments that have one.
func (n *NarrationScript) ActualDurations() map[string]float64 {
	out := make(map[string]float64, len(n.Segments))
	for _, seg := range n.Segments {
		if seg.ActualDuration != nil {
			out[seg.ID] = *seg.ActualDuration
		}
	}
	return out
}
