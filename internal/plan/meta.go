package plan

import "fmt"

// Resolution is a pixel width/height pair.
type Resolution struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// MetaInfo carries plan-level metadata. TotalDuration starts as the planned
// target and is overwritten with the reconciled total once real audio
// durations are known.
type MetaInfo struct {
	PlanVersion     string      `json:"plan_version"`
	SourceImage     string      `json:"source_image"`
	Title           string      `json:"video_title"`
	TotalDuration   float64     `json:"total_duration"`
	Resolution      Resolution  `json:"video_resolution"`
	SourceImageSize *Resolution `json:"source_image_size,omitempty"`
}

// Validate ensures the metadata block is well-formed.
func (m *MetaInfo) Validate() error {
	if m.SourceImage == "" {
		return fmt.Errorf("plan: meta_info.source_image is required")
	}
	if m.TotalDuration <= 0 {
		return fmt.Errorf("plan: meta_info.total_duration must be > 0")
	}
	if m.Resolution.Width <= 0 || m.Resolution.Height <= 0 {
		return fmt.Errorf("plan: meta_info.video_resolution must be positive")
	}
	return nil
}
