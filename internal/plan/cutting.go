package plan

import "fmt"

// Rect is a pixel rectangle inside the source image.
type Rect struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// SourceImage describes the infographic the cutting step slices up.
type SourceImage struct {
	Path   string `json:"file_path"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// CuttingRegion is one slice of the source image. Coordinates stays nil until
// the cutting step resolves it; once set it never changes.
type CuttingRegion struct {
	ID          string `json:"region_id"`
	Name        string `json:"region_name"`
	Description string `json:"description,omitempty"`
	Coordinates *Rect  `json:"coordinates,omitempty"`
	OutputPath  string `json:"output_path,omitempty"`
}

// SetCoordinates records the resolved rectangle. Coordinates are write-once.
func (r *CuttingRegion) SetCoordinates(rect Rect) error {
	if r.Coordinates != nil {
		return fmt.Errorf("plan: region %s coordinates already set", r.ID)
	}
	copied := rect
	r.Coordinates = &copied
	return nil
}

// CuttingPlan declares how the source image is sliced into regions.
type CuttingPlan struct {
	SourceImage SourceImage     `json:"source_image"`
	TotalSlices int             `json:"total_slices"`
	Regions     []CuttingRegion `json:"regions"`
}

// Validate checks region counts, id uniqueness, and that resolved
// coordinates stay inside the source image.
func (p *CuttingPlan) Validate() error {
	if p.TotalSlices != len(p.Regions) {
		return fmt.Errorf("plan: cutting_plan declares %d slices but has %d regions", p.TotalSlices, len(p.Regions))
	}
	if p.TotalSlices <= 0 {
		return fmt.Errorf("plan: cutting_plan needs at least one region")
	}
	if p.SourceImage.Width <= 0 || p.SourceImage.Height <= 0 {
		return fmt.Errorf("plan: cutting_plan source image size must be positive")
	}
	seen := map[string]struct{}{}
	for i, region := range p.Regions {
		if region.ID == "" {
			return fmt.Errorf("plan: cutting_plan region[%d] is missing an id", i)
		}
		if _, dup := seen[region.ID]; dup {
			return fmt.Errorf("plan: duplicate cutting region id %s", region.ID)
		}
		seen[region.ID] = struct{}{}
		if region.Coordinates == nil {
			continue
		}
		rect := region.Coordinates
		if rect.X < 0 || rect.Y < 0 || rect.Width <= 0 || rect.Height <= 0 {
			return fmt.Errorf("plan: region %s has invalid coordinates", region.ID)
		}
		if rect.X+rect.Width > p.SourceImage.Width || rect.Y+rect.Height > p.SourceImage.Height {
			return fmt.Errorf("plan: region %s extends beyond the source image", region.ID)
		}
	}
	return nil
}

// Region returns the region with the given id.
func (p *CuttingPlan) Region(id string) (*CuttingRegion, bool) {
	for i := range p.Regions {
		if p.Regions[i].ID == id {
			return &p.Regions[i], true
		}
	}
	return nil, false
}
