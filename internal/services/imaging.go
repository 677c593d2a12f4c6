package services

import (
	"context"
	"fmt"
	"image"
	"image/png"
	"os"

	_ "image/gif"
	_ "image/jpeg"

	"github.com/videoforge/videoforge/internal/plan"
)

// BandAnalyzer resolves regions without calling a vision model: the source
// image is split into equal horizontal bands, one per region, in declaration
// order. It is the fallback the pipeline uses when no analyzer service is
// configured.
type BandAnalyzer struct{}

// AnalyzeRegions returns one full-width band per region.
func (BandAnalyzer) AnalyzeRegions(ctx context.Context, imagePath string, regions []plan.CuttingRegion) (map[string]plan.Rect, error) {
	if len(regions) == 0 {
		return map[string]plan.Rect{}, nil
	}
	width, height, err := imageSize(imagePath)
	if err != nil {
		return nil, err
	}
	band := height / len(regions)
	if band <= 0 {
		return nil, fmt.Errorf("services: image %s too short for %d regions", imagePath, len(regions))
	}
	out := make(map[string]plan.Rect, len(regions))
	for i, region := range regions {
		h := band
		if i == len(regions)-1 {
			h = height - band*i
		}
		out[region.ID] = plan.Rect{X: 0, Y: band * i, Width: width, Height: h}
	}
	return out, nil
}

// LocalCutter crops regions out of the source image on this machine.
type LocalCutter struct{}

// CutRegion decodes the source, crops the rectangle, and writes a PNG.
// Rectangles that overhang the image are clamped the way the planner's
// coordinates sometimes require.
func (LocalCutter) CutRegion(ctx context.Context, imagePath string, rect plan.Rect, outPath string) error {
	src, err := decodeImage(imagePath)
	if err != nil {
		return err
	}
	bounds := src.Bounds()
	x0 := clamp(rect.X, bounds.Min.X, bounds.Max.X)
	y0 := clamp(rect.Y, bounds.Min.Y, bounds.Max.Y)
	x1 := clamp(rect.X+rect.Width, bounds.Min.X, bounds.Max.X)
	y1 := clamp(rect.Y+rect.Height, bounds.Min.Y, bounds.Max.Y)
	if x1 <= x0 || y1 <= y0 {
		return fmt.Errorf("services: region %dx%d at (%d,%d) is outside %s", rect.Width, rect.Height, rect.X, rect.Y, imagePath)
	}

	crop := image.NewRGBA(image.Rect(0, 0, x1-x0, y1-y0))
	for y := y0; y < y1; y++ {
		for x := x0; x < x1; x++ {
			crop.Set(x-x0, y-y0, src.At(x, y))
		}
	}

	out, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("services: create %s: %w", outPath, err)
	}
	defer out.Close()
	if err := png.Encode(out, crop); err != nil {
		return fmt.Errorf("services: encode %s: %w", outPath, err)
	}
	return nil
}

func decodeImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("services: open image %s: %w", path, err)
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("services: decode image %s: %w", path, err)
	}
	return img, nil
}

func imageSize(path string) (int, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, fmt.Errorf("services: open image %s: %w", path, err)
	}
	defer f.Close()
	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return 0, 0, fmt.Errorf("services: read image header %s: %w", path, err)
	}
	return cfg.Width, cfg.Height, nil
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
