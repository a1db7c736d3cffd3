// Package layout segments a normalized raster into coarse structural
// regions. Classification is a conservative aspect-ratio heuristic, not a
// trained model; consumers must treat region confidence as advisory.
package layout

import (
	"github.com/docufuse/docufuse/internal/geom"
	"github.com/docufuse/docufuse/internal/raster"
)

// Kind labels the structural class of a region.
type Kind int

const (
	TextBlock Kind = iota
	Table
	EmbeddedImage
)

// String returns the region kind label used in serialized results.
func (k Kind) String() string {
	switch k {
	case TextBlock:
		return "text_block"
	case Table:
		return "table"
	case EmbeddedImage:
		return "embedded_image"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler for JSON output.
func (k Kind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// Region is a heuristically classified rectangular area of the document.
type Region struct {
	Kind       Kind     `json:"kind"`
	Box        geom.Box `json:"box"`
	Confidence float64  `json:"confidence"`
}

// Map lists regions in discovery order (raster-scan order of component
// seeds). This is not reading order and callers must not assume it is.
type Map []Region

// Config holds segmentation and classification parameters.
type Config struct {
	MinArea int // components below this area in px^2 are treated as noise

	// Aspect-ratio bands for classification.
	SquareLow   float64 // lower bound of the near-square band
	SquareHigh  float64 // upper bound of the near-square band
	TableAspect float64 // aspect ratio above which a region reads as a table

	// Advisory confidences per class.
	ImageConfidence float64
	TableConfidence float64
	TextConfidence  float64
}

// DefaultConfig returns the default segmentation parameters.
func DefaultConfig() Config {
	return Config{
		MinArea:         10000,
		SquareLow:       0.8,
		SquareHigh:      1.2,
		TableAspect:     3.0,
		ImageConfidence: 0.7,
		TableConfidence: 0.6,
		TextConfidence:  0.8,
	}
}

// Analyze segments the raster into classified regions. It never fails: an
// image with no detectable structure yields an empty map.
func Analyze(n *raster.Normalized, cfg Config) Map {
	if n == nil || n.Gray == nil || n.Width == 0 || n.Height == 0 {
		return Map{}
	}

	comps := findComponents(n.Gray, n.Width, n.Height)
	regions := make(Map, 0, len(comps))
	for _, c := range comps {
		box := geom.NewBox(c.minX, c.minY, c.maxX+1, c.maxY+1)
		if box.Area() < cfg.MinArea {
			continue
		}
		regions = append(regions, classify(box, cfg))
	}
	return regions
}

// classify assigns a region kind from the bounding-box aspect ratio.
func classify(box geom.Box, cfg Config) Region {
	aspect := box.AspectRatio()
	switch {
	case aspect >= cfg.SquareLow && aspect <= cfg.SquareHigh:
		return Region{Kind: EmbeddedImage, Box: box, Confidence: cfg.ImageConfidence}
	case aspect > cfg.TableAspect:
		return Region{Kind: Table, Box: box, Confidence: cfg.TableConfidence}
	default:
		return Region{Kind: TextBlock, Box: box, Confidence: cfg.TextConfidence}
	}
}
