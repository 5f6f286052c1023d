package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// Crop is a rectangular sub-region expressed in the pixel space of the full
// source image, matching the IIIF `xywh` fragment selector.
type Crop struct {
	X int
	Y int
	W int
	H int
}

// String renders the crop as a IIIF "x,y,w,h" fragment value.
func (c Crop) String() string {
	return fmt.Sprintf("%d,%d,%d,%d", c.X, c.Y, c.W, c.H)
}

// ParseCrop parses a "x,y,w,h" fragment value.
func ParseCrop(s string) (Crop, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return Crop{}, fmt.Errorf("crop must have 4 components, got %q", s)
	}
	vals := make([]int, 4)
	for i, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return Crop{}, fmt.Errorf("crop component %d: %w", i, err)
		}
		vals[i] = v
	}
	return Crop{X: vals[0], Y: vals[1], W: vals[2], H: vals[3]}, nil
}

// Within reports whether the crop lies inside an image of the given dimensions.
func (c Crop) Within(width, height int) bool {
	return c.X >= 0 && c.Y >= 0 && c.W > 0 && c.H > 0 &&
		c.X+c.W <= width && c.Y+c.H <= height
}

// Region is one searchable image region extracted from a manifest.
// Identity is the (ManifestID, ID) pair; regions are immutable after extraction.
type Region struct {
	ID         string
	ManifestID string
	CanvasID   string
	ImageURL   string
	Crop       *Crop // nil means the full image
	Label      string
}

// Payload is the metadata persisted next to a region's vector. It carries
// everything needed to rebuild a IIIF annotation without re-reading the manifest.
type Payload struct {
	ManifestID string
	CanvasID   string
	ImageURL   string
	Crop       string // "x,y,w,h", empty for full-image regions
	Label      string
}

// PayloadFor builds the stored payload for a region.
func PayloadFor(r Region) Payload {
	p := Payload{
		ManifestID: r.ManifestID,
		CanvasID:   r.CanvasID,
		ImageURL:   r.ImageURL,
		Label:      r.Label,
	}
	if r.Crop != nil {
		p.Crop = r.Crop.String()
	}
	return p
}

// EmbeddingRecord is one region's vector plus payload, keyed by region id.
type EmbeddingRecord struct {
	RegionID string
	Vector   []float32
	Payload  Payload
}
