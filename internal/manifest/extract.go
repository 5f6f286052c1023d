package manifest

import (
	"fmt"
	"strings"

	"github.com/openglam/photosearch/internal/domain"
)

// DefaultMarker is the inclusion marker a region's label must contain
// (case-insensitively) to qualify for indexing.
const DefaultMarker = "photograph"

// Extractor walks a manifest and yields the regions that qualify for indexing.
type Extractor struct {
	marker string
}

// NewExtractor creates an extractor with the given inclusion marker. An empty
// marker falls back to DefaultMarker.
func NewExtractor(marker string) *Extractor {
	if marker == "" {
		marker = DefaultMarker
	}
	return &Extractor{marker: strings.ToLower(marker)}
}

// Extract returns all qualifying regions of the document in canvas order.
// Re-extracting the same document yields the identical sequence. A manifest
// with zero qualifying regions returns an empty slice and no error; a
// qualifying region with missing structural fields or an out-of-bounds crop
// fails with domain.ErrMalformedManifest.
func (e *Extractor) Extract(doc *Document) ([]domain.Region, error) {
	manifestID := doc.ID()

	if items := list(doc.root, "items"); items != nil {
		return e.extractV3(manifestID, items)
	}
	if sequences := list(doc.root, "sequences"); sequences != nil {
		return e.extractV2(manifestID, sequences)
	}
	return nil, nil
}

// qualifies reports whether an annotation label selects the region for indexing.
func (e *Extractor) qualifies(label string) bool {
	return strings.Contains(strings.ToLower(label), e.marker)
}

// extractV3 walks Presentation 3 canvases: items[] -> annotations[] (pages) ->
// items[] (annotations with a TextualBody).
func (e *Extractor) extractV3(manifestID string, canvases []any) ([]domain.Region, error) {
	var regions []domain.Region

	for i := range canvases {
		canvas := objAt(canvases, i)
		if canvas == nil {
			continue
		}
		canvasID := str(canvas, "id")
		width, height := num(canvas, "width"), num(canvas, "height")

		for _, pv := range list(canvas, "annotations") {
			page, ok := pv.(map[string]any)
			if !ok {
				continue
			}
			for _, av := range list(page, "items") {
				anno, ok := av.(map[string]any)
				if !ok {
					continue
				}
				body := obj(anno, "body")
				if body == nil || str(body, "type") != "TextualBody" {
					continue
				}
				label := str(body, "value")
				if !e.qualifies(label) {
					continue
				}

				region, err := e.buildRegion(manifestID, canvasID, width, height,
					str(anno, "id"), str(anno, "target"), label, paintingServiceV3(canvas))
				if err != nil {
					return nil, err
				}
				regions = append(regions, region)
			}
		}
	}
	return regions, nil
}

// extractV2 walks Presentation 2 sequences[].canvases[] with embedded
// otherContent annotation lists. Lists referenced only by URI are skipped.
func (e *Extractor) extractV2(manifestID string, sequences []any) ([]domain.Region, error) {
	var regions []domain.Region

	for i := range sequences {
		seq := objAt(sequences, i)
		if seq == nil {
			continue
		}
		for _, cv := range list(seq, "canvases") {
			canvas, ok := cv.(map[string]any)
			if !ok {
				continue
			}
			canvasID := str(canvas, "@id")
			width, height := num(canvas, "width"), num(canvas, "height")

			for _, ov := range list(canvas, "otherContent") {
				annoList, ok := ov.(map[string]any)
				if !ok {
					continue // URI reference, not embedded
				}
				for _, rv := range list(annoList, "resources") {
					anno, ok := rv.(map[string]any)
					if !ok {
						continue
					}
					res := obj(anno, "resource")
					if res == nil {
						continue
					}
					label := str(res, "chars")
					if !e.qualifies(label) {
						continue
					}

					region, err := e.buildRegion(manifestID, canvasID, width, height,
						str(anno, "@id"), str(anno, "on"), label, paintingServiceV2(canvas))
					if err != nil {
						return nil, err
					}
					regions = append(regions, region)
				}
			}
		}
	}
	return regions, nil
}

// buildRegion validates structural fields and assembles a Region. The target
// is the annotation's canvas reference, optionally carrying a #xywh fragment.
func (e *Extractor) buildRegion(
	manifestID, canvasID string, width, height int,
	annoID, target, label, serviceID string,
) (domain.Region, error) {
	if annoID == "" {
		return domain.Region{}, fmt.Errorf(
			"annotation on canvas %q has no id: %w", canvasID, domain.ErrMalformedManifest)
	}
	if canvasID == "" {
		return domain.Region{}, fmt.Errorf(
			"annotation %q: canvas has no id: %w", annoID, domain.ErrMalformedManifest)
	}
	if serviceID == "" {
		return domain.Region{}, fmt.Errorf(
			"annotation %q: canvas %q has no image service: %w",
			annoID, canvasID, domain.ErrMalformedManifest)
	}

	var crop *domain.Crop
	if _, frag, ok := strings.Cut(target, "#xywh="); ok {
		c, err := domain.ParseCrop(frag)
		if err != nil {
			return domain.Region{}, fmt.Errorf(
				"annotation %q: %v: %w", annoID, err, domain.ErrMalformedManifest)
		}
		if width > 0 && height > 0 && !c.Within(width, height) {
			return domain.Region{}, fmt.Errorf(
				"annotation %q: crop %s outside canvas %dx%d: %w",
				annoID, c.String(), width, height, domain.ErrMalformedManifest)
		}
		crop = &c
	}

	return domain.Region{
		ID:         annoID,
		ManifestID: manifestID,
		CanvasID:   canvasID,
		ImageURL:   ImageURL(serviceID, crop),
		Crop:       crop,
		Label:      label,
	}, nil
}

// ImageURL builds a IIIF Image API URL for the given service and crop.
// A nil crop addresses the full image.
func ImageURL(serviceID string, crop *domain.Crop) string {
	region := "full"
	if crop != nil {
		region = crop.String()
	}
	return fmt.Sprintf("%s/%s/max/0/default.jpg", strings.TrimSuffix(serviceID, "/"), region)
}

// paintingServiceV3 finds the image service id of the canvas painting
// annotation: items[0].items[0].body.service[0].
func paintingServiceV3(canvas map[string]any) string {
	page := objAt(list(canvas, "items"), 0)
	if page == nil {
		return ""
	}
	anno := objAt(list(page, "items"), 0)
	if anno == nil {
		return ""
	}
	body := obj(anno, "body")
	if body == nil {
		return ""
	}
	svc := objAt(list(body, "service"), 0)
	if svc == nil {
		return ""
	}
	if id := str(svc, "id"); id != "" {
		return id
	}
	return str(svc, "@id")
}

// paintingServiceV2 finds the image service id of a v2 canvas:
// images[0].resource.service (object, not array, in Presentation 2).
func paintingServiceV2(canvas map[string]any) string {
	img := objAt(list(canvas, "images"), 0)
	if img == nil {
		return ""
	}
	res := obj(img, "resource")
	if res == nil {
		return ""
	}
	svc := obj(res, "service")
	if svc == nil {
		return ""
	}
	return str(svc, "@id")
}
