package manifest

import (
	"errors"
	"fmt"
	"reflect"
	"testing"

	"github.com/openglam/photosearch/internal/domain"
)

const testManifestV3 = `{
  "@context": "http://iiif.io/api/presentation/3/context.json",
  "id": "https://example.org/test/manifest.json",
  "type": "Manifest",
  "items": [
    {
      "id": "https://example.org/test/canvas/1",
      "type": "Canvas",
      "width": 2000,
      "height": 3000,
      "items": [
        {
          "id": "https://example.org/test/canvas/1/annotation/page",
          "type": "AnnotationPage",
          "items": [
            {
              "id": "https://example.org/test/canvas/1/annotation/image",
              "type": "Annotation",
              "motivation": "painting",
              "body": {
                "id": "https://images.example.org/img1/full/max/0/default.jpg",
                "type": "Image",
                "service": [
                  {"id": "https://images.example.org/img1", "type": "ImageService2", "profile": "level1"}
                ]
              },
              "target": "https://example.org/test/canvas/1"
            }
          ]
        }
      ],
      "annotations": [
        {
          "id": "https://example.org/test/canvas/1/annotations",
          "type": "AnnotationPage",
          "items": [
            {
              "id": "https://example.org/test/canvas/1/annotation/a1",
              "type": "Annotation",
              "motivation": "commenting",
              "body": {"type": "TextualBody", "value": "photograph: a building", "format": "text/plain"},
              "target": "https://example.org/test/canvas/1#xywh=10,20,300,400"
            },
            {
              "id": "https://example.org/test/canvas/1/annotation/a2",
              "type": "Annotation",
              "motivation": "commenting",
              "body": {"type": "TextualBody", "value": "Photograph: people in a street", "format": "text/plain"},
              "target": "https://example.org/test/canvas/1"
            },
            {
              "id": "https://example.org/test/canvas/1/annotation/a3",
              "type": "Annotation",
              "motivation": "commenting",
              "body": {"type": "TextualBody", "value": "paragraph: some text", "format": "text/plain"},
              "target": "https://example.org/test/canvas/1#xywh=0,0,100,100"
            }
          ]
        }
      ]
    }
  ]
}`

func mustParse(t *testing.T, data string) *Document {
	t.Helper()
	doc, err := Parse([]byte(data))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return doc
}

func TestExtract_FiltersByMarker(t *testing.T) {
	doc := mustParse(t, testManifestV3)
	regions, err := NewExtractor("").Extract(doc)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if len(regions) != 2 {
		t.Fatalf("expected 2 qualifying regions, got %d", len(regions))
	}
	if regions[0].ID != "https://example.org/test/canvas/1/annotation/a1" {
		t.Errorf("unexpected first region: %s", regions[0].ID)
	}
	if regions[1].Label != "Photograph: people in a street" {
		t.Errorf("marker match should be case-insensitive, got %q", regions[1].Label)
	}
}

func TestExtract_CropAndImageURL(t *testing.T) {
	doc := mustParse(t, testManifestV3)
	regions, err := NewExtractor("photograph").Extract(doc)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}

	cropped := regions[0]
	if cropped.Crop == nil {
		t.Fatal("expected crop on first region")
	}
	if got := cropped.Crop.String(); got != "10,20,300,400" {
		t.Errorf("unexpected crop: %s", got)
	}
	wantURL := "https://images.example.org/img1/10,20,300,400/max/0/default.jpg"
	if cropped.ImageURL != wantURL {
		t.Errorf("image url = %q, want %q", cropped.ImageURL, wantURL)
	}

	full := regions[1]
	if full.Crop != nil {
		t.Error("expected nil crop for full-canvas annotation")
	}
	if full.ImageURL != "https://images.example.org/img1/full/max/0/default.jpg" {
		t.Errorf("unexpected full image url: %s", full.ImageURL)
	}
}

func TestExtract_Deterministic(t *testing.T) {
	doc := mustParse(t, testManifestV3)
	ex := NewExtractor("photograph")

	first, err := ex.Extract(doc)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	second, err := ex.Extract(doc)
	if err != nil {
		t.Fatalf("re-extract: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Error("re-extraction yielded a different sequence")
	}
}

func TestExtract_NoQualifyingRegions(t *testing.T) {
	doc := mustParse(t, testManifestV3)
	regions, err := NewExtractor("watercolor").Extract(doc)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if len(regions) != 0 {
		t.Errorf("expected no regions, got %d", len(regions))
	}
}

func TestExtract_EmptyManifest(t *testing.T) {
	doc := mustParse(t, `{"id": "https://example.org/empty.json", "type": "Manifest"}`)
	regions, err := NewExtractor("photograph").Extract(doc)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if len(regions) != 0 {
		t.Errorf("expected no regions, got %d", len(regions))
	}
}

func TestExtract_MissingImageService(t *testing.T) {
	doc := mustParse(t, `{
	  "id": "https://example.org/bad.json",
	  "items": [{
	    "id": "https://example.org/bad/canvas/1",
	    "width": 100, "height": 100,
	    "items": [],
	    "annotations": [{
	      "type": "AnnotationPage",
	      "items": [{
	        "id": "https://example.org/bad/canvas/1/annotation/a1",
	        "body": {"type": "TextualBody", "value": "photograph: x"},
	        "target": "https://example.org/bad/canvas/1"
	      }]
	    }]
	  }]
	}`)

	_, err := NewExtractor("photograph").Extract(doc)
	if !errors.Is(err, domain.ErrMalformedManifest) {
		t.Errorf("expected ErrMalformedManifest, got %v", err)
	}
}

func TestExtract_CropOutsideCanvas(t *testing.T) {
	doc := mustParse(t, fmt.Sprintf(`{
	  "id": "https://example.org/oob.json",
	  "items": [{
	    "id": "https://example.org/oob/canvas/1",
	    "width": 100, "height": 100,
	    "items": [{"type": "AnnotationPage", "items": [{
	      "body": {"service": [{"id": "https://images.example.org/img1"}]}
	    }]}],
	    "annotations": [{
	      "type": "AnnotationPage",
	      "items": [{
	        "id": "https://example.org/oob/canvas/1/annotation/a1",
	        "body": {"type": "TextualBody", "value": "photograph: x"},
	        "target": "https://example.org/oob/canvas/1#xywh=%s"
	      }]
	    }]
	  }]
	}`, "50,50,100,100"))

	_, err := NewExtractor("photograph").Extract(doc)
	if !errors.Is(err, domain.ErrMalformedManifest) {
		t.Errorf("expected ErrMalformedManifest for out-of-bounds crop, got %v", err)
	}
}

func TestExtract_PresentationV2(t *testing.T) {
	doc := mustParse(t, `{
	  "@context": "http://iiif.io/api/presentation/2/context.json",
	  "@id": "https://example.org/v2/manifest.json",
	  "@type": "sc:Manifest",
	  "sequences": [{
	    "canvases": [{
	      "@id": "https://example.org/v2/canvas/1",
	      "width": 1000, "height": 1500,
	      "images": [{
	        "resource": {
	          "@id": "https://images.example.org/v2img/full/max/0/default.jpg",
	          "service": {"@id": "https://images.example.org/v2img"}
	        }
	      }],
	      "otherContent": [{
	        "@type": "sc:AnnotationList",
	        "resources": [{
	          "@id": "https://example.org/v2/anno/1",
	          "resource": {"@type": "cnt:ContentAsText", "chars": "photograph: harbour"},
	          "on": "https://example.org/v2/canvas/1#xywh=5,5,200,200"
	        }]
	      }]
	    }]
	  }]
	}`)

	regions, err := NewExtractor("photograph").Extract(doc)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if len(regions) != 1 {
		t.Fatalf("expected 1 region, got %d", len(regions))
	}
	r := regions[0]
	if r.ManifestID != "https://example.org/v2/manifest.json" {
		t.Errorf("unexpected manifest id: %s", r.ManifestID)
	}
	if r.ImageURL != "https://images.example.org/v2img/5,5,200,200/max/0/default.jpg" {
		t.Errorf("unexpected image url: %s", r.ImageURL)
	}
}

func TestParse_Invalid(t *testing.T) {
	if _, err := Parse([]byte("not json")); !errors.Is(err, domain.ErrMalformedManifest) {
		t.Errorf("expected ErrMalformedManifest, got %v", err)
	}
}
