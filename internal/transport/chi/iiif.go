package chi

import "github.com/openglam/photosearch/internal/domain"

const (
	presentationContext = "http://iiif.io/api/presentation/2/context.json"
	searchContext       = "http://iiif.io/api/search/0/context.json"
)

// annotationList is the Content Search response body. Viewers paint each
// resource onto its canvas at the #xywh fragment of the "on" field.
type annotationList struct {
	Context   []string     `json:"@context"`
	ID        string       `json:"@id"`
	Type      string       `json:"@type"`
	Within    layer        `json:"within"`
	Resources []annotation `json:"resources"`
	Hits      []resultHit  `json:"hits"`
}

type layer struct {
	Type  string `json:"@type"`
	Total int    `json:"total"`
}

type annotation struct {
	ID         string   `json:"@id"`
	Type       string   `json:"@type"`
	Motivation string   `json:"motivation"`
	Resource   textBody `json:"resource"`
	On         string   `json:"on"`
	Thumbnail  string   `json:"thumbnail,omitempty"`
	Score      float32  `json:"score"`
}

type textBody struct {
	Type  string `json:"@type"`
	Chars string `json:"chars"`
}

type resultHit struct {
	Type        string   `json:"@type"`
	Annotations []string `json:"annotations"`
}

type termList struct {
	Context string   `json:"@context"`
	ID      string   `json:"@id"`
	Type    string   `json:"@type"`
	Terms   []string `json:"terms"`
}

// newAnnotationList converts ranked hits into the wire shape. Slices are
// always non-nil so empty results serialize as [] rather than null.
func newAnnotationList(requestURL string, hits []domain.SearchHit) annotationList {
	resources := make([]annotation, 0, len(hits))
	resultHits := make([]resultHit, 0, len(hits))

	for _, h := range hits {
		on := h.Payload.CanvasID
		if h.Payload.Crop != "" {
			on += "#xywh=" + h.Payload.Crop
		}
		resources = append(resources, annotation{
			ID:         h.RegionID,
			Type:       "oa:Annotation",
			Motivation: "sc:painting",
			Resource:   textBody{Type: "cnt:ContentAsText", Chars: h.Payload.Label},
			On:         on,
			Thumbnail:  h.Payload.ImageURL,
			Score:      h.Score,
		})
		resultHits = append(resultHits, resultHit{
			Type:        "search:Hit",
			Annotations: []string{h.RegionID},
		})
	}

	return annotationList{
		Context:   []string{presentationContext, searchContext},
		ID:        requestURL,
		Type:      "sc:AnnotationList",
		Within:    layer{Type: "sc:Layer", Total: len(hits)},
		Resources: resources,
		Hits:      resultHits,
	}
}

func newTermList(requestURL string) termList {
	return termList{
		Context: searchContext,
		ID:      requestURL,
		Type:    "search:TermList",
		Terms:   []string{},
	}
}
