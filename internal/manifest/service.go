package manifest

import (
	"net/url"
	"strings"
)

// IIIF Content Search context and profiles attached to indexed manifests.
const (
	searchContext       = "http://iiif.io/api/search/0/context.json"
	searchProfile       = "http://iiif.io/api/search/0/search"
	autocompleteProfile = "http://iiif.io/api/search/0/autocomplete"
)

// AttachSearchService injects the Content Search service descriptor pointing
// at the deployed search endpoint for this manifest. Re-attaching replaces any
// previous search descriptor instead of duplicating it; unrelated services on
// the manifest are preserved.
func AttachSearchService(doc *Document, baseURL, manifestID string) {
	base := strings.TrimSuffix(baseURL, "/")

	block := map[string]any{
		"@context": searchContext,
		"@id":      base + "/search?manifest=" + url.QueryEscape(manifestID),
		"profile":  searchProfile,
		"label":    "Image Content Search",
		"service": map[string]any{
			"@id":     base + "/search/autocomplete",
			"profile": autocompleteProfile,
			"label":   "Autocomplete",
		},
	}

	var services []any
	for _, sv := range list(doc.root, "service") {
		svc, ok := sv.(map[string]any)
		if ok && str(svc, "profile") == searchProfile {
			continue // drop the stale search descriptor
		}
		services = append(services, sv)
	}
	doc.root["service"] = append(services, block)
}
