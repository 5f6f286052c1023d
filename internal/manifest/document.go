// Package manifest reads IIIF Presentation documents, extracts searchable
// photograph regions from their annotations, and attaches the Content Search
// service descriptor to an indexed manifest.
package manifest

import (
	"encoding/json"
	"fmt"

	"github.com/openglam/photosearch/internal/domain"
)

// Document is a parsed IIIF Presentation manifest (version 2 or 3). The
// underlying JSON is kept as a generic tree so unknown fields survive a
// parse/annotate/serialize round trip untouched.
type Document struct {
	root map[string]any
}

// Parse decodes manifest JSON. The top level must be a JSON object.
func Parse(data []byte) (*Document, error) {
	var root map[string]any
	if err := json.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("parse manifest: %v: %w", err, domain.ErrMalformedManifest)
	}
	return &Document{root: root}, nil
}

// ID returns the manifest identifier ("id" in v3, "@id" in v2).
func (d *Document) ID() string {
	if id := str(d.root, "id"); id != "" {
		return id
	}
	return str(d.root, "@id")
}

// Bytes serializes the document back to indented JSON.
func (d *Document) Bytes() ([]byte, error) {
	data, err := json.MarshalIndent(d.root, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("serialize manifest: %w", err)
	}
	return data, nil
}

// str reads a string field from a generic JSON object.
func str(m map[string]any, key string) string {
	if s, ok := m[key].(string); ok {
		return s
	}
	return ""
}

// num reads a numeric field, returning 0 when absent or non-numeric.
func num(m map[string]any, key string) int {
	if f, ok := m[key].(float64); ok {
		return int(f)
	}
	return 0
}

// obj reads an object field.
func obj(m map[string]any, key string) map[string]any {
	if o, ok := m[key].(map[string]any); ok {
		return o
	}
	return nil
}

// list reads an array field.
func list(m map[string]any, key string) []any {
	if l, ok := m[key].([]any); ok {
		return l
	}
	return nil
}

// objAt returns element i of an array field as an object.
func objAt(l []any, i int) map[string]any {
	if i < 0 || i >= len(l) {
		return nil
	}
	if o, ok := l[i].(map[string]any); ok {
		return o
	}
	return nil
}
