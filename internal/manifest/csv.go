package manifest

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/openglam/photosearch/internal/domain"
)

// csvRow is one annotation row of a tabular export. The "page" row of an image
// defines its canvas; all other rows become region annotations.
type csvRow struct {
	id       string
	imageID  string
	imageURL string
	typ      string
	name     string
	polygon  [][]float64
}

// ConvertCSV reads a tabular export (columns: id, image_id, image_url, type,
// name, polygon) and builds a Presentation 3 manifest consumable by the
// extractor. Identifiers are minted under baseURL; rows are grouped per image
// in first-seen order so conversion is deterministic.
func ConvertCSV(r io.Reader, baseURL string) (*Document, error) {
	rows, order, err := readRows(r)
	if err != nil {
		return nil, err
	}

	base := strings.TrimSuffix(baseURL, "/")
	root := map[string]any{
		"@context": "http://iiif.io/api/presentation/3/context.json",
		"id":       base + "/manifest.json",
		"type":     "Manifest",
		"label":    map[string]any{"en": []any{"Generated Manifest from CSV"}},
	}

	items := make([]any, 0, len(order))
	for _, imageID := range order {
		canvas, err := buildCanvas(base, imageID, rows[imageID])
		if err != nil {
			return nil, err
		}
		items = append(items, canvas)
	}
	root["items"] = items

	return &Document{root: root}, nil
}

// readRows parses the CSV and groups rows by image id, keeping encounter order.
func readRows(r io.Reader) (map[string][]csvRow, []string, error) {
	reader := csv.NewReader(r)
	records, err := reader.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("read csv: %w", err)
	}
	if len(records) == 0 {
		return nil, nil, fmt.Errorf("csv has no header row")
	}

	col := map[string]int{}
	for i, name := range records[0] {
		col[strings.TrimSpace(name)] = i
	}
	for _, required := range []string{"id", "image_id", "image_url", "type", "name", "polygon"} {
		if _, ok := col[required]; !ok {
			return nil, nil, fmt.Errorf("csv missing column %q", required)
		}
	}

	rows := make(map[string][]csvRow)
	var order []string
	for _, rec := range records[1:] {
		row := csvRow{
			id:       rec[col["id"]],
			imageID:  rec[col["image_id"]],
			imageURL: rec[col["image_url"]],
			typ:      rec[col["type"]],
			name:     rec[col["name"]],
			polygon:  parsePolygon(rec[col["polygon"]]),
		}
		if _, seen := rows[row.imageID]; !seen {
			order = append(order, row.imageID)
		}
		rows[row.imageID] = append(rows[row.imageID], row)
	}
	return rows, order, nil
}

// parsePolygon decodes a "[[x, y], ...]" point list. Malformed values yield an
// empty polygon rather than failing the whole conversion.
func parsePolygon(s string) [][]float64 {
	var points [][]float64
	if err := json.Unmarshal([]byte(s), &points); err != nil {
		return nil
	}
	return points
}

// bbox computes the bounding rectangle of a polygon. Points with fewer than
// two coordinates are ignored; a polygon without any full point yields the
// zero crop.
func bbox(points [][]float64) domain.Crop {
	var minX, minY, maxX, maxY float64
	seeded := false
	for _, p := range points {
		if len(p) < 2 {
			continue
		}
		if !seeded {
			minX, minY = p[0], p[1]
			maxX, maxY = p[0], p[1]
			seeded = true
			continue
		}
		minX, maxX = min(minX, p[0]), max(maxX, p[0])
		minY, maxY = min(minY, p[1]), max(maxY, p[1])
	}
	if !seeded {
		return domain.Crop{}
	}
	return domain.Crop{
		X: int(minX), Y: int(minY),
		W: int(maxX - minX), H: int(maxY - minY),
	}
}

// buildCanvas assembles one canvas with its painting annotation and the
// region annotations of the remaining rows.
func buildCanvas(base, imageID string, rows []csvRow) (map[string]any, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("image %q has no rows", imageID)
	}

	// The page row defines the canvas dimensions. Without one, fall back to
	// the union of all annotation polygons.
	main := rows[0]
	var dims domain.Crop
	pageFound := false
	for _, row := range rows {
		if row.typ == "page" {
			main = row
			dims = bbox(row.polygon)
			pageFound = true
			break
		}
	}
	if !pageFound {
		var all [][]float64
		for _, row := range rows {
			all = append(all, row.polygon...)
		}
		dims = bbox(all)
		if dims.W == 0 || dims.H == 0 {
			dims = domain.Crop{W: 1000, H: 1000}
		}
	}

	canvasID := fmt.Sprintf("%s/canvas/%s", base, imageID)
	canvas := map[string]any{
		"id":     canvasID,
		"type":   "Canvas",
		"width":  dims.W,
		"height": dims.H,
		"label":  map[string]any{"none": []any{main.name}},
		"items": []any{
			map[string]any{
				"id":   canvasID + "/annotation/page",
				"type": "AnnotationPage",
				"items": []any{
					map[string]any{
						"id":         canvasID + "/annotation/image",
						"type":       "Annotation",
						"motivation": "painting",
						"body": map[string]any{
							"id":     main.imageURL + "/full/max/0/default.jpg",
							"type":   "Image",
							"format": "image/jpeg",
							"service": []any{
								map[string]any{
									"id":      main.imageURL,
									"type":    "ImageService2",
									"profile": "level1",
								},
							},
							"width":  dims.W,
							"height": dims.H,
						},
						"target": canvasID,
					},
				},
			},
		},
	}

	var annos []any
	for _, row := range rows {
		if row.typ == "page" {
			continue
		}
		box := bbox(row.polygon)
		annos = append(annos, map[string]any{
			"id":         fmt.Sprintf("%s/annotation/%s", canvasID, row.id),
			"type":       "Annotation",
			"motivation": "commenting",
			"body": map[string]any{
				"type":   "TextualBody",
				"value":  fmt.Sprintf("%s: %s", row.typ, row.name),
				"format": "text/plain",
			},
			"target": fmt.Sprintf("%s#xywh=%s", canvasID, box.String()),
		})
	}
	if len(annos) > 0 {
		canvas["annotations"] = []any{
			map[string]any{
				"id":    canvasID + "/annotations",
				"type":  "AnnotationPage",
				"items": annos,
			},
		}
	}

	return canvas, nil
}
