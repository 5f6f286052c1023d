package qdrant

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/google/uuid"
	qdrant "github.com/qdrant/go-client/qdrant"

	"github.com/openglam/photosearch/internal/domain"
)

// CollectionName derives the collection holding a manifest's vectors. It is a
// pure function of the manifest id so independent processes (indexer, server)
// agree on where a manifest lives.
func CollectionName(manifestID string) string {
	sum := sha256.Sum256([]byte(manifestID))
	return "photos_" + hex.EncodeToString(sum[:8])
}

// PointID derives the Qdrant point id for a region. Qdrant point ids must be
// UUIDs or integers, and region ids are annotation URLs, so a UUIDv5 of the
// (manifest id, region id) pair is used. Deterministic: re-indexing the same
// region targets the same point.
func PointID(manifestID, regionID string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(manifestID+"\x00"+regionID)).String()
}

// payloadToMap flattens a record payload into the stored Qdrant payload.
func payloadToMap(regionID string, p domain.Payload) map[string]any {
	m := map[string]any{
		"annotation_id": regionID,
		"manifest_id":   p.ManifestID,
		"canvas_id":     p.CanvasID,
		"thumbnail_url": p.ImageURL,
		"label":         p.Label,
	}
	if p.Crop != "" {
		m["xywh"] = p.Crop
	}
	return m
}

// payloadFromMap rebuilds the region id and payload from a stored point.
func payloadFromMap(values map[string]*qdrant.Value) (string, domain.Payload) {
	get := func(key string) string {
		if v, ok := values[key]; ok {
			return v.GetStringValue()
		}
		return ""
	}
	return get("annotation_id"), domain.Payload{
		ManifestID: get("manifest_id"),
		CanvasID:   get("canvas_id"),
		ImageURL:   get("thumbnail_url"),
		Crop:       get("xywh"),
		Label:      get("label"),
	}
}
