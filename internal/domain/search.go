package domain

import "sort"

// DefaultTopK is the result limit used when a query does not specify one.
const DefaultTopK = 10

// Query is a single search request against one manifest's index.
type Query struct {
	Text           string
	ManifestID     string
	TopK           int
	ScoreThreshold float32 // 0 disables threshold filtering
}

// SearchHit is a single ranked result from the vector index.
type SearchHit struct {
	RegionID string
	Score    float32
	Payload  Payload
}

// SortHits orders hits by descending score; equal scores are broken by
// ascending region id so repeated searches return a stable order.
func SortHits(hits []SearchHit) {
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].RegionID < hits[j].RegionID
	})
}
