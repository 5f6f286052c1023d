package domain

import (
	"context"
	"math"
)

// ImageEmbedder encodes an image (full or cropped, addressed by URL) into a
// fixed-length vector.
type ImageEmbedder interface {
	EmbedImage(ctx context.Context, imageURL string) ([]float32, error)
}

// TextEmbedder encodes a text query into a vector in the same metric space as
// the image vectors.
type TextEmbedder interface {
	EmbedText(ctx context.Context, text string) ([]float32, error)
}

// HealthChecker verifies embedding backend availability.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Normalize scales v to unit length in place and returns it. Vectors must be
// unit length before they cross the embedder boundary so cosine similarity and
// dot product agree downstream. A zero vector is returned unchanged.
func Normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return v
	}
	norm := math.Sqrt(sum)
	for i := range v {
		v[i] = float32(float64(v[i]) / norm)
	}
	return v
}
