package indexing

import (
	"context"

	"github.com/openglam/photosearch/internal/domain"
	"github.com/openglam/photosearch/internal/manifest"
)

// Extractor yields the qualifying regions of a manifest.
type Extractor interface {
	Extract(doc *manifest.Document) ([]domain.Region, error)
}

// Embedder encodes a region's image into a vector.
type Embedder interface {
	EmbedImage(ctx context.Context, imageURL string) ([]float32, error)
}

// Index writes embedding records into a named collection.
type Index interface {
	Upsert(ctx context.Context, collection string, records []domain.EmbeddingRecord) error
}
