package search

import (
	"context"

	"github.com/openglam/photosearch/internal/domain"
)

// Index runs a vector similarity query against a named collection.
type Index interface {
	Query(ctx context.Context, collection string, vector []float32, q domain.Query) ([]domain.SearchHit, error)
}
