// Package search answers free-text queries against the embedded photograph
// regions of a single manifest.
package search

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/openglam/photosearch/internal/domain"
)

// Service embeds the query text and ranks indexed regions by similarity.
type Service struct {
	embedder    domain.TextEmbedder
	index       Index
	collections func(manifestID string) string
	logger      *zap.Logger
}

// New creates a search service. collections derives the collection name from a
// manifest id, matching the one used at indexing time.
func New(embedder domain.TextEmbedder, index Index, collections func(manifestID string) string, logger *zap.Logger) *Service {
	return &Service{embedder: embedder, index: index, collections: collections, logger: logger}
}

// Search returns the regions of q.ManifestID most similar to q.Text, best
// first. A manifest that was never indexed yields an empty result, not an
// error.
func (s *Service) Search(ctx context.Context, q domain.Query) ([]domain.SearchHit, error) {
	if strings.TrimSpace(q.Text) == "" {
		return nil, fmt.Errorf("%w: empty query text", domain.ErrInvalidQuery)
	}
	if strings.TrimSpace(q.ManifestID) == "" {
		return nil, fmt.Errorf("%w: missing manifest id", domain.ErrInvalidQuery)
	}
	if q.TopK <= 0 {
		q.TopK = domain.DefaultTopK
	}

	vec, err := s.embedder.EmbedText(ctx, q.Text)
	if err != nil {
		return nil, fmt.Errorf("vectorize query: %w", err)
	}

	hits, err := s.index.Query(ctx, s.collections(q.ManifestID), vec, q)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			s.logger.Debug("Manifest not indexed", zap.String("manifest_id", q.ManifestID))
			return nil, nil
		}
		return nil, fmt.Errorf("query index: %w", err)
	}

	// The backend already ranks by score; re-sort to pin the tie order.
	domain.SortHits(hits)
	if len(hits) > q.TopK {
		hits = hits[:q.TopK]
	}
	return hits, nil
}
