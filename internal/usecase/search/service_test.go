package search

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"go.uber.org/zap"

	"github.com/openglam/photosearch/internal/domain"
)

// --- Mocks ---

type mockEmbedder struct {
	vectors map[string][]float32
	err     error
	calls   int
}

func (m *mockEmbedder) EmbedText(_ context.Context, text string) ([]float32, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	vec, ok := m.vectors[text]
	if !ok {
		return nil, fmt.Errorf("no fixture vector for %q", text)
	}
	return vec, nil
}

// memIndex ranks stored records by cosine similarity, the way the real
// backend does for unit-length vectors.
type memIndex struct {
	collections map[string][]domain.EmbeddingRecord
	err         error
}

func newMemIndex() *memIndex {
	return &memIndex{collections: map[string][]domain.EmbeddingRecord{}}
}

func (m *memIndex) add(collection string, records ...domain.EmbeddingRecord) {
	m.collections[collection] = append(m.collections[collection], records...)
}

func (m *memIndex) Query(_ context.Context, collection string, vector []float32, q domain.Query) ([]domain.SearchHit, error) {
	if m.err != nil {
		return nil, m.err
	}
	records, ok := m.collections[collection]
	if !ok {
		return nil, fmt.Errorf("collection %s: %w", collection, domain.ErrNotFound)
	}

	var hits []domain.SearchHit
	for _, rec := range records {
		var score float32
		for i := range vector {
			score += vector[i] * rec.Vector[i]
		}
		if q.ScoreThreshold > 0 && score < q.ScoreThreshold {
			continue
		}
		hits = append(hits, domain.SearchHit{RegionID: rec.RegionID, Score: score, Payload: rec.Payload})
	}
	domain.SortHits(hits)
	if len(hits) > q.TopK {
		hits = hits[:q.TopK]
	}
	return hits, nil
}

func testCollection(manifestID string) string { return "coll_" + manifestID }

// --- Tests ---

func TestSearch_RanksBySimilarity(t *testing.T) {
	// Axis-aligned fixture vectors: the query for "a building" points at the
	// building region's axis, with a small component toward the people region.
	emb := &mockEmbedder{vectors: map[string][]float32{
		"a building": {0.9, 0.1, 0},
	}}
	idx := newMemIndex()
	idx.add(testCollection("m1"),
		domain.EmbeddingRecord{
			RegionID: "https://example.org/m1/anno/building",
			Vector:   []float32{1, 0, 0},
			Payload:  domain.Payload{ManifestID: "m1", Label: "photograph of a building"},
		},
		domain.EmbeddingRecord{
			RegionID: "https://example.org/m1/anno/people",
			Vector:   []float32{0, 1, 0},
			Payload:  domain.Payload{ManifestID: "m1", Label: "photograph of people"},
		},
	)
	svc := New(emb, idx, testCollection, zap.NewNop())

	hits, err := svc.Search(context.Background(), domain.Query{Text: "a building", ManifestID: "m1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("expected 2 hits, got %d", len(hits))
	}
	if hits[0].RegionID != "https://example.org/m1/anno/building" {
		t.Errorf("best hit = %s, want the building region", hits[0].RegionID)
	}
	if hits[0].Score <= hits[1].Score {
		t.Errorf("hits not ordered by score: %v then %v", hits[0].Score, hits[1].Score)
	}
}

func TestSearch_TopKTruncates(t *testing.T) {
	emb := &mockEmbedder{vectors: map[string][]float32{"q": {1, 0, 0}}}
	idx := newMemIndex()
	for i := 0; i < 5; i++ {
		idx.add(testCollection("m1"), domain.EmbeddingRecord{
			RegionID: fmt.Sprintf("anno/%d", i),
			Vector:   []float32{float32(i) / 10, 0, 0},
		})
	}
	svc := New(emb, idx, testCollection, zap.NewNop())

	hits, err := svc.Search(context.Background(), domain.Query{Text: "q", ManifestID: "m1", TopK: 2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(hits) != 2 {
		t.Errorf("expected 2 hits, got %d", len(hits))
	}
	if hits[0].RegionID != "anno/4" {
		t.Errorf("best hit = %s, want anno/4", hits[0].RegionID)
	}
}

func TestSearch_ScoreThresholdFilters(t *testing.T) {
	emb := &mockEmbedder{vectors: map[string][]float32{"q": {1, 0, 0}}}
	idx := newMemIndex()
	idx.add(testCollection("m1"),
		domain.EmbeddingRecord{RegionID: "anno/close", Vector: []float32{0.9, 0, 0}},
		domain.EmbeddingRecord{RegionID: "anno/far", Vector: []float32{0.1, 0, 0}},
	)
	svc := New(emb, idx, testCollection, zap.NewNop())

	hits, err := svc.Search(context.Background(),
		domain.Query{Text: "q", ManifestID: "m1", ScoreThreshold: 0.5})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(hits) != 1 || hits[0].RegionID != "anno/close" {
		t.Errorf("expected only the close region, got %+v", hits)
	}
}

func TestSearch_UnindexedManifestIsEmpty(t *testing.T) {
	emb := &mockEmbedder{vectors: map[string][]float32{"q": {1}}}
	svc := New(emb, newMemIndex(), testCollection, zap.NewNop())

	hits, err := svc.Search(context.Background(), domain.Query{Text: "q", ManifestID: "never-indexed"})
	if err != nil {
		t.Fatalf("unindexed manifest must not error: %v", err)
	}
	if len(hits) != 0 {
		t.Errorf("expected no hits, got %d", len(hits))
	}
}

func TestSearch_InvalidQuery(t *testing.T) {
	emb := &mockEmbedder{vectors: map[string][]float32{}}
	svc := New(emb, newMemIndex(), testCollection, zap.NewNop())

	cases := []struct {
		name string
		q    domain.Query
	}{
		{"empty text", domain.Query{Text: "   ", ManifestID: "m1"}},
		{"missing manifest", domain.Query{Text: "q"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.Search(context.Background(), tc.q); !errors.Is(err, domain.ErrInvalidQuery) {
				t.Errorf("expected ErrInvalidQuery, got %v", err)
			}
			if emb.calls != 0 {
				t.Error("invalid query must be rejected before embedding")
			}
		})
	}
}

func TestSearch_EmbedderFailurePropagates(t *testing.T) {
	embErr := fmt.Errorf("backend: %w", domain.ErrEmbeddingUnavailable)
	svc := New(&mockEmbedder{err: embErr}, newMemIndex(), testCollection, zap.NewNop())

	if _, err := svc.Search(context.Background(), domain.Query{Text: "q", ManifestID: "m1"}); !errors.Is(err, domain.ErrEmbeddingUnavailable) {
		t.Errorf("expected ErrEmbeddingUnavailable, got %v", err)
	}
}

func TestSearch_IndexFailurePropagates(t *testing.T) {
	emb := &mockEmbedder{vectors: map[string][]float32{"q": {1}}}
	idx := newMemIndex()
	idx.err = fmt.Errorf("qdrant: %w", domain.ErrIndexBackend)
	svc := New(emb, idx, testCollection, zap.NewNop())

	if _, err := svc.Search(context.Background(), domain.Query{Text: "q", ManifestID: "m1"}); !errors.Is(err, domain.ErrIndexBackend) {
		t.Errorf("expected ErrIndexBackend, got %v", err)
	}
}

func TestSearch_DefaultTopK(t *testing.T) {
	emb := &mockEmbedder{vectors: map[string][]float32{"q": {1, 0, 0}}}
	idx := newMemIndex()
	for i := 0; i < domain.DefaultTopK+5; i++ {
		idx.add(testCollection("m1"), domain.EmbeddingRecord{
			RegionID: fmt.Sprintf("anno/%d", i),
			Vector:   []float32{1, 0, 0},
		})
	}
	svc := New(emb, idx, testCollection, zap.NewNop())

	hits, err := svc.Search(context.Background(), domain.Query{Text: "q", ManifestID: "m1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(hits) != domain.DefaultTopK {
		t.Errorf("expected %d hits, got %d", domain.DefaultTopK, len(hits))
	}
}
