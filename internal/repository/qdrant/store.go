// Package qdrant implements the vector index adapter on top of the official
// Qdrant Go client: collection lifecycle, idempotent upserts keyed by region,
// and filtered nearest-neighbor queries.
package qdrant

import (
	"context"
	"fmt"
	"sync"

	qdrant "github.com/qdrant/go-client/qdrant"
	"go.uber.org/zap"

	"github.com/openglam/photosearch/internal/domain"
)

// Config holds connection parameters for a Qdrant instance.
type Config struct {
	Host       string
	Port       int
	APIKey     string
	UseTLS     bool
	Dimensions int
}

// Store is the production vector index adapter.
type Store struct {
	client *qdrant.Client
	dim    uint64
	logger *zap.Logger

	mu      sync.Mutex
	ensured map[string]struct{}
}

// NewStore connects to Qdrant. The gRPC connection is lightweight, so
// connectivity is verified immediately via a health check.
func NewStore(cfg Config, logger *zap.Logger) (*Store, error) {
	port := cfg.Port
	if port == 0 {
		port = 6334
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("create qdrant client: %w", err)
	}

	s := &Store{
		client:  client,
		dim:     uint64(cfg.Dimensions),
		logger:  logger,
		ensured: make(map[string]struct{}),
	}

	if err := s.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("qdrant unreachable: %w", err)
	}

	logger.Info("Connected to qdrant",
		zap.String("host", cfg.Host),
		zap.Int("port", port),
		zap.Int("dimensions", cfg.Dimensions),
	)
	return s, nil
}

// Ping checks service availability.
func (s *Store) Ping(ctx context.Context) error {
	if _, err := s.client.HealthCheck(ctx); err != nil {
		return fmt.Errorf("health check: %w", err)
	}
	return nil
}

// Close shuts down the underlying gRPC connection.
func (s *Store) Close() {
	_ = s.client.Close()
}

// ensureCollection creates the collection if absent. Safe for concurrent
// first use: the ensured set is guarded by a mutex, and creation races against
// other processes fall back to an existence re-check.
func (s *Store) ensureCollection(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.ensured[name]; ok {
		return nil
	}

	exists, err := s.client.CollectionExists(ctx, name)
	if err != nil {
		return fmt.Errorf("collection exists %q: %v: %w", name, err, domain.ErrIndexBackend)
	}
	if !exists {
		err := s.client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: name,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     s.dim,
				Distance: qdrant.Distance_Cosine,
			}),
		})
		if err != nil {
			// Another process may have created it between the check and now.
			if exists, checkErr := s.client.CollectionExists(ctx, name); checkErr != nil || !exists {
				return fmt.Errorf("create collection %q: %v: %w", name, err, domain.ErrIndexBackend)
			}
		} else {
			s.logger.Info("Created collection", zap.String("collection", name))
		}
	}

	s.ensured[name] = struct{}{}
	return nil
}

// Upsert writes records into the collection, creating it if needed. Re-writing
// a region id overwrites its vector and payload: point ids are a deterministic
// function of (manifest id, region id).
func (s *Store) Upsert(ctx context.Context, collection string, records []domain.EmbeddingRecord) error {
	if len(records) == 0 {
		return nil
	}
	if err := s.ensureCollection(ctx, collection); err != nil {
		return err
	}

	points := make([]*qdrant.PointStruct, 0, len(records))
	for _, rec := range records {
		points = append(points, &qdrant.PointStruct{
			Id:      qdrant.NewID(PointID(rec.Payload.ManifestID, rec.RegionID)),
			Vectors: qdrant.NewVectors(rec.Vector...),
			Payload: qdrant.NewValueMap(payloadToMap(rec.RegionID, rec.Payload)),
		})
	}

	wait := true
	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: collection,
		Points:         points,
		Wait:           &wait,
	})
	if err != nil {
		return fmt.Errorf("upsert %d points into %q: %v: %w",
			len(points), collection, err, domain.ErrIndexBackend)
	}

	s.logger.Debug("Upserted points",
		zap.String("collection", collection),
		zap.Int("count", len(points)),
	)
	return nil
}

// Query returns the nearest hits for the vector, filtered to the query's
// manifest. A missing collection yields domain.ErrNotFound so callers can
// distinguish "never indexed" from a backend failure.
func (s *Store) Query(
	ctx context.Context, collection string, vector []float32, q domain.Query,
) ([]domain.SearchHit, error) {
	exists, err := s.client.CollectionExists(ctx, collection)
	if err != nil {
		return nil, fmt.Errorf("collection exists %q: %v: %w", collection, err, domain.ErrIndexBackend)
	}
	if !exists {
		return nil, fmt.Errorf("collection %q: %w", collection, domain.ErrNotFound)
	}

	limit := uint64(q.TopK)
	req := &qdrant.QueryPoints{
		CollectionName: collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(true),
	}
	if q.ScoreThreshold > 0 {
		threshold := q.ScoreThreshold
		req.ScoreThreshold = &threshold
	}
	if q.ManifestID != "" {
		req.Filter = &qdrant.Filter{
			Must: []*qdrant.Condition{qdrant.NewMatch("manifest_id", q.ManifestID)},
		}
	}

	points, err := s.client.Query(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("query %q: %v: %w", collection, err, domain.ErrIndexBackend)
	}

	hits := make([]domain.SearchHit, 0, len(points))
	for _, p := range points {
		regionID, payload := payloadFromMap(p.Payload)
		hits = append(hits, domain.SearchHit{
			RegionID: regionID,
			Score:    p.Score,
			Payload:  payload,
		})
	}
	return hits, nil
}

// DeleteCollection drops a manifest's collection and all of its vectors.
func (s *Store) DeleteCollection(ctx context.Context, name string) error {
	if err := s.client.DeleteCollection(ctx, name); err != nil {
		return fmt.Errorf("delete collection %q: %v: %w", name, err, domain.ErrIndexBackend)
	}
	s.mu.Lock()
	delete(s.ensured, name)
	s.mu.Unlock()
	return nil
}
