// Package indexing runs the offline pipeline that turns a manifest into a
// searchable vector collection plus an annotated manifest.
package indexing

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/openglam/photosearch/internal/domain"
	"github.com/openglam/photosearch/internal/manifest"
	"github.com/openglam/photosearch/internal/metrics"
)

// State is the pipeline's progress through a single manifest.
type State string

const (
	StateExtracting State = "extracting"
	StateEmbedding  State = "embedding"
	StateUpserting  State = "upserting"
	StateAnnotating State = "annotating"
	StateDone       State = "done"
	StateFailed     State = "failed"
)

// ErrTooManyRegionFailures aborts a run whose failed-region fraction exceeds
// the configured maximum. A search service covering only a minority of a
// manifest's content is worse than none.
var ErrTooManyRegionFailures = errors.New("too many region failures")

// RegionFailure records one region that could not be embedded.
type RegionFailure struct {
	RegionID string
	Err      error
}

// Report summarizes an indexing run. Indexing reports counts, not a single
// pass/fail bit: a run with a few skipped regions is still usable.
type Report struct {
	ManifestID string
	State      State
	Attempted  int
	Succeeded  int
	Failed     int
	Failures   []RegionFailure
}

// Service orchestrates extract -> embed -> upsert -> annotate for one
// manifest at a time.
type Service struct {
	extractor   Extractor
	embedder    Embedder
	index       Index
	collections func(manifestID string) string
	baseURL     string
	logger      *zap.Logger

	concurrency   int
	retryAttempts int
	retryBackoff  time.Duration
	maxFailFrac   float64
}

// New creates an indexing service. collections derives the collection name
// from a manifest id; baseURL is the public search endpoint injected into
// annotated manifests.
func New(
	extractor Extractor,
	embedder Embedder,
	index Index,
	collections func(manifestID string) string,
	baseURL string,
	logger *zap.Logger,
) *Service {
	return &Service{
		extractor:     extractor,
		embedder:      embedder,
		index:         index,
		collections:   collections,
		baseURL:       baseURL,
		logger:        logger,
		concurrency:   4,
		retryAttempts: 2,
		retryBackoff:  500 * time.Millisecond,
		maxFailFrac:   0.5,
	}
}

// WithConcurrency sets the embedding worker count.
func (s *Service) WithConcurrency(n int) *Service {
	if n > 0 {
		s.concurrency = n
	}
	return s
}

// WithRetry sets per-region retry attempts and the initial backoff.
func (s *Service) WithRetry(attempts int, backoff time.Duration) *Service {
	if attempts >= 0 {
		s.retryAttempts = attempts
	}
	if backoff > 0 {
		s.retryBackoff = backoff
	}
	return s
}

// WithMaxFailureFraction sets the failed-region fraction above which the run
// aborts.
func (s *Service) WithMaxFailureFraction(f float64) *Service {
	if f > 0 && f <= 1 {
		s.maxFailFrac = f
	}
	return s
}

// regionResult is the tagged per-region outcome folded after all workers
// finish.
type regionResult struct {
	record *domain.EmbeddingRecord
	err    error
}

// Run indexes one manifest. On success the document carries the search
// service descriptor; on failure the document is left unannotated and the
// report's State is StateFailed.
func (s *Service) Run(ctx context.Context, doc *manifest.Document) (Report, error) {
	report := Report{ManifestID: doc.ID(), State: StateExtracting}

	regions, err := s.extractor.Extract(doc)
	if err != nil {
		return s.fail(report, fmt.Errorf("extract regions: %w", err))
	}
	report.Attempted = len(regions)

	var records []domain.EmbeddingRecord
	if len(regions) > 0 {
		report.State = StateEmbedding
		results := s.embedAll(ctx, regions)
		if ctx.Err() != nil {
			return s.fail(report, fmt.Errorf("indexing aborted: %w", ctx.Err()))
		}

		for i, res := range results {
			if res.err != nil {
				report.Failed++
				report.Failures = append(report.Failures, RegionFailure{
					RegionID: regions[i].ID,
					Err:      res.err,
				})
				s.logger.Warn("Region skipped",
					zap.String("region_id", regions[i].ID),
					zap.Error(res.err),
				)
				continue
			}
			report.Succeeded++
			records = append(records, *res.record)
		}
		metrics.IndexedRegionsTotal.WithLabelValues("succeeded").Add(float64(report.Succeeded))
		metrics.IndexedRegionsTotal.WithLabelValues("failed").Add(float64(report.Failed))

		if frac := float64(report.Failed) / float64(report.Attempted); frac > s.maxFailFrac {
			return s.fail(report, fmt.Errorf(
				"%d of %d regions failed: %w", report.Failed, report.Attempted, ErrTooManyRegionFailures))
		}

		report.State = StateUpserting
		collection := s.collections(doc.ID())
		if err := s.index.Upsert(ctx, collection, records); err != nil {
			return s.fail(report, fmt.Errorf("upsert records: %w", err))
		}
	}

	report.State = StateAnnotating
	manifest.AttachSearchService(doc, s.baseURL, doc.ID())

	report.State = StateDone
	metrics.IndexingRunsTotal.WithLabelValues("done").Inc()
	s.logger.Info("Indexing complete",
		zap.String("manifest_id", report.ManifestID),
		zap.Int("attempted", report.Attempted),
		zap.Int("succeeded", report.Succeeded),
		zap.Int("failed", report.Failed),
	)
	return report, nil
}

func (s *Service) fail(report Report, err error) (Report, error) {
	report.State = StateFailed
	metrics.IndexingRunsTotal.WithLabelValues("failed").Inc()
	return report, err
}

// embedAll fans regions out to a bounded worker pool and collects per-region
// results in extraction order. Cancellation is coarse-grained: no new region
// starts after ctx is done, but in-flight embeddings finish.
func (s *Service) embedAll(ctx context.Context, regions []domain.Region) []regionResult {
	jobs := make(chan int)
	results := make([]regionResult, len(regions))

	workers := s.concurrency
	if workers > len(regions) {
		workers = len(regions)
	}

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				results[i] = s.embedRegion(ctx, regions[i])
			}
		}()
	}

feed:
	for i := range regions {
		select {
		case <-ctx.Done():
			break feed
		case jobs <- i:
		}
	}
	close(jobs)
	wg.Wait()

	return results
}

// embedRegion embeds one region with bounded retry and exponential backoff.
// Only ErrEmbeddingUnavailable is retried.
func (s *Service) embedRegion(ctx context.Context, region domain.Region) regionResult {
	var lastErr error
	backoff := s.retryBackoff

	for attempt := 0; attempt <= s.retryAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return regionResult{err: ctx.Err()}
			case <-time.After(backoff):
			}
			backoff *= 2
		}

		vec, err := s.embedder.EmbedImage(ctx, region.ImageURL)
		if err == nil {
			return regionResult{record: &domain.EmbeddingRecord{
				RegionID: region.ID,
				Vector:   vec,
				Payload:  domain.PayloadFor(region),
			}}
		}
		lastErr = err
		if !errors.Is(err, domain.ErrEmbeddingUnavailable) {
			break
		}
	}
	return regionResult{err: lastErr}
}
