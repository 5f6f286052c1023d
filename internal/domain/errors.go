package domain

import "errors"

var (
	// ErrMalformedManifest signals a structural defect in an input manifest,
	// fatal to extraction for that manifest.
	ErrMalformedManifest = errors.New("malformed manifest")
	// ErrEmbeddingUnavailable signals a transient embedding failure (image
	// fetch, decode, or model backend). Retryable per region.
	ErrEmbeddingUnavailable = errors.New("embedding unavailable")
	// ErrIndexBackend signals that the vector database is unreachable or
	// rejected an operation. Fatal to the current indexing run.
	ErrIndexBackend = errors.New("index backend error")
	// ErrInvalidQuery signals empty or malformed search text. Never retried.
	ErrInvalidQuery = errors.New("invalid query")
	// ErrNotFound signals a missing manifest or collection. At query time this
	// is a valid empty result, not a failure.
	ErrNotFound = errors.New("not found")
)
