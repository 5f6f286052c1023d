// Package inference is the HTTP adapter for the multimodal embedding server
// (a SigLIP-style image/text encoder behind a REST API). Image and text
// vectors live in one metric space; the adapter normalizes every vector to
// unit length before it crosses the boundary.
package inference

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/openglam/photosearch/internal/domain"
	"github.com/openglam/photosearch/internal/metrics"
)

// maxImageBytes caps downloaded image size before encoding.
const maxImageBytes = 32 << 20

// Config holds the embedding server settings.
type Config struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
	Logger  *zap.Logger
}

// Client calls the embedding server. It implements domain.ImageEmbedder,
// domain.TextEmbedder and domain.HealthChecker.
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates an embedding client.
func NewClient(cfg *Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		httpClient: &http.Client{Timeout: timeout},
		logger:     cfg.Logger,
	}
}

// embedRequest is the wire request for both modalities.
type embedRequest struct {
	Model string `json:"model"`
	Text  string `json:"text,omitempty"`
	Image string `json:"image,omitempty"` // base64-encoded bytes
}

// embedResponse is the wire response.
type embedResponse struct {
	Embedding []float32 `json:"embedding"`
}

// EmbedText encodes a text query into a unit-length vector.
func (c *Client) EmbedText(ctx context.Context, text string) ([]float32, error) {
	return c.embed(ctx, "text", embedRequest{Model: c.model, Text: text})
}

// EmbedImage downloads the image and encodes it into a unit-length vector.
// All failures (fetch, decode, backend) wrap domain.ErrEmbeddingUnavailable:
// they are transient from the pipeline's point of view.
func (c *Client) EmbedImage(ctx context.Context, imageURL string) ([]float32, error) {
	data, err := c.fetchImage(ctx, imageURL)
	if err != nil {
		metrics.EmbeddingErrorsTotal.WithLabelValues(c.model, "image", "fetch").Inc()
		return nil, err
	}
	return c.embed(ctx, "image", embedRequest{
		Model: c.model,
		Image: base64.StdEncoding.EncodeToString(data),
	})
}

// HealthCheck verifies the embedding server is reachable.
func (c *Client) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", http.NoBody)
	if err != nil {
		return fmt.Errorf("build health request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("embedding server health: %w", err)
	}
	defer func() { _, _ = io.Copy(io.Discard, resp.Body); _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("embedding server health: status %d", resp.StatusCode)
	}
	return nil
}

// embed posts one modality request and returns the normalized vector.
func (c *Client) embed(ctx context.Context, kind string, reqBody embedRequest) ([]float32, error) {
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal embed request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/embed/"+kind, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build embed request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.EmbeddingRequestsTotal.WithLabelValues(c.model, kind, "error").Inc()
		metrics.EmbeddingErrorsTotal.WithLabelValues(c.model, kind, "transport").Inc()
		return nil, fmt.Errorf("embed %s: %v: %w", kind, err, domain.ErrEmbeddingUnavailable)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		metrics.EmbeddingRequestsTotal.WithLabelValues(c.model, kind, "error").Inc()
		return nil, fmt.Errorf("read embed response: %v: %w", err, domain.ErrEmbeddingUnavailable)
	}
	if resp.StatusCode != http.StatusOK {
		metrics.EmbeddingRequestsTotal.WithLabelValues(c.model, kind, "error").Inc()
		metrics.EmbeddingErrorsTotal.WithLabelValues(c.model, kind, "api_error").Inc()
		return nil, fmt.Errorf("embed %s: status %d: %s: %w",
			kind, resp.StatusCode, errorDetail(body), domain.ErrEmbeddingUnavailable)
	}

	var parsed embedResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		metrics.EmbeddingRequestsTotal.WithLabelValues(c.model, kind, "error").Inc()
		return nil, fmt.Errorf("decode embed response: %v: %w", err, domain.ErrEmbeddingUnavailable)
	}
	if len(parsed.Embedding) == 0 {
		metrics.EmbeddingRequestsTotal.WithLabelValues(c.model, kind, "error").Inc()
		metrics.EmbeddingErrorsTotal.WithLabelValues(c.model, kind, "empty_response").Inc()
		return nil, fmt.Errorf("empty embedding response: %w", domain.ErrEmbeddingUnavailable)
	}

	metrics.EmbeddingRequestsTotal.WithLabelValues(c.model, kind, "success").Inc()
	metrics.EmbeddingRequestDuration.WithLabelValues(c.model, kind).Observe(time.Since(start).Seconds())

	return domain.Normalize(parsed.Embedding), nil
}

// fetchImage downloads image bytes for embedding.
func (c *Client) fetchImage(ctx context.Context, imageURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("build image request: %v: %w", err, domain.ErrEmbeddingUnavailable)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch image %s: %v: %w", imageURL, err, domain.ErrEmbeddingUnavailable)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch image %s: status %d: %w",
			imageURL, resp.StatusCode, domain.ErrEmbeddingUnavailable)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes))
	if err != nil {
		return nil, fmt.Errorf("read image %s: %v: %w", imageURL, err, domain.ErrEmbeddingUnavailable)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("empty image %s: %w", imageURL, domain.ErrEmbeddingUnavailable)
	}
	return data, nil
}

// errorDetail extracts the "detail" field from a JSON error body, falling back
// to the raw body.
func errorDetail(body []byte) string {
	var parsed struct {
		Detail string `json:"detail"`
	}
	if json.Unmarshal(body, &parsed) == nil && parsed.Detail != "" {
		return parsed.Detail
	}
	return string(body)
}
