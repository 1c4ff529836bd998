package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"os"
	"time"

	"chanrag/internal/domain"
)

// OpenAIEmbedder talks to any OpenAI-compatible embeddings endpoint. Vectors
// are L2-normalized before being returned so similarity reduces to dot
// product downstream. Transient failures are retried with exponential
// backoff; already-computed batches are never discarded by a later failure.
type OpenAIEmbedder struct {
	apiKey      string
	model       string
	baseURL     string
	dimension   int
	batchSize   int
	maxAttempts int
	client      *http.Client
}

type embeddingRequest struct {
	Input []string `json:"input"`
	Model string   `json:"model"`
}

type embeddingResponse struct {
	Data  []embeddingData `json:"data"`
	Error *apiError       `json:"error,omitempty"`
}

type embeddingData struct {
	Embedding []float32 `json:"embedding"`
	Index     int       `json:"index"`
}

type apiError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

// NewOpenAIEmbedder creates an embedder against api.openai.com.
func NewOpenAIEmbedder(apiKeyEnv, model string, dimension, batchSize, maxAttempts int) (*OpenAIEmbedder, error) {
	return NewCompatibleEmbedder(apiKeyEnv, model, "https://api.openai.com/v1", dimension, batchSize, maxAttempts)
}

// NewOllamaEmbedder creates an embedder against a local Ollama endpoint.
func NewOllamaEmbedder(model, baseURL string, dimension, batchSize, maxAttempts int) (*OpenAIEmbedder, error) {
	if baseURL == "" {
		baseURL = "http://localhost:11434/v1"
	}
	if batchSize <= 0 {
		batchSize = 64
	}
	if maxAttempts <= 0 {
		maxAttempts = 4
	}
	return &OpenAIEmbedder{
		apiKey:      "ollama",
		model:       model,
		baseURL:     baseURL,
		dimension:   dimension,
		batchSize:   batchSize,
		maxAttempts: maxAttempts,
		client:      &http.Client{Timeout: 120 * time.Second},
	}, nil
}

// NewCompatibleEmbedder creates an embedder against any OpenAI-compatible
// base URL, reading the API key from the named environment variable.
func NewCompatibleEmbedder(apiKeyEnv, model, baseURL string, dimension, batchSize, maxAttempts int) (*OpenAIEmbedder, error) {
	apiKey := os.Getenv(apiKeyEnv)
	if apiKey == "" {
		return nil, fmt.Errorf("API key not found in environment variable: %s", apiKeyEnv)
	}
	if batchSize <= 0 {
		batchSize = 64
	}
	if maxAttempts <= 0 {
		maxAttempts = 4
	}
	return &OpenAIEmbedder{
		apiKey:      apiKey,
		model:       model,
		baseURL:     baseURL,
		dimension:   dimension,
		batchSize:   batchSize,
		maxAttempts: maxAttempts,
		client:      &http.Client{Timeout: 60 * time.Second},
	}, nil
}

// Embed generates normalized embeddings for the given texts, batching calls
// to the model interface.
func (e *OpenAIEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	all := make([][]float32, 0, len(texts))
	for i := 0; i < len(texts); i += e.batchSize {
		end := i + e.batchSize
		if end > len(texts) {
			end = len(texts)
		}
		vectors, err := e.embedBatchWithRetry(ctx, texts[i:end])
		if err != nil {
			return nil, err
		}
		all = append(all, vectors...)
	}
	return all, nil
}

// embedBatchWithRetry retries transient failures with exponential backoff up
// to the configured attempt count.
func (e *OpenAIEmbedder) embedBatchWithRetry(ctx context.Context, texts []string) ([][]float32, error) {
	var lastErr error
	delay := time.Second

	for attempt := 1; attempt <= e.maxAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
		}

		vectors, retryable, err := e.embedBatch(ctx, texts)
		if err == nil {
			return vectors, nil
		}
		lastErr = err
		if !retryable {
			break
		}
	}

	return nil, &domain.EmbeddingError{Attempts: e.maxAttempts, Err: lastErr}
}

func (e *OpenAIEmbedder) embedBatch(ctx context.Context, texts []string) (vectors [][]float32, retryable bool, err error) {
	reqBody := embeddingRequest{Input: texts, Model: e.model}
	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, false, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/embeddings", bytes.NewReader(jsonData))
	if err != nil {
		return nil, false, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.apiKey)

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, true, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, true, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		// 429 and 5xx are transient; anything else is a caller error.
		transient := resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500
		return nil, transient, fmt.Errorf("API returned status %d: %s", resp.StatusCode, truncate(body, 200))
	}

	var embResp embeddingResponse
	if err := json.Unmarshal(body, &embResp); err != nil {
		return nil, false, fmt.Errorf("failed to parse response (body: %s): %w", truncate(body, 200), err)
	}
	if embResp.Error != nil {
		return nil, false, fmt.Errorf("API error: %s", embResp.Error.Message)
	}

	vectors = make([][]float32, len(texts))
	for _, data := range embResp.Data {
		if data.Index < len(vectors) {
			vectors[data.Index] = Normalize(data.Embedding)
		}
	}
	for i, v := range vectors {
		if v == nil {
			return nil, true, fmt.Errorf("missing embedding for input %d", i)
		}
	}
	return vectors, false, nil
}

func (e *OpenAIEmbedder) Dimension() int { return e.dimension }

func (e *OpenAIEmbedder) ModelName() string { return e.model }

func truncate(b []byte, n int) string {
	if len(b) > n {
		return string(b[:n])
	}
	return string(b)
}

// Normalize scales a vector to unit length. Zero vectors pass through
// unchanged.
func Normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return v
	}
	norm := math.Sqrt(sum)
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}

// Dot returns the dot product of two vectors of equal dimension. For
// unit-length vectors this equals cosine similarity.
func Dot(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}
