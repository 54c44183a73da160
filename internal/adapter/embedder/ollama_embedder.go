package embedder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"

	"mealplan-orchestrator/internal/domain"
)

// OllamaEmbedder encodes texts through an Ollama-compatible embedding API.
// Embeddings are the only cross-request state in the system: a TTL LRU
// fronts the upstream call, and singleflight gives get-or-populate
// atomicity so concurrent identical queries share one upstream request.
// Double-population after eviction is tolerated.
type OllamaEmbedder struct {
	BaseURL string
	Model   string
	Client  *http.Client

	cache *expirable.LRU[string, []float32]
	group singleflight.Group
}

// NewOllamaEmbedder constructs the embedder. cacheSize <= 0 disables
// caching; ttl <= 0 means entries only leave via LRU eviction.
func NewOllamaEmbedder(baseURL, model string, client *http.Client, cacheSize int, ttl time.Duration) *OllamaEmbedder {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	e := &OllamaEmbedder{
		BaseURL: baseURL,
		Model:   model,
		Client:  client,
	}
	if cacheSize > 0 {
		e.cache = expirable.NewLRU[string, []float32](cacheSize, nil, ttl)
	}
	return e
}

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// Encode returns one embedding per input text, serving cache hits locally
// and batching only the misses upstream.
func (e *OllamaEmbedder) Encode(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))

	var missing []string
	var missingIdx []int
	for i, text := range texts {
		if e.cache != nil {
			if emb, ok := e.cache.Get(e.cacheKey(text)); ok {
				out[i] = emb
				continue
			}
		}
		missing = append(missing, text)
		missingIdx = append(missingIdx, i)
	}

	if len(missing) == 0 {
		return out, nil
	}

	for j, text := range missing {
		emb, err := e.encodeOne(ctx, text)
		if err != nil {
			return nil, err
		}
		out[missingIdx[j]] = emb
	}
	return out, nil
}

func (e *OllamaEmbedder) encodeOne(ctx context.Context, text string) ([]float32, error) {
	key := e.cacheKey(text)
	v, err, _ := e.group.Do(key, func() (interface{}, error) {
		if e.cache != nil {
			if emb, ok := e.cache.Get(key); ok {
				return emb, nil
			}
		}
		embs, err := e.callUpstream(ctx, []string{text})
		if err != nil {
			return nil, err
		}
		if len(embs) == 0 {
			return nil, fmt.Errorf("no embedding returned")
		}
		if e.cache != nil {
			e.cache.Add(key, embs[0])
		}
		return embs[0], nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]float32), nil
}

func (e *OllamaEmbedder) callUpstream(ctx context.Context, texts []string) ([][]float32, error) {
	start := time.Now()

	reqBody := embedRequest{
		Model: e.Model,
		Input: texts,
	}
	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/api/embed", e.BaseURL)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.Client.Do(req)
	if err != nil {
		slog.Error("embed_failed",
			slog.String("error", err.Error()),
			slog.Duration("elapsed", time.Since(start)))
		return nil, fmt.Errorf("failed to call embedding service: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		slog.Error("embed_bad_status",
			slog.Int("status", resp.StatusCode),
			slog.Duration("elapsed", time.Since(start)))
		return nil, fmt.Errorf("embedding service returned status: %d", resp.StatusCode)
	}

	var respBody embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&respBody); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return respBody.Embeddings, nil
}

func (e *OllamaEmbedder) cacheKey(text string) string {
	return e.Model + "\x00" + text
}

func (e *OllamaEmbedder) Version() string {
	return e.Model
}

var _ domain.VectorEncoder = (*OllamaEmbedder)(nil)
