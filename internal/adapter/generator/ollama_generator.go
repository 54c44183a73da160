package generator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"mealplan-orchestrator/internal/domain"
)

type generateRequest struct {
	Model   string                 `json:"model"`
	Prompt  string                 `json:"prompt"`
	Stream  bool                   `json:"stream"`
	Format  string                 `json:"format,omitempty"`
	Options map[string]interface{} `json:"options,omitempty"`
}

type generateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

// OllamaGenerator implements domain.PlanGenerator via an Ollama-compatible
// generation API.
type OllamaGenerator struct {
	BaseURL string
	Model   string
	Client  *http.Client
	logger  *slog.Logger
}

// NewOllamaGenerator constructs the generation client. If client is nil, a
// default http.Client is created with the given timeout.
func NewOllamaGenerator(baseURL, model string, timeout time.Duration, logger *slog.Logger, client ...*http.Client) *OllamaGenerator {
	var c *http.Client
	if len(client) > 0 && client[0] != nil {
		c = client[0]
	} else {
		c = &http.Client{Timeout: timeout}
	}
	return &OllamaGenerator{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Model:   model,
		Client:  c,
		logger:  logger,
	}
}

// Generate runs one non-streaming generation call with JSON output format.
func (g *OllamaGenerator) Generate(ctx context.Context, prompt string, maxTokens int) (*domain.GenerationResult, error) {
	start := time.Now()

	reqBody := generateRequest{
		Model:  g.Model,
		Prompt: prompt,
		Stream: false,
		Format: "json",
		Options: map[string]interface{}{
			"num_predict": maxTokens,
		},
	}
	jsonPayload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal generate request: %w", err)
	}

	url := fmt.Sprintf("%s/api/generate", g.BaseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonPayload))
	if err != nil {
		return nil, fmt.Errorf("failed to create generate request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.Client.Do(req)
	if err != nil {
		g.logger.Warn("generation_failed",
			slog.String("error", err.Error()),
			slog.Int64("elapsed_ms", time.Since(start).Milliseconds()))
		return nil, fmt.Errorf("failed to call generation endpoint: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		g.logger.Warn("generation_bad_status",
			slog.Int("status_code", resp.StatusCode),
			slog.Int64("elapsed_ms", time.Since(start).Milliseconds()))
		return nil, fmt.Errorf("generation endpoint returned %d: %s", resp.StatusCode, truncateString(string(body), 500))
	}

	var genResp generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&genResp); err != nil {
		return nil, fmt.Errorf("failed to decode generate response: %w", err)
	}

	g.logger.Info("generation_completed",
		slog.String("model", g.Model),
		slog.Bool("done", genResp.Done),
		slog.Int64("elapsed_ms", time.Since(start).Milliseconds()))

	return &domain.GenerationResult{
		Text: genResp.Response,
		Done: genResp.Done,
	}, nil
}

// ModelName returns the model identifier for logging/debugging.
func (g *OllamaGenerator) ModelName() string {
	return g.Model
}

func truncateString(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}

var _ domain.PlanGenerator = (*OllamaGenerator)(nil)
