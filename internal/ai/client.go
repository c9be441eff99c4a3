package ai

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/clearbasin/planengine/internal/cache"
	"github.com/clearbasin/planengine/internal/observability"
)

// Config holds the model client configuration.
type Config struct {
	APIKey      string
	BaseURL     string  // default https://api.openai.com/v1
	Model       string  // e.g. gpt-4o-mini
	Temperature float64 // pinned low for deterministic sampling
	Timeout     time.Duration
}

// Client talks to an OpenAI-compatible chat-completions endpoint.
//
// The extraction call never propagates model failures to its caller: a
// missing API key yields (nil, ""), an unparseable or schema-invalid
// response yields (nil, raw) with the raw text retained for audit.
type Client struct {
	cfg        Config
	httpClient *http.Client
	cache      cache.Client
	cacheTTL   time.Duration
	logger     *observability.Logger
}

// NewClient creates a model client. cacheClient may be nil to disable
// response caching.
func NewClient(cfg Config, cacheClient cache.Client, cacheTTL time.Duration, logger *observability.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	if cfg.Temperature <= 0 {
		cfg.Temperature = 0.1
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		cache:      cacheClient,
		cacheTTL:   cacheTTL,
		logger:     logger.WithComponent("ai"),
	}
}

// Available reports whether the external service can be called at all.
func (c *Client) Available() bool {
	return c.cfg.APIKey != ""
}

// ExtractPage sends a page's markup to the model and returns the structured
// result plus the raw textual response. Both degrade rather than error:
// unavailable service → (nil, ""); malformed response → (nil, raw).
func (c *Client) ExtractPage(ctx context.Context, markup string) (*ExtractionResult, string) {
	if !c.Available() {
		c.logger.Warn().Msg("model credentials missing, skipping extraction")
		return nil, ""
	}

	if cached, ok := c.cachedResult(ctx, markup); ok {
		return cached, ""
	}

	content, err := c.complete(ctx, extractionSystemPrompt, buildExtractionUserPrompt(markup))
	if err != nil {
		c.logger.Error().Err(err).Msg("extraction call failed")
		return nil, ""
	}

	result, parseErr := ParseExtractionResult([]byte(content))
	if parseErr != nil {
		// Raw response is retained by the caller for audit, never discarded.
		c.logger.Warn().Err(parseErr).Msg("model returned non-conforming extraction payload")
		return nil, content
	}

	c.storeResult(ctx, markup, content)
	return result, content
}

func (c *Client) cachedResult(ctx context.Context, markup string) (*ExtractionResult, bool) {
	if c.cache == nil {
		return nil, false
	}
	raw, err := c.cache.Get(ctx, extractionCacheKey(markup))
	if err != nil {
		return nil, false
	}
	result, parseErr := ParseExtractionResult(raw)
	if parseErr != nil {
		return nil, false
	}
	return result, true
}

func (c *Client) storeResult(ctx context.Context, markup, content string) {
	if c.cache == nil {
		return
	}
	if err := c.cache.Set(ctx, extractionCacheKey(markup), []byte(content), c.cacheTTL); err != nil {
		c.logger.Warn().Err(err).Msg("extraction cache write failed")
	}
}

func extractionCacheKey(markup string) string {
	sum := sha256.Sum256([]byte(markup))
	return "extract:" + hex.EncodeToString(sum[:])
}

// complete performs one chat-completions round trip and returns the
// assistant message content.
func (c *Client) complete(ctx context.Context, system, user string) (string, error) {
	body := map[string]any{
		"model":           c.cfg.Model,
		"temperature":     c.cfg.Temperature,
		"response_format": map[string]any{"type": "json_object"},
		"messages": []map[string]any{
			{"role": "system", "content": system},
			{"role": "user", "content": user},
		},
	}

	raw, err := c.post(ctx, strings.TrimRight(c.cfg.BaseURL, "/")+"/chat/completions", body)
	if err != nil {
		return "", err
	}

	var cc struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &cc); err != nil {
		return "", fmt.Errorf("decode completion response: %w", err)
	}
	if len(cc.Choices) == 0 {
		return "", fmt.Errorf("no choices in completion response")
	}
	return strings.TrimSpace(cc.Choices[0].Message.Content), nil
}

func (c *Client) post(ctx context.Context, url string, body map[string]any) ([]byte, error) {
	b, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("model http error: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("model status %d: %s", resp.StatusCode, string(raw))
	}
	return raw, nil
}
