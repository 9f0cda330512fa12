// Package genai talks to the model-inference service. The model is a black
// box: an utterance goes in, raw generated text comes out.
package genai

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	apperrors "viora-nlu/internal/common/errors"
	apphttp "viora-nlu/internal/common/http"
	"viora-nlu/internal/common/logger"
	"viora-nlu/internal/common/metrics"
)

const (
	DefaultMaxNewTokens   = 300
	DefaultTimeout        = 30 * time.Second
	DefaultInitialBackoff = 100 * time.Millisecond
	generatePath          = "/v1/generate"
)

//go:embed system_prompt.txt
var defaultSystemPrompt string

type Config struct {
	BaseURL        string
	APIKey         string
	Timeout        time.Duration
	MaxRetries     int
	MaxNewTokens   int
	InitialBackoff time.Duration
	SystemPrompt   string
}

// DefaultSystemPrompt returns the built-in system prompt.
func DefaultSystemPrompt() string { return defaultSystemPrompt }

// LoadSystemPrompt reads a prompt file; an empty path yields the built-in one.
func LoadSystemPrompt(path string) (string, error) {
	if path == "" {
		return defaultSystemPrompt, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read system prompt: %w", err)
	}
	return string(data), nil
}

type generateRequest struct {
	System       string `json:"system"`
	Input        string `json:"input"`
	MaxNewTokens int    `json:"max_new_tokens"`
	DoSample     bool   `json:"do_sample"`
}

type generateResponse struct {
	GeneratedText string `json:"generated_text"`
}

// Client is safe for concurrent use and meant to be built once per process.
type Client struct {
	cfg      Config
	endpoint string
	http     *apphttp.Client
	logger   logger.Logger
}

func NewClient(cfg Config, log logger.Logger) *Client {
	if cfg.MaxNewTokens <= 0 {
		cfg.MaxNewTokens = DefaultMaxNewTokens
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = DefaultInitialBackoff
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.SystemPrompt == "" {
		cfg.SystemPrompt = defaultSystemPrompt
	}
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &Client{
		cfg:      cfg,
		endpoint: strings.TrimRight(cfg.BaseURL, "/") + generatePath,
		http:     apphttp.NewClient(0),
		logger:   log,
	}
}

// Generate returns the raw model output for utterance using greedy
// decoding. Transport errors, 429 and 5xx responses are retried with
// exponential backoff. Deadline expiry yields MODEL_TIMEOUT, anything else
// GENERATION_FAILED.
func (c *Client) Generate(ctx context.Context, utterance string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	start := time.Now()
	req := generateRequest{
		System:       c.cfg.SystemPrompt,
		Input:        utterance,
		MaxNewTokens: c.cfg.MaxNewTokens,
		DoSample:     false,
	}

	var (
		resp    generateResponse
		lastErr error
	)
	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := c.cfg.InitialBackoff * time.Duration(1<<(attempt-1))
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return "", c.timeout(ctx.Err(), start)
			}
		}

		lastErr = c.http.PostJSON(ctx, c.endpoint, c.headers(), req, &resp)
		if lastErr == nil {
			break
		}
		if ctx.Err() != nil {
			return "", c.timeout(ctx.Err(), start)
		}

		var statusErr *apphttp.StatusError
		if errors.As(lastErr, &statusErr) && !statusErr.Retryable() {
			break
		}
		c.logger.Warn("Model request failed, retrying", map[string]interface{}{
			"attempt": attempt + 1,
			"error":   lastErr,
		})
	}

	if lastErr != nil {
		metrics.ModelRequestDuration.WithLabelValues("error").Observe(time.Since(start).Seconds())
		c.logger.Error("Model request failed", map[string]interface{}{
			"error": lastErr,
		})
		return "", apperrors.NewGenerationFailedError(lastErr)
	}

	metrics.ModelRequestDuration.WithLabelValues("ok").Observe(time.Since(start).Seconds())
	c.logger.Debug("Model responded", map[string]interface{}{
		"durationMs": time.Since(start).Milliseconds(),
		"text":       logger.Snippet(resp.GeneratedText),
	})
	return resp.GeneratedText, nil
}

func (c *Client) headers() map[string]string {
	if c.cfg.APIKey == "" {
		return nil
	}
	return map[string]string{"Authorization": "Bearer " + c.cfg.APIKey}
}

func (c *Client) timeout(err error, start time.Time) error {
	metrics.ModelRequestDuration.WithLabelValues("timeout").Observe(time.Since(start).Seconds())
	c.logger.Warn("Model request timed out", map[string]interface{}{
		"durationMs": time.Since(start).Milliseconds(),
	})
	return apperrors.NewModelTimeoutError(err)
}
