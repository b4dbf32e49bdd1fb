// Package genai streams generative summaries from the managed model. The
// model's SSE stream is decoded chunk by chunk and each text part is handed
// to the caller as soon as it arrives.
package genai

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/wikivec/wikivec/internal/circuitbreaker"
	"github.com/wikivec/wikivec/internal/metrics"
	"github.com/wikivec/wikivec/internal/tracing"
)

const summaryPrompt = "Summarize the following text in a concise paragraph. Keep only the essential facts.\n\nText:\n%s"

// Config identifies the generative model deployment.
type Config struct {
	ProjectID string
	Location  string
	// Model is the publisher model name, e.g. gemini-1.5-flash.
	Model string
	// MaxTokens caps the summary length when the caller does not.
	MaxTokens int
	// Endpoint overrides the regional API host, mainly for tests.
	Endpoint string
	// Timeout bounds the whole stream. Zero means the request context
	// alone decides.
	Timeout time.Duration
}

func (c *Config) applyDefaults() {
	if c.Model == "" {
		c.Model = "gemini-1.5-flash"
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = 150
	}
}

// GenerateError reports a failed generation call.
type GenerateError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *GenerateError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("genai: %s: status %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("genai: %s: %v", e.Op, e.Err)
}

func (e *GenerateError) Unwrap() error { return e.Err }

// Client streams summaries from the generative model.
type Client struct {
	cfg    Config
	httpw  *circuitbreaker.HTTPWrapper
	logger *zap.Logger
}

// New builds the client. httpClient should carry auth transport and must not
// set a short client timeout: streams can outlive ordinary request budgets.
func New(cfg Config, httpClient *http.Client, logger *zap.Logger) (*Client, error) {
	cfg.applyDefaults()
	if cfg.ProjectID == "" || cfg.Location == "" {
		return nil, fmt.Errorf("genai: project and location are required")
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		cfg:    cfg,
		httpw:  circuitbreaker.NewHTTPWrapper(httpClient, "genai", logger),
		logger: logger,
	}, nil
}

// Config returns the active configuration.
func (c *Client) Config() Config { return c.cfg }

// BreakerState reports the generative endpoint's circuit breaker state.
func (c *Client) BreakerState() circuitbreaker.State { return c.httpw.State() }

type generateRequest struct {
	Contents         []content       `json:"contents"`
	GenerationConfig *responseConfig `json:"generationConfig,omitempty"`
}

type content struct {
	Role  string `json:"role"`
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type responseConfig struct {
	MaxOutputTokens int `json:"maxOutputTokens,omitempty"`
}

type streamChunk struct {
	Candidates []struct {
		Content struct {
			Parts []part `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
}

// StreamSummary summarizes text and feeds each streamed token to emit in
// arrival order. A non-nil error from emit aborts the stream and is returned
// unchanged. maxTokens <= 0 uses the configured default.
func (c *Client) StreamSummary(ctx context.Context, text string, maxTokens int, emit func(token string) error) error {
	if maxTokens <= 0 {
		maxTokens = c.cfg.MaxTokens
	}

	start := time.Now()
	chunks := 0
	status := "ok"
	defer func() {
		metrics.RecordSummarizeMetrics(status, time.Since(start).Seconds(), chunks)
	}()

	body := generateRequest{
		Contents: []content{{
			Role:  "user",
			Parts: []part{{Text: fmt.Sprintf(summaryPrompt, text)}},
		}},
		GenerationConfig: &responseConfig{MaxOutputTokens: maxTokens},
	}
	buf, err := json.Marshal(body)
	if err != nil {
		status = "error"
		return &GenerateError{Op: "marshal", Err: err}
	}

	url := c.streamURL()
	ctx, span := tracing.StartHTTPSpan(ctx, http.MethodPost, url)
	defer span.End()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(buf))
	if err != nil {
		status = "error"
		return &GenerateError{Op: "request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	tracing.InjectTraceparent(ctx, req)

	resp, err := c.httpw.Do(req)
	if err != nil {
		status = "error"
		return &GenerateError{Op: "generate", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		status = "error"
		return &GenerateError{
			Op:         "generate",
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("%s", strings.TrimSpace(string(msg))),
		}
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == "" || payload == "[DONE]" {
			continue
		}

		var chunk streamChunk
		if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
			c.logger.Warn("Skipping malformed stream chunk", zap.Error(err))
			continue
		}
		for _, cand := range chunk.Candidates {
			for _, p := range cand.Content.Parts {
				if p.Text == "" {
					continue
				}
				chunks++
				if err := emit(p.Text); err != nil {
					status = "aborted"
					return err
				}
			}
		}
	}
	if err := scanner.Err(); err != nil {
		status = "error"
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &GenerateError{Op: "stream", Err: err}
	}

	return nil
}

func (c *Client) streamURL() string {
	base := c.cfg.Endpoint
	if base == "" {
		base = fmt.Sprintf("https://%s-aiplatform.googleapis.com", c.cfg.Location)
	}
	return fmt.Sprintf("%s/v1/projects/%s/locations/%s/publishers/google/models/%s:streamGenerateContent?alt=sse",
		base, c.cfg.ProjectID, c.cfg.Location, c.cfg.Model)
}
