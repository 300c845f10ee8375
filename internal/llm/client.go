// Package llm provides a minimal client for OpenAI-compatible chat
// completion APIs, used to summarize email bodies through OpenRouter.
package llm

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

	"github.com/inboxgist/inboxgist/internal/instrumentation"
)

const (
	// DefaultModel is used when neither the request nor the configuration
	// names a model.
	DefaultModel = "x-ai/grok-4-fast:free"

	// defaultTimeout bounds a single completion call. Summaries of long
	// bodies on free-tier models can take a while.
	defaultTimeout = 90 * time.Second

	errorBodyLimit = 2048
)

const summarySystemPrompt = "You are concise. Summarize main topics as up to 5 short bullets. No preamble."

// Message is a single chat message in the OpenAI wire format.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Client calls an OpenAI-compatible chat completions endpoint.
type Client struct {
	hc      *http.Client
	baseURL string
	apiKey  string
	model   string
	logger  *slog.Logger
	metrics *instrumentation.Metrics
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.hc = hc
		}
	}
}

// WithModel sets the default model for completions.
func WithModel(model string) Option {
	return func(c *Client) {
		if model != "" {
			c.model = model
		}
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMetrics attaches instrumentation. A nil Metrics is safe.
func WithMetrics(m *instrumentation.Metrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// NewClient creates a chat completions client for the given base URL
// (e.g. "https://openrouter.ai/api/v1") and API key.
func NewClient(baseURL, apiKey string, opts ...Option) *Client {
	c := &Client{
		hc:      &http.Client{Timeout: defaultTimeout},
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		model:   DefaultModel,
		logger:  slog.Default(),
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.hc.Timeout == 0 {
		hc := *c.hc
		hc.Timeout = defaultTimeout
		c.hc = &hc
	}

	return c
}

// Model returns the default model used when a completion names none.
func (c *Client) Model() string {
	return c.model
}

// Complete sends a chat completion request and returns the first choice's
// message content. An empty model falls back to the client default.
func (c *Client) Complete(ctx context.Context, model string, messages []Message) (string, error) {
	if c.apiKey == "" {
		return "", fmt.Errorf("LLM API key is not set")
	}
	if model == "" {
		model = c.model
	}

	payload, err := json.Marshal(chatRequest{Model: model, Messages: messages})
	if err != nil {
		return "", fmt.Errorf("failed to marshal completion request: %w", err)
	}

	url := c.baseURL + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create completion request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	c.logger.Debug("sending chat completion request", "model", model, "messages", len(messages))

	start := time.Now()
	resp, err := c.hc.Do(req)
	if err != nil {
		c.metrics.RecordLLMRequest(ctx, model, instrumentation.StatusError, time.Since(start))
		return "", fmt.Errorf("completion request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		c.metrics.RecordLLMRequest(ctx, model, instrumentation.StatusError, time.Since(start))
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))
		return "", &Error{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(snippet))}
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		c.metrics.RecordLLMRequest(ctx, model, instrumentation.StatusError, time.Since(start))
		return "", fmt.Errorf("failed to decode completion response: %w", err)
	}

	if len(parsed.Choices) == 0 {
		c.metrics.RecordLLMRequest(ctx, model, instrumentation.StatusError, time.Since(start))
		return "", &Error{Message: "no choices"}
	}

	c.metrics.RecordLLMRequest(ctx, model, instrumentation.StatusSuccess, time.Since(start))
	return parsed.Choices[0].Message.Content, nil
}

// Summarize asks the model for a bullet-point summary of an email body and
// returns the trimmed summary text.
func (c *Client) Summarize(ctx context.Context, model, body string) (string, error) {
	prompt := "Summarize the main topics of the following email body as concise bullet points.\n" +
		"Rules:\n" +
		"- Use short, content-rich bullets (no full sentences unless necessary).\n" +
		"- 5 bullets max.\n" +
		"- No preamble or conclusion—just the bullets.\n\n" +
		"Email body:\n" + body

	content, err := c.Complete(ctx, model, []Message{
		{Role: "system", Content: summarySystemPrompt},
		{Role: "user", Content: prompt},
	})
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(content), nil
}
