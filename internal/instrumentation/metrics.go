package instrumentation

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metric attribute keys - using constants for consistency and DRY
const (
	// Common attributes (reused across metrics)
	attrMethod     = "method"
	attrPath       = "path"
	attrStatus     = "status"
	attrCollection = "collection"
	attrModel      = "model"
	attrResult     = "result"
	attrAccount    = "account"
)

// Metrics provides methods for recording observability metrics.
// All Record methods are safe to call on a nil receiver; components that
// run without instrumentation simply hold a nil *Metrics.
type Metrics struct {
	// HTTP server metrics
	httpRequestsTotal   metric.Int64Counter
	httpRequestDuration metric.Float64Histogram
	activeSessions      metric.Int64UpDownCounter

	// Gmail API metrics
	gmailRequestsTotal   metric.Int64Counter
	gmailRequestDuration metric.Float64Histogram
	gmailRetriesTotal    metric.Int64Counter
	messagesFetchedTotal metric.Int64Counter
	pagesFetchedTotal    metric.Int64Counter

	// Summarization metrics
	summarizeTotal    metric.Int64Counter
	summarizeDuration metric.Float64Histogram

	// LLM backend metrics
	llmRequestsTotal   metric.Int64Counter
	llmRequestDuration metric.Float64Histogram

	// OAuth metrics
	oauthAuthTotal metric.Int64Counter

	// Configuration
	// detailedLabels controls whether high-cardinality labels are included
	detailedLabels bool
}

// NewMetrics creates a new Metrics instance with all metrics initialized.
// The detailedLabels parameter controls whether high-cardinality labels are included.
func NewMetrics(meter metric.Meter, detailedLabels bool) (*Metrics, error) {
	m := &Metrics{
		detailedLabels: detailedLabels,
	}

	var err error

	// HTTP Metrics
	m.httpRequestsTotal, err = meter.Int64Counter(
		"http_requests_total",
		metric.WithDescription("Total number of HTTP requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create http_requests_total counter: %w", err)
	}

	m.httpRequestDuration, err = meter.Float64Histogram(
		"http_request_duration_seconds",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.01, 0.1, 0.5, 1.0, 2.5, 5.0, 10.0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create http_request_duration_seconds histogram: %w", err)
	}

	m.activeSessions, err = meter.Int64UpDownCounter(
		"active_sessions",
		metric.WithDescription("Number of active user sessions"),
		metric.WithUnit("{session}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create active_sessions gauge: %w", err)
	}

	// Gmail API Metrics
	m.gmailRequestsTotal, err = meter.Int64Counter(
		"gmail_api_requests_total",
		metric.WithDescription("Total number of Gmail API HTTP requests, including retries"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create gmail_api_requests_total counter: %w", err)
	}

	m.gmailRequestDuration, err = meter.Float64Histogram(
		"gmail_api_request_duration_seconds",
		metric.WithDescription("Gmail API request duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create gmail_api_request_duration_seconds histogram: %w", err)
	}

	m.gmailRetriesTotal, err = meter.Int64Counter(
		"gmail_api_retries_total",
		metric.WithDescription("Total number of Gmail API requests retried after a transient status"),
		metric.WithUnit("{retry}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create gmail_api_retries_total counter: %w", err)
	}

	m.messagesFetchedTotal, err = meter.Int64Counter(
		"gmail_messages_fetched_total",
		metric.WithDescription("Total number of full Gmail messages fetched"),
		metric.WithUnit("{message}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create gmail_messages_fetched_total counter: %w", err)
	}

	m.pagesFetchedTotal, err = meter.Int64Counter(
		"gmail_pages_fetched_total",
		metric.WithDescription("Total number of Gmail list pages fetched"),
		metric.WithUnit("{page}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create gmail_pages_fetched_total counter: %w", err)
	}

	// Summarization Metrics
	m.summarizeTotal, err = meter.Int64Counter(
		"summarize_requests_total",
		metric.WithDescription("Total number of email summarization requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create summarize_requests_total counter: %w", err)
	}

	m.summarizeDuration, err = meter.Float64Histogram(
		"summarize_duration_seconds",
		metric.WithDescription("End-to-end email summarization duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0, 60.0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create summarize_duration_seconds histogram: %w", err)
	}

	// LLM Backend Metrics
	m.llmRequestsTotal, err = meter.Int64Counter(
		"llm_requests_total",
		metric.WithDescription("Total number of LLM chat completion requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create llm_requests_total counter: %w", err)
	}

	m.llmRequestDuration, err = meter.Float64Histogram(
		"llm_request_duration_seconds",
		metric.WithDescription("LLM chat completion duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0, 60.0, 90.0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create llm_request_duration_seconds histogram: %w", err)
	}

	// OAuth Metrics
	m.oauthAuthTotal, err = meter.Int64Counter(
		"oauth_auth_total",
		metric.WithDescription("Total number of OAuth authentication attempts"),
		metric.WithUnit("{attempt}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create oauth_auth_total counter: %w", err)
	}

	return m, nil
}

// RecordHTTPRequest records an HTTP request with method, path, status code, and duration.
func (m *Metrics) RecordHTTPRequest(ctx context.Context, method, path string, statusCode int, duration time.Duration) {
	if m == nil || m.httpRequestsTotal == nil || m.httpRequestDuration == nil {
		return // Instrumentation not initialized
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrMethod, method),
		attribute.String(attrPath, path),
		attribute.String(attrStatus, strconv.Itoa(statusCode)),
	}

	m.httpRequestsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.httpRequestDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// RecordGmailRequest records a single Gmail API HTTP round trip with its
// response status and duration in seconds. Every attempt counts, so a
// request that succeeds after two retries records three data points.
func (m *Metrics) RecordGmailRequest(ctx context.Context, status int, seconds float64) {
	if m == nil || m.gmailRequestsTotal == nil || m.gmailRequestDuration == nil {
		return // Instrumentation not initialized
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrStatus, strconv.Itoa(status)),
	}

	m.gmailRequestsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.gmailRequestDuration.Record(ctx, seconds, metric.WithAttributes(attrs...))
}

// RecordGmailRetry records a retry scheduled after a transient Gmail API
// status (429, 500, 502, 503).
func (m *Metrics) RecordGmailRetry(ctx context.Context, status int) {
	if m == nil || m.gmailRetriesTotal == nil {
		return // Instrumentation not initialized
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrStatus, strconv.Itoa(status)),
	}

	m.gmailRetriesTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordMessageFetched records a successful full message fetch.
func (m *Metrics) RecordMessageFetched(ctx context.Context) {
	if m == nil || m.messagesFetchedTotal == nil {
		return // Instrumentation not initialized
	}

	m.messagesFetchedTotal.Add(ctx, 1)
}

// RecordPageFetched records a fetched list page for the given collection
// ("messages" or "history").
func (m *Metrics) RecordPageFetched(ctx context.Context, collection string) {
	if m == nil || m.pagesFetchedTotal == nil {
		return // Instrumentation not initialized
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrCollection, collection),
	}

	m.pagesFetchedTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordSummarize records an email summarization request with status and duration.
// Status should be one of: "success", "error"
func (m *Metrics) RecordSummarize(ctx context.Context, status string, duration time.Duration) {
	if m == nil || m.summarizeTotal == nil || m.summarizeDuration == nil {
		return // Instrumentation not initialized
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrStatus, status),
	}

	m.summarizeTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.summarizeDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// RecordSummarizeWithAccount records an email summarization request with account info.
// This is the detailed version that includes account information when detailedLabels is enabled.
//
// Parameters:
//   - status: Result status ("success" or "error")
//   - account: User account/email (only included if detailedLabels is true)
//   - duration: Time taken for the summarization
func (m *Metrics) RecordSummarizeWithAccount(ctx context.Context, status, account string, duration time.Duration) {
	if m == nil || m.summarizeTotal == nil || m.summarizeDuration == nil {
		return // Instrumentation not initialized
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrStatus, status),
	}

	// Only add high-cardinality labels if explicitly enabled
	if m.detailedLabels && account != "" {
		attrs = append(attrs, attribute.String(attrAccount, account))
	}

	m.summarizeTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.summarizeDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// RecordLLMRequest records an LLM chat completion request with model, status,
// and duration.
//
// Parameters:
//   - model: Model identifier sent to the backend
//   - status: Result status ("success" or "error")
//   - duration: Time taken for the completion call
func (m *Metrics) RecordLLMRequest(ctx context.Context, model, status string, duration time.Duration) {
	if m == nil || m.llmRequestsTotal == nil || m.llmRequestDuration == nil {
		return // Instrumentation not initialized
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrModel, model),
		attribute.String(attrStatus, status),
	}

	m.llmRequestsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.llmRequestDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// RecordOAuthAuth records an OAuth authentication attempt with result.
// Result should be one of: "success", "failure"
func (m *Metrics) RecordOAuthAuth(ctx context.Context, result string) {
	if m == nil || m.oauthAuthTotal == nil {
		return // Instrumentation not initialized
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrResult, result),
	}

	m.oauthAuthTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// IncrementActiveSessions increments the active sessions counter.
func (m *Metrics) IncrementActiveSessions(ctx context.Context) {
	if m == nil || m.activeSessions == nil {
		return // Instrumentation not initialized
	}

	m.activeSessions.Add(ctx, 1)
}

// DecrementActiveSessions decrements the active sessions counter.
func (m *Metrics) DecrementActiveSessions(ctx context.Context) {
	if m == nil || m.activeSessions == nil {
		return // Instrumentation not initialized
	}

	m.activeSessions.Add(ctx, -1)
}
