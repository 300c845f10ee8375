// Package instrumentation provides comprehensive OpenTelemetry instrumentation
// for the inboxgist server.
//
// This package enables production-grade observability through:
//   - OpenTelemetry metrics for HTTP requests, OAuth operations, Gmail API calls, and LLM calls
//   - Distributed tracing for request flows and upstream calls
//   - Prometheus metrics export via /metrics endpoint on dedicated port
//   - OTLP export support for modern observability platforms
//
// # Metrics
//
// The package exposes the following metric categories:
//
// Server/HTTP Metrics:
//   - http_requests_total: Counter of HTTP requests by method, path, and status
//   - http_request_duration_seconds: Histogram of HTTP request durations
//   - active_sessions: Gauge of active user sessions
//
// Gmail API Metrics:
//   - gmail_api_requests_total: Counter of Gmail API round trips by status (retries included)
//   - gmail_api_request_duration_seconds: Histogram of Gmail API request durations
//   - gmail_api_retries_total: Counter of retries scheduled after transient statuses
//   - gmail_messages_fetched_total: Counter of full message fetches
//   - gmail_pages_fetched_total: Counter of list pages fetched by collection
//
// Summarization and LLM Metrics:
//   - summarize_requests_total: Counter of summarization requests by status
//   - summarize_duration_seconds: Histogram of end-to-end summarization durations
//   - llm_requests_total: Counter of LLM chat completion calls by model and status
//   - llm_request_duration_seconds: Histogram of LLM call durations
//
// OAuth Authentication Metrics:
//   - oauth_auth_total: Counter of OAuth authentication events by result
//
// # Tracing
//
// Distributed tracing spans are created for:
//   - HTTP request handling
//   - API route invocations (route.<path>)
//   - Gmail API calls (gmail.<operation>)
//   - LLM chat completions (llm.chat)
//
// # Configuration
//
// Instrumentation can be configured via environment variables:
//   - INSTRUMENTATION_ENABLED: Enable/disable instrumentation (default: true)
//   - METRICS_EXPORTER: Metrics exporter type (prometheus, otlp, stdout, default: prometheus)
//   - TRACING_EXPORTER: Tracing exporter type (otlp, stdout, none, default: none)
//   - OTEL_EXPORTER_OTLP_ENDPOINT: OTLP endpoint for traces/metrics
//   - OTEL_TRACES_SAMPLER_ARG: Sampling rate (0.0 to 1.0, default: 0.1)
//   - OTEL_SERVICE_NAME: Service name (default: inboxgist)
//
// # Example Usage
//
//	// Initialize instrumentation
//	provider, err := instrumentation.NewProvider(ctx, instrumentation.Config{
//		ServiceName:    "inboxgist",
//		ServiceVersion: "0.1.0",
//		Enabled:        true,
//	})
//	if err != nil {
//		return err
//	}
//	defer provider.Shutdown(ctx)
//
//	// Get metrics recorder
//	recorder := provider.Metrics()
//
//	// Record an HTTP request
//	recorder.RecordHTTPRequest(ctx, "GET", "/gmail/messages", 200, time.Since(start))
//
//	// Record a Gmail API round trip
//	recorder.RecordGmailRequest(ctx, 200, time.Since(start).Seconds())
//
//	// Record a summarization request
//	recorder.RecordSummarize(ctx, "success", time.Since(start))
package instrumentation
