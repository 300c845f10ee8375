package instrumentation

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"
)

// RouteInvocation captures all information about an API route invocation for
// audit logging. This provides a comprehensive audit trail for every
// authenticated request against the read API and the summarizer.
//
// # Privacy Considerations
//
// The UserEmail field contains PII. When logging, consider:
//   - Using UserDomain() to get only the domain for metrics/general logs
//   - Only logging full email in audit-specific log streams
//   - Ensuring audit logs have appropriate access controls
type RouteInvocation struct {
	// Route path, e.g. "/ai/summarize_email"
	Route string

	// User identity (from OAuth)
	UserEmail string

	// Target information for upstream calls
	ServiceName string // Upstream service (gmail, llm)
	Operation   string // Operation type (list, get, history, summarize)
	MessageID   string // Gmail message ID when a single message is targeted

	// Execution details
	StartTime time.Time
	Duration  time.Duration
	Success   bool
	Error     string

	// Tracing context
	TraceID string
	SpanID  string
}

// UserDomain returns the domain portion of the user's email for lower-cardinality logging.
func (ri *RouteInvocation) UserDomain() string {
	return ExtractUserDomain(ri.UserEmail)
}

// Status returns "success" or "error" based on the Success field.
func (ri *RouteInvocation) Status() string {
	if ri.Success {
		return StatusSuccess
	}
	return StatusError
}

// LogAttrs returns slog attributes for structured logging.
// This provides a consistent set of fields for all route invocation logs.
//
// # Cardinality
//
// This function uses cardinality-controlled values (user_domain)
// for metrics-compatible logging. For full audit logging, use LogAuditAttrs.
func (ri *RouteInvocation) LogAttrs() []slog.Attr {
	attrs := []slog.Attr{
		slog.String("route", ri.Route),
		slog.String("user_domain", ri.UserDomain()),
		slog.Duration("duration", ri.Duration),
		slog.Bool("success", ri.Success),
	}

	// Add optional fields only if present
	if ri.ServiceName != "" {
		attrs = append(attrs, slog.String("service", ri.ServiceName))
	}
	if ri.Operation != "" {
		attrs = append(attrs, slog.String("operation", ri.Operation))
	}
	if ri.MessageID != "" {
		attrs = append(attrs, slog.String("message_id", ri.MessageID))
	}
	if ri.TraceID != "" {
		attrs = append(attrs, slog.String("trace_id", ri.TraceID))
	}
	if ri.Error != "" {
		attrs = append(attrs, slog.String("error", ri.Error))
	}

	return attrs
}

// LogAuditAttrs returns slog attributes for full audit logging.
// This includes the full user email for compliance/audit purposes.
//
// # Security Warning
//
// This method includes PII (full email). Ensure audit logs are:
//   - Stored securely with appropriate access controls
//   - Not exposed to general monitoring dashboards
//   - Retained according to compliance requirements
func (ri *RouteInvocation) LogAuditAttrs() []slog.Attr {
	attrs := []slog.Attr{
		slog.String("route", ri.Route),
		slog.String("user", ri.UserEmail),
		slog.Duration("duration", ri.Duration),
		slog.Bool("success", ri.Success),
	}

	// Add all optional fields
	if ri.ServiceName != "" {
		attrs = append(attrs, slog.String("service", ri.ServiceName))
	}
	if ri.Operation != "" {
		attrs = append(attrs, slog.String("operation", ri.Operation))
	}
	if ri.MessageID != "" {
		attrs = append(attrs, slog.String("message_id", ri.MessageID))
	}
	if ri.TraceID != "" {
		attrs = append(attrs, slog.String("trace_id", ri.TraceID))
	}
	if ri.SpanID != "" {
		attrs = append(attrs, slog.String("span_id", ri.SpanID))
	}
	if ri.Error != "" {
		attrs = append(attrs, slog.String("error", ri.Error))
	}

	return attrs
}

// NewRouteInvocation creates a new RouteInvocation with timing started.
// Call Complete() when the request finishes.
func NewRouteInvocation(route string) *RouteInvocation {
	return &RouteInvocation{
		Route:     route,
		StartTime: time.Now(),
	}
}

// WithUser sets the user identity information.
func (ri *RouteInvocation) WithUser(email string) *RouteInvocation {
	ri.UserEmail = email
	return ri
}

// WithService sets the upstream service and operation.
func (ri *RouteInvocation) WithService(serviceName, operation string) *RouteInvocation {
	ri.ServiceName = serviceName
	ri.Operation = operation
	return ri
}

// WithMessageID sets the targeted Gmail message ID.
func (ri *RouteInvocation) WithMessageID(id string) *RouteInvocation {
	ri.MessageID = id
	return ri
}

// WithSpanContext extracts trace context from the current span.
func (ri *RouteInvocation) WithSpanContext(ctx context.Context) *RouteInvocation {
	span := trace.SpanFromContext(ctx)
	if span.SpanContext().IsValid() {
		ri.TraceID = span.SpanContext().TraceID().String()
		ri.SpanID = span.SpanContext().SpanID().String()
	}
	return ri
}

// Complete marks the invocation as completed and calculates duration.
// Returns the same RouteInvocation for method chaining.
func (ri *RouteInvocation) Complete(success bool, err error) *RouteInvocation {
	ri.Duration = time.Since(ri.StartTime)
	ri.Success = success
	if err != nil {
		ri.Error = err.Error()
	}
	return ri
}

// CompleteWithError marks the invocation as failed with the given error.
func (ri *RouteInvocation) CompleteWithError(err error) *RouteInvocation {
	return ri.Complete(false, err)
}

// CompleteSuccess marks the invocation as successful.
func (ri *RouteInvocation) CompleteSuccess() *RouteInvocation {
	return ri.Complete(true, nil)
}

// AuditLogger provides structured audit logging for route invocations.
// It wraps slog.Logger with convenience methods for logging API operations.
type AuditLogger struct {
	logger     *slog.Logger
	includePII bool
	enabled    bool
}

// NewAuditLogger creates a new AuditLogger with the given slog.Logger.
// By default, PII is not included in logs (anonymized identifiers are used instead).
func NewAuditLogger(logger *slog.Logger) *AuditLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditLogger{
		logger:     logger,
		includePII: false,
		enabled:    true,
	}
}

// NewAuditLoggerWithConfig creates a new AuditLogger with the given configuration.
func NewAuditLoggerWithConfig(logger *slog.Logger, config AuditLoggingConfig) *AuditLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditLogger{
		logger:     logger,
		includePII: config.IncludePII,
		enabled:    config.Enabled,
	}
}

// SetIncludePII sets whether to include full email addresses in audit logs.
func (al *AuditLogger) SetIncludePII(include bool) {
	al.includePII = include
}

// SetEnabled sets whether audit logging is enabled.
func (al *AuditLogger) SetEnabled(enabled bool) {
	al.enabled = enabled
}

// LogRouteInvocation logs a route invocation using the standard log attributes.
// This is suitable for general operational logging with cardinality controls.
// If the logger is configured with IncludePII, full user emails are logged;
// otherwise, only domain-based anonymized identifiers are used.
func (al *AuditLogger) LogRouteInvocation(ri *RouteInvocation) {
	if !al.enabled {
		return
	}

	// Choose between PII and anonymized logging based on configuration
	var attrs []slog.Attr
	if al.includePII {
		attrs = ri.LogAuditAttrs()
	} else {
		attrs = ri.LogAttrs()
	}

	args := make([]any, len(attrs))
	for i, attr := range attrs {
		args[i] = attr
	}

	if ri.Success {
		al.logger.Info("request_executed", args...)
	} else {
		al.logger.Warn("request_failed", args...)
	}
}

// LogRouteAudit logs a route invocation with full audit details.
// This includes PII (full email addresses) for compliance/audit purposes.
// SECURITY: Ensure audit logs are routed to secure storage with appropriate access controls.
//
// Note: This method respects the enabled flag but always includes PII when called,
// regardless of the IncludePII configuration. Use LogRouteInvocation for
// configuration-aware logging.
func (al *AuditLogger) LogRouteAudit(ri *RouteInvocation) {
	if !al.enabled {
		return
	}

	attrs := ri.LogAuditAttrs()
	args := make([]any, len(attrs))
	for i, attr := range attrs {
		args[i] = attr
	}

	al.logger.Info("request_audit", args...)
}
