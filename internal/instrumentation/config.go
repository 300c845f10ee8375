package instrumentation

import (
	"fmt"
	"os"
	"strconv"
)

// Label values shared by the metric recorders. Call sites use these constants
// rather than inventing spellings, which keeps label cardinality fixed.
const (
	StatusSuccess = "success"
	StatusError   = "error"

	OAuthResultSuccess = "success"
	OAuthResultFailure = "failure"

	ServiceGmail = "gmail"
	ServiceLLM   = "llm"
)

// Exporter names accepted by Config.
const (
	ExporterPrometheus = "prometheus"
	ExporterOTLP       = "otlp"
	ExporterStdout     = "stdout"
	ExporterNone       = "none"
)

// Config selects the exporters and sampling behavior for the Provider.
type Config struct {
	// ServiceName identifies this process in exported telemetry.
	ServiceName string

	// ServiceVersion is stamped on the telemetry resource. The serve
	// command fills it in from the build version.
	ServiceVersion string

	// ServiceInstanceID distinguishes replicas. Empty means use the
	// hostname.
	ServiceInstanceID string

	// Enabled turns the whole subsystem on or off. When false the Provider
	// hands out no-op meters and tracers and starts no exporters.
	Enabled bool

	// MetricsExporter is one of prometheus, otlp or stdout.
	MetricsExporter string

	// TracingExporter is one of otlp, stdout or none.
	TracingExporter string

	// OTLPEndpoint is the collector address (host:port, no scheme) used by
	// the otlp exporters.
	OTLPEndpoint string

	// OTLPInsecure switches OTLP export to plain HTTP. Leave false outside
	// local development; spans can carry sensitive metadata.
	OTLPInsecure bool

	// TraceSamplingRate is the head sampling ratio, 0.0 to 1.0.
	TraceSamplingRate float64

	// DetailedLabels adds higher-cardinality labels such as history walk
	// outcomes to some metrics. Keep off in production.
	DetailedLabels bool

	// AuditLogging configures the mailbox access audit trail.
	AuditLogging AuditLoggingConfig
}

// AuditLoggingConfig controls the audit trail of authenticated mailbox access.
type AuditLoggingConfig struct {
	// Enabled switches audit events on. They are emitted through slog and
	// should be routed to retained storage.
	Enabled bool

	// IncludePII logs full email addresses instead of anonymized user IDs.
	// Only enable when the log sink is access controlled.
	IncludePII bool
}

// DefaultConfig builds a Config from OTEL_* and INSTRUMENTATION_* environment
// variables, with fallbacks suited to a single-instance deployment: Prometheus
// metrics on, tracing off.
func DefaultConfig() Config {
	return Config{
		ServiceName:       envOr("OTEL_SERVICE_NAME", "inboxgist"),
		ServiceVersion:    "unknown",
		ServiceInstanceID: os.Getenv("OTEL_SERVICE_INSTANCE_ID"),
		Enabled:           envBool("INSTRUMENTATION_ENABLED", true),
		MetricsExporter:   envOr("METRICS_EXPORTER", ExporterPrometheus),
		TracingExporter:   envOr("TRACING_EXPORTER", ExporterNone),
		OTLPEndpoint:      os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		OTLPInsecure:      envBool("OTEL_EXPORTER_OTLP_INSECURE", false),
		TraceSamplingRate: envFloat("OTEL_TRACES_SAMPLER_ARG", 0.1),
		DetailedLabels:    envBool("METRICS_DETAILED_LABELS", false),
		AuditLogging: AuditLoggingConfig{
			Enabled:    envBool("AUDIT_LOGGING_ENABLED", true),
			IncludePII: envBool("AUDIT_LOGGING_INCLUDE_PII", false),
		},
	}
}

// Validate rejects combinations the Provider cannot honor.
func (c *Config) Validate() error {
	if c.TraceSamplingRate < 0 || c.TraceSamplingRate > 1 {
		return fmt.Errorf("trace sampling rate must be between 0.0 and 1.0, got %f", c.TraceSamplingRate)
	}

	switch c.MetricsExporter {
	case "", ExporterPrometheus, ExporterOTLP, ExporterStdout:
	default:
		return fmt.Errorf("invalid metrics exporter %q, must be one of: prometheus, otlp, stdout", c.MetricsExporter)
	}

	switch c.TracingExporter {
	case "", ExporterOTLP, ExporterStdout, ExporterNone:
	default:
		return fmt.Errorf("invalid tracing exporter %q, must be one of: otlp, stdout, none", c.TracingExporter)
	}

	if c.MetricsExporter == ExporterOTLP && c.OTLPEndpoint == "" {
		return fmt.Errorf("OTLP endpoint is required when using OTLP metrics exporter")
	}
	if c.TracingExporter == ExporterOTLP && c.OTLPEndpoint == "" {
		return fmt.Errorf("OTLP endpoint is required when using OTLP tracing exporter")
	}

	return nil
}

func envOr(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return parsed
}

func envFloat(key string, fallback float64) float64 {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return parsed
}
