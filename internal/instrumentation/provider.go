package instrumentation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Provider owns the OpenTelemetry pipelines behind the server's metrics and
// traces. A disabled Provider is still fully usable: it hands out no-op
// instruments so call sites never have to nil-check.
type Provider struct {
	enabled        bool
	metrics        *Metrics
	meterProvider  *sdkmetric.MeterProvider
	tracerProvider *sdktrace.TracerProvider
	promExporter   *prometheus.Exporter
}

// NewProvider builds the meter and tracer providers described by config and
// installs them as the otel globals. Callers must Shutdown the returned
// Provider to flush pending telemetry.
func NewProvider(ctx context.Context, config Config) (*Provider, error) {
	if !config.Enabled {
		// A zero-value Metrics records nothing.
		return &Provider{metrics: &Metrics{}}, nil
	}

	res, err := newServiceResource(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	reader, promExporter, err := newMetricReader(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize meter provider: %w", err)
	}
	meterProvider := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(reader),
	)

	tracerProvider, err := newTracerProvider(ctx, config, res)
	if err != nil {
		err = fmt.Errorf("failed to initialize tracer provider: %w", err)
		if shutdownErr := meterProvider.Shutdown(ctx); shutdownErr != nil {
			err = errors.Join(err, shutdownErr)
		}
		return nil, err
	}

	p := &Provider{
		enabled:        true,
		meterProvider:  meterProvider,
		tracerProvider: tracerProvider,
		promExporter:   promExporter,
	}

	p.metrics, err = NewMetrics(meterProvider.Meter(config.ServiceName), config.DetailedLabels)
	if err != nil {
		err = fmt.Errorf("failed to create metrics recorder: %w", err)
		if shutdownErr := p.Shutdown(ctx); shutdownErr != nil {
			err = errors.Join(err, shutdownErr)
		}
		return nil, err
	}

	otel.SetMeterProvider(meterProvider)
	otel.SetTracerProvider(tracerProvider)

	return p, nil
}

// newServiceResource describes this process for exported telemetry. The
// instance ID falls back to the hostname so parallel deployments stay
// distinguishable without extra configuration.
func newServiceResource(ctx context.Context, config Config) (*resource.Resource, error) {
	instanceID := config.ServiceInstanceID
	if instanceID == "" {
		if hostname, err := os.Hostname(); err == nil {
			instanceID = hostname
		}
	}

	attrs := []attribute.KeyValue{
		semconv.ServiceName(config.ServiceName),
		semconv.ServiceVersion(config.ServiceVersion),
	}
	if instanceID != "" {
		attrs = append(attrs, semconv.ServiceInstanceID(instanceID))
	}

	return resource.New(ctx, resource.WithAttributes(attrs...))
}

// newMetricReader builds the reader feeding the meter provider. With the
// prometheus exporter the exporter itself is the reader; it is also returned
// separately so the metrics server can mount it.
func newMetricReader(ctx context.Context, config Config) (sdkmetric.Reader, *prometheus.Exporter, error) {
	switch config.MetricsExporter {
	case ExporterPrometheus:
		exporter, err := prometheus.New()
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
		}
		return exporter, exporter, nil

	case ExporterOTLP:
		if config.OTLPEndpoint == "" {
			return nil, nil, fmt.Errorf("OTLP endpoint is required for OTLP metrics exporter; set OTEL_EXPORTER_OTLP_ENDPOINT or use the prometheus exporter")
		}
		opts := []otlpmetrichttp.Option{otlpmetrichttp.WithEndpoint(config.OTLPEndpoint)}
		if config.OTLPInsecure {
			opts = append(opts, otlpmetrichttp.WithInsecure())
		}
		exporter, err := otlpmetrichttp.New(ctx, opts...)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create OTLP metrics exporter: %w", err)
		}
		return sdkmetric.NewPeriodicReader(exporter), nil, nil

	case ExporterStdout:
		slog.Warn("stdout metrics exporter enabled, intended for development only",
			"component", "instrumentation")
		exporter, err := stdoutmetric.New()
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create stdout metrics exporter: %w", err)
		}
		return sdkmetric.NewPeriodicReader(exporter), nil, nil

	default:
		return nil, nil, fmt.Errorf("unsupported metrics exporter: %s", config.MetricsExporter)
	}
}

// newTracerProvider builds the tracer pipeline. ExporterNone still returns a
// real provider so route middleware can start spans unconditionally; the
// NeverSample sampler keeps them unrecorded.
func newTracerProvider(ctx context.Context, config Config, res *resource.Resource) (*sdktrace.TracerProvider, error) {
	if config.TracingExporter == ExporterNone {
		return sdktrace.NewTracerProvider(
			sdktrace.WithResource(res),
			sdktrace.WithSampler(sdktrace.NeverSample()),
		), nil
	}

	var exporter sdktrace.SpanExporter
	switch config.TracingExporter {
	case ExporterOTLP:
		if config.OTLPEndpoint == "" {
			return nil, fmt.Errorf("OTLP endpoint is required for OTLP tracing exporter")
		}
		opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(config.OTLPEndpoint)}
		if config.OTLPInsecure {
			// Spans carry mailbox metadata; plaintext export belongs to
			// local collectors only.
			slog.Warn("OTLP trace export over insecure transport",
				"component", "instrumentation",
				"endpoint", config.OTLPEndpoint)
			opts = append(opts, otlptracehttp.WithInsecure())
		}
		var err error
		exporter, err = otlptracehttp.New(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create OTLP trace exporter: %w", err)
		}

	case ExporterStdout:
		slog.Warn("stdout trace exporter enabled, intended for development only",
			"component", "instrumentation")
		var err error
		exporter, err = stdouttrace.New()
		if err != nil {
			return nil, fmt.Errorf("failed to create stdout trace exporter: %w", err)
		}

	default:
		return nil, fmt.Errorf("unsupported tracing exporter: %s", config.TracingExporter)
	}

	sampler := sdktrace.ParentBased(sdktrace.TraceIDRatioBased(config.TraceSamplingRate))
	return sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithBatcher(exporter),
		sdktrace.WithSampler(sampler),
	), nil
}

// Metrics returns the shared metrics recorder. It is never nil.
func (p *Provider) Metrics() *Metrics {
	return p.metrics
}

// Tracer returns a tracer for the named component, or a no-op tracer when
// instrumentation is disabled.
func (p *Provider) Tracer(name string) trace.Tracer {
	if !p.enabled || p.tracerProvider == nil {
		return noop.NewTracerProvider().Tracer(name)
	}
	return p.tracerProvider.Tracer(name)
}

// PrometheusExporter returns the exporter backing the metrics endpoint, or
// nil when the prometheus exporter is not configured. The exporter registers
// with the default Prometheus registry, so the endpoint itself is served by
// promhttp.Handler().
func (p *Provider) PrometheusExporter() *prometheus.Exporter {
	return p.promExporter
}

// Shutdown flushes and stops both pipelines.
func (p *Provider) Shutdown(ctx context.Context) error {
	if !p.enabled {
		return nil
	}

	var errs []error
	if p.meterProvider != nil {
		if err := p.meterProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("meter provider shutdown: %w", err))
		}
	}
	if p.tracerProvider != nil {
		if err := p.tracerProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("tracer provider shutdown: %w", err))
		}
	}
	return errors.Join(errs...)
}

// Enabled reports whether the SDK pipelines were started.
func (p *Provider) Enabled() bool {
	return p.enabled
}
