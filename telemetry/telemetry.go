// Package telemetry sets up OpenTelemetry trace and log export for a cabinet
// process. Engines create their spans through the global tracer provider;
// logs reach the collector through an slog handler teed next to the console
// handler (see logger.Options.Extra).
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/amp-labs/logicstates/logger"
	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
)

const (
	defaultServiceName    = "logicstates"
	defaultServiceVersion = "1.0.0"
	defaultTimeout        = 5 * time.Second
)

// Config holds the OpenTelemetry configuration.
type Config struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	Endpoint       string
	Enabled        bool
	ExportLogs     bool
	Timeout        time.Duration
}

// Providers holds the SDK providers created by Initialize. The zero value
// (telemetry disabled) is valid: LogHandler returns nil and Shutdown does
// nothing.
type Providers struct {
	tracer *sdktrace.TracerProvider
	logs   *sdklog.LoggerProvider
}

// Initialize sets up OpenTelemetry with the given configuration and installs
// the tracer provider globally.
func Initialize(ctx context.Context, config Config) (*Providers, error) {
	log := logger.Get(ctx)

	if !config.Enabled {
		log.Info("OpenTelemetry is disabled")

		return &Providers{}, nil
	}

	if config.Endpoint == "" {
		log.Warn("OpenTelemetry endpoint not configured, telemetry will be disabled")

		return &Providers{}, nil
	}

	if config.ServiceName == "" {
		config.ServiceName = defaultServiceName
	}

	if config.ServiceVersion == "" {
		config.ServiceVersion = defaultServiceVersion
	}

	if config.Timeout <= 0 {
		config.Timeout = defaultTimeout
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String(config.ServiceName),
			semconv.ServiceVersionKey.String(config.ServiceVersion),
			semconv.DeploymentEnvironmentKey.String(config.Environment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	traceExporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpointURL(config.Endpoint),
		otlptracehttp.WithTimeout(config.Timeout),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP trace exporter: %w", err)
	}

	providers := &Providers{
		tracer: sdktrace.NewTracerProvider(
			sdktrace.WithBatcher(traceExporter),
			sdktrace.WithResource(res),
			sdktrace.WithSampler(sdktrace.AlwaysSample()),
		),
	}

	if config.ExportLogs {
		logExporter, err := otlploghttp.New(ctx,
			otlploghttp.WithEndpointURL(config.Endpoint),
			otlploghttp.WithTimeout(config.Timeout),
		)
		if err != nil {
			return nil, errors.Join(
				fmt.Errorf("failed to create OTLP log exporter: %w", err),
				providers.tracer.Shutdown(ctx),
			)
		}

		providers.logs = sdklog.NewLoggerProvider(
			sdklog.WithProcessor(sdklog.NewBatchProcessor(logExporter)),
			sdklog.WithResource(res),
		)
	}

	otel.SetTracerProvider(providers.tracer)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	log.Info("OpenTelemetry initialized",
		"service", config.ServiceName,
		"version", config.ServiceVersion,
		"environment", config.Environment,
		"endpoint", config.Endpoint,
		"logs", config.ExportLogs,
	)

	return providers, nil
}

// LogHandler returns an slog handler exporting records through the OTLP log
// pipeline, or nil when log export is off.
func (p *Providers) LogHandler(name string) slog.Handler {
	if p == nil || p.logs == nil {
		return nil
	}

	return otelslog.NewHandler(name, otelslog.WithLoggerProvider(p.logs))
}

// Shutdown flushes and stops the providers.
func (p *Providers) Shutdown(ctx context.Context) error {
	if p == nil {
		return nil
	}

	var errs []error

	if p.tracer != nil {
		logger.Get(ctx).Info("Shutting down OpenTelemetry tracer provider")

		errs = append(errs, p.tracer.Shutdown(ctx))
	}

	if p.logs != nil {
		errs = append(errs, p.logs.Shutdown(ctx))
	}

	return errors.Join(errs...)
}
