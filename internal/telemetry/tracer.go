// Package telemetry wires internal/config's TelemetryConfig to an actual
// OpenTelemetry tracer provider. The teacher's go.mod carries the otel SDK
// and both OTLP exporters as direct dependencies with no import site
// anywhere in its own source; this package gives them one.
package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"

	"github.com/nextlevelbuilder/jobauth/internal/config"
)

// Shutdown flushes and stops the configured tracer provider. Init returns a
// no-op Shutdown when telemetry is disabled.
type Shutdown func(ctx context.Context) error

// Init configures the global otel tracer provider from cfg. When
// cfg.Enabled is false it installs nothing and leaves otel's default global
// provider in place, which is a no-op, so every Tracer() call downstream is
// a cheap no-op rather than a nil check.
func Init(ctx context.Context, cfg config.TelemetryConfig) (Shutdown, error) {
	if !cfg.Enabled {
		return func(context.Context) error { return nil }, nil
	}

	exp, err := newExporter(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("telemetry: create exporter: %w", err)
	}

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "jobauth"
	}

	res, err := resource.New(ctx, resource.WithAttributes(
		attribute.String("service.name", serviceName),
	))
	if err != nil {
		return nil, fmt.Errorf("telemetry: build resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)

	return tp.Shutdown, nil
}

func newExporter(ctx context.Context, cfg config.TelemetryConfig) (sdktrace.SpanExporter, error) {
	dialCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()

	if cfg.Protocol == "http" {
		opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(cfg.Endpoint)}
		if cfg.Insecure {
			opts = append(opts, otlptracehttp.WithInsecure())
		}
		if len(cfg.Headers) > 0 {
			opts = append(opts, otlptracehttp.WithHeaders(cfg.Headers))
		}
		client := otlptracehttp.NewClient(opts...)
		return otlptrace.New(dialCtx, client)
	}

	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}
	if len(cfg.Headers) > 0 {
		opts = append(opts, otlptracegrpc.WithHeaders(cfg.Headers))
	}
	client := otlptracegrpc.NewClient(opts...)
	return otlptrace.New(dialCtx, client)
}

// Tracer returns the global chatloop/job tracer. Safe to call before Init —
// otel's default global provider is a no-op until SetTracerProvider runs.
func Tracer() trace.Tracer {
	return otel.Tracer("jobauth")
}

// dialTimeout bounds exporter setup so a misconfigured collector endpoint
// doesn't hang gateway startup.
const dialTimeout = 5 * time.Second
