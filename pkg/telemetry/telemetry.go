// Package telemetry traces team runs: one span per run, per manager decision
// and per worker contribution.
package telemetry

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/sweetpotato0/ai-devteam/pkg/logging"
)

const (
	serviceName     = "ai-devteam"
	tracerName      = "github.com/sweetpotato0/ai-devteam"
	shutdownTimeout = 5 * time.Second
)

// Config selects where spans go.
type Config struct {
	ServiceVersion string
	Environment    string
	// Endpoint is an OTLP/gRPC collector. Without one spans are written as
	// JSON to Output, which defaults to io.Discard.
	Endpoint string
	Output   io.Writer
	Disable  bool
	Logger   *slog.Logger
}

// Init installs the global tracer provider and returns a flush-and-stop
// function for process exit.
func Init(ctx context.Context, cfg Config) (func(context.Context) error, error) {
	if cfg.Disable {
		return func(context.Context) error { return nil }, nil
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.WithComponent("telemetry")
	}

	exp, err := exporter(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(serviceResource(cfg)),
	)
	otel.SetTracerProvider(tp)

	return func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			logger.Error("flushing spans failed", "error", err)
			return err
		}
		return nil
	}, nil
}

func serviceResource(cfg Config) *resource.Resource {
	attrs := []attribute.KeyValue{attribute.String("service.name", serviceName)}
	if cfg.ServiceVersion != "" {
		attrs = append(attrs, attribute.String("service.version", cfg.ServiceVersion))
	}
	if cfg.Environment != "" {
		attrs = append(attrs, attribute.String("deployment.environment", cfg.Environment))
	}
	return resource.NewSchemaless(attrs...)
}

func exporter(ctx context.Context, cfg Config, logger *slog.Logger) (sdktrace.SpanExporter, error) {
	if cfg.Endpoint == "" {
		out := cfg.Output
		if out == nil {
			out = io.Discard
		}
		return stdouttrace.New(stdouttrace.WithWriter(out))
	}

	ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()
	exp, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(cfg.Endpoint),
		otlptracegrpc.WithTLSCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		return nil, fmt.Errorf("telemetry: dial collector %s: %w", cfg.Endpoint, err)
	}
	logger.Info("exporting spans", "endpoint", cfg.Endpoint)
	return exp, nil
}

// Start opens a span. The global provider is looked up on every call, so
// spans started before Init go to the no-op provider.
func Start(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, name, trace.WithAttributes(attrs...))
}

// End closes span, marking it failed when err is non-nil.
func End(span trace.Span, err error) {
	if span == nil {
		return
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
