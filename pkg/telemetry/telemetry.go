// Package telemetry wires OpenTelemetry tracing for turns and capability
// dispatches.
package telemetry

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/sweetpotato0/genui/pkg/logging"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

const instrumentationName = "github.com/sweetpotato0/genui"

// Exporter names accepted by Config.Exporter.
const (
	ExporterStdout = "stdout"
	ExporterOTLP   = "otlp"
)

// Span attribute keys shared by the orchestrator and the dispatcher.
const (
	ConversationIDKey = attribute.Key("genui.conversation.id")
	TurnIDKey         = attribute.Key("genui.turn.id")
	TurnTerminalKey   = attribute.Key("genui.turn.terminal")
	PromptTokensKey   = attribute.Key("genui.prompt.tokens")
	CapabilityKey     = attribute.Key("genui.capability.name")
	CallIDKey         = attribute.Key("genui.capability.call_id")
)

// Config controls the trace pipeline.
type Config struct {
	ServiceName    string
	ServiceVersion string
	Disable        bool
	// Exporter is "stdout" or "otlp". Empty picks otlp when Endpoint is set.
	Exporter string
	// Endpoint is the OTLP gRPC collector address; it falls back to
	// OTEL_EXPORTER_OTLP_ENDPOINT.
	Endpoint string
	// SampleRatio in (0, 1]; zero samples everything.
	SampleRatio float64
	// Writer receives stdout spans; defaults to os.Stderr.
	Writer io.Writer
	Logger *slog.Logger
}

// Init installs a global tracer provider. The returned function flushes
// pending spans and must be called before the process exits.
func Init(ctx context.Context, cfg Config) (func(context.Context) error, error) {
	if cfg.Disable {
		return func(context.Context) error { return nil }, nil
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = "genui"
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.WithComponent("telemetry")
	}

	exp, err := newExporter(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	attrs := []attribute.KeyValue{semconv.ServiceNameKey.String(cfg.ServiceName)}
	if cfg.ServiceVersion != "" {
		attrs = append(attrs, semconv.ServiceVersionKey.String(cfg.ServiceVersion))
	}
	res, err := resource.New(ctx,
		resource.WithAttributes(attrs...),
		resource.WithFromEnv(),
		resource.WithProcess(),
	)
	if err != nil {
		return nil, fmt.Errorf("telemetry: create resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler(cfg.SampleRatio)),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	return func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			logger.Error("telemetry shutdown failed", "error", err)
			return err
		}
		return nil
	}, nil
}

func sampler(ratio float64) sdktrace.Sampler {
	if ratio <= 0 || ratio >= 1 {
		return sdktrace.AlwaysSample()
	}
	return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))
}

func newExporter(ctx context.Context, cfg Config, logger *slog.Logger) (sdktrace.SpanExporter, error) {
	kind := strings.ToLower(cfg.Exporter)
	if kind == "" {
		kind = ExporterStdout
		if cfg.Endpoint != "" {
			kind = ExporterOTLP
		}
	}

	switch kind {
	case ExporterStdout:
		w := cfg.Writer
		if w == nil {
			w = os.Stderr
		}
		return stdouttrace.New(stdouttrace.WithWriter(w), stdouttrace.WithPrettyPrint())
	case ExporterOTLP:
		if cfg.Endpoint == "" {
			return nil, fmt.Errorf("telemetry: otlp exporter needs an endpoint")
		}
		ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		exp, err := otlptracegrpc.New(ctx,
			otlptracegrpc.WithEndpoint(cfg.Endpoint),
			otlptracegrpc.WithDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
		)
		if err != nil {
			return nil, fmt.Errorf("telemetry: create OTLP exporter: %w", err)
		}
		logger.Info("OTLP trace exporter configured", "endpoint", cfg.Endpoint)
		return exp, nil
	default:
		return nil, fmt.Errorf("telemetry: unknown exporter %q", cfg.Exporter)
	}
}

// Tracer returns the named tracer from the global provider.
func Tracer(component string) trace.Tracer {
	return otel.Tracer(instrumentationName + "/" + component)
}

// StartTurn opens the span covering one conversation turn.
func StartTurn(ctx context.Context, tracer trace.Tracer, conversationID, turnID string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "genui.turn", trace.WithAttributes(
		ConversationIDKey.String(conversationID),
		TurnIDKey.String(turnID),
	))
}

// StartDispatch opens the span covering one capability invocation.
func StartDispatch(ctx context.Context, tracer trace.Tracer, name, callID string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "genui.capability.dispatch", trace.WithAttributes(
		CapabilityKey.String(name),
		CallIDKey.String(callID),
	))
}

// End finalizes a span and captures the provided error.
func End(span trace.Span, err error) {
	if span == nil {
		return
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
