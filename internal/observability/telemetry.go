package observability

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

const instrumentationName = "github.com/oriys/asynccalc"

// Config holds telemetry configuration
type Config struct {
	Enabled     bool
	Exporter    string  // otlp-http or noop
	Endpoint    string  // host:port of the OTLP/HTTP collector
	ServiceName string  // calcd or calc
	SampleRate  float64 // 0.0 to 1.0
}

// provider is the installed tracing backend. tp is nil while disabled.
type provider struct {
	tp     *sdktrace.TracerProvider
	tracer trace.Tracer
}

var current atomic.Pointer[provider]

func init() {
	current.Store(disabled())
}

func disabled() *provider {
	return &provider{tracer: noop.NewTracerProvider().Tracer(instrumentationName)}
}

// Init installs the tracer described by cfg, replacing any earlier one.
// With tracing disabled every span is a no-op.
func Init(ctx context.Context, cfg Config) error {
	if !cfg.Enabled {
		install(disabled())
		return nil
	}

	var exporter sdktrace.SpanExporter
	switch cfg.Exporter {
	case "otlp-http", "otlp", "":
		exp, err := otlptracehttp.New(ctx,
			otlptracehttp.WithEndpoint(cfg.Endpoint),
			otlptracehttp.WithInsecure(),
		)
		if err != nil {
			return fmt.Errorf("create OTLP exporter: %w", err)
		}
		exporter = exp
	case "noop":
		exporter = discardExporter{}
	default:
		return fmt.Errorf("unknown exporter: %s", cfg.Exporter)
	}

	return start(ctx, cfg, sdktrace.WithBatcher(exporter))
}

// InitWithExporter enables tracing with spans exported synchronously to
// exp as each one ends. cfg.Exporter is ignored.
func InitWithExporter(ctx context.Context, cfg Config, exp sdktrace.SpanExporter) error {
	return start(ctx, cfg, sdktrace.WithSyncer(exp))
}

func start(ctx context.Context, cfg Config, export sdktrace.TracerProviderOption) error {
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion("1.0.0"),
		),
	)
	if err != nil {
		return fmt.Errorf("create resource: %w", err)
	}

	sampler := sdktrace.AlwaysSample()
	if cfg.SampleRate >= 0 && cfg.SampleRate < 1 {
		sampler = sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRate))
	}

	tp := sdktrace.NewTracerProvider(
		export,
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	install(&provider{tp: tp, tracer: tp.Tracer(instrumentationName)})
	return nil
}

// install swaps in p and shuts down whatever it replaced.
func install(p *provider) {
	old := current.Swap(p)
	if old != nil && old.tp != nil && old != p {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		old.tp.Shutdown(ctx)
	}
}

// Shutdown flushes pending spans and reverts to the no-op tracer
func Shutdown(ctx context.Context) error {
	old := current.Swap(disabled())
	if old.tp == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return old.tp.Shutdown(ctx)
}

// Tracer returns the installed tracer
func Tracer() trace.Tracer {
	return current.Load().tracer
}

// Enabled reports whether spans are being recorded and exported
func Enabled() bool {
	return current.Load().tp != nil
}

type discardExporter struct{}

func (discardExporter) ExportSpans(context.Context, []sdktrace.ReadOnlySpan) error { return nil }

func (discardExporter) Shutdown(context.Context) error { return nil }
