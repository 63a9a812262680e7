// Package telemetry wires OpenTelemetry tracing for supervisor runs. Spans are
// exported over OTLP/HTTP when an endpoint is configured.
package telemetry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

var (
	mu       sync.RWMutex
	provider trace.TracerProvider
	shutdown func(context.Context) error
)

// ErrExportPaused is returned while a collector that kept failing is skipped.
var ErrExportPaused = fmt.Errorf("span export paused after repeated collector failures")

// pausingExporter retries each batch with backoff. After pauseAfter batches in
// a row fail, batches are dropped for pauseFor so a dead collector does not
// stall the supervisor's steps.
type pausingExporter struct {
	next       sdktrace.SpanExporter
	maxTries   uint
	pauseAfter int
	pauseFor   time.Duration
	now        func() time.Time

	mu          sync.Mutex
	failed      int
	pausedUntil time.Time
}

func newPausingExporter(next sdktrace.SpanExporter) *pausingExporter {
	return &pausingExporter{
		next:       next,
		maxTries:   4,
		pauseAfter: 3,
		pauseFor:   time.Minute,
		now:        time.Now,
	}
}

func (p *pausingExporter) paused() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.now().Before(p.pausedUntil)
}

func (p *pausingExporter) record(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err == nil {
		p.failed = 0
		return
	}
	p.failed++
	if p.failed >= p.pauseAfter {
		p.failed = 0
		p.pausedUntil = p.now().Add(p.pauseFor)
	}
}

func (p *pausingExporter) ExportSpans(ctx context.Context, spans []sdktrace.ReadOnlySpan) error {
	if p.paused() {
		return ErrExportPaused
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 50 * time.Millisecond
	b.MaxInterval = time.Second

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		return struct{}{}, p.next.ExportSpans(ctx, spans)
	}, backoff.WithBackOff(b), backoff.WithMaxTries(p.maxTries))
	p.record(err)
	if err != nil {
		return fmt.Errorf("export %d spans: %w", len(spans), err)
	}
	return nil
}

func (p *pausingExporter) Shutdown(ctx context.Context) error {
	return p.next.Shutdown(ctx)
}

func newResource(cfg Config) (*resource.Resource, error) {
	return resource.New(
		context.Background(),
		resource.WithAttributes(
			attribute.String("service.name", cfg.ServiceName),
			attribute.String("service.version", cfg.ServiceVersion),
			attribute.String("deployment.environment", cfg.Environment),
		),
		resource.WithHost(),
		resource.WithTelemetrySDK(),
	)
}

// InitProvider installs the tracer provider for cfg and returns its shutdown
// function. A disabled config installs a no-op provider.
func InitProvider(ctx context.Context, cfg Config) (func(context.Context) error, error) {
	mu.Lock()
	defer mu.Unlock()

	if !cfg.Enabled {
		provider = noop.NewTracerProvider()
		shutdown = func(context.Context) error { return nil }
		otel.SetTracerProvider(provider)
		return shutdown, nil
	}

	res, err := newResource(cfg)
	if err != nil {
		return nil, fmt.Errorf("telemetry resource: %w", err)
	}

	sampler := sdktrace.AlwaysSample()
	if cfg.SampleRate < 1.0 {
		sampler = sdktrace.TraceIDRatioBased(cfg.SampleRate)
	}
	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sampler)),
	}

	if cfg.Endpoint != "" {
		exporter, err := otlptracehttp.New(ctx,
			otlptracehttp.WithEndpoint(cfg.Endpoint),
			otlptracehttp.WithCompression(otlptracehttp.GzipCompression),
		)
		if err != nil {
			return nil, fmt.Errorf("otlp exporter for %s: %w", cfg.Endpoint, err)
		}
		opts = append(opts, sdktrace.WithBatcher(newPausingExporter(exporter),
			sdktrace.WithBatchTimeout(5*time.Second),
		))
	}

	tp := sdktrace.NewTracerProvider(opts...)
	provider = tp
	shutdown = tp.Shutdown
	otel.SetTracerProvider(tp)
	return shutdown, nil
}

// Shutdown flushes and stops the installed provider.
func Shutdown(ctx context.Context) error {
	mu.RLock()
	fn := shutdown
	mu.RUnlock()

	if fn == nil {
		return nil
	}
	return fn(ctx)
}

// GetTracerProvider returns the installed provider, or a no-op one.
func GetTracerProvider() trace.TracerProvider {
	mu.RLock()
	defer mu.RUnlock()

	if provider == nil {
		return noop.NewTracerProvider()
	}
	return provider
}

// SetTracerProvider replaces the provider used by the span helpers.
func SetTracerProvider(tp trace.TracerProvider) {
	mu.Lock()
	defer mu.Unlock()
	provider = tp
}
