// Package observability builds the OpenTelemetry trace and meter providers that
// receive the spans and metrics recorded for every database statement.
package observability

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.32.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/gaborage/go-bricks-db/config"
	"github.com/gaborage/go-bricks-db/logger"
)

const (
	// EndpointStdout selects the pretty-printing stdout exporters.
	EndpointStdout = "stdout"

	ProtocolHTTP = "http"
	ProtocolGRPC = "grpc"
)

// Provider owns the trace and meter providers installed as otel globals.
type Provider interface {
	TracerProvider() trace.TracerProvider
	MeterProvider() metric.MeterProvider
	// Shutdown flushes pending telemetry and stops the exporters.
	Shutdown(ctx context.Context) error
	ForceFlush(ctx context.Context) error
}

// Option customizes NewProvider.
type Option func(*provider)

// WithWriter redirects the stdout exporters to w.
func WithWriter(w io.Writer) Option {
	return func(p *provider) {
		p.out = w
	}
}

type provider struct {
	config         config.ObservabilityConfig
	log            logger.Logger
	out            io.Writer
	tracerProvider *sdktrace.TracerProvider
	meterProvider  *sdkmetric.MeterProvider
	mu             sync.Mutex
}

// NewProvider creates the providers described by cfg and installs them, along
// with the W3C trace context propagator, as the otel globals. A disabled cfg
// yields a no-op Provider and leaves the globals alone.
func NewProvider(cfg config.ObservabilityConfig, log logger.Logger, opts ...Option) (Provider, error) {
	if !cfg.Enabled {
		return noopProvider{}, nil
	}
	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid observability config: %w", err)
	}
	if log == nil {
		log = logger.Nop()
	}

	p := &provider{config: cfg, log: log, out: os.Stdout}
	for _, opt := range opts {
		opt(p)
	}

	res, err := p.createResource()
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	if cfg.Trace.Endpoint != "" {
		if err := p.initTraceProvider(res); err != nil {
			return nil, fmt.Errorf("failed to initialize trace provider: %w", err)
		}
		otel.SetTracerProvider(p.tracerProvider)
	}
	if cfg.Metrics.Endpoint != "" {
		if err := p.initMeterProvider(res); err != nil {
			_ = p.Shutdown(context.Background())
			return nil, fmt.Errorf("failed to initialize meter provider: %w", err)
		}
		otel.SetMeterProvider(p.meterProvider)
	}

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	log.Info().
		Str("service", cfg.Service).
		Str("trace_endpoint", cfg.Trace.Endpoint).
		Str("metrics_endpoint", cfg.Metrics.Endpoint).
		Msg("Observability provider initialized")
	return p, nil
}

func validate(cfg config.ObservabilityConfig) error {
	if cfg.Service == "" {
		return ErrMissingServiceName
	}
	if cfg.Trace.SampleRate < 0 || cfg.Trace.SampleRate > 1 {
		return ErrInvalidSampleRate
	}
	return nil
}

func (p *provider) createResource() (*resource.Resource, error) {
	custom, err := resource.New(
		context.Background(),
		resource.WithAttributes(
			semconv.ServiceName(p.config.Service),
			semconv.ServiceVersion(p.config.Version),
			semconv.DeploymentEnvironmentName(p.config.Environment),
		),
	)
	if err != nil {
		return nil, err
	}
	return resource.Merge(resource.Default(), custom)
}

func (p *provider) initTraceProvider(res *resource.Resource) error {
	exporter, err := p.createTraceExporter()
	if err != nil {
		return fmt.Errorf("failed to create trace exporter: %w", err)
	}

	if p.config.Trace.SampleRate == 0 {
		p.log.Warn().Msg("Trace sample rate is 0, no statement spans will be recorded")
	}

	p.tracerProvider = sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithBatcher(exporter),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(p.config.Trace.SampleRate))),
	)
	return nil
}

func (p *provider) createTraceExporter() (sdktrace.SpanExporter, error) {
	tc := p.config.Trace
	if tc.Endpoint == EndpointStdout {
		return stdouttrace.New(stdouttrace.WithWriter(p.out), stdouttrace.WithPrettyPrint())
	}

	p.log.Debug().
		Str("protocol", tc.Protocol).
		Str("endpoint", tc.Endpoint).
		Bool("insecure", tc.Insecure).
		Msg("Creating OTLP trace exporter")

	switch tc.Protocol {
	case ProtocolHTTP:
		opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(tc.Endpoint)}
		if tc.Insecure {
			opts = append(opts, otlptracehttp.WithInsecure())
		}
		if len(tc.Headers) > 0 {
			opts = append(opts, otlptracehttp.WithHeaders(tc.Headers))
		}
		return otlptracehttp.New(context.Background(), opts...)
	case ProtocolGRPC:
		opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(tc.Endpoint)}
		if tc.Insecure {
			opts = append(opts, otlptracegrpc.WithTLSCredentials(insecure.NewCredentials()))
		}
		if len(tc.Headers) > 0 {
			opts = append(opts, otlptracegrpc.WithHeaders(tc.Headers))
		}
		return otlptracegrpc.New(context.Background(), opts...)
	default:
		return nil, fmt.Errorf("trace protocol '%s': %w", tc.Protocol, ErrInvalidProtocol)
	}
}

func (p *provider) initMeterProvider(res *resource.Resource) error {
	exporter, err := p.createMetricExporter()
	if err != nil {
		return fmt.Errorf("failed to create metric exporter: %w", err)
	}

	var readerOpts []sdkmetric.PeriodicReaderOption
	if p.config.Metrics.Interval > 0 {
		readerOpts = append(readerOpts, sdkmetric.WithInterval(p.config.Metrics.Interval))
	}

	p.meterProvider = sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, readerOpts...)),
	)
	return nil
}

// createMetricExporter mirrors createTraceExporter. Metrics share the trace
// protocol, TLS and header settings.
func (p *provider) createMetricExporter() (sdkmetric.Exporter, error) {
	endpoint := p.config.Metrics.Endpoint
	if endpoint == EndpointStdout {
		return stdoutmetric.New(stdoutmetric.WithWriter(p.out), stdoutmetric.WithPrettyPrint())
	}

	tc := p.config.Trace
	switch tc.Protocol {
	case ProtocolHTTP:
		opts := []otlpmetrichttp.Option{otlpmetrichttp.WithEndpoint(endpoint)}
		if tc.Insecure {
			opts = append(opts, otlpmetrichttp.WithInsecure())
		}
		if len(tc.Headers) > 0 {
			opts = append(opts, otlpmetrichttp.WithHeaders(tc.Headers))
		}
		return otlpmetrichttp.New(context.Background(), opts...)
	case ProtocolGRPC:
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(endpoint)}
		if tc.Insecure {
			opts = append(opts, otlpmetricgrpc.WithTLSCredentials(insecure.NewCredentials()))
		}
		if len(tc.Headers) > 0 {
			opts = append(opts, otlpmetricgrpc.WithHeaders(tc.Headers))
		}
		return otlpmetricgrpc.New(context.Background(), opts...)
	default:
		return nil, fmt.Errorf("metrics protocol '%s': %w", tc.Protocol, ErrInvalidProtocol)
	}
}

func (p *provider) TracerProvider() trace.TracerProvider {
	if p.tracerProvider == nil {
		return noop.NewTracerProvider()
	}
	return p.tracerProvider
}

func (p *provider) MeterProvider() metric.MeterProvider {
	if p.meterProvider == nil {
		return metricnoop.NewMeterProvider()
	}
	return p.meterProvider
}

func (p *provider) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var errs []error
	if p.tracerProvider != nil {
		if err := p.tracerProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to shutdown trace provider: %w", err))
		}
	}
	if p.meterProvider != nil {
		if err := p.meterProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to shutdown meter provider: %w", err))
		}
	}
	return errors.Join(errs...)
}

func (p *provider) ForceFlush(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var errs []error
	if p.tracerProvider != nil {
		if err := p.tracerProvider.ForceFlush(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to flush trace provider: %w", err))
		}
	}
	if p.meterProvider != nil {
		if err := p.meterProvider.ForceFlush(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to flush meter provider: %w", err))
		}
	}
	return errors.Join(errs...)
}
