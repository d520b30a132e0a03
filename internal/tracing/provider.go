package tracing

import (
	"context"
	"errors"
	"net/url"
	"time"

	"github.com/The-Promised-Neverland/counterqueue/pkg/logger"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

var (
	ErrEndpointRequired = errors.New("tracing: endpoint is required when tracing is enabled")
	ErrEndpointInvalid  = errors.New("tracing: endpoint must be a URL with a host, e.g. http://collector:4318")
)

// Config describes the OTLP HTTP exporter. Endpoint is the collector URL: an
// http:// scheme exports in plaintext, https:// over TLS, and a non-empty path
// replaces the default /v1/traces.
type Config struct {
	Enabled     bool
	Endpoint    string
	ServiceName string
	Version     string
	Timeout     time.Duration
}

func (c Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.Endpoint == "" {
		return ErrEndpointRequired
	}
	if _, err := parseEndpoint(c.Endpoint); err != nil {
		return err
	}
	return nil
}

type endpoint struct {
	host     string
	path     string
	insecure bool
}

func parseEndpoint(raw string) (endpoint, error) {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return endpoint{}, ErrEndpointInvalid
	}
	switch u.Scheme {
	case "http":
		return endpoint{host: u.Host, path: u.Path, insecure: true}, nil
	case "https":
		return endpoint{host: u.Host, path: u.Path}, nil
	default:
		return endpoint{}, ErrEndpointInvalid
	}
}

func exporterOptions(cfg Config) ([]otlptracehttp.Option, error) {
	ep, err := parseEndpoint(cfg.Endpoint)
	if err != nil {
		return nil, err
	}
	opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(ep.host)}
	if ep.path != "" && ep.path != "/" {
		opts = append(opts, otlptracehttp.WithURLPath(ep.path))
	}
	if ep.insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	if cfg.Timeout > 0 {
		opts = append(opts, otlptracehttp.WithTimeout(cfg.Timeout))
	}
	return opts, nil
}

// NewTracerProvider installs an OTLP HTTP tracer provider globally and returns
// its shutdown func. When tracing is disabled the global no-op provider stays
// in place and the returned func does nothing.
func NewTracerProvider(ctx context.Context, cfg Config) (func(context.Context) error, error) {
	if !cfg.Enabled {
		return func(context.Context) error { return nil }, nil
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewSchemaless(
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.Version),
		),
	)
	if err != nil {
		return nil, err
	}

	opts, err := exporterOptions(cfg)
	if err != nil {
		return nil, err
	}
	exporter, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	logger.Log.Info("Tracing enabled", "endpoint", cfg.Endpoint, "service", cfg.ServiceName)
	return tp.Shutdown, nil
}
