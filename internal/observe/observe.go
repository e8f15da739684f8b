package observe

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptrace"
	"time"

	"github.com/go-logr/zerologr"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/storewatch/storewatch-bridge/internal/config"
	"go.opentelemetry.io/contrib/instrumentation/net/http/httptrace/otelhttptrace"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// Configure bootstraps the OpenTelemetry SDK from configuration, returning a
// shutdown function to be called when the process exits. When telemetry is
// disabled the returned shutdown is a no-op.
func Configure(ctx context.Context, cfg config.ObserveConfig) (func(context.Context) error, error) {
	if !cfg.Enabled {
		log.Info().Msg("telemetry: disabled")
		return func(context.Context) error { return nil }, nil
	}

	configureSDKLogging(cfg)

	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceName(cfg.ServiceName)),
	)
	if err != nil {
		return nil, err
	}

	var shutdownFuncs []func(context.Context) error

	tracerProvider, err := newTracerProvider(ctx, cfg, res)
	if err != nil {
		return nil, err
	}
	shutdownFuncs = append(shutdownFuncs, tracerProvider.Shutdown)
	otel.SetTracerProvider(tracerProvider)

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	if cfg.MetricsEnabled {
		meterProvider, err := newMeterProvider(ctx, cfg, res)
		if err != nil {
			return nil, err
		}
		shutdownFuncs = append(shutdownFuncs, meterProvider.Shutdown)
		otel.SetMeterProvider(meterProvider)
	}

	shutdown := func(ctx context.Context) error {
		var err error
		for _, fn := range shutdownFuncs {
			err = errors.Join(err, fn(ctx))
		}
		return err
	}

	return shutdown, nil
}

// HTTPTransport wraps the supplied transport with OTel instrumentation when
// enabled; the transport is returned unchanged otherwise. Connection-level
// tracing (DNS, dial, TLS spans) is attached when configured.
func HTTPTransport(wrapped http.RoundTripper, cfg config.ObserveConfig) http.RoundTripper {
	if !cfg.Enabled || !cfg.HTTPTransportEnabled {
		return wrapped
	}

	var opts []otelhttp.Option
	if cfg.HTTPConnectionTraceEnabled {
		opts = append(opts, otelhttp.WithClientTrace(func(ctx context.Context) *httptrace.ClientTrace {
			return otelhttptrace.NewClientTrace(ctx)
		}))
	}

	return otelhttp.NewTransport(wrapped, opts...)
}

func configureSDKLogging(cfg config.ObserveConfig) {
	level, err := zerolog.ParseLevel(cfg.SDKLogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}

	sdkLogger := log.Level(level)
	otel.SetLogger(zerologr.New(&sdkLogger))
	otel.SetErrorHandler(otel.ErrorHandlerFunc(func(err error) {
		sdkLogger.Warn().Err(err).Msg("telemetry: SDK error")
	}))
}

func newTracerProvider(ctx context.Context, cfg config.ObserveConfig, res *resource.Resource) (*sdktrace.TracerProvider, error) {
	var exporter sdktrace.SpanExporter
	var err error

	switch cfg.Type {
	case "grpc":
		exporter, err = otlptracegrpc.New(ctx)
	default:
		exporter, err = stdouttrace.New()
	}
	if err != nil {
		return nil, err
	}

	return sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter,
			sdktrace.WithBatchTimeout(time.Duration(cfg.TraceBatchTimeoutSeconds)*time.Second),
		),
		sdktrace.WithResource(res),
	), nil
}

func newMeterProvider(ctx context.Context, cfg config.ObserveConfig, res *resource.Resource) (*sdkmetric.MeterProvider, error) {
	var exporter sdkmetric.Exporter
	var err error

	switch cfg.Type {
	case "grpc":
		exporter, err = otlpmetricgrpc.New(ctx)
	default:
		exporter, err = stdoutmetric.New()
	}
	if err != nil {
		return nil, err
	}

	return sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter,
			sdkmetric.WithInterval(time.Duration(cfg.MetricReadIntervalSeconds)*time.Second),
		)),
		sdkmetric.WithResource(res),
	), nil
}
