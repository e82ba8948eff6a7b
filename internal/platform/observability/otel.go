package observability

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/log/global"
	"go.opentelemetry.io/otel/propagation"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"github.com/rl1809/storefront/internal/config"
)

const (
	LogsPath      = "/otlp/v1/logs"
	TracesPath    = "/otlp/v1/traces"
	MetricsPath   = "/otlp/v1/metrics"
	ExportTimeout = 30 * time.Second
	MetricPeriod  = 15 * time.Second
	MaxQueueSize  = 2048
)

// Enabled reports whether an OTLP endpoint is configured.
func Enabled(cfg config.Config) bool {
	return cfg.OtelEndpoint != ""
}

// Setup installs the global propagator and, when an OTLP endpoint is
// configured, the trace, metric and log providers. The returned shutdown flushes and
// stops whatever was installed.
func Setup(ctx context.Context, cfg config.Config) (shutdown func(context.Context) error, err error) {
	var shutdownFuncs []func(context.Context) error
	shutdown = func(ctx context.Context) error {
		var err error
		for _, fn := range shutdownFuncs {
			err = errors.Join(err, fn(ctx))
		}
		shutdownFuncs = nil
		return err
	}

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	if !Enabled(cfg) {
		return shutdown, nil
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(config.ServiceName),
			semconv.ServiceVersion(config.ServiceVersion),
		),
	)
	if err != nil {
		return shutdown, fmt.Errorf("create resource: %w", err)
	}

	var headers map[string]string
	if cfg.OtelAuthHeader != "" {
		headers = map[string]string{"Authorization": cfg.OtelAuthHeader}
	}

	traceExporter, traceErr := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpoint(cfg.OtelEndpoint),
		otlptracehttp.WithURLPath(TracesPath),
		otlptracehttp.WithHeaders(headers),
	)
	if traceErr == nil {
		tp := sdktrace.NewTracerProvider(
			sdktrace.WithResource(res),
			sdktrace.WithSpanProcessor(sdktrace.NewBatchSpanProcessor(traceExporter,
				sdktrace.WithExportTimeout(ExportTimeout),
				sdktrace.WithMaxQueueSize(MaxQueueSize),
			)),
		)
		otel.SetTracerProvider(tp)
		shutdownFuncs = append(shutdownFuncs, tp.Shutdown)
	}

	logExporter, logErr := otlploghttp.New(ctx,
		otlploghttp.WithEndpoint(cfg.OtelEndpoint),
		otlploghttp.WithURLPath(LogsPath),
		otlploghttp.WithHeaders(headers),
	)
	if logErr == nil {
		lp := sdklog.NewLoggerProvider(
			sdklog.WithResource(res),
			sdklog.WithProcessor(sdklog.NewBatchProcessor(logExporter,
				sdklog.WithExportTimeout(ExportTimeout),
				sdklog.WithMaxQueueSize(MaxQueueSize),
			)),
		)
		global.SetLoggerProvider(lp)
		shutdownFuncs = append(shutdownFuncs, lp.Shutdown)
	}

	metricExporter, metricErr := otlpmetrichttp.New(ctx,
		otlpmetrichttp.WithEndpoint(cfg.OtelEndpoint),
		otlpmetrichttp.WithURLPath(MetricsPath),
		otlpmetrichttp.WithHeaders(headers),
	)
	if metricErr == nil {
		mp := sdkmetric.NewMeterProvider(
			sdkmetric.WithResource(res),
			sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExporter,
				sdkmetric.WithInterval(MetricPeriod),
			)),
		)
		otel.SetMeterProvider(mp)
		shutdownFuncs = append(shutdownFuncs, mp.Shutdown)
	}

	if traceErr != nil {
		traceErr = fmt.Errorf("otlp trace exporter: %w", traceErr)
	}
	if logErr != nil {
		logErr = fmt.Errorf("otlp log exporter: %w", logErr)
	}
	if metricErr != nil {
		metricErr = fmt.Errorf("otlp metric exporter: %w", metricErr)
	}
	return shutdown, errors.Join(traceErr, logErr, metricErr)
}
