package otel

import (
	"context"
	"errors"
	"fmt"
	"strings"
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

	"basegraph.app/nudge/core/config"
)

// metricInterval is short because the cron run exits seconds after an audit.
const metricInterval = 15 * time.Second

type shutdownFunc func(context.Context) error

// Telemetry owns the installed providers.
type Telemetry struct {
	shutdowns []shutdownFunc
}

// Shutdown flushes every provider, metrics first so the one-shot run's
// failure counters leave the process.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	var errs []error
	for i := len(t.shutdowns) - 1; i >= 0; i-- {
		errs = append(errs, t.shutdowns[i](ctx))
	}
	return errors.Join(errs...)
}

type exportTarget struct {
	endpoint string
	headers  map[string]string
	res      *resource.Resource
}

func (e exportTarget) url(signal string) string {
	return e.endpoint + "/v1/" + signal
}

// Setup installs global OTLP/HTTP trace, log and metric providers. It returns
// nil when no endpoint is configured; the otel globals then stay no-op.
func Setup(ctx context.Context, cfg config.OTelConfig) (*Telemetry, error) {
	if !cfg.Enabled() {
		return nil, nil
	}

	res, err := resource.Merge(resource.Default(), resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(cfg.ServiceVersion),
	))
	if err != nil {
		return nil, fmt.Errorf("creating resource: %w", err)
	}
	target := exportTarget{
		endpoint: strings.TrimSuffix(cfg.Endpoint, "/"),
		headers:  parseHeaders(cfg.Headers),
		res:      res,
	}

	t := &Telemetry{}
	for _, install := range []func(context.Context, exportTarget) (shutdownFunc, error){
		installTracing,
		installLogging,
		installMetrics,
	} {
		shutdown, err := install(ctx, target)
		if err != nil {
			_ = t.Shutdown(ctx)
			return nil, err
		}
		t.shutdowns = append(t.shutdowns, shutdown)
	}
	return t, nil
}

func installTracing(ctx context.Context, target exportTarget) (shutdownFunc, error) {
	exp, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpointURL(target.url("traces")),
		otlptracehttp.WithHeaders(target.headers))
	if err != nil {
		return nil, fmt.Errorf("creating trace exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exp), sdktrace.WithResource(target.res))
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	return tp.Shutdown, nil
}

func installLogging(ctx context.Context, target exportTarget) (shutdownFunc, error) {
	exp, err := otlploghttp.New(ctx,
		otlploghttp.WithEndpointURL(target.url("logs")),
		otlploghttp.WithHeaders(target.headers))
	if err != nil {
		return nil, fmt.Errorf("creating log exporter: %w", err)
	}

	lp := sdklog.NewLoggerProvider(
		sdklog.WithProcessor(sdklog.NewBatchProcessor(exp)),
		sdklog.WithResource(target.res))
	global.SetLoggerProvider(lp)
	return lp.Shutdown, nil
}

func installMetrics(ctx context.Context, target exportTarget) (shutdownFunc, error) {
	exp, err := otlpmetrichttp.New(ctx,
		otlpmetrichttp.WithEndpointURL(target.url("metrics")),
		otlpmetrichttp.WithHeaders(target.headers))
	if err != nil {
		return nil, fmt.Errorf("creating metric exporter: %w", err)
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exp, sdkmetric.WithInterval(metricInterval))),
		sdkmetric.WithResource(target.res))
	otel.SetMeterProvider(mp)
	return mp.Shutdown, nil
}

// parseHeaders reads OTEL_EXPORTER_OTLP_HEADERS style "k1=v1,k2=v2".
func parseHeaders(s string) map[string]string {
	headers := map[string]string{}
	for _, pair := range strings.Split(s, ",") {
		k, v, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		headers[strings.TrimSpace(k)] = strings.TrimSpace(v)
	}
	return headers
}
