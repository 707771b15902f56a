package telemetry

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/runtime"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/farmconnect/marketplace/internal/config"
)

// Telemetry holds what a binary needs from its providers.
type Telemetry struct {
	MetricsHandler http.Handler
	shutdowns      []func(context.Context) error
}

// Setup installs the global meter provider and runtime metrics, and the
// OTLP tracer provider when tracing is enabled. Propagation is always set so
// trace context still flows through Kafka headers with tracing off.
func Setup(ctx context.Context, cfg config.TelemetryConfig, serviceName string, logger *slog.Logger) (*Telemetry, error) {
	t := &Telemetry{}

	setPropagator()

	if cfg.Enabled {
		shutdown, err := InitTracerProvider(ctx, cfg.OTLPEndpoint, serviceName, cfg.ServiceVersion)
		if err != nil {
			return nil, err
		}
		t.shutdowns = append(t.shutdowns, shutdown)
		logger.Info("tracing enabled", "endpoint", cfg.OTLPEndpoint)
	}

	handler, shutdown, err := InitMeterProvider(serviceName, cfg.ServiceVersion)
	if err != nil {
		_ = t.Shutdown(ctx)
		return nil, err
	}
	t.MetricsHandler = handler
	t.shutdowns = append(t.shutdowns, shutdown)

	if err := runtime.Start(); err != nil {
		logger.Warn("runtime metrics unavailable", "error", err)
	}

	return t, nil
}

// Shutdown flushes every provider, returning all failures joined.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	var errs []error
	for i := len(t.shutdowns) - 1; i >= 0; i-- {
		if err := t.shutdowns[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func InitTracerProvider(ctx context.Context, endpoint, serviceName, serviceVersion string) (func(context.Context) error, error) {
	exporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return nil, err
	}

	tp := trace.NewTracerProvider(
		trace.WithBatcher(exporter),
		trace.WithResource(newResource(serviceName, serviceVersion)),
	)

	otel.SetTracerProvider(tp)
	setPropagator()

	return tp.Shutdown, nil
}

func newResource(serviceName, serviceVersion string) *resource.Resource {
	return resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(serviceName),
		semconv.ServiceVersion(serviceVersion),
	)
}

func setPropagator() {
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
}

// WithHTTPRoute wraps an http.HandlerFunc to add the http.route attribute
// to the current span using the request's Pattern.
// otelhttp runs before the mux has matched, so it cannot set it itself.
func WithHTTPRoute(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Pattern != "" {
			span := oteltrace.SpanFromContext(r.Context())
			span.SetAttributes(semconv.HTTPRoute(r.Pattern))
		}
		h(w, r)
	}
}
