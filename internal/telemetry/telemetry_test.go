package telemetry

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/farmconnect/marketplace/internal/config"
)

func TestInitMeterProvider(t *testing.T) {
	handler, shutdown, err := InitMeterProvider("marketplace-test", "1.2.3")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer shutdown(context.Background())

	counter, err := otel.Meter("telemetry-test").Int64Counter("marketplace.test.requests")
	if err != nil {
		t.Fatalf("failed to create counter: %v", err)
	}
	counter.Add(context.Background(), 3)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "marketplace_test_requests_total") {
		t.Errorf("expected counter in output, got:\n%s", body)
	}
	if !strings.Contains(body, `service_name="marketplace-test"`) {
		t.Errorf("expected service name in target_info, got:\n%s", body)
	}
}

func TestSetupWithoutTracing(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	tel, err := Setup(context.Background(), config.TelemetryConfig{ServiceVersion: "0.1.0"}, "marketplace-test", logger)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tel.MetricsHandler == nil {
		t.Fatal("expected metrics handler")
	}
	if err := tel.Shutdown(context.Background()); err != nil {
		t.Errorf("unexpected shutdown error: %v", err)
	}
}

func TestWithHTTPRoute(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	defer tp.Shutdown(context.Background())

	mux := http.NewServeMux()
	mux.HandleFunc("GET /listings/{id}", WithHTTPRoute(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	traced := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tp.Tracer("test").Start(r.Context(), "request")
		defer span.End()
		mux.ServeHTTP(w, r.WithContext(ctx))
	})

	rec := httptest.NewRecorder()
	traced.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/listings/abc", nil))

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected status 204, got %d", rec.Code)
	}

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	want := attribute.String("http.route", "GET /listings/{id}")
	for _, attr := range spans[0].Attributes() {
		if attr == want {
			return
		}
	}
	t.Errorf("expected %v on span, got %v", want, spans[0].Attributes())
}
