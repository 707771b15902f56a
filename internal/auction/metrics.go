package auction

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/farmconnect/marketplace/internal/auction"

type metrics struct {
	accepted  metric.Int64Counter
	rejected  metric.Int64Counter
	conflicts metric.Int64Counter
}

// newMetrics registers the bid counters on the global meter provider. The
// provider defaults to a no-op until telemetry is initialized.
func newMetrics() *metrics {
	meter := otel.Meter(meterName)

	accepted, _ := meter.Int64Counter("marketplace.bids.accepted",
		metric.WithDescription("Bids that advanced an auction price"))
	rejected, _ := meter.Int64Counter("marketplace.bids.rejected",
		metric.WithDescription("Bids refused by auction rules, by reason"))
	conflicts, _ := meter.Int64Counter("marketplace.bids.conflicts",
		metric.WithDescription("Version conflicts hit while applying a bid"))

	return &metrics{accepted: accepted, rejected: rejected, conflicts: conflicts}
}

func (m *metrics) reject(ctx context.Context, reason string) {
	m.rejected.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}
