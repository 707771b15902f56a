// Package notify decouples notification publishing from the request that
// caused it. Events go into a bounded queue and a background goroutine
// publishes them; callers never wait on the broker.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/farmconnect/marketplace/internal/domain"
)

const (
	DefaultQueueSize = 256
	publishTimeout   = 10 * time.Second
)

type Publisher interface {
	Publish(ctx context.Context, topic, key string, event any) error
}

type envelope struct {
	ctx   context.Context
	topic string
	key   string
	event any
}

type Dispatcher struct {
	publisher Publisher
	queue     chan envelope
	logger    *slog.Logger

	published metric.Int64Counter
	dropped   metric.Int64Counter
	failed    metric.Int64Counter
}

func NewDispatcher(publisher Publisher, size int, logger *slog.Logger) *Dispatcher {
	if size <= 0 {
		size = DefaultQueueSize
	}

	meter := otel.Meter("github.com/farmconnect/marketplace/internal/notify")
	published, _ := meter.Int64Counter("marketplace.notifications.published")
	dropped, _ := meter.Int64Counter("marketplace.notifications.dropped")
	failed, _ := meter.Int64Counter("marketplace.notifications.failed")

	return &Dispatcher{
		publisher: publisher,
		queue:     make(chan envelope, size),
		logger:    logger,
		published: published,
		dropped:   dropped,
		failed:    failed,
	}
}

// Dispatch queues an event without blocking. When the queue is full the
// event is dropped and logged. Only the trace of ctx is kept; its deadline
// and cancellation do not apply to the publish.
func (d *Dispatcher) Dispatch(ctx context.Context, topic, key string, event any) {
	_ = d.Offer(ctx, topic, key, event)
}

// Offer behaves like Dispatch but reports a dropped event to the caller,
// for callers that can undo the work the event announces.
func (d *Dispatcher) Offer(ctx context.Context, topic, key string, event any) error {
	env := envelope{
		ctx:   trace.ContextWithSpanContext(context.Background(), trace.SpanContextFromContext(ctx)),
		topic: topic,
		key:   key,
		event: event,
	}

	select {
	case d.queue <- env:
		return nil
	default:
		err := fmt.Errorf("%w: queue full", domain.ErrNotificationDispatch)
		d.dropped.Add(ctx, 1, metric.WithAttributes(attribute.String("topic", topic)))
		d.logger.Error("notification dropped",
			"error", err,
			"topic", topic,
			"key", key,
		)
		return err
	}
}

// Run publishes queued events until ctx is cancelled, then publishes what is
// still queued and returns.
func (d *Dispatcher) Run(ctx context.Context) {
	for {
		select {
		case env := <-d.queue:
			d.publish(env)
		case <-ctx.Done():
			d.drain()
			return
		}
	}
}

func (d *Dispatcher) drain() {
	for {
		select {
		case env := <-d.queue:
			d.publish(env)
		default:
			return
		}
	}
}

func (d *Dispatcher) publish(env envelope) {
	ctx, cancel := context.WithTimeout(env.ctx, publishTimeout)
	defer cancel()

	attrs := metric.WithAttributes(attribute.String("topic", env.topic))

	if err := d.publisher.Publish(ctx, env.topic, env.key, env.event); err != nil {
		d.failed.Add(ctx, 1, attrs)
		d.logger.Error("notification publish failed",
			"error", fmt.Errorf("%w: %w", domain.ErrNotificationDispatch, err),
			"topic", env.topic,
			"key", env.key,
		)
		return
	}

	d.published.Add(ctx, 1, attrs)
	d.logger.Debug("notification published", "topic", env.topic, "key", env.key)
}

// Pending reports how many events wait in the queue.
func (d *Dispatcher) Pending() int {
	return len(d.queue)
}
