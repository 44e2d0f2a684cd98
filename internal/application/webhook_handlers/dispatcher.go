package webhook_handlers

import (
	"context"

	"github.com/rs/zerolog"

	"shoppulse-ingest-layer/internal/domain"
	"shoppulse-ingest-layer/internal/infrastructure/metrics"
	"shoppulse-ingest-layer/internal/ports"
)

// Dispatcher routes logged webhook deliveries to topic handlers. The
// delivery was already acknowledged to the platform and appended to the
// raw event log before dispatch, so a handler failure is logged and
// counted but never surfaces: the platform must not retry a delivery we
// have safely recorded.
type Dispatcher struct {
	handlers  []Handler
	rawEvents ports.RawEventRepository
	metrics   *metrics.Metrics
	logger    zerolog.Logger
}

// NewDispatcher creates a dispatcher with the given handlers
func NewDispatcher(rawEvents ports.RawEventRepository, m *metrics.Metrics, logger zerolog.Logger, handlers ...Handler) *Dispatcher {
	return &Dispatcher{
		handlers:  handlers,
		rawEvents: rawEvents,
		metrics:   m,
		logger:    logger,
	}
}

func (d *Dispatcher) observe(topic, outcome string) {
	if d.metrics != nil {
		d.metrics.WebhooksReceived.WithLabelValues(topic, outcome).Inc()
	}
}

// Dispatch processes one logged raw event for a shop. Successful
// processing flips the event's processed flag; failures leave it unset
// for later inspection or replay.
func (d *Dispatcher) Dispatch(ctx context.Context, shopID string, event *domain.RawEvent) {
	for _, handler := range d.handlers {
		if !handler.CanHandle(event.Topic) {
			continue
		}

		if err := handler.Handle(ctx, shopID, event.Topic, event.Payload); err != nil {
			d.logger.Error().
				Err(err).
				Str("shop", event.ShopDomain).
				Str("topic", event.Topic).
				Str("event_id", event.ID).
				Msg("Webhook handler failed")
			d.observe(event.Topic, "error")
			return
		}

		if err := d.rawEvents.MarkProcessed(ctx, event.ID); err != nil {
			d.logger.Error().
				Err(err).
				Str("event_id", event.ID).
				Msg("Failed to mark raw event processed")
		}
		d.observe(event.Topic, "processed")
		return
	}

	d.logger.Debug().
		Str("shop", event.ShopDomain).
		Str("topic", event.Topic).
		Msg("No handler for webhook topic")
	d.observe(event.Topic, "ignored")
}
