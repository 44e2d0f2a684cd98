package webhook_handlers

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"shoppulse-ingest-layer/internal/application/ingest"
	"shoppulse-ingest-layer/internal/domain"
	"shoppulse-ingest-layer/internal/ports"
)

// OrderHandler merges order create/update deliveries. An order payload
// carries its line items inline; they are merged in the same call, with
// references to unknown products nulled by the store.
type OrderHandler struct {
	store      ports.EntityStore
	normalizer *ingest.Normalizer
	logger     zerolog.Logger
}

// NewOrderHandler creates a new order webhook handler
func NewOrderHandler(store ports.EntityStore, logger zerolog.Logger) *OrderHandler {
	return &OrderHandler{
		store:      store,
		normalizer: ingest.NewNormalizer(),
		logger:     logger,
	}
}

// CanHandle returns true if this handler can process the given topic
func (h *OrderHandler) CanHandle(topic string) bool {
	return topic == "orders/create" || topic == "orders/updated" || topic == "orders/paid"
}

// Handle normalizes the order payload and merges it with its line items
func (h *OrderHandler) Handle(ctx context.Context, shopID string, topic string, payload []byte) error {
	rec, err := ingest.ParseRecord(payload)
	if err != nil {
		return fmt.Errorf("failed to parse order webhook payload: %w", err)
	}

	order, err := h.normalizer.Order(rec)
	if err != nil {
		return err
	}

	res, err := h.store.MergeOrders(ctx, shopID, []domain.Order{order})
	if err != nil {
		return err
	}
	if res.Errors > 0 {
		return fmt.Errorf("failed to merge order %d", order.ExternalID)
	}

	var items []domain.OrderLineItem
	if raw, ok := rec["line_items"].([]interface{}); ok {
		for _, v := range raw {
			m, ok := v.(map[string]interface{})
			if !ok {
				continue
			}
			item, err := h.normalizer.LineItem(ingest.Record(m), order.ExternalID)
			if err != nil {
				h.logger.Warn().Err(err).Str("shop_id", shopID).Msg("Skipping unmappable line item")
				continue
			}
			items = append(items, item)
		}
	}
	if len(items) > 0 {
		if _, err := h.store.MergeLineItems(ctx, shopID, items); err != nil {
			return err
		}
	}

	h.logger.Info().
		Str("shop_id", shopID).
		Str("topic", topic).
		Int64("order", order.ExternalID).
		Int("line_items", len(items)).
		Msg("Merged order from webhook")
	return nil
}
