package webhook_handlers

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"shoppulse-ingest-layer/internal/application/ingest"
	"shoppulse-ingest-layer/internal/domain"
	"shoppulse-ingest-layer/internal/ports"
)

// ProductHandler merges product create/update deliveries. A product
// payload carries its variants inline; they are merged in the same call.
type ProductHandler struct {
	store      ports.EntityStore
	normalizer *ingest.Normalizer
	logger     zerolog.Logger
}

// NewProductHandler creates a new product webhook handler
func NewProductHandler(store ports.EntityStore, logger zerolog.Logger) *ProductHandler {
	return &ProductHandler{
		store:      store,
		normalizer: ingest.NewNormalizer(),
		logger:     logger,
	}
}

// CanHandle returns true if this handler can process the given topic
func (h *ProductHandler) CanHandle(topic string) bool {
	return topic == "products/create" || topic == "products/update"
}

// Handle normalizes the product payload and merges it with its variants
func (h *ProductHandler) Handle(ctx context.Context, shopID string, topic string, payload []byte) error {
	rec, err := ingest.ParseRecord(payload)
	if err != nil {
		return fmt.Errorf("failed to parse product webhook payload: %w", err)
	}

	product, err := h.normalizer.Product(rec)
	if err != nil {
		return err
	}

	res, err := h.store.MergeProducts(ctx, shopID, []domain.Product{product})
	if err != nil {
		return err
	}
	if res.Errors > 0 {
		return fmt.Errorf("failed to merge product %d", product.ExternalID)
	}

	var variants []domain.ProductVariant
	if raw, ok := rec["variants"].([]interface{}); ok {
		for _, v := range raw {
			m, ok := v.(map[string]interface{})
			if !ok {
				continue
			}
			variant, err := h.normalizer.Variant(ingest.Record(m), product.ExternalID)
			if err != nil {
				h.logger.Warn().Err(err).Str("shop_id", shopID).Msg("Skipping unmappable variant")
				continue
			}
			variants = append(variants, variant)
		}
	}
	if len(variants) > 0 {
		if _, err := h.store.MergeVariants(ctx, shopID, variants); err != nil {
			return err
		}
	}

	h.logger.Info().
		Str("shop_id", shopID).
		Str("topic", topic).
		Int64("product", product.ExternalID).
		Int("variants", len(variants)).
		Msg("Merged product from webhook")
	return nil
}
