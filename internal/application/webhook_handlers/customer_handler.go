package webhook_handlers

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"shoppulse-ingest-layer/internal/application/ingest"
	"shoppulse-ingest-layer/internal/domain"
	"shoppulse-ingest-layer/internal/ports"
)

// CustomerHandler merges customer create/update deliveries
type CustomerHandler struct {
	store      ports.EntityStore
	normalizer *ingest.Normalizer
	logger     zerolog.Logger
}

// NewCustomerHandler creates a new customer webhook handler
func NewCustomerHandler(store ports.EntityStore, logger zerolog.Logger) *CustomerHandler {
	return &CustomerHandler{
		store:      store,
		normalizer: ingest.NewNormalizer(),
		logger:     logger,
	}
}

// CanHandle returns true if this handler can process the given topic
func (h *CustomerHandler) CanHandle(topic string) bool {
	return topic == "customers/create" || topic == "customers/update"
}

// Handle normalizes the customer payload and merges it
func (h *CustomerHandler) Handle(ctx context.Context, shopID string, topic string, payload []byte) error {
	rec, err := ingest.ParseRecord(payload)
	if err != nil {
		return fmt.Errorf("failed to parse customer webhook payload: %w", err)
	}

	customer, err := h.normalizer.Customer(rec)
	if err != nil {
		return err
	}

	res, err := h.store.MergeCustomers(ctx, shopID, []domain.Customer{customer})
	if err != nil {
		return err
	}
	if res.Errors > 0 {
		return fmt.Errorf("failed to merge customer %d", customer.ExternalID)
	}

	h.logger.Info().
		Str("shop_id", shopID).
		Str("topic", topic).
		Int64("customer", customer.ExternalID).
		Msg("Merged customer from webhook")
	return nil
}
