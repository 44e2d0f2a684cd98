package webhook_handlers

import (
	"context"

	"github.com/rs/zerolog"

	"shoppulse-ingest-layer/internal/ports"
)

// AppUninstalledHandler removes the shop record when a merchant
// uninstalls the app. Mirrored commerce data is kept; the merchant can
// reinstall and resync without losing history.
type AppUninstalledHandler struct {
	shops  ports.ShopRepository
	logger zerolog.Logger
}

// NewAppUninstalledHandler creates a new uninstall webhook handler
func NewAppUninstalledHandler(shops ports.ShopRepository, logger zerolog.Logger) *AppUninstalledHandler {
	return &AppUninstalledHandler{shops: shops, logger: logger}
}

// CanHandle returns true if this handler can process the given topic
func (h *AppUninstalledHandler) CanHandle(topic string) bool {
	return topic == "app/uninstalled"
}

// Handle deletes the shop installation
func (h *AppUninstalledHandler) Handle(ctx context.Context, shopID string, topic string, payload []byte) error {
	shop, err := h.shops.GetShopByID(ctx, shopID)
	if err != nil {
		return err
	}
	if shop == nil {
		return nil
	}

	if err := h.shops.DeleteShop(ctx, shop.Domain); err != nil {
		return err
	}

	h.logger.Info().Str("shop", shop.Domain).Msg("Shop uninstalled")
	return nil
}
