package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"shoppulse-ingest-layer/internal/application"
	"shoppulse-ingest-layer/internal/application/webhook_handlers"
	"shoppulse-ingest-layer/internal/domain"
	"shoppulse-ingest-layer/internal/infrastructure/metrics"
	"shoppulse-ingest-layer/internal/infrastructure/pubsub"
	shopifyinfra "shoppulse-ingest-layer/internal/infrastructure/shopify"
	"shoppulse-ingest-layer/internal/ports"
)

func writeJSON(w http.ResponseWriter, code int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, code int, message string) {
	writeJSON(w, code, map[string]string{"error": message})
}

// oauthInitHandler starts the OAuth installation flow
func oauthInitHandler(installService *application.InstallService, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		shop := r.URL.Query().Get("shop")
		if shop == "" {
			writeError(w, http.StatusBadRequest, "shop parameter is required")
			return
		}
		returnURL := r.URL.Query().Get("return_url")

		authURL, err := installService.BeginInstall(r.Context(), shop, returnURL)
		if err != nil {
			logger.Error().Err(err).Str("shop", shop).Msg("Failed to begin install")
			writeError(w, http.StatusInternalServerError, "failed to begin installation")
			return
		}

		http.Redirect(w, r, authURL, http.StatusFound)
	}
}

// oauthCallbackHandler finishes the OAuth flow and kicks off the first
// full sync for the freshly installed shop
func oauthCallbackHandler(installService *application.InstallService, syncService *application.SyncService, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		shop := r.URL.Query().Get("shop")
		code := r.URL.Query().Get("code")
		state := r.URL.Query().Get("state")

		if shop == "" || code == "" || state == "" {
			writeError(w, http.StatusBadRequest, "missing required parameters")
			return
		}

		installed, returnURL, err := installService.CompleteInstall(ctx, r.URL, shop, code, state)
		if err != nil {
			logger.Error().Err(err).Str("shop", shop).Msg("Failed to complete install")
			writeError(w, http.StatusUnauthorized, "installation failed")
			return
		}

		if err := syncService.TriggerFullSync(ctx, installed.Domain); err != nil && !errors.Is(err, application.ErrSyncInProgress) {
			logger.Error().Err(err).Str("shop", shop).Msg("Failed to start initial sync")
		}

		if returnURL != "" {
			http.Redirect(w, r, returnURL, http.StatusFound)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "installed", "shop": installed.Domain})
	}
}

// webhookHandler is the single intake for platform event deliveries.
// The body is HMAC-verified, appended to the raw event log, then
// dispatched. Processing failures are swallowed after logging: once the
// delivery is recorded we always acknowledge, the platform must not
// retry it.
func webhookHandler(
	verifier *shopifyinfra.WebhookVerifier,
	shops ports.ShopRepository,
	rawEvents ports.RawEventRepository,
	dispatcher *webhook_handlers.Dispatcher,
	m *metrics.Metrics,
	logger zerolog.Logger,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		body, err := io.ReadAll(r.Body)
		if err != nil {
			writeError(w, http.StatusBadRequest, "failed to read body")
			return
		}

		if !verifier.Verify(body, r.Header.Get("X-Shopify-Hmac-Sha256")) {
			logger.Warn().
				Str("shop", r.Header.Get("X-Shopify-Shop-Domain")).
				Msg("Rejected webhook with invalid signature")
			if m != nil {
				m.WebhooksReceived.WithLabelValues(r.Header.Get("X-Shopify-Topic"), "rejected").Inc()
			}
			writeError(w, http.StatusUnauthorized, "invalid signature")
			return
		}

		topic := r.Header.Get("X-Shopify-Topic")
		shopDomain := r.Header.Get("X-Shopify-Shop-Domain")

		event := &domain.RawEvent{
			ShopDomain: shopDomain,
			Topic:      topic,
			Source:     domain.RawEventSourceWebhook,
			Payload:    body,
		}
		eventID, err := rawEvents.Append(ctx, event)
		if err != nil {
			logger.Error().Err(err).Str("shop", shopDomain).Str("topic", topic).Msg("Failed to log raw event")
			writeError(w, http.StatusInternalServerError, "failed to record event")
			return
		}
		event.ID = eventID

		shop, err := shops.GetShop(ctx, shopDomain)
		if err != nil {
			logger.Error().Err(err).Str("shop", shopDomain).Msg("Failed to resolve shop for webhook")
		}
		if shop != nil {
			dispatcher.Dispatch(ctx, shop.ID, event)
		} else {
			logger.Warn().Str("shop", shopDomain).Str("topic", topic).Msg("Webhook for unknown shop logged but not dispatched")
		}

		writeJSON(w, http.StatusOK, map[string]string{"status": "received"})
	}
}

// triggerSyncHandler starts a full background sync
func triggerSyncHandler(syncService *application.SyncService, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		shop := r.URL.Query().Get("shop")
		if shop == "" {
			writeError(w, http.StatusBadRequest, "shop parameter is required")
			return
		}

		err := syncService.TriggerFullSync(r.Context(), shop)
		switch {
		case errors.Is(err, application.ErrShopNotInstalled):
			writeError(w, http.StatusNotFound, "shop is not installed")
		case errors.Is(err, application.ErrSyncInProgress):
			writeError(w, http.StatusConflict, "a sync is already running for this shop")
		case err != nil:
			logger.Error().Err(err).Str("shop", shop).Msg("Failed to trigger sync")
			writeError(w, http.StatusInternalServerError, "failed to trigger sync")
		default:
			writeJSON(w, http.StatusAccepted, map[string]string{"status": "started", "shop": shop})
		}
	}
}

// rerunStageHandler reruns one stage synchronously
func rerunStageHandler(syncService *application.SyncService, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		shop := r.URL.Query().Get("shop")
		if shop == "" {
			writeError(w, http.StatusBadRequest, "shop parameter is required")
			return
		}
		stage := domain.Stage(chi.URLParam(r, "stage"))
		if !domain.IsValidStage(stage) {
			writeError(w, http.StatusBadRequest, "unknown stage")
			return
		}

		err := syncService.RerunStage(r.Context(), shop, stage)
		switch {
		case errors.Is(err, application.ErrShopNotInstalled):
			writeError(w, http.StatusNotFound, "shop is not installed")
		case errors.Is(err, application.ErrSyncInProgress):
			writeError(w, http.StatusConflict, "a sync is already running for this shop")
		case err != nil:
			logger.Error().Err(err).Str("shop", shop).Str("stage", string(stage)).Msg("Stage rerun failed")
			writeError(w, http.StatusInternalServerError, err.Error())
		default:
			writeJSON(w, http.StatusOK, map[string]string{"status": "completed", "stage": string(stage)})
		}
	}
}

// syncStatusHandler serves the current progress snapshot
func syncStatusHandler(syncService *application.SyncService, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		shop := r.URL.Query().Get("shop")
		if shop == "" {
			writeError(w, http.StatusBadRequest, "shop parameter is required")
			return
		}

		snapshot, err := syncService.GetSyncStatus(r.Context(), shop)
		if errors.Is(err, application.ErrShopNotInstalled) {
			writeError(w, http.StatusNotFound, "shop is not installed")
			return
		}
		if err != nil {
			logger.Error().Err(err).Str("shop", shop).Msg("Failed to read sync status")
			writeError(w, http.StatusInternalServerError, "failed to read sync status")
			return
		}

		orderCount, err := syncService.MirroredOrderCount(r.Context(), shop)
		if err != nil {
			logger.Error().Err(err).Str("shop", shop).Msg("Failed to count mirrored orders")
			writeError(w, http.StatusInternalServerError, "failed to read sync status")
			return
		}

		writeJSON(w, http.StatusOK, struct {
			*domain.ProgressSnapshot
			OrdersMirrored int64 `json:"orders_mirrored"`
		}{snapshot, orderCount})
	}
}

// syncProgressStreamHandler streams progress snapshots for a shop as
// server-sent events while a sync runs. The stream ends when the
// client disconnects.
func syncProgressStreamHandler(shops ports.ShopRepository, ps *pubsub.ProgressPubSub, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		shopDomain := r.URL.Query().Get("shop")
		if shopDomain == "" {
			writeError(w, http.StatusBadRequest, "shop parameter is required")
			return
		}

		shop, err := shops.GetShop(r.Context(), shopDomain)
		if err != nil {
			logger.Error().Err(err).Str("shop", shopDomain).Msg("Failed to resolve shop")
			writeError(w, http.StatusInternalServerError, "failed to resolve shop")
			return
		}
		if shop == nil {
			writeError(w, http.StatusNotFound, "shop is not installed")
			return
		}

		flusher, ok := w.(http.Flusher)
		if !ok {
			writeError(w, http.StatusInternalServerError, "streaming not supported")
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.WriteHeader(http.StatusOK)
		flusher.Flush()

		channel := ps.Subscribe(r.Context(), shop.ID)
		for {
			select {
			case <-r.Context().Done():
				return
			case snapshot, open := <-channel.Snapshots:
				if !open {
					return
				}
				payload, err := json.Marshal(snapshot)
				if err != nil {
					logger.Error().Err(err).Str("shop", shopDomain).Msg("Failed to encode progress snapshot")
					continue
				}
				fmt.Fprintf(w, "data: %s\n\n", payload)
				flusher.Flush()
			}
		}
	}
}

// webhookStatusHandler lists the most recent raw events for a shop so
// operators can see what arrived and whether it processed
func webhookStatusHandler(shops ports.ShopRepository, rawEvents ports.RawEventRepository, logger zerolog.Logger) http.HandlerFunc {
	type eventView struct {
		ID         string `json:"id"`
		Topic      string `json:"topic"`
		Source     string `json:"source"`
		Processed  bool   `json:"processed"`
		ReceivedAt string `json:"received_at"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		shopDomain := r.URL.Query().Get("shop")
		if shopDomain == "" {
			writeError(w, http.StatusBadRequest, "shop parameter is required")
			return
		}

		shop, err := shops.GetShop(r.Context(), shopDomain)
		if err != nil {
			logger.Error().Err(err).Str("shop", shopDomain).Msg("Failed to resolve shop")
			writeError(w, http.StatusInternalServerError, "failed to resolve shop")
			return
		}
		if shop == nil {
			writeError(w, http.StatusNotFound, "shop is not installed")
			return
		}

		events, err := rawEvents.ListRecent(r.Context(), shopDomain, 50)
		if err != nil {
			logger.Error().Err(err).Str("shop", shopDomain).Msg("Failed to list raw events")
			writeError(w, http.StatusInternalServerError, "failed to list events")
			return
		}

		views := make([]eventView, 0, len(events))
		for _, e := range events {
			views = append(views, eventView{
				ID:         e.ID,
				Topic:      e.Topic,
				Source:     e.Source,
				Processed:  e.Processed,
				ReceivedAt: e.ReceivedAt.UTC().Format(time.RFC3339),
			})
		}

		writeJSON(w, http.StatusOK, map[string]interface{}{
			"shop":   shopDomain,
			"events": views,
		})
	}
}
