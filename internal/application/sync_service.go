package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"shoppulse-ingest-layer/internal/domain"
	"shoppulse-ingest-layer/internal/ports"
)

// ErrSyncInProgress is returned when a full sync is requested while
// another run already holds the shop's lease
var ErrSyncInProgress = errors.New("a sync is already running for this shop")

// ErrShopNotInstalled is returned for requests against an unknown shop
var ErrShopNotInstalled = errors.New("shop is not installed")

// runTimeout bounds one background full sync run end to end
const runTimeout = 2 * time.Hour

// SyncService is the entry point for sync operations: trigger a full
// background run, rerun a single stage, read progress.
type SyncService struct {
	shops        ports.ShopRepository
	credentials  ports.CredentialProvider
	locker       ports.SyncLocker
	orchestrator *Orchestrator
	tracker      *ProgressTracker
	store        ports.EntityStore
	logger       zerolog.Logger
}

// NewSyncService creates a sync service
func NewSyncService(
	shops ports.ShopRepository,
	credentials ports.CredentialProvider,
	locker ports.SyncLocker,
	orchestrator *Orchestrator,
	tracker *ProgressTracker,
	store ports.EntityStore,
	logger zerolog.Logger,
) *SyncService {
	return &SyncService{
		shops:        shops,
		credentials:  credentials,
		locker:       locker,
		orchestrator: orchestrator,
		tracker:      tracker,
		store:        store,
		logger:       logger,
	}
}

func (s *SyncService) resolveShop(ctx context.Context, shopDomain string) (*domain.Shop, string, error) {
	shop, err := s.shops.GetShop(ctx, shopDomain)
	if err != nil {
		return nil, "", err
	}
	if shop == nil {
		return nil, "", ErrShopNotInstalled
	}

	token, err := s.credentials.AccessToken(ctx, shopDomain)
	if err != nil {
		return nil, "", err
	}
	return shop, token, nil
}

// TriggerFullSync starts a full background sync for a shop. The request
// returns as soon as the run is accepted; progress is read through
// GetSyncStatus. Only one run per shop is in flight at a time.
func (s *SyncService) TriggerFullSync(ctx context.Context, shopDomain string) error {
	shop, token, err := s.resolveShop(ctx, shopDomain)
	if err != nil {
		return err
	}

	acquired, err := s.locker.Acquire(ctx, shop.ID)
	if err != nil {
		return err
	}
	if !acquired {
		return ErrSyncInProgress
	}

	go func() {
		runCtx, cancel := context.WithTimeout(context.Background(), runTimeout)
		defer cancel()
		defer func() {
			if err := s.locker.Release(runCtx, shop.ID); err != nil {
				s.logger.Error().Err(err).Str("shop_id", shop.ID).Msg("Failed to release sync lock")
			}
		}()

		if err := s.orchestrator.RunFullSync(runCtx, shop, token); err != nil {
			s.logger.Error().Err(err).Str("shop_id", shop.ID).Msg("Background sync run failed")
		}
	}()

	return nil
}

// RerunStage reruns a single stage for a shop, synchronously. The stage
// is reset first; the other stages keep their state. Useful after a
// stage failed and the underlying cause was fixed.
func (s *SyncService) RerunStage(ctx context.Context, shopDomain string, stage domain.Stage) error {
	if !domain.IsValidStage(stage) {
		return fmt.Errorf("unknown stage %q", stage)
	}

	shop, token, err := s.resolveShop(ctx, shopDomain)
	if err != nil {
		return err
	}

	acquired, err := s.locker.Acquire(ctx, shop.ID)
	if err != nil {
		return err
	}
	if !acquired {
		return ErrSyncInProgress
	}
	defer func() {
		if err := s.locker.Release(ctx, shop.ID); err != nil {
			s.logger.Error().Err(err).Str("shop_id", shop.ID).Msg("Failed to release sync lock")
		}
	}()

	if err := s.tracker.ResetStage(ctx, shop.ID, stage); err != nil {
		return err
	}
	return s.orchestrator.RunStage(ctx, shop, token, stage)
}

// GetSyncStatus returns the current progress snapshot for a shop
func (s *SyncService) GetSyncStatus(ctx context.Context, shopDomain string) (*domain.ProgressSnapshot, error) {
	shop, err := s.shops.GetShop(ctx, shopDomain)
	if err != nil {
		return nil, err
	}
	if shop == nil {
		return nil, ErrShopNotInstalled
	}
	return s.tracker.Snapshot(ctx, shop.ID)
}

// MirroredOrderCount reports how many orders are currently mirrored
// locally for a shop
func (s *SyncService) MirroredOrderCount(ctx context.Context, shopDomain string) (int64, error) {
	shop, err := s.shops.GetShop(ctx, shopDomain)
	if err != nil {
		return 0, err
	}
	if shop == nil {
		return 0, ErrShopNotInstalled
	}
	return s.store.CountOrders(ctx, shop.ID)
}
