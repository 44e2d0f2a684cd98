package pubsub

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"shoppulse-ingest-layer/internal/domain"
)

func receiveSnapshot(t *testing.T, ch *ProgressChannel) *domain.ProgressSnapshot {
	t.Helper()
	select {
	case snap := <-ch.Snapshots:
		return snap
	case <-time.After(time.Second):
		t.Fatal("no snapshot received")
		return nil
	}
}

func TestPublishFiltersByShop(t *testing.T) {
	ps := NewProgressPubSub(zerolog.Nop())
	ctx := context.Background()

	shopOne := ps.Subscribe(ctx, "shop-1")
	allShops := ps.Subscribe(ctx, "")

	ps.Publish(&domain.ProgressSnapshot{ShopID: "shop-2", Status: domain.SyncInProgress})

	if snap := receiveSnapshot(t, allShops); snap.ShopID != "shop-2" {
		t.Errorf("wildcard subscriber got shop %s", snap.ShopID)
	}
	select {
	case snap := <-shopOne.Snapshots:
		t.Errorf("shop-1 subscriber got snapshot for %s", snap.ShopID)
	default:
	}

	ps.Publish(&domain.ProgressSnapshot{ShopID: "shop-1", Status: domain.SyncCompleted})
	if snap := receiveSnapshot(t, shopOne); snap.Status != domain.SyncCompleted {
		t.Errorf("status = %s", snap.Status)
	}
}

func TestSubscriptionEndsWithContext(t *testing.T) {
	ps := NewProgressPubSub(zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())

	ch := ps.Subscribe(ctx, "shop-1")
	cancel()

	select {
	case <-ch.Done:
	case <-time.After(time.Second):
		t.Fatal("subscription not removed after context cancel")
	}

	if stats := ps.Stats(); stats["active_subscriptions"] != 0 {
		t.Errorf("active_subscriptions = %v", stats["active_subscriptions"])
	}
}

func TestPublishDropsWhenBufferFull(t *testing.T) {
	ps := NewProgressPubSub(zerolog.Nop())
	ch := ps.Subscribe(context.Background(), "shop-1")

	// fill the channel buffer and then some; Publish must not block
	for i := 0; i < 20; i++ {
		ps.Publish(&domain.ProgressSnapshot{ShopID: "shop-1"})
	}

	if got := receiveSnapshot(t, ch); got.ShopID != "shop-1" {
		t.Errorf("ShopID = %s", got.ShopID)
	}
}
