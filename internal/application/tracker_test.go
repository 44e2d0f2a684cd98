package application

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"shoppulse-ingest-layer/internal/domain"
)

type memSyncStateRepo struct {
	states map[string]*domain.SyncState
}

func newMemSyncStateRepo() *memSyncStateRepo {
	return &memSyncStateRepo{states: make(map[string]*domain.SyncState)}
}

func (r *memSyncStateRepo) Get(_ context.Context, shopID string) (*domain.SyncState, error) {
	return r.states[shopID], nil
}

func (r *memSyncStateRepo) Save(_ context.Context, state *domain.SyncState) error {
	r.states[state.ShopID] = state
	return nil
}

func TestTrackerHappyPath(t *testing.T) {
	tracker := NewProgressTracker(newMemSyncStateRepo(), nil, zerolog.Nop())
	ctx := context.Background()

	if err := tracker.StartRun(ctx, "shop-1"); err != nil {
		t.Fatalf("StartRun: %v", err)
	}

	snap, _ := tracker.Snapshot(ctx, "shop-1")
	if snap.Status != domain.SyncInProgress || snap.Percent != 0 {
		t.Errorf("after start: status %s percent %v", snap.Status, snap.Percent)
	}

	if err := tracker.MarkStageStarted(ctx, "shop-1", domain.StageCustomers); err != nil {
		t.Fatalf("MarkStageStarted: %v", err)
	}
	snap, _ = tracker.Snapshot(ctx, "shop-1")
	if snap.Percent != 12.5 {
		t.Errorf("one stage in progress: percent = %v, want 12.5", snap.Percent)
	}
	if snap.CurrentStage != domain.StageCustomers {
		t.Errorf("CurrentStage = %s", snap.CurrentStage)
	}

	if err := tracker.MarkStageCompleted(ctx, "shop-1", domain.StageCustomers, 3); err != nil {
		t.Fatalf("MarkStageCompleted: %v", err)
	}
	snap, _ = tracker.Snapshot(ctx, "shop-1")
	if snap.Percent != 25 {
		t.Errorf("one stage completed: percent = %v, want 25", snap.Percent)
	}
	if snap.Stages[domain.StageCustomers].Count != 3 {
		t.Errorf("stage count = %d", snap.Stages[domain.StageCustomers].Count)
	}

	for _, stage := range []domain.Stage{domain.StageProducts, domain.StageOrders, domain.StageLineItems} {
		tracker.MarkStageStarted(ctx, "shop-1", stage)
		tracker.MarkStageCompleted(ctx, "shop-1", stage, 1)
	}
	tracker.MarkRunCompleted(ctx, "shop-1")

	snap, _ = tracker.Snapshot(ctx, "shop-1")
	if snap.Status != domain.SyncCompleted || snap.Percent != 100 {
		t.Errorf("final: status %s percent %v", snap.Status, snap.Percent)
	}
	if snap.CompletedAt == nil {
		t.Error("CompletedAt not set")
	}
}

func TestTrackerProgressVisibleMidStage(t *testing.T) {
	tracker := NewProgressTracker(newMemSyncStateRepo(), nil, zerolog.Nop())
	ctx := context.Background()

	tracker.StartRun(ctx, "shop-1")
	tracker.MarkStageStarted(ctx, "shop-1", domain.StageOrders)

	if err := tracker.MarkStageProgress(ctx, "shop-1", domain.StageOrders, 200); err != nil {
		t.Fatalf("MarkStageProgress: %v", err)
	}

	snap, _ := tracker.Snapshot(ctx, "shop-1")
	st := snap.Stages[domain.StageOrders]
	if st.Status != domain.SyncInProgress {
		t.Errorf("stage status = %s, want in_progress", st.Status)
	}
	if st.Count != 200 {
		t.Errorf("mid-stage count = %d, want 200", st.Count)
	}

	// a terminal stage keeps its final count
	tracker.MarkStageCompleted(ctx, "shop-1", domain.StageOrders, 350)
	if err := tracker.MarkStageProgress(ctx, "shop-1", domain.StageOrders, 999); err != nil {
		t.Fatalf("MarkStageProgress on completed stage: %v", err)
	}
	snap, _ = tracker.Snapshot(ctx, "shop-1")
	if snap.Stages[domain.StageOrders].Count != 350 {
		t.Errorf("count after completion = %d, want 350", snap.Stages[domain.StageOrders].Count)
	}
}

func TestTrackerTerminalStagesAreSticky(t *testing.T) {
	tracker := NewProgressTracker(newMemSyncStateRepo(), nil, zerolog.Nop())
	ctx := context.Background()

	tracker.StartRun(ctx, "shop-1")
	tracker.MarkStageStarted(ctx, "shop-1", domain.StageCustomers)
	tracker.MarkStageCompleted(ctx, "shop-1", domain.StageCustomers, 3)

	if err := tracker.MarkStageStarted(ctx, "shop-1", domain.StageCustomers); err == nil {
		t.Error("restarting a completed stage without a reset must fail")
	}

	tracker.MarkStageStarted(ctx, "shop-1", domain.StageProducts)
	tracker.MarkStageFailed(ctx, "shop-1", domain.StageProducts, 1, errors.New("export failed"))

	if err := tracker.MarkStageStarted(ctx, "shop-1", domain.StageProducts); err == nil {
		t.Error("restarting a failed stage without a reset must fail")
	}

	if err := tracker.ResetStage(ctx, "shop-1", domain.StageProducts); err != nil {
		t.Fatalf("ResetStage: %v", err)
	}
	if err := tracker.MarkStageStarted(ctx, "shop-1", domain.StageProducts); err != nil {
		t.Errorf("restart after reset: %v", err)
	}

	// the other stages kept their state across the reset
	snap, _ := tracker.Snapshot(ctx, "shop-1")
	if snap.Stages[domain.StageCustomers].Status != domain.SyncCompleted {
		t.Errorf("customers stage lost its state: %s", snap.Stages[domain.StageCustomers].Status)
	}
}

func TestTrackerStageFailureKeepsPartialCount(t *testing.T) {
	tracker := NewProgressTracker(newMemSyncStateRepo(), nil, zerolog.Nop())
	ctx := context.Background()

	tracker.StartRun(ctx, "shop-1")
	tracker.MarkStageStarted(ctx, "shop-1", domain.StageOrders)
	tracker.MarkStageFailed(ctx, "shop-1", domain.StageOrders, 42, errors.New("download interrupted"))
	tracker.MarkRunFailed(ctx, "shop-1", errors.New("stage orders failed"))

	snap, _ := tracker.Snapshot(ctx, "shop-1")
	st := snap.Stages[domain.StageOrders]
	if st.Status != domain.SyncFailed || st.Count != 42 {
		t.Errorf("failed stage: %+v", st)
	}
	if st.LastError == "" || snap.LastError == "" {
		t.Error("errors not recorded")
	}
	if snap.Status != domain.SyncFailed {
		t.Errorf("run status = %s", snap.Status)
	}
}

func TestTrackerSnapshotForUnknownShop(t *testing.T) {
	tracker := NewProgressTracker(newMemSyncStateRepo(), nil, zerolog.Nop())

	snap, err := tracker.Snapshot(context.Background(), "never-synced")
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if snap.Status != domain.SyncPending || snap.Percent != 0 {
		t.Errorf("fresh snapshot: status %s percent %v", snap.Status, snap.Percent)
	}
	if len(snap.Stages) != 4 {
		t.Errorf("expected 4 stages, got %d", len(snap.Stages))
	}
}
