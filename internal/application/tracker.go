package application

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"shoppulse-ingest-layer/internal/domain"
	"shoppulse-ingest-layer/internal/infrastructure/pubsub"
	"shoppulse-ingest-layer/internal/ports"
)

// ProgressTracker owns every mutation of per-shop sync state. Stage and
// run statuses only ever move forward within a run: a completed or
// failed stage stays that way until a new run or an explicit stage
// reset starts over.
type ProgressTracker struct {
	mu     sync.Mutex
	repo   ports.SyncStateRepository
	pubsub *pubsub.ProgressPubSub
	logger zerolog.Logger
}

// NewProgressTracker creates a progress tracker
func NewProgressTracker(repo ports.SyncStateRepository, ps *pubsub.ProgressPubSub, logger zerolog.Logger) *ProgressTracker {
	return &ProgressTracker{repo: repo, pubsub: ps, logger: logger}
}

func (t *ProgressTracker) load(ctx context.Context, shopID string) (*domain.SyncState, error) {
	state, err := t.repo.Get(ctx, shopID)
	if err != nil {
		return nil, err
	}
	if state == nil {
		state = domain.NewSyncState(shopID)
	}
	return state, nil
}

func (t *ProgressTracker) save(ctx context.Context, state *domain.SyncState) error {
	if err := t.repo.Save(ctx, state); err != nil {
		return err
	}
	if t.pubsub != nil {
		t.pubsub.Publish(state.Snapshot())
	}
	return nil
}

// StartRun resets the shop's sync state for a fresh full run: every
// stage back to pending, overall status in_progress.
func (t *ProgressTracker) StartRun(ctx context.Context, shopID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	state := domain.NewSyncState(shopID)
	state.Status = domain.SyncInProgress

	t.logger.Info().Str("shop_id", shopID).Msg("Full sync run started")
	return t.save(ctx, state)
}

// ResetStage puts a single stage back to pending ahead of a targeted
// rerun, leaving the other stages untouched.
func (t *ProgressTracker) ResetStage(ctx context.Context, shopID string, stage domain.Stage) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	state, err := t.load(ctx, shopID)
	if err != nil {
		return err
	}

	state.Stages[stage] = &domain.StageState{Status: domain.SyncPending}
	state.Status = domain.SyncInProgress
	state.CompletedAt = nil
	return t.save(ctx, state)
}

// MarkStageStarted moves a stage to in_progress. A stage already in a
// terminal state is left alone; starting over requires StartRun or
// ResetStage first.
func (t *ProgressTracker) MarkStageStarted(ctx context.Context, shopID string, stage domain.Stage) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	state, err := t.load(ctx, shopID)
	if err != nil {
		return err
	}

	st := state.Stage(stage)
	if st.Status.Terminal() {
		return fmt.Errorf("stage %s is already %s", stage, st.Status)
	}

	st.Status = domain.SyncInProgress
	st.LastError = ""
	state.Status = domain.SyncInProgress
	state.CurrentStage = stage

	t.logger.Info().Str("shop_id", shopID).Str("stage", string(stage)).Msg("Stage started")
	return t.save(ctx, state)
}

// MarkStageProgress records the running row count of an in-progress
// stage so status readers see movement before the stage ends. Stages
// not currently in progress are left alone.
func (t *ProgressTracker) MarkStageProgress(ctx context.Context, shopID string, stage domain.Stage, count int) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	state, err := t.load(ctx, shopID)
	if err != nil {
		return err
	}

	st := state.Stage(stage)
	if st.Status != domain.SyncInProgress {
		return nil
	}

	st.Count = count
	return t.save(ctx, state)
}

// MarkStageCompleted finishes a stage with the number of rows it merged
func (t *ProgressTracker) MarkStageCompleted(ctx context.Context, shopID string, stage domain.Stage, count int) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	state, err := t.load(ctx, shopID)
	if err != nil {
		return err
	}

	now := time.Now()
	st := state.Stage(stage)
	st.Status = domain.SyncCompleted
	st.Count = count
	st.LastError = ""
	st.CompletedAt = &now

	t.logger.Info().
		Str("shop_id", shopID).
		Str("stage", string(stage)).
		Int("count", count).
		Msg("Stage completed")
	return t.save(ctx, state)
}

// MarkStageFailed finishes a stage with an error. Rows already merged
// before the failure are kept in the count.
func (t *ProgressTracker) MarkStageFailed(ctx context.Context, shopID string, stage domain.Stage, count int, cause error) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	state, err := t.load(ctx, shopID)
	if err != nil {
		return err
	}

	st := state.Stage(stage)
	st.Status = domain.SyncFailed
	st.Count = count
	st.LastError = cause.Error()

	t.logger.Error().
		Err(cause).
		Str("shop_id", shopID).
		Str("stage", string(stage)).
		Msg("Stage failed")
	return t.save(ctx, state)
}

// MarkRunCompleted finishes the overall run successfully
func (t *ProgressTracker) MarkRunCompleted(ctx context.Context, shopID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	state, err := t.load(ctx, shopID)
	if err != nil {
		return err
	}

	now := time.Now()
	state.Status = domain.SyncCompleted
	state.CurrentStage = ""
	state.LastError = ""
	state.CompletedAt = &now

	t.logger.Info().Str("shop_id", shopID).Msg("Full sync run completed")
	return t.save(ctx, state)
}

// MarkRunFailed finishes the overall run with an error
func (t *ProgressTracker) MarkRunFailed(ctx context.Context, shopID string, cause error) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	state, err := t.load(ctx, shopID)
	if err != nil {
		return err
	}

	state.Status = domain.SyncFailed
	state.LastError = cause.Error()

	t.logger.Error().Err(cause).Str("shop_id", shopID).Msg("Full sync run failed")
	return t.save(ctx, state)
}

// Snapshot returns the current progress view for a shop, or a fresh
// pending snapshot when no run has ever happened.
func (t *ProgressTracker) Snapshot(ctx context.Context, shopID string) (*domain.ProgressSnapshot, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	state, err := t.load(ctx, shopID)
	if err != nil {
		return nil, err
	}
	return state.Snapshot(), nil
}
