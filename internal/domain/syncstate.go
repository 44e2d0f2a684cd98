package domain

import "time"

// Stage identifies one entity type's sync unit within a full sync run
type Stage string

const (
	StageCustomers Stage = "customers"
	StageProducts  Stage = "products"
	StageOrders    Stage = "orders"
	StageLineItems Stage = "line_items"
)

// StageOrder returns the fixed dependency order of the sync stages.
// Orders reference customers and line items reference orders, so the
// order must never change.
func StageOrder() []Stage {
	return []Stage{StageCustomers, StageProducts, StageOrders, StageLineItems}
}

// IsValidStage reports whether s names a known stage
func IsValidStage(s Stage) bool {
	for _, known := range StageOrder() {
		if s == known {
			return true
		}
	}
	return false
}

// SyncStatus is the lifecycle status of a stage or of the overall run
type SyncStatus string

const (
	SyncPending    SyncStatus = "pending"
	SyncInProgress SyncStatus = "in_progress"
	SyncCompleted  SyncStatus = "completed"
	SyncFailed     SyncStatus = "failed"
)

// Terminal reports whether the status is sticky (never reverts)
func (s SyncStatus) Terminal() bool {
	return s == SyncCompleted || s == SyncFailed
}

// StageState is the tracked state of a single stage for one shop
type StageState struct {
	Status      SyncStatus `json:"status" bson:"status"`
	Count       int        `json:"count" bson:"count"`
	LastError   string     `json:"last_error,omitempty" bson:"last_error,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty" bson:"completed_at,omitempty"`
}

// SyncState is the full per-shop sync record, owned by the progress
// tracker and mutated only through it
type SyncState struct {
	ShopID       string                `json:"shop_id" bson:"_id"`
	Status       SyncStatus            `json:"status" bson:"status"`
	CurrentStage Stage                 `json:"current_stage,omitempty" bson:"current_stage,omitempty"`
	Stages       map[Stage]*StageState `json:"stages" bson:"stages"`
	LastError    string                `json:"last_error,omitempty" bson:"last_error,omitempty"`
	CompletedAt  *time.Time            `json:"completed_at,omitempty" bson:"completed_at,omitempty"`
	UpdatedAt    time.Time             `json:"updated_at" bson:"updated_at"`
}

// NewSyncState returns a fresh state with every stage pending
func NewSyncState(shopID string) *SyncState {
	stages := make(map[Stage]*StageState, len(StageOrder()))
	for _, stage := range StageOrder() {
		stages[stage] = &StageState{Status: SyncPending}
	}
	return &SyncState{
		ShopID:    shopID,
		Status:    SyncPending,
		Stages:    stages,
		UpdatedAt: time.Now(),
	}
}

// Stage returns the state for a stage, creating a pending entry if the
// record predates the stage
func (s *SyncState) Stage(stage Stage) *StageState {
	if s.Stages == nil {
		s.Stages = make(map[Stage]*StageState)
	}
	st, ok := s.Stages[stage]
	if !ok {
		st = &StageState{Status: SyncPending}
		s.Stages[stage] = st
	}
	return st
}

// Percent computes overall completion: each completed stage counts
// fully, an in-progress stage counts half
func (s *SyncState) Percent() float64 {
	total := len(StageOrder())
	if total == 0 {
		return 0
	}
	credit := 0.0
	for _, stage := range StageOrder() {
		switch s.Stage(stage).Status {
		case SyncCompleted:
			credit += 1.0
		case SyncInProgress:
			credit += 0.5
		}
	}
	return credit / float64(total) * 100.0
}

// ProgressSnapshot is the read-only view served to status endpoints
type ProgressSnapshot struct {
	ShopID       string               `json:"shop_id"`
	Status       SyncStatus           `json:"status"`
	CurrentStage Stage                `json:"current_stage,omitempty"`
	Stages       map[Stage]StageState `json:"stages"`
	Percent      float64              `json:"percent"`
	LastError    string               `json:"last_error,omitempty"`
	CompletedAt  *time.Time           `json:"completed_at,omitempty"`
}

// Snapshot copies the mutable state into an immutable view
func (s *SyncState) Snapshot() *ProgressSnapshot {
	stages := make(map[Stage]StageState, len(s.Stages))
	for _, stage := range StageOrder() {
		stages[stage] = *s.Stage(stage)
	}
	return &ProgressSnapshot{
		ShopID:       s.ShopID,
		Status:       s.Status,
		CurrentStage: s.CurrentStage,
		Stages:       stages,
		Percent:      s.Percent(),
		LastError:    s.LastError,
		CompletedAt:  s.CompletedAt,
	}
}
