package ports

import (
	"context"

	"shoppulse-ingest-layer/internal/domain"
)

// ShopRepository persists merchant installations
type ShopRepository interface {
	SaveShop(ctx context.Context, shop *domain.Shop) error
	GetShop(ctx context.Context, shopDomain string) (*domain.Shop, error)
	GetShopByID(ctx context.Context, shopID string) (*domain.Shop, error)
	ListShops(ctx context.Context) ([]*domain.Shop, error)
	DeleteShop(ctx context.Context, shopDomain string) error
}

// EntityStore is the merge engine: idempotent, conflict-resolving writes
// of canonical rows keyed by (shop id, external id). Implementations must
// resolve order/line-item foreign keys defensively, nulling references to
// rows that do not exist locally instead of rejecting the insert.
type EntityStore interface {
	MergeCustomers(ctx context.Context, shopID string, rows []domain.Customer) (domain.MergeResult, error)
	MergeProducts(ctx context.Context, shopID string, rows []domain.Product) (domain.MergeResult, error)
	MergeVariants(ctx context.Context, shopID string, rows []domain.ProductVariant) (domain.MergeResult, error)
	MergeOrders(ctx context.Context, shopID string, rows []domain.Order) (domain.MergeResult, error)
	MergeLineItems(ctx context.Context, shopID string, rows []domain.OrderLineItem) (domain.MergeResult, error)

	CountOrders(ctx context.Context, shopID string) (int64, error)
}

// SyncStateRepository persists per-shop sync progress. Only the progress
// tracker writes through this interface.
type SyncStateRepository interface {
	Get(ctx context.Context, shopID string) (*domain.SyncState, error)
	Save(ctx context.Context, state *domain.SyncState) error
}

// RawEventRepository is the append-only incoming-record log
type RawEventRepository interface {
	Append(ctx context.Context, event *domain.RawEvent) (string, error)
	MarkProcessed(ctx context.Context, eventID string) error
	ListRecent(ctx context.Context, shopDomain string, limit int64) ([]*domain.RawEvent, error)
}

// SessionRepository persists short-lived OAuth sessions
type SessionRepository interface {
	CreateSession(ctx context.Context, session *domain.Session) error
	GetSession(ctx context.Context, state string) (*domain.Session, error)
	DeleteSession(ctx context.Context, state string) error
}
