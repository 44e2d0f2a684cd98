package webhook_handlers

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"shoppulse-ingest-layer/internal/domain"
)

type memStore struct {
	customers []domain.Customer
	products  []domain.Product
	variants  []domain.ProductVariant
	orders    []domain.Order
	lineItems []domain.OrderLineItem
	failAll   bool
}

func (s *memStore) result(n int) (domain.MergeResult, error) {
	if s.failAll {
		return domain.MergeResult{}, errors.New("store unavailable")
	}
	return domain.MergeResult{Updated: n}, nil
}

func (s *memStore) MergeCustomers(_ context.Context, _ string, rows []domain.Customer) (domain.MergeResult, error) {
	if !s.failAll {
		s.customers = append(s.customers, rows...)
	}
	return s.result(len(rows))
}

func (s *memStore) MergeProducts(_ context.Context, _ string, rows []domain.Product) (domain.MergeResult, error) {
	if !s.failAll {
		s.products = append(s.products, rows...)
	}
	return s.result(len(rows))
}

func (s *memStore) MergeVariants(_ context.Context, _ string, rows []domain.ProductVariant) (domain.MergeResult, error) {
	if !s.failAll {
		s.variants = append(s.variants, rows...)
	}
	return s.result(len(rows))
}

func (s *memStore) MergeOrders(_ context.Context, _ string, rows []domain.Order) (domain.MergeResult, error) {
	if !s.failAll {
		s.orders = append(s.orders, rows...)
	}
	return s.result(len(rows))
}

func (s *memStore) MergeLineItems(_ context.Context, _ string, rows []domain.OrderLineItem) (domain.MergeResult, error) {
	if !s.failAll {
		s.lineItems = append(s.lineItems, rows...)
	}
	return s.result(len(rows))
}

func (s *memStore) CountOrders(_ context.Context, _ string) (int64, error) {
	return int64(len(s.orders)), nil
}

type memRawEvents struct {
	processed map[string]bool
}

func newMemRawEvents() *memRawEvents {
	return &memRawEvents{processed: make(map[string]bool)}
}

func (r *memRawEvents) Append(_ context.Context, event *domain.RawEvent) (string, error) {
	return event.ID, nil
}

func (r *memRawEvents) MarkProcessed(_ context.Context, eventID string) error {
	r.processed[eventID] = true
	return nil
}

func (r *memRawEvents) ListRecent(_ context.Context, _ string, _ int64) ([]*domain.RawEvent, error) {
	return nil, nil
}

func newTestDispatcher(store *memStore, rawEvents *memRawEvents) *Dispatcher {
	logger := zerolog.Nop()
	return NewDispatcher(rawEvents, nil, logger,
		NewCustomerHandler(store, logger),
		NewProductHandler(store, logger),
		NewOrderHandler(store, logger),
	)
}

func TestDispatchOrderWebhookMergesOrderAndLineItems(t *testing.T) {
	store := &memStore{}
	rawEvents := newMemRawEvents()
	d := newTestDispatcher(store, rawEvents)

	event := &domain.RawEvent{
		ID:         "evt-1",
		ShopDomain: "test.myshopify.com",
		Topic:      "orders/create",
		Source:     domain.RawEventSourceWebhook,
		Payload: []byte(`{
			"id": 5001, "name": "#1042", "financial_status": "paid", "total_price": "30.00",
			"customer": {"id": 77},
			"line_items": [
				{"id": 1, "quantity": 2, "price": "10.00", "product_id": 7},
				{"id": 2, "quantity": 1, "price": "10.00"}
			]
		}`),
	}

	d.Dispatch(context.Background(), "shop-1", event)

	if len(store.orders) != 1 || len(store.lineItems) != 2 {
		t.Fatalf("merged: orders %d lineItems %d", len(store.orders), len(store.lineItems))
	}
	if store.lineItems[0].OrderExternalID != 5001 {
		t.Errorf("line item order ref = %d", store.lineItems[0].OrderExternalID)
	}
	if !rawEvents.processed["evt-1"] {
		t.Error("event not marked processed")
	}
}

func TestDispatchProductWebhookMergesVariants(t *testing.T) {
	store := &memStore{}
	rawEvents := newMemRawEvents()
	d := newTestDispatcher(store, rawEvents)

	event := &domain.RawEvent{
		ID:         "evt-2",
		ShopDomain: "test.myshopify.com",
		Topic:      "products/update",
		Payload: []byte(`{
			"id": 7, "title": "Mug", "status": "active",
			"variants": [
				{"id": 100, "product_id": 7, "sku": "MUG-1", "price": "12.00"},
				{"id": 101, "product_id": 7, "sku": "MUG-2", "price": "14.00"}
			]
		}`),
	}

	d.Dispatch(context.Background(), "shop-1", event)

	if len(store.products) != 1 || len(store.variants) != 2 {
		t.Errorf("merged: products %d variants %d", len(store.products), len(store.variants))
	}
	if !rawEvents.processed["evt-2"] {
		t.Error("event not marked processed")
	}
}

func TestDispatchHandlerFailureIsSwallowed(t *testing.T) {
	store := &memStore{failAll: true}
	rawEvents := newMemRawEvents()
	d := newTestDispatcher(store, rawEvents)

	event := &domain.RawEvent{
		ID:         "evt-3",
		ShopDomain: "test.myshopify.com",
		Topic:      "customers/create",
		Payload:    []byte(`{"id": 77, "email": "c@example.com"}`),
	}

	// must not panic and must not mark the event processed
	d.Dispatch(context.Background(), "shop-1", event)

	if rawEvents.processed["evt-3"] {
		t.Error("failed event must stay unprocessed")
	}
}

func TestDispatchUnknownTopicIsIgnored(t *testing.T) {
	store := &memStore{}
	rawEvents := newMemRawEvents()
	d := newTestDispatcher(store, rawEvents)

	event := &domain.RawEvent{
		ID:         "evt-4",
		ShopDomain: "test.myshopify.com",
		Topic:      "themes/publish",
		Payload:    []byte(`{}`),
	}

	d.Dispatch(context.Background(), "shop-1", event)

	if rawEvents.processed["evt-4"] {
		t.Error("ignored event must stay unprocessed")
	}
}
