package application

import (
	"context"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"shoppulse-ingest-layer/internal/domain"
	"shoppulse-ingest-layer/internal/infrastructure/shopify"
	"shoppulse-ingest-layer/internal/ports"
)

// fakeExporter serves canned JSONL per submitted query
type fakeExporter struct {
	jobs      map[string]fakeJob // keyed by query
	lastQuery string
	submits   int
}

type fakeJob struct {
	status  string
	jsonl   string
	partial bool
}

func (f *fakeExporter) Submit(_ context.Context, _, _, query string) (string, error) {
	if _, ok := f.jobs[query]; !ok {
		return "", fmt.Errorf("no job configured for query")
	}
	f.lastQuery = query
	f.submits++
	return fmt.Sprintf("gid://shopify/BulkOperation/%d", f.submits), nil
}

func (f *fakeExporter) PollUntilDone(_ context.Context, _, _ string) (*ports.BulkJobResult, error) {
	job := f.jobs[f.lastQuery]
	result := &ports.BulkJobResult{JobID: "job", Status: job.status, Partial: job.partial}
	if job.jsonl != "" {
		result.URL = "fake://" + f.lastQuery
	}
	return result, nil
}

func (f *fakeExporter) Download(_ context.Context, url string) (io.ReadCloser, error) {
	job := f.jobs[strings.TrimPrefix(url, "fake://")]
	return io.NopCloser(strings.NewReader(job.jsonl)), nil
}

// memEntityStore records merged rows in memory
type memEntityStore struct {
	customers []domain.Customer
	products  []domain.Product
	variants  []domain.ProductVariant
	orders    []domain.Order
	lineItems []domain.OrderLineItem
}

func (s *memEntityStore) MergeCustomers(_ context.Context, _ string, rows []domain.Customer) (domain.MergeResult, error) {
	s.customers = append(s.customers, rows...)
	return domain.MergeResult{Inserted: len(rows)}, nil
}

func (s *memEntityStore) MergeProducts(_ context.Context, _ string, rows []domain.Product) (domain.MergeResult, error) {
	s.products = append(s.products, rows...)
	return domain.MergeResult{Inserted: len(rows)}, nil
}

func (s *memEntityStore) MergeVariants(_ context.Context, _ string, rows []domain.ProductVariant) (domain.MergeResult, error) {
	s.variants = append(s.variants, rows...)
	return domain.MergeResult{Inserted: len(rows)}, nil
}

func (s *memEntityStore) MergeOrders(_ context.Context, _ string, rows []domain.Order) (domain.MergeResult, error) {
	s.orders = append(s.orders, rows...)
	return domain.MergeResult{Inserted: len(rows)}, nil
}

func (s *memEntityStore) MergeLineItems(_ context.Context, _ string, rows []domain.OrderLineItem) (domain.MergeResult, error) {
	s.lineItems = append(s.lineItems, rows...)
	return domain.MergeResult{Inserted: len(rows)}, nil
}

func (s *memEntityStore) CountOrders(_ context.Context, _ string) (int64, error) {
	return int64(len(s.orders)), nil
}

func customersJSONL() string {
	return strings.Join([]string{
		`{"id":"gid://shopify/Customer/1","email":"a@example.com","firstName":"Ada"}`,
		`{"id":"gid://shopify/Customer/2","email":"b@example.com"}`,
		`{"id":"gid://shopify/Customer/3","email":"c@example.com"}`,
	}, "\n")
}

func productsJSONL() string {
	return strings.Join([]string{
		`{"id":"gid://shopify/Product/7","title":"Mug","status":"ACTIVE"}`,
		`{"id":"gid://shopify/ProductVariant/100","__parentId":"gid://shopify/Product/7","sku":"MUG-1","price":"12.00"}`,
		`{"id":"gid://shopify/Product/8","title":"Cap","status":"ACTIVE"}`,
		`{"id":"gid://shopify/ProductVariant/101","__parentId":"gid://shopify/Product/8","sku":"CAP-1","price":"9.00"}`,
	}, "\n")
}

func ordersJSONL() string {
	lines := make([]string, 0, 5)
	for i := 1; i <= 5; i++ {
		lines = append(lines, fmt.Sprintf(
			`{"id":"gid://shopify/Order/%d","name":"#10%02d","displayFinancialStatus":"PAID","customer":{"id":"gid://shopify/Customer/1"}}`, 5000+i, i))
	}
	return strings.Join(lines, "\n")
}

func lineItemsJSONL() string {
	lines := []string{
		`{"id":"gid://shopify/Order/5001"}`,
		`{"id":"gid://shopify/LineItem/1","__parentId":"gid://shopify/Order/5001","quantity":1,"product":{"id":"gid://shopify/Product/7"}}`,
		`{"id":"gid://shopify/LineItem/2","__parentId":"gid://shopify/Order/5001","quantity":2,"product":{"id":"gid://shopify/Product/8"}}`,
		`{"id":"gid://shopify/Order/5002"}`,
		`{"id":"gid://shopify/LineItem/3","__parentId":"gid://shopify/Order/5002","quantity":1,"product":{"id":"gid://shopify/Product/7"}}`,
		`{"id":"gid://shopify/LineItem/4","__parentId":"gid://shopify/Order/5002","quantity":1}`,
		`{"id":"gid://shopify/Order/5003"}`,
		`{"id":"gid://shopify/LineItem/5","__parentId":"gid://shopify/Order/5003","quantity":3,"product":{"id":"gid://shopify/Product/8"}}`,
		`{"id":"gid://shopify/Order/5004"}`,
		`{"id":"gid://shopify/LineItem/6","__parentId":"gid://shopify/Order/5004","quantity":1,"product":{"id":"gid://shopify/Product/7"}}`,
		`{"id":"gid://shopify/LineItem/7","__parentId":"gid://shopify/Order/5004","quantity":2,"product":{"id":"gid://shopify/Product/8"}}`,
		`{"id":"gid://shopify/Order/5005"}`,
		`{"id":"gid://shopify/LineItem/8","__parentId":"gid://shopify/Order/5005","quantity":1,"product":{"id":"gid://shopify/Product/7"}}`,
	}
	return strings.Join(lines, "\n")
}

func healthyExporter() *fakeExporter {
	return &fakeExporter{jobs: map[string]fakeJob{
		shopify.StageQuery(domain.StageCustomers): {status: ports.BulkStatusCompleted, jsonl: customersJSONL()},
		shopify.StageQuery(domain.StageProducts):  {status: ports.BulkStatusCompleted, jsonl: productsJSONL()},
		shopify.StageQuery(domain.StageOrders):    {status: ports.BulkStatusCompleted, jsonl: ordersJSONL()},
		shopify.StageQuery(domain.StageLineItems): {status: ports.BulkStatusCompleted, jsonl: lineItemsJSONL()},
	}}
}

func newTestOrchestrator(exporter ports.BulkExporter, store ports.EntityStore) (*Orchestrator, *ProgressTracker) {
	tracker := NewProgressTracker(newMemSyncStateRepo(), nil, zerolog.Nop())
	return NewOrchestrator(exporter, store, tracker, shopify.StageQuery, nil, zerolog.Nop()), tracker
}

func TestRunFullSyncMergesAllStages(t *testing.T) {
	store := &memEntityStore{}
	orch, tracker := newTestOrchestrator(healthyExporter(), store)
	shop := &domain.Shop{ID: "shop-1", Domain: "test.myshopify.com"}

	if err := orch.RunFullSync(context.Background(), shop, "shpat_test"); err != nil {
		t.Fatalf("RunFullSync: %v", err)
	}

	if len(store.customers) != 3 || len(store.products) != 2 || len(store.variants) != 2 ||
		len(store.orders) != 5 || len(store.lineItems) != 8 {
		t.Errorf("merged rows: customers %d products %d variants %d orders %d lineItems %d",
			len(store.customers), len(store.products), len(store.variants), len(store.orders), len(store.lineItems))
	}

	// the line item without a product reference keeps a nil reference
	var nilRefs int
	for _, li := range store.lineItems {
		if li.ProductExternalID == nil {
			nilRefs++
		}
	}
	if nilRefs != 1 {
		t.Errorf("expected exactly 1 line item without product reference, got %d", nilRefs)
	}

	snap, _ := tracker.Snapshot(context.Background(), "shop-1")
	if snap.Status != domain.SyncCompleted || snap.Percent != 100 {
		t.Errorf("run: status %s percent %v", snap.Status, snap.Percent)
	}
	wantCounts := map[domain.Stage]int{
		domain.StageCustomers: 3,
		domain.StageProducts:  2,
		domain.StageOrders:    5,
		domain.StageLineItems: 8,
	}
	for stage, want := range wantCounts {
		if got := snap.Stages[stage].Count; got != want {
			t.Errorf("stage %s count = %d, want %d", stage, got, want)
		}
	}
}

func TestRunFullSyncIsIdempotentAcrossRuns(t *testing.T) {
	store := &memEntityStore{}
	orch, tracker := newTestOrchestrator(healthyExporter(), store)
	shop := &domain.Shop{ID: "shop-1", Domain: "test.myshopify.com"}

	if err := orch.RunFullSync(context.Background(), shop, "shpat_test"); err != nil {
		t.Fatalf("first run: %v", err)
	}
	// a second full run starts from a clean slate even though the first
	// completed
	if err := orch.RunFullSync(context.Background(), shop, "shpat_test"); err != nil {
		t.Fatalf("second run: %v", err)
	}

	snap, _ := tracker.Snapshot(context.Background(), "shop-1")
	if snap.Status != domain.SyncCompleted {
		t.Errorf("second run status = %s", snap.Status)
	}
}

func TestRunFullSyncStageFailureAbortsRemaining(t *testing.T) {
	exporter := healthyExporter()
	job := exporter.jobs[shopify.StageQuery(domain.StageProducts)]
	job.status = ports.BulkStatusFailed
	job.jsonl = ""
	exporter.jobs[shopify.StageQuery(domain.StageProducts)] = job

	store := &memEntityStore{}
	orch, tracker := newTestOrchestrator(exporter, store)
	shop := &domain.Shop{ID: "shop-1", Domain: "test.myshopify.com"}

	err := orch.RunFullSync(context.Background(), shop, "shpat_test")
	if err == nil {
		t.Fatal("expected run to fail")
	}

	if len(store.customers) != 3 {
		t.Errorf("customers stage must have run: %d", len(store.customers))
	}
	if len(store.orders) != 0 || len(store.lineItems) != 0 {
		t.Errorf("stages after the failure must not run: orders %d lineItems %d", len(store.orders), len(store.lineItems))
	}

	snap, _ := tracker.Snapshot(context.Background(), "shop-1")
	if snap.Status != domain.SyncFailed {
		t.Errorf("run status = %s", snap.Status)
	}
	if snap.Stages[domain.StageCustomers].Status != domain.SyncCompleted {
		t.Errorf("customers stage = %s", snap.Stages[domain.StageCustomers].Status)
	}
	if snap.Stages[domain.StageProducts].Status != domain.SyncFailed {
		t.Errorf("products stage = %s", snap.Stages[domain.StageProducts].Status)
	}
	if snap.Stages[domain.StageOrders].Status != domain.SyncPending {
		t.Errorf("orders stage = %s", snap.Stages[domain.StageOrders].Status)
	}
}

func TestRunStageFailedJobWithPartialDataStillMerges(t *testing.T) {
	exporter := healthyExporter()
	job := exporter.jobs[shopify.StageQuery(domain.StageCustomers)]
	job.status = ports.BulkStatusFailed
	job.partial = true
	exporter.jobs[shopify.StageQuery(domain.StageCustomers)] = job

	store := &memEntityStore{}
	orch, tracker := newTestOrchestrator(exporter, store)
	shop := &domain.Shop{ID: "shop-1", Domain: "test.myshopify.com"}
	tracker.StartRun(context.Background(), "shop-1")

	err := orch.RunStage(context.Background(), shop, "shpat_test", domain.StageCustomers)
	if err == nil {
		t.Fatal("a failed export job must fail the stage")
	}

	if len(store.customers) != 3 {
		t.Errorf("partial data must be merged before failing, got %d rows", len(store.customers))
	}

	snap, _ := tracker.Snapshot(context.Background(), "shop-1")
	st := snap.Stages[domain.StageCustomers]
	if st.Status != domain.SyncFailed || st.Count != 3 {
		t.Errorf("stage after partial merge: %+v", st)
	}
}

func TestRunStageCompletedWithNoDataCompletesEmpty(t *testing.T) {
	exporter := &fakeExporter{jobs: map[string]fakeJob{
		shopify.StageQuery(domain.StageCustomers): {status: ports.BulkStatusCompleted},
	}}
	store := &memEntityStore{}
	orch, tracker := newTestOrchestrator(exporter, store)
	shop := &domain.Shop{ID: "shop-1", Domain: "test.myshopify.com"}
	tracker.StartRun(context.Background(), "shop-1")

	if err := orch.RunStage(context.Background(), shop, "shpat_test", domain.StageCustomers); err != nil {
		t.Fatalf("RunStage: %v", err)
	}

	snap, _ := tracker.Snapshot(context.Background(), "shop-1")
	st := snap.Stages[domain.StageCustomers]
	if st.Status != domain.SyncCompleted || st.Count != 0 {
		t.Errorf("empty export: %+v", st)
	}
}
