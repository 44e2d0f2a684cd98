package repository

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"shoppulse-ingest-layer/internal/domain"
)

// Integration tests run against a real MongoDB when MONGO_TEST_URI is
// set, e.g. MONGO_TEST_URI=mongodb://localhost:27017

func testDatabase(t *testing.T) *mongo.Database {
	t.Helper()
	uri := os.Getenv("MONGO_TEST_URI")
	if uri == "" {
		t.Skip("MONGO_TEST_URI not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		t.Fatalf("mongo connect: %v", err)
	}
	db := client.Database("shoppulse_test")
	t.Cleanup(func() {
		_ = db.Drop(context.Background())
		_ = client.Disconnect(context.Background())
	})
	return db
}

func TestMergeCustomersIsIdempotent(t *testing.T) {
	db := testDatabase(t)
	store := NewMongoEntityStore(db, zerolog.Nop())
	ctx := context.Background()

	rows := []domain.Customer{
		{ExternalID: 1, Email: "a@example.com", TotalSpent: 10},
		{ExternalID: 2, Email: "b@example.com", TotalSpent: 20},
	}

	first, err := store.MergeCustomers(ctx, "shop-1", rows)
	if err != nil {
		t.Fatalf("first merge: %v", err)
	}
	if first.Inserted != 2 || first.Updated != 0 {
		t.Errorf("first merge: %+v", first)
	}

	rows[1].TotalSpent = 25
	second, err := store.MergeCustomers(ctx, "shop-1", rows)
	if err != nil {
		t.Fatalf("second merge: %v", err)
	}
	if second.Inserted != 0 || second.Updated != 2 {
		t.Errorf("second merge must update, not duplicate: %+v", second)
	}

	otherShop, err := store.MergeCustomers(ctx, "shop-2", rows[:1])
	if err != nil {
		t.Fatalf("other shop merge: %v", err)
	}
	if otherShop.Inserted != 1 {
		t.Errorf("same external id under another shop must insert: %+v", otherShop)
	}
}

func TestMergeOrdersNullsUnknownCustomer(t *testing.T) {
	db := testDatabase(t)
	store := NewMongoEntityStore(db, zerolog.Nop())
	ctx := context.Background()

	if _, err := store.MergeCustomers(ctx, "shop-1", []domain.Customer{{ExternalID: 77}}); err != nil {
		t.Fatalf("seed customer: %v", err)
	}

	known := int64(77)
	unknown := int64(999)
	res, err := store.MergeOrders(ctx, "shop-1", []domain.Order{
		{ExternalID: 1, CustomerExternalID: &known, TotalPrice: 10},
		{ExternalID: 2, CustomerExternalID: &unknown, TotalPrice: 20},
		{ExternalID: 3, TotalPrice: 30},
	})
	if err != nil {
		t.Fatalf("MergeOrders: %v", err)
	}
	if res.Inserted != 3 || res.Errors != 0 {
		t.Fatalf("all orders must land despite unknown reference: %+v", res)
	}

	count, err := store.CountOrders(ctx, "shop-1")
	if err != nil {
		t.Fatalf("CountOrders: %v", err)
	}
	if count != 3 {
		t.Errorf("CountOrders = %d", count)
	}
}

func TestMergeLineItemsNullsUnknownProductAndVariant(t *testing.T) {
	db := testDatabase(t)
	store := NewMongoEntityStore(db, zerolog.Nop())
	ctx := context.Background()

	if _, err := store.MergeProducts(ctx, "shop-1", []domain.Product{{ExternalID: 7, Title: "Mug"}}); err != nil {
		t.Fatalf("seed product: %v", err)
	}
	if _, err := store.MergeVariants(ctx, "shop-1", []domain.ProductVariant{{ExternalID: 100, ProductExternalID: 7}}); err != nil {
		t.Fatalf("seed variant: %v", err)
	}

	knownP, knownV := int64(7), int64(100)
	goneP, goneV := int64(888), int64(999)
	res, err := store.MergeLineItems(ctx, "shop-1", []domain.OrderLineItem{
		{ExternalID: 1, OrderExternalID: 5001, ProductExternalID: &knownP, VariantExternalID: &knownV},
		{ExternalID: 2, OrderExternalID: 5001, ProductExternalID: &goneP, VariantExternalID: &goneV},
	})
	if err != nil {
		t.Fatalf("MergeLineItems: %v", err)
	}
	if res.Inserted != 2 || res.Errors != 0 {
		t.Errorf("line items with dangling references must still land: %+v", res)
	}
}
