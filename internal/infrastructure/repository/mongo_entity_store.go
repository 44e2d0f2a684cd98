package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"shoppulse-ingest-layer/internal/domain"
	"shoppulse-ingest-layer/internal/infrastructure/repository/entity"
)

// MongoEntityStore is the merge engine: idempotent upserts of canonical
// commerce rows keyed by (shop_id, external_id). A row that fails is
// counted and logged; the rest of the batch continues.
type MongoEntityStore struct {
	customersCollection *mongo.Collection
	productsCollection  *mongo.Collection
	variantsCollection  *mongo.Collection
	ordersCollection    *mongo.Collection
	lineItemsCollection *mongo.Collection
	logger              zerolog.Logger
}

// NewMongoEntityStore creates a new MongoDB entity store
func NewMongoEntityStore(db *mongo.Database, logger zerolog.Logger) *MongoEntityStore {
	return &MongoEntityStore{
		customersCollection: db.Collection("customers"),
		productsCollection:  db.Collection("products"),
		variantsCollection:  db.Collection("product_variants"),
		ordersCollection:    db.Collection("orders"),
		lineItemsCollection: db.Collection("order_line_items"),
		logger:              logger,
	}
}

// upsertRow performs one idempotent merge. The document's mutable fields
// are replaced on every write; created_at is set only on first insert.
func (s *MongoEntityStore) upsertRow(ctx context.Context, coll *mongo.Collection, shopID string, externalID int64, doc interface{}) (inserted bool, err error) {
	filter := bson.M{"shop_id": shopID, "external_id": externalID}
	update := bson.M{
		"$set":         doc,
		"$setOnInsert": bson.M{"created_at": time.Now()},
	}
	opts := options.Update().SetUpsert(true)

	res, err := coll.UpdateOne(ctx, filter, update, opts)
	if err != nil {
		return false, err
	}
	return res.UpsertedCount > 0, nil
}

// existingIDs returns which of the given external ids exist in coll for
// the shop. Used to resolve foreign-key references before a batch write.
func (s *MongoEntityStore) existingIDs(ctx context.Context, coll *mongo.Collection, shopID string, ids []int64) (map[int64]bool, error) {
	if len(ids) == 0 {
		return map[int64]bool{}, nil
	}

	filter := bson.M{"shop_id": shopID, "external_id": bson.M{"$in": ids}}
	raw, err := coll.Distinct(ctx, "external_id", filter)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve references: %w", err)
	}

	existing := make(map[int64]bool, len(raw))
	for _, v := range raw {
		switch id := v.(type) {
		case int64:
			existing[id] = true
		case int32:
			existing[int64(id)] = true
		}
	}
	return existing, nil
}

func (s *MongoEntityStore) logRowError(entityType string, shopID string, externalID int64, err error) {
	s.logger.Error().
		Err(err).
		Str("entity", entityType).
		Str("shop_id", shopID).
		Int64("external_id", externalID).
		Msg("Failed to merge row")
}

// MergeCustomers upserts a batch of customers
func (s *MongoEntityStore) MergeCustomers(ctx context.Context, shopID string, rows []domain.Customer) (domain.MergeResult, error) {
	var result domain.MergeResult
	now := time.Now()

	for _, row := range rows {
		doc := entity.MongoCustomerDocFromDomain(shopID, row)
		doc.UpdatedAt = now

		inserted, err := s.upsertRow(ctx, s.customersCollection, shopID, row.ExternalID, doc)
		if err != nil {
			s.logRowError("customer", shopID, row.ExternalID, err)
			result.Errors++
			continue
		}
		if inserted {
			result.Inserted++
		} else {
			result.Updated++
		}
	}

	return result, nil
}

// MergeProducts upserts a batch of products
func (s *MongoEntityStore) MergeProducts(ctx context.Context, shopID string, rows []domain.Product) (domain.MergeResult, error) {
	var result domain.MergeResult
	now := time.Now()

	for _, row := range rows {
		doc := entity.MongoProductDocFromDomain(shopID, row)
		doc.UpdatedAt = now

		inserted, err := s.upsertRow(ctx, s.productsCollection, shopID, row.ExternalID, doc)
		if err != nil {
			s.logRowError("product", shopID, row.ExternalID, err)
			result.Errors++
			continue
		}
		if inserted {
			result.Inserted++
		} else {
			result.Updated++
		}
	}

	return result, nil
}

// MergeVariants upserts a batch of product variants
func (s *MongoEntityStore) MergeVariants(ctx context.Context, shopID string, rows []domain.ProductVariant) (domain.MergeResult, error) {
	var result domain.MergeResult
	now := time.Now()

	for _, row := range rows {
		doc := entity.MongoVariantDocFromDomain(shopID, row)
		doc.UpdatedAt = now

		inserted, err := s.upsertRow(ctx, s.variantsCollection, shopID, row.ExternalID, doc)
		if err != nil {
			s.logRowError("variant", shopID, row.ExternalID, err)
			result.Errors++
			continue
		}
		if inserted {
			result.Inserted++
		} else {
			result.Updated++
		}
	}

	return result, nil
}

// MergeOrders upserts a batch of orders. A customer reference pointing
// at a customer we never mirrored is nulled rather than rejected, so a
// guest checkout and a stale reference land the same way.
func (s *MongoEntityStore) MergeOrders(ctx context.Context, shopID string, rows []domain.Order) (domain.MergeResult, error) {
	var result domain.MergeResult
	now := time.Now()

	var customerIDs []int64
	for _, row := range rows {
		if row.CustomerExternalID != nil {
			customerIDs = append(customerIDs, *row.CustomerExternalID)
		}
	}
	knownCustomers, err := s.existingIDs(ctx, s.customersCollection, shopID, customerIDs)
	if err != nil {
		return result, err
	}

	for _, row := range rows {
		if row.CustomerExternalID != nil && !knownCustomers[*row.CustomerExternalID] {
			s.logger.Debug().
				Str("shop_id", shopID).
				Int64("order", row.ExternalID).
				Int64("customer", *row.CustomerExternalID).
				Msg("Nulling reference to unknown customer")
			row.CustomerExternalID = nil
		}

		doc := entity.MongoOrderDocFromDomain(shopID, row)
		doc.UpdatedAt = now

		inserted, err := s.upsertRow(ctx, s.ordersCollection, shopID, row.ExternalID, doc)
		if err != nil {
			s.logRowError("order", shopID, row.ExternalID, err)
			result.Errors++
			continue
		}
		if inserted {
			result.Inserted++
		} else {
			result.Updated++
		}
	}

	return result, nil
}

// MergeLineItems upserts a batch of order line items. Product and
// variant references to rows we never mirrored (deleted products,
// trimmed catalogs) are nulled rather than rejected.
func (s *MongoEntityStore) MergeLineItems(ctx context.Context, shopID string, rows []domain.OrderLineItem) (domain.MergeResult, error) {
	var result domain.MergeResult
	now := time.Now()

	var productIDs, variantIDs []int64
	for _, row := range rows {
		if row.ProductExternalID != nil {
			productIDs = append(productIDs, *row.ProductExternalID)
		}
		if row.VariantExternalID != nil {
			variantIDs = append(variantIDs, *row.VariantExternalID)
		}
	}
	knownProducts, err := s.existingIDs(ctx, s.productsCollection, shopID, productIDs)
	if err != nil {
		return result, err
	}
	knownVariants, err := s.existingIDs(ctx, s.variantsCollection, shopID, variantIDs)
	if err != nil {
		return result, err
	}

	for _, row := range rows {
		if row.ProductExternalID != nil && !knownProducts[*row.ProductExternalID] {
			row.ProductExternalID = nil
		}
		if row.VariantExternalID != nil && !knownVariants[*row.VariantExternalID] {
			row.VariantExternalID = nil
		}

		doc := entity.MongoLineItemDocFromDomain(shopID, row)
		doc.UpdatedAt = now

		inserted, err := s.upsertRow(ctx, s.lineItemsCollection, shopID, row.ExternalID, doc)
		if err != nil {
			s.logRowError("line_item", shopID, row.ExternalID, err)
			result.Errors++
			continue
		}
		if inserted {
			result.Inserted++
		} else {
			result.Updated++
		}
	}

	return result, nil
}

// CountOrders returns the number of mirrored orders for a shop
func (s *MongoEntityStore) CountOrders(ctx context.Context, shopID string) (int64, error) {
	count, err := s.ordersCollection.CountDocuments(ctx, bson.M{"shop_id": shopID})
	if err != nil {
		return 0, fmt.Errorf("failed to count orders: %w", err)
	}
	return count, nil
}
