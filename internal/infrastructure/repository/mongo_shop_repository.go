package repository

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"shoppulse-ingest-layer/internal/domain"
	"shoppulse-ingest-layer/internal/ports"
)

// MongoShopRepository persists merchant installations
type MongoShopRepository struct {
	collection *mongo.Collection
}

// NewMongoShopRepository creates a new MongoDB shop repository
func NewMongoShopRepository(db *mongo.Database) ports.ShopRepository {
	return &MongoShopRepository{collection: db.Collection("shops")}
}

// SaveShop saves or updates a shop
func (r *MongoShopRepository) SaveShop(ctx context.Context, shop *domain.Shop) error {
	shop.UpdatedAt = time.Now()
	if shop.InstalledAt.IsZero() {
		shop.InstalledAt = time.Now()
	}

	opts := options.Update().SetUpsert(true)
	filter := bson.M{"domain": shop.Domain}
	update := bson.M{"$set": shop}

	_, err := r.collection.UpdateOne(ctx, filter, update, opts)
	if err != nil {
		return fmt.Errorf("failed to save shop: %w", err)
	}

	return nil
}

// GetShop retrieves a shop by domain
func (r *MongoShopRepository) GetShop(ctx context.Context, shopDomain string) (*domain.Shop, error) {
	var shop domain.Shop
	err := r.collection.FindOne(ctx, bson.M{"domain": shopDomain}).Decode(&shop)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get shop: %w", err)
	}
	return &shop, nil
}

// GetShopByID retrieves a shop by id
func (r *MongoShopRepository) GetShopByID(ctx context.Context, shopID string) (*domain.Shop, error) {
	var shop domain.Shop
	err := r.collection.FindOne(ctx, bson.M{"_id": shopID}).Decode(&shop)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get shop: %w", err)
	}
	return &shop, nil
}

// ListShops retrieves all shops
func (r *MongoShopRepository) ListShops(ctx context.Context) ([]*domain.Shop, error) {
	cursor, err := r.collection.Find(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("failed to list shops: %w", err)
	}
	defer cursor.Close(ctx)

	var shops []*domain.Shop
	for cursor.Next(ctx) {
		var shop domain.Shop
		if err := cursor.Decode(&shop); err != nil {
			return nil, fmt.Errorf("failed to decode shop: %w", err)
		}
		shops = append(shops, &shop)
	}

	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("cursor error: %w", err)
	}

	return shops, nil
}

// DeleteShop removes a shop by domain
func (r *MongoShopRepository) DeleteShop(ctx context.Context, shopDomain string) error {
	_, err := r.collection.DeleteOne(ctx, bson.M{"domain": shopDomain})
	if err != nil {
		return fmt.Errorf("failed to delete shop: %w", err)
	}
	return nil
}
