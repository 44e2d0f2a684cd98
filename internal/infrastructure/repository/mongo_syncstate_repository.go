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

// MongoSyncStateRepository persists per-shop sync progress, one document
// per shop keyed by shop id
type MongoSyncStateRepository struct {
	collection *mongo.Collection
}

// NewMongoSyncStateRepository creates a new MongoDB sync state repository
func NewMongoSyncStateRepository(db *mongo.Database) ports.SyncStateRepository {
	return &MongoSyncStateRepository{collection: db.Collection("sync_states")}
}

// Get retrieves the sync state for a shop, or nil when no run exists yet
func (r *MongoSyncStateRepository) Get(ctx context.Context, shopID string) (*domain.SyncState, error) {
	var state domain.SyncState
	err := r.collection.FindOne(ctx, bson.M{"_id": shopID}).Decode(&state)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get sync state: %w", err)
	}
	return &state, nil
}

// Save writes the full sync state document
func (r *MongoSyncStateRepository) Save(ctx context.Context, state *domain.SyncState) error {
	state.UpdatedAt = time.Now()

	opts := options.Update().SetUpsert(true)
	filter := bson.M{"_id": state.ShopID}
	update := bson.M{"$set": state}

	_, err := r.collection.UpdateOne(ctx, filter, update, opts)
	if err != nil {
		return fmt.Errorf("failed to save sync state: %w", err)
	}

	return nil
}
