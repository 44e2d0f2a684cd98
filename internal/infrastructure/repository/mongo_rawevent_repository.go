package repository

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"shoppulse-ingest-layer/internal/domain"
	"shoppulse-ingest-layer/internal/ports"
)

// MongoRawEventRepository is the append-only incoming-record log
type MongoRawEventRepository struct {
	collection *mongo.Collection
}

// NewMongoRawEventRepository creates a new MongoDB raw event repository
func NewMongoRawEventRepository(db *mongo.Database) ports.RawEventRepository {
	return &MongoRawEventRepository{collection: db.Collection("raw_events")}
}

// Append inserts a raw event and returns its id
func (r *MongoRawEventRepository) Append(ctx context.Context, event *domain.RawEvent) (string, error) {
	if event.ID == "" {
		event.ID = primitive.NewObjectID().Hex()
	}
	if event.ReceivedAt.IsZero() {
		event.ReceivedAt = time.Now()
	}

	_, err := r.collection.InsertOne(ctx, event)
	if err != nil {
		return "", fmt.Errorf("failed to append raw event: %w", err)
	}

	return event.ID, nil
}

// MarkProcessed flips the processed flag on a logged event
func (r *MongoRawEventRepository) MarkProcessed(ctx context.Context, eventID string) error {
	filter := bson.M{"_id": eventID}
	update := bson.M{"$set": bson.M{"processed": true}}

	res, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to mark raw event processed: %w", err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("raw event %s not found", eventID)
	}

	return nil
}

// ListRecent returns the most recent events for a shop, newest first
func (r *MongoRawEventRepository) ListRecent(ctx context.Context, shopDomain string, limit int64) ([]*domain.RawEvent, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "received_at", Value: -1}}).
		SetLimit(limit)

	cursor, err := r.collection.Find(ctx, bson.M{"shop_domain": shopDomain}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list raw events: %w", err)
	}
	defer cursor.Close(ctx)

	var events []*domain.RawEvent
	for cursor.Next(ctx) {
		var event domain.RawEvent
		if err := cursor.Decode(&event); err != nil {
			return nil, fmt.Errorf("failed to decode raw event: %w", err)
		}
		events = append(events, &event)
	}

	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("cursor error: %w", err)
	}

	return events, nil
}
