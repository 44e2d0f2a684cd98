package repository

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"shoppulse-ingest-layer/internal/domain"
	"shoppulse-ingest-layer/internal/ports"
)

// MongoSessionRepository persists short-lived OAuth sessions keyed by
// the CSRF state nonce
type MongoSessionRepository struct {
	collection *mongo.Collection
}

// NewMongoSessionRepository creates a new MongoDB session repository
func NewMongoSessionRepository(db *mongo.Database) ports.SessionRepository {
	return &MongoSessionRepository{collection: db.Collection("sessions")}
}

// CreateSession inserts a new OAuth session
func (r *MongoSessionRepository) CreateSession(ctx context.Context, session *domain.Session) error {
	if session.CreatedAt.IsZero() {
		session.CreatedAt = time.Now()
	}

	_, err := r.collection.InsertOne(ctx, session)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}

	return nil
}

// GetSession retrieves a session by its state nonce. Expired sessions
// are treated as absent.
func (r *MongoSessionRepository) GetSession(ctx context.Context, state string) (*domain.Session, error) {
	var session domain.Session
	err := r.collection.FindOne(ctx, bson.M{"state": state}).Decode(&session)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	if !session.ExpiresAt.IsZero() && time.Now().After(session.ExpiresAt) {
		return nil, nil
	}

	return &session, nil
}

// DeleteSession removes a session by its state nonce
func (r *MongoSessionRepository) DeleteSession(ctx context.Context, state string) error {
	_, err := r.collection.DeleteOne(ctx, bson.M{"state": state})
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}
